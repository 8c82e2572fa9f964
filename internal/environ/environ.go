package environ

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReadEnvFile reads a dotenv-style file into a map.
// A missing file yields an empty map, not an error.
func ReadEnvFile(envPath string) (map[string]string, error) {
	vars := make(map[string]string)

	file, err := os.Open(envPath)
	if err != nil {
		if os.IsNotExist(err) {
			return vars, nil
		}
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip comments and empty lines
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			value = strings.Trim(value, `"'`)
			vars[key] = value
		}
	}

	return vars, scanner.Err()
}

// Overlay builds the environment overlay for subprocesses: values from the env
// file, then explicit values (which win), then extra PATH entries prepended to
// the inherited PATH.
func Overlay(envFile string, explicit map[string]string, extraPaths []string) (map[string]string, error) {
	overlay := make(map[string]string)

	if envFile != "" {
		fromFile, err := ReadEnvFile(envFile)
		if err != nil {
			return nil, err
		}
		for k, v := range fromFile {
			overlay[k] = v
		}
	}
	for k, v := range explicit {
		overlay[k] = v
	}

	if len(extraPaths) > 0 {
		base, ok := overlay["PATH"]
		if !ok {
			base = os.Getenv("PATH")
		}
		parts := append([]string{}, extraPaths...)
		if base != "" {
			parts = append(parts, base)
		}
		overlay["PATH"] = strings.Join(parts, string(filepath.ListSeparator))
	}

	return overlay, nil
}

// Merge applies an overlay on top of a base environment in KEY=VALUE form.
// Keys in the overlay replace matching keys in base; output is deterministic.
func Merge(base []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return base
	}

	out := make([]string, 0, len(base)+len(overlay))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, replaced := overlay[key]; replaced {
			continue
		}
		out = append(out, kv)
	}

	keys := make([]string, 0, len(overlay))
	for k := range overlay {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overlay[k])
	}
	return out
}
