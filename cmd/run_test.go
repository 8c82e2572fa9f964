package main

import (
	"testing"

	"github.com/harshul/bbdev-cli/internal/catalog"
	"github.com/harshul/bbdev-cli/internal/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simDefinition(t *testing.T) catalog.OperationDefinition {
	t.Helper()
	def, ok := catalog.Default().Lookup("verilator", "run")
	require.True(t, ok)
	return def
}

func TestParseArgs(t *testing.T) {
	def := simDefinition(t)

	values, err := parseArgs(def, []string{"job=8", "binary=hello.elf", "batch", "--config=SmallConfig"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"job":    int64(8),
		"binary": "hello.elf",
		"batch":  true,
		"config": "SmallConfig",
	}, values)
}

func TestParseArgsErrors(t *testing.T) {
	def := simDefinition(t)

	tests := map[string][]string{
		"unknown argument": {"bogus=1"},
		"missing value":    {"binary"},
		"bad number":       {"job=lots"},
		"bad boolean":      {"batch=maybe"},
		"empty name":       {"=1"},
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parseArgs(def, raw)
			assert.Error(t, err)
		})
	}
}

func TestDefaultJobs(t *testing.T) {
	def := simDefinition(t)
	recommend := func() int { return 6 }

	jobs, ok := defaultJobs(def, map[string]any{}, recommend)
	assert.True(t, ok)
	assert.Equal(t, int64(6), jobs)

	_, ok = defaultJobs(def, map[string]any{"job": int64(2)}, recommend)
	assert.False(t, ok, "explicit job wins")

	clean, found := catalog.Default().Lookup("verilator", "clean")
	require.True(t, found)
	_, ok = defaultJobs(clean, map[string]any{}, recommend)
	assert.False(t, ok, "operation without a job argument")
}

func TestExitCodeOf(t *testing.T) {
	assert.Equal(t, 7, exitCodeOf(&executor.Result{ExitCode: 7}))
	assert.Equal(t, 1, exitCodeOf(&executor.Result{ExitCode: -1}))
	assert.Equal(t, 1, exitCodeOf(&executor.Result{ExitCode: 300}))
}
