package validator

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/harshul/bbdev-cli/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequiredArgumentMissing(t *testing.T) {
	defs := []catalog.ArgumentDefinition{{Name: "config", Type: catalog.TypeString, Required: true}}

	tests := []struct {
		name   string
		values map[string]any
	}{
		{"absent", map[string]any{}},
		{"nil", map[string]any{"config": nil}},
		{"empty string", map[string]any{"config": ""}},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(defs, tt.values)
			require.Error(t, err)
			assert.True(t, errors.Is(err, MissingRequiredArgument))

			errs, ok := AsErrors(err)
			require.True(t, ok)
			require.NotNil(t, errs.Field("config"))
		})
	}

	assert.NoError(t, v.Validate(defs, map[string]any{"config": "RocketConfig"}))
}

func TestOptionalAbsentIsSkipped(t *testing.T) {
	defs := []catalog.ArgumentDefinition{
		{Name: "job", Type: catalog.TypeNumber},
		{Name: "binary", Type: catalog.TypeFile},
		{Name: "mode", Type: catalog.TypeChoice, Choices: []string{"a"}},
	}
	values := map[string]any{"binary": "", "mode": nil}

	assert.NoError(t, New().Validate(defs, values))
	_, injected := values["job"]
	assert.False(t, injected, "defaults must not be injected")
}

func TestTypeChecks(t *testing.T) {
	tests := []struct {
		name  string
		def   catalog.ArgumentDefinition
		value any
		want  error
	}{
		{"string ok", catalog.ArgumentDefinition{Name: "s", Type: catalog.TypeString}, "x", nil},
		{"string wrong", catalog.ArgumentDefinition{Name: "s", Type: catalog.TypeString}, 3, WrongType},
		{"number int", catalog.ArgumentDefinition{Name: "n", Type: catalog.TypeNumber}, 8, nil},
		{"number int64", catalog.ArgumentDefinition{Name: "n", Type: catalog.TypeNumber}, int64(8), nil},
		{"number float", catalog.ArgumentDefinition{Name: "n", Type: catalog.TypeNumber}, 1.5, nil},
		{"number NaN", catalog.ArgumentDefinition{Name: "n", Type: catalog.TypeNumber}, math.NaN(), WrongType},
		{"number string", catalog.ArgumentDefinition{Name: "n", Type: catalog.TypeNumber}, "8", WrongType},
		{"bool ok", catalog.ArgumentDefinition{Name: "b", Type: catalog.TypeBoolean}, false, nil},
		{"bool string", catalog.ArgumentDefinition{Name: "b", Type: catalog.TypeBoolean}, "true", WrongType},
		{"choice wrong type", catalog.ArgumentDefinition{Name: "c", Type: catalog.TypeChoice, Choices: []string{"a"}}, 1, WrongType},
		{"file wrong type", catalog.ArgumentDefinition{Name: "f", Type: catalog.TypeFile}, true, WrongType},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate([]catalog.ArgumentDefinition{tt.def}, map[string]any{tt.def.Name: tt.value})
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestChoiceMembership(t *testing.T) {
	def := catalog.ArgumentDefinition{Name: "target", Type: catalog.TypeChoice, Choices: []string{"baremetal", "linux"}}
	v := New()

	for _, ok := range []string{"baremetal", "linux"} {
		assert.NoError(t, v.Validate([]catalog.ArgumentDefinition{def}, map[string]any{"target": ok}))
	}
	for _, bad := range []string{"Linux", "linux ", "all"} {
		err := v.Validate([]catalog.ArgumentDefinition{def}, map[string]any{"target": bad})
		require.ErrorIs(t, err, InvalidChoice, bad)

		errs, _ := AsErrors(err)
		assert.Equal(t, def.Choices, errs.Field("target").Choices)
	}
}

func TestFileAndDirectoryChecks(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "prog.elf")
	require.NoError(t, os.WriteFile(file, []byte("elf"), 0o644))

	fileDef := catalog.ArgumentDefinition{Name: "binary", Type: catalog.TypeFile}
	dirDef := catalog.ArgumentDefinition{Name: "out", Type: catalog.TypeDirectory}
	v := New()

	tests := []struct {
		name  string
		def   catalog.ArgumentDefinition
		value string
		want  error
	}{
		{"existing file", fileDef, file, nil},
		{"missing file", fileDef, filepath.Join(dir, "missing.elf"), FileNotFound},
		{"directory given as file", fileDef, dir, NotAFile},
		{"existing directory", dirDef, dir, nil},
		{"missing directory", dirDef, filepath.Join(dir, "nope"), DirectoryNotFound},
		{"file given as directory", dirDef, file, NotADirectory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate([]catalog.ArgumentDefinition{tt.def}, map[string]any{tt.def.Name: tt.value})
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRelativePathsResolveAgainstBaseDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.elf"), nil, 0o644))

	defs := []catalog.ArgumentDefinition{{Name: "binary", Type: catalog.TypeFile, Required: true}}
	assert.NoError(t, New().ValidateIn(dir, defs, map[string]any{"binary": "a.elf"}))
}

func TestAllFieldsReported(t *testing.T) {
	defs := []catalog.ArgumentDefinition{
		{Name: "binary", Type: catalog.TypeFile, Required: true},
		{Name: "job", Type: catalog.TypeNumber},
		{Name: "batch", Type: catalog.TypeBoolean},
	}
	err := New().Validate(defs, map[string]any{"job": "many", "batch": 1})

	errs, ok := AsErrors(err)
	require.True(t, ok)
	assert.Len(t, errs, 3)
	assert.ErrorIs(t, errs.Field("binary"), MissingRequiredArgument)
	assert.ErrorIs(t, errs.Field("job"), WrongType)
	assert.ErrorIs(t, errs.Field("batch"), WrongType)
}

func TestVerilatorSimScenario(t *testing.T) {
	sim, ok := catalog.Default().Lookup("verilator", "sim")
	require.True(t, ok)
	v := New()

	err := v.Validate(sim.Arguments, map[string]any{"batch": true})
	require.Error(t, err)
	errs, _ := AsErrors(err)
	require.Len(t, errs, 1)
	assert.Equal(t, "binary", errs[0].Field)
	assert.ErrorIs(t, errs[0], MissingRequiredArgument)

	bin := filepath.Join(t.TempDir(), "hello.riscv")
	require.NoError(t, os.WriteFile(bin, []byte{0x7f, 'E', 'L', 'F'}, 0o755))
	assert.NoError(t, v.Validate(sim.Arguments, map[string]any{"binary": bin}))
}
