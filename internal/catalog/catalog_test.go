package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogLookup(t *testing.T) {
	c := Default()

	sim, ok := c.Lookup("verilator", "sim")
	require.True(t, ok)
	assert.Equal(t, "verilator.sim", sim.Key())

	binary, ok := sim.Argument("binary")
	require.True(t, ok)
	assert.Equal(t, TypeFile, binary.Type)
	assert.True(t, binary.Required)

	batch, ok := sim.Argument("batch")
	require.True(t, ok)
	assert.Equal(t, TypeBoolean, batch.Type)
	assert.False(t, batch.Required)
	assert.Equal(t, false, batch.Default)

	_, ok = c.Lookup("verilator", "nope")
	assert.False(t, ok)
}

func TestCatalogOverride(t *testing.T) {
	custom := OperationDefinition{
		Command: "verilator",
		Name:    "sim",
		Arguments: []ArgumentDefinition{
			{Name: "elf", Type: TypeFile, Required: true},
		},
	}
	c, err := New(append(Builtin(), custom)...)
	require.NoError(t, err)

	sim, ok := c.Lookup("verilator", "sim")
	require.True(t, ok)
	assert.Equal(t, []string{"elf"}, sim.ArgumentNames())
	assert.Len(t, c.All(), len(Builtin()), "override must not add a second entry")
}

func TestOperationsAndCommands(t *testing.T) {
	c := Default()

	cmds := c.Commands()
	assert.Contains(t, cmds, "verilator")
	assert.Contains(t, cmds, "vcs")
	assert.IsIncreasing(t, cmds)

	for _, op := range c.Operations("vcs") {
		assert.Equal(t, "vcs", op.Command)
	}
}

func TestDefinitionValidate(t *testing.T) {
	tests := []struct {
		name    string
		def     OperationDefinition
		wantErr string
	}{
		{
			name:    "missing command",
			def:     OperationDefinition{Name: "build"},
			wantErr: "needs both command and name",
		},
		{
			name: "choice without choices",
			def: OperationDefinition{Command: "x", Name: "y", Arguments: []ArgumentDefinition{
				{Name: "mode", Type: TypeChoice},
			}},
			wantErr: "needs at least one choice",
		},
		{
			name: "choices on a string",
			def: OperationDefinition{Command: "x", Name: "y", Arguments: []ArgumentDefinition{
				{Name: "mode", Type: TypeString, Choices: []string{"a"}},
			}},
			wantErr: "only allowed",
		},
		{
			name: "unknown type",
			def: OperationDefinition{Command: "x", Name: "y", Arguments: []ArgumentDefinition{
				{Name: "mode", Type: "float"},
			}},
			wantErr: "unknown type",
		},
		{
			name: "duplicate argument",
			def: OperationDefinition{Command: "x", Name: "y", Arguments: []ArgumentDefinition{
				{Name: "a", Type: TypeString},
				{Name: "a", Type: TypeNumber},
			}},
			wantErr: "duplicate argument",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestArgumentParse(t *testing.T) {
	num := ArgumentDefinition{Name: "job", Type: TypeNumber}
	v, err := num.Parse("8")
	require.NoError(t, err)
	assert.Equal(t, int64(8), v)

	v, err = num.Parse("1.5")
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	_, err = num.Parse("eight")
	assert.Error(t, err)

	flag := ArgumentDefinition{Name: "batch", Type: TypeBoolean}
	v, err = flag.Parse("")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = flag.Parse("false")
	require.NoError(t, err)
	assert.Equal(t, false, v)

	str := ArgumentDefinition{Name: "config", Type: TypeString}
	v, err = str.Parse("RocketConfig")
	require.NoError(t, err)
	assert.Equal(t, "RocketConfig", v)
}
