package doctor

import (
	"context"
	"net"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTool(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	st := CheckTool(context.Background(), Tool{Name: "sh", VersionArgs: []string{"-c", "echo 'sh 1.0'; echo second"}})
	assert.True(t, st.Installed)
	assert.Equal(t, "sh 1.0", st.Version)
	assert.NotEmpty(t, st.Path)

	missing := CheckTool(context.Background(), Tool{Name: "bbx-no-such-tool"})
	assert.False(t, missing.Installed)
	assert.Empty(t, missing.Path)
}

func TestDiagnoseHealthy(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	d := Diagnose(context.Background(), Options{
		BbdevPath: "sh",
		Workspace: t.TempDir(),
		Tools:     []Tool{{Name: "bbx-no-such-sim"}},
	})
	assert.True(t, d.Healthy, d.Issues)
	assert.Empty(t, d.Issues)
	require.Len(t, d.Tools, 1)
	assert.False(t, d.Tools[0].Installed)
	assert.Contains(t, d.Warnings, "bbx-no-such-sim not found on PATH")
	assert.GreaterOrEqual(t, d.Host.Jobs, 1)
}

func TestDiagnoseReportsIssues(t *testing.T) {
	d := Diagnose(context.Background(), Options{
		BbdevPath: "bbx-no-such-bbdev",
		Workspace: filepath.Join(t.TempDir(), "missing"),
		Tools:     []Tool{{Name: "bbx-required-tool", Required: true}},
	})
	assert.False(t, d.Healthy)
	assert.Len(t, d.Issues, 3)
}

func TestDiagnosePortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	d := Diagnose(context.Background(), Options{BbdevPath: "bbx-no-such-bbdev", Workspace: t.TempDir(), DefaultPort: port, Tools: []Tool{}})
	assert.Equal(t, port, d.Port.Port)
	assert.False(t, d.Port.Available)
	assert.NotEmpty(t, d.Warnings)
}
