package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/harshul/bbdev-cli/internal/config"
	"github.com/harshul/bbdev-cli/internal/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortSinksLabelLiveViewLines(t *testing.T) {
	logs := make(chan string, 4)
	sinkFor := portSinks(logs, nil)

	sinkFor(8081).OnOutput("listening")
	sinkFor(8082).OnError("boom")

	require.Len(t, logs, 2)
	assert.Equal(t, "[8081] listening", <-logs)
	assert.Equal(t, "[8082] boom", <-logs)
}

func TestPortSinksLabelConsoleLines(t *testing.T) {
	var out, errOut bytes.Buffer
	sinkFor := portSinks(nil, ui.NewConsoleSink(&out, &errOut, "", true))

	sinkFor(8083).OnOutput("ready")
	assert.Contains(t, out.String(), "[8083] ready")
}

func TestNewExecutorUsesConfiguredKillGrace(t *testing.T) {
	cfg := config.Default()
	cfg.Server.KillGrace = 500
	assert.Equal(t, 500*time.Millisecond, newExecutor(cfg, nil).KillGrace())
}
