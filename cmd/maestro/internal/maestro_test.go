package internal

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute(t *testing.T) {
	cmd := NewRootCmd()
	b := bytes.NewBufferString("")
	cmd.SetOut(b)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
}

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["migrate"])
	assert.True(t, names["version"])
}

func TestVersionCmd(t *testing.T) {
	cmd := NewVersionCmd()
	b := bytes.NewBufferString("")
	cmd.SetOut(b)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, b.String(), "maestro")
}

func TestServeCmd_FailsFastOnMissingConfig(t *testing.T) {
	configPath := "/nonexistent/maestro.yaml"
	cmd := NewServeCmd(&configPath)
	assert.Error(t, cmd.RunE(cmd, nil))
}

func TestMigrateCmd_FailsFastOnMissingConfig(t *testing.T) {
	configPath := "/nonexistent/maestro.yaml"
	cmd := NewMigrateCmd(&configPath)
	assert.Error(t, cmd.RunE(cmd, nil))
}

func TestNewLogger_ParsesValidLevel(t *testing.T) {
	logger := newLogger("debug")
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestNewLogger_DefaultsToInfoOnInvalidLevel(t *testing.T) {
	logger := newLogger("not-a-level")
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
}
