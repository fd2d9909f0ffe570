package slog_test

import (
	"bytes"
	stdslog "log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reconnws/reconnws/pkg/logger"
	"github.com/reconnws/reconnws/pkg/logger/slog"
)

func TestSlogHandler(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	handler := slog.New(stdslog.NewTextHandler(buff, &stdslog.HandlerOptions{
		Level: stdslog.LevelDebug,
	}))

	var l logger.Logger = handler
	l.Info("connected", "endpoint", "ws://localhost:8000/ws")
	require.Contains(t, buff.String(), "connected")
	require.Contains(t, buff.String(), "ws://localhost:8000/ws")

	buff.Reset()
	l.Debug("state transitioned", "new_state", "Open")
	require.Contains(t, buff.String(), "state transitioned")
	require.Contains(t, buff.String(), "Open")
}
