package logger_test

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/reconnws/reconnws/pkg/logger"
)

func TestLog(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	templogger, err := logger.New().FromBuffer(buff).Make()
	require.NoError(t, err)
	require.NotNil(t, templogger)
	// Get Stats Before
	require.Equal(t, buff.Len(), 0)
	templogger.Info("Test")
	// Get Stats After
	require.Contains(t, buff.String(), "Test")
}

func TestLogFields(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	templogger, err := logger.New().FromBuffer(buff).WithLevel(zerolog.DebugLevel).Make()
	require.NoError(t, err)

	templogger.Debug("state transitioned", "new_state", "Connecting")
	require.Contains(t, buff.String(), "state transitioned")
	require.Contains(t, buff.String(), "new_state")
	require.Contains(t, buff.String(), "Connecting")
}

func TestLogLevel(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	templogger, err := logger.New().FromBuffer(buff).WithLevel(zerolog.WarnLevel).Make()
	require.NoError(t, err)

	templogger.Info("suppressed")
	require.Equal(t, 0, buff.Len())
	templogger.Error("kept")
	require.Contains(t, buff.String(), "kept")
}

func TestNoop(t *testing.T) {
	var l logger.Logger = logger.Noop{}
	l.Error("e")
	l.Warn("w")
	l.Info("i")
	l.Debug("d")
}
