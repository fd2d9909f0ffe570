// Package logger provides the leveled logging interface used across the
// library, plus a zerolog-backed implementation built through LogBuild.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

const (
	permission = 0664
)

// Logger accepts a message followed by alternating key/value pairs.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

// Noop discards everything.
type Noop struct{}

func (Noop) Error(string, ...any) {}
func (Noop) Warn(string, ...any)  {}
func (Noop) Info(string, ...any)  {}
func (Noop) Debug(string, ...any) {}

type LogBuild struct {
	writer io.Writer
	path   string
	level  zerolog.Level
}

type LogData struct {
	writer  io.Writer
	LogFile *os.File
	Logger  zerolog.Logger
}

var _ Logger = (*LogData)(nil)

func New() *LogBuild {
	return &LogBuild{level: zerolog.InfoLevel}
}

func (build *LogBuild) FromPath(path string) *LogBuild {
	build.path = path
	return build
}

func (build *LogBuild) FromBuffer(w io.Writer) *LogBuild {
	build.writer = w
	return build
}

func (build *LogBuild) WithLevel(level zerolog.Level) *LogBuild {
	build.level = level
	return build
}

func (build *LogBuild) Make() (logData *LogData, err error) {
	logData = new(LogData)
	logData.writer = os.Stdout
	if build.writer != nil {
		logData.writer = build.writer
	}
	if build.path != "" {
		logData.LogFile, err = os.OpenFile(build.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		logData.writer = zerolog.SyncWriter(logData.LogFile)
	}
	logData.Logger = zerolog.New(logData.writer).Level(build.level).With().Timestamp().Logger()
	return
}

func (ld *LogData) Error(msg string, args ...any) {
	withFields(ld.Logger.Error(), args).Msg(msg)
}

func (ld *LogData) Warn(msg string, args ...any) {
	withFields(ld.Logger.Warn(), args).Msg(msg)
}

func (ld *LogData) Info(msg string, args ...any) {
	withFields(ld.Logger.Info(), args).Msg(msg)
}

func (ld *LogData) Debug(msg string, args ...any) {
	withFields(ld.Logger.Debug(), args).Msg(msg)
}

func withFields(e *zerolog.Event, args []any) *zerolog.Event {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		e = e.Interface(key, args[i+1])
	}
	return e
}
