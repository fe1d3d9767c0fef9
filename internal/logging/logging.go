// Package logging builds the process logger and renders batch result
// tables for the terminal.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DebugLogFile is where detailed run logs land when --logs is set.
const DebugLogFile = "earpeace-debug.log"

// New builds a zap logger writing console output to stderr at the given
// level. When debugFile is true, a second core captures everything at
// debug level into DebugLogFile. The returned cleanup closes the file and
// flushes buffers.
func New(level string, debugFile bool) (*zap.Logger, func(), error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level %q: %w", level, err)
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = "" // timestamps add noise on an interactive console
	console := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		lvl,
	)

	cores := []zapcore.Core{console}
	cleanup := func() {}
	if debugFile {
		f, err := os.Create(DebugLogFile)
		if err != nil {
			return nil, nil, fmt.Errorf("create %s: %w", DebugLogFile, err)
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(fileCfg),
			zapcore.Lock(f),
			zapcore.DebugLevel,
		))
		cleanup = func() { f.Close() }
	}

	logger := zap.New(zapcore.NewTee(cores...))
	return logger, func() {
		logger.Sync()
		cleanup()
	}, nil
}
