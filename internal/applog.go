package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const logFileName = "ytrag.log"

var (
	appLogger     atomic.Pointer[zap.Logger]
	appLoggerOnce sync.Once
)

func init() {
	appLogger.Store(zap.NewNop())
}

// newFileLogger writes JSON lines to path; verbose lowers the level to debug
func newFileLogger(path string, verbose bool) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encoder := zap.NewProductionEncoderConfig()
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoder), zapcore.AddSync(file), level)
	return zap.New(core), nil
}

// InitLogging sets up the server log file once, based on config; logging stays off when that fails
func InitLogging(config *Config) {
	appLoggerOnce.Do(func() {
		if !config.LogEnabled {
			return
		}
		logger, err := newFileLogger(LogPath(config), config.Verbose)
		if err != nil {
			return
		}
		appLogger.Store(logger)
	})
}

// SyncLogging flushes buffered log entries
func SyncLogging() {
	_ = appLogger.Load().Sync()
}

// LogPath returns where server logs are written
func LogPath(config *Config) string {
	return filepath.Join(config.CacheDir, logFileName)
}

func mcpLog() *zap.Logger { return appLogger.Load().Named("mcp") }

func webLog() *zap.Logger { return appLogger.Load().Named("web") }
