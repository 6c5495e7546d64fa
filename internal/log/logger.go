package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu          sync.RWMutex
	verbose     bool
	disableLogs bool
	sugar       = zap.New(newCore(false)).Sugar()
)

func newCore(verbose bool) zapcore.Core {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	enc := zapcore.NewConsoleEncoder(encCfg)
	return zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level)
}

// SetVerbose sets the logging verbosity. If true, Debugf messages are emitted.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	sugar = zap.New(newCore(v)).Sugar()
}

// IsVerbose returns true if verbose logging is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// DisableLogs silences all logging, used by tests that exercise Fatalf paths
// without polluting test output.
func DisableLogs() {
	mu.Lock()
	defer mu.Unlock()
	disableLogs = true
}

// IsDisabled returns true if logging is disabled.
func IsDisabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return disableLogs
}

func current() (*zap.SugaredLogger, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return sugar, disableLogs
}

// Debugf logs a debug message if verbose is true.
func Debugf(format string, args ...interface{}) {
	s, off := current()
	if off {
		return
	}
	s.Debugf(format, args...)
}

// Infof logs an info message.
func Infof(format string, args ...interface{}) {
	s, off := current()
	if off {
		return
	}
	s.Infof(format, args...)
}

// Warnf logs a warning message.
func Warnf(format string, args ...interface{}) {
	s, off := current()
	if off {
		return
	}
	s.Warnf(format, args...)
}

// Errorf logs an error message.
func Errorf(format string, args ...interface{}) {
	s, off := current()
	if off {
		return
	}
	s.Errorf(format, args...)
}

// Fatalf logs an error message and exits the program with status 1.
func Fatalf(format string, args ...interface{}) {
	s, off := current()
	if off {
		os.Exit(1)
	}
	s.Errorf(format, args...)
	_ = s.Sync()
	os.Exit(1)
}
