package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DebugEnv forces debug level regardless of configuration when set to "1".
const DebugEnv = "ADBLOCK_DEBUG"

// Options configures the global logger.
type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base    atomic.Pointer[zap.Logger]
	sugar   atomic.Pointer[zap.SugaredLogger]
	outMu   sync.Mutex
	fileOut *lumberjack.Logger
)

func init() {
	install(newCore(zapcore.Lock(os.Stderr), nil))
}

// Init rebuilds the global logger from opts. A console core always writes to
// stderr; when File is set a JSON core is teed to a rotating file.
func Init(opts Options) {
	SetLevel(opts.Level)

	outMu.Lock()
	defer outMu.Unlock()

	if fileOut != nil {
		_ = fileOut.Close()
		fileOut = nil
	}
	var fileCore zapcore.Core
	if opts.File != "" {
		fileOut = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		fileCore = zapcore.NewCore(jsonEncoder(), zapcore.AddSync(fileOut), level)
	}
	install(newCore(zapcore.Lock(os.Stderr), fileCore))
}

func newCore(console zapcore.WriteSyncer, extra zapcore.Core) zapcore.Core {
	cores := []zapcore.Core{zapcore.NewCore(consoleEncoder(), console, level)}
	if extra != nil {
		cores = append(cores, extra)
	}
	return zapcore.NewTee(cores...)
}

func install(core zapcore.Core) {
	l := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.FatalLevel))
	base.Store(l)
	sugar.Store(l.Sugar())
}

func consoleEncoder() zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func jsonEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(cfg)
}

// SetLevel sets the global log level. ADBLOCK_DEBUG=1 overrides it to debug.
func SetLevel(levelStr string) {
	if os.Getenv(DebugEnv) == "1" {
		level.SetLevel(zapcore.DebugLevel)
		return
	}
	switch strings.ToLower(levelStr) {
	case "debug":
		level.SetLevel(zapcore.DebugLevel)
	case "warn", "warning":
		level.SetLevel(zapcore.WarnLevel)
	case "error":
		level.SetLevel(zapcore.ErrorLevel)
	case "fatal":
		level.SetLevel(zapcore.FatalLevel)
	default:
		level.SetLevel(zapcore.InfoLevel)
	}
}

// Level reports the current level name.
func Level() string {
	return level.Level().String()
}

// SetOutput redirects console output, mostly for tests.
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	install(newCore(zapcore.AddSync(w), nil))
}

// L returns the underlying zap logger.
func L() *zap.Logger {
	return base.Load()
}

// Named returns a sugared child logger for one component.
func Named(component string) *zap.SugaredLogger {
	return base.Load().WithOptions(zap.AddCallerSkip(-1)).Named(component).Sugar()
}

// Sync flushes buffered entries.
func Sync() {
	if err := base.Load().Sync(); err != nil && !isStdSyncErr(err) {
		fmt.Fprintln(os.Stderr, "failed to sync logger:", err)
	}
}

// syncing a terminal returns EINVAL or ENOTTY on most platforms
func isStdSyncErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "invalid argument") || strings.Contains(msg, "inappropriate ioctl")
}

// Debug logs a message at DebugLevel
func Debug(v ...interface{}) {
	sugar.Load().Debug(v...)
}

// Debugf logs a formatted message at DebugLevel
func Debugf(format string, v ...interface{}) {
	sugar.Load().Debugf(format, v...)
}

// Info logs a message at InfoLevel
func Info(v ...interface{}) {
	sugar.Load().Info(v...)
}

// Infof logs a formatted message at InfoLevel
func Infof(format string, v ...interface{}) {
	sugar.Load().Infof(format, v...)
}

// Warn logs a message at WarnLevel
func Warn(v ...interface{}) {
	sugar.Load().Warn(v...)
}

// Warnf logs a formatted message at WarnLevel
func Warnf(format string, v ...interface{}) {
	sugar.Load().Warnf(format, v...)
}

// Error logs a message at ErrorLevel
func Error(v ...interface{}) {
	sugar.Load().Error(v...)
}

// Errorf logs a formatted message at ErrorLevel
func Errorf(format string, v ...interface{}) {
	sugar.Load().Errorf(format, v...)
}

// Fatal logs a message at FatalLevel and exits
func Fatal(v ...interface{}) {
	sugar.Load().Fatal(v...)
}

// Fatalf logs a formatted message at FatalLevel and exits
func Fatalf(format string, v ...interface{}) {
	sugar.Load().Fatalf(format, v...)
}
