package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents different log levels
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a config/flag string into a LogLevel, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "fatal":
		return FATAL
	default:
		return INFO
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

var (
	baseMu     sync.RWMutex
	base       = buildBase(INFO, "text", false)
	generation atomic.Uint64
)

func buildBase(level LogLevel, format string, showCaller bool) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")

	var enc zapcore.Encoder
	if format == "json" {
		encCfg = zap.NewProductionEncoderConfig()
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(level.zapLevel()))
	opts := []zap.Option{}
	if showCaller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}
	return zap.New(core, opts...)
}

// InitLoggers rebuilds the shared base logger. Component loggers created
// earlier pick up the new base on their next call.
func InitLoggers(level LogLevel, format string, showCaller bool) {
	SetBase(buildBase(level, format, showCaller))
}

// SetBase replaces the shared zap logger, e.g. with an observer in tests.
func SetBase(z *zap.Logger) {
	baseMu.Lock()
	base = z
	baseMu.Unlock()
	generation.Add(1)
}

// Sync flushes the shared base logger.
func Sync() {
	baseMu.RLock()
	defer baseMu.RUnlock()
	_ = base.Sync()
}

// Logger is a named component logger with printf-style helpers
type Logger struct {
	component string
	fixed     *zap.Logger

	mu     sync.Mutex
	gen    uint64
	cached *zap.SugaredLogger
}

// New creates a component logger bound to the shared base logger
func New(component string) *Logger {
	return &Logger{component: component}
}

// NewWithZap creates a component logger bound to a specific zap logger
func NewWithZap(component string, z *zap.Logger) *Logger {
	return &Logger{component: component, fixed: z}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return NewWithZap("nop", zap.NewNop())
}

// OrDefault returns l, or a component logger for component when l is nil.
func OrDefault(l *Logger, component string) *Logger {
	if l != nil {
		return l
	}
	return New(component)
}

// Component returns the logger's component name
func (l *Logger) Component() string {
	return l.component
}

func (l *Logger) sugar() *zap.SugaredLogger {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fixed != nil {
		if l.cached == nil {
			l.cached = l.fixed.Named(l.component).Sugar()
		}
		return l.cached
	}

	gen := generation.Load()
	if l.cached == nil || l.gen != gen {
		baseMu.RLock()
		l.cached = base.Named(l.component).Sugar()
		baseMu.RUnlock()
		l.gen = gen
	}
	return l.cached
}

// Zap exposes the underlying zap logger for libraries that want one
func (l *Logger) Zap() *zap.Logger {
	return l.sugar().Desugar()
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar().Debugf(format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar().Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar().Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar().Errorf(format, args...)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.sugar().Fatalf(format, args...)
}

// Printf implements the Printf interface for compatibility
func (l *Logger) Printf(format string, args ...interface{}) {
	l.Info(format, args...)
}

// Println implements the Println interface for compatibility
func (l *Logger) Println(args ...interface{}) {
	l.Info("%s", fmt.Sprint(args...))
}

// Predefined loggers for top-level components
var (
	ServerLogger = New("SERVER")
	EngineLogger = New("ENGINE")
	StoreLogger  = New("STORE")
)
