// Package utils provides small ambient helpers — structured logging,
// decimal-safe math, symbol validation and time-window bookkeeping — shared
// across the rest of the engine.
package utils

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig controls how InitLogger builds a *Logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error, fatal. Anything else, or
	// empty, falls back to info.
	Level string
	// Format is "json" or "text" (console). Anything else falls back to
	// console output.
	Format string
	// Development enables zap's development mode (stack traces on warn,
	// caller info, no sampling).
	Development bool
	// Output is a file path to write logs to. Empty means stderr.
	Output string
}

// Logger wraps a *zap.Logger and caches the sugared variant so callers do
// not pay the conversion cost on every formatted log call.
type Logger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

// InitLogger builds a standalone Logger from cfg. It never returns nil and
// never fails outright — an unwritable Output path falls back to stderr.
func InitLogger(cfg LogConfig) *Logger {
	level := parseLevel(cfg.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	sink := zapcore.AddSync(os.Stderr)
	if cfg.Output != "" {
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			sink = zapcore.AddSync(f)
		}
	}

	core := zapcore.NewCore(encoder, sink, level)

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	}

	zl := zap.New(core, opts...)
	return &Logger{Logger: zl, sugar: zl.Sugar()}
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// With returns a new Logger carrying the given fields on every subsequent
// call. The receiver is left unmodified.
func (l *Logger) With(fields ...zap.Field) *Logger {
	zl := l.Logger.With(fields...)
	return &Logger{Logger: zl, sugar: zl.Sugar()}
}

// WithComponent tags the logger with a subsystem name (e.g. "executor").
func (l *Logger) WithComponent(name string) *Logger { return l.With(Component(name)) }

// WithExchange tags the logger with the exchange name.
func (l *Logger) WithExchange(name string) *Logger { return l.With(Exchange(name)) }

// WithSymbol tags the logger with a trading symbol.
func (l *Logger) WithSymbol(symbol string) *Logger { return l.With(Symbol(symbol)) }

// WithPathID tags the logger with a path identifier.
func (l *Logger) WithPathID(id string) *Logger { return l.With(PathID(id)) }

// Sugar returns the cached SugaredLogger.
func (l *Logger) Sugar() *zap.SugaredLogger { return l.sugar }

// ============ Global logger ============

var (
	globalMu     sync.Mutex
	globalLogger *Logger
)

// InitGlobalLogger builds a Logger from cfg and installs it as the global
// logger, returning it for convenience.
func InitGlobalLogger(cfg LogConfig) *Logger {
	l := InitLogger(cfg)
	SetGlobalLogger(l)
	return l
}

// SetGlobalLogger installs l as the global logger.
func SetGlobalLogger(l *Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// GetGlobalLogger returns the global logger, lazily initializing it with
// default settings on first use.
func GetGlobalLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = InitLogger(LogConfig{})
	}
	return globalLogger
}

// L is a short alias for GetGlobalLogger.
func L() *Logger { return GetGlobalLogger() }

// Debug logs at debug level on the global logger.
func Debug(msg string, fields ...zap.Field) { GetGlobalLogger().Debug(msg, fields...) }

// Info logs at info level on the global logger.
func Info(msg string, fields ...zap.Field) { GetGlobalLogger().Info(msg, fields...) }

// Warn logs at warn level on the global logger.
func Warn(msg string, fields ...zap.Field) { GetGlobalLogger().Warn(msg, fields...) }

// Error logs at error level on the global logger.
func Error(msg string, fields ...zap.Field) { GetGlobalLogger().Error(msg, fields...) }

// Debugf logs a formatted message at debug level on the global logger.
func Debugf(format string, args ...interface{}) { GetGlobalLogger().sugar.Debugf(format, args...) }

// Infof logs a formatted message at info level on the global logger.
func Infof(format string, args ...interface{}) { GetGlobalLogger().sugar.Infof(format, args...) }

// Warnf logs a formatted message at warn level on the global logger.
func Warnf(format string, args ...interface{}) { GetGlobalLogger().sugar.Warnf(format, args...) }

// Errorf logs a formatted message at error level on the global logger.
func Errorf(format string, args ...interface{}) { GetGlobalLogger().sugar.Errorf(format, args...) }

// ============ Domain field constructors ============

// Exchange tags the exchange name.
func Exchange(name string) zap.Field { return zap.String("exchange", name) }

// Symbol tags a trading symbol, e.g. BTCUSDT.
func Symbol(symbol string) zap.Field { return zap.String("symbol", symbol) }

// Asset tags a single asset code, e.g. BTC.
func Asset(asset string) zap.Field { return zap.String("asset", asset) }

// PathID tags a path identifier.
func PathID(id string) zap.Field { return zap.String("path_id", id) }

// OrderID tags an exchange order identifier.
func OrderID(id string) zap.Field { return zap.String("order_id", id) }

// Price tags a price value.
func Price(price float64) zap.Field { return zap.Float64("price", price) }

// Quantity tags a quantity value.
func Quantity(qty float64) zap.Field { return zap.Float64("quantity", qty) }

// Spread tags a spread in percent.
func Spread(pct float64) zap.Field { return zap.Float64("spread", pct) }

// ProfitPct tags a profit percentage.
func ProfitPct(pct float64) zap.Field { return zap.Float64("profit_pct", pct) }

// PNL tags a realized or unrealized PNL value.
func PNL(pnl float64) zap.Field { return zap.Float64("pnl", pnl) }

// Side tags an order side (buy/sell).
func Side(side string) zap.Field { return zap.String("side", side) }

// State tags a lifecycle state.
func State(state string) zap.Field { return zap.String("state", state) }

// Latency tags a latency in milliseconds.
func Latency(ms float64) zap.Field { return zap.Float64("latency_ms", ms) }

// RequestID tags a request correlation identifier.
func RequestID(id string) zap.Field { return zap.String("request_id", id) }

// CycleID tags an analysis cycle sequence number.
func CycleID(n uint64) zap.Field { return zap.Uint64("cycle_id", n) }

// Component tags the subsystem emitting the log line.
func Component(name string) zap.Field { return zap.String("component", name) }

// ============ Re-exported zap field constructors ============
//
// Callers of this package should not need to import zap directly for the
// common cases.

// String re-exports zap.String.
func String(key, val string) zap.Field { return zap.String(key, val) }

// Int re-exports zap.Int.
func Int(key string, val int) zap.Field { return zap.Int(key, val) }

// Int64 re-exports zap.Int64.
func Int64(key string, val int64) zap.Field { return zap.Int64(key, val) }

// Float64 re-exports zap.Float64.
func Float64(key string, val float64) zap.Field { return zap.Float64(key, val) }

// Bool re-exports zap.Bool.
func Bool(key string, val bool) zap.Field { return zap.Bool(key, val) }

// Err re-exports zap.Error.
func Err(err error) zap.Field { return zap.Error(err) }

// Any re-exports zap.Any.
func Any(key string, val interface{}) zap.Field { return zap.Any(key, val) }

// fieldsToInterface flattens zap fields into alternating key/value pairs,
// for callers that need to hand them to a non-zap sink.
func fieldsToInterface(fields []zap.Field) []interface{} {
	enc := zapcore.NewMapObjectEncoder()
	out := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		f.AddTo(enc)
	}
	for k, v := range enc.Fields {
		out = append(out, k, v)
	}
	return out
}
