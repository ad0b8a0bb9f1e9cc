package tangguh

import (
	"fmt"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

// Logger is the minimal structured logging interface the client emits to.
// Key-value pairs alternate keys and values, like most structured loggers.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// ZerologAdapter adapts a zerolog.Logger to the Logger interface.
type ZerologAdapter struct {
	log *zerolog.Logger
}

// NewZerologAdapter wraps an existing zerolog logger.
func NewZerologAdapter(log *zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{log: log}
}

func (a *ZerologAdapter) Debug(msg string, keysAndValues ...any) {
	a.emit(a.log.Debug(), msg, keysAndValues)
}

func (a *ZerologAdapter) Info(msg string, keysAndValues ...any) {
	a.emit(a.log.Info(), msg, keysAndValues)
}

func (a *ZerologAdapter) Warn(msg string, keysAndValues ...any) {
	a.emit(a.log.Warn(), msg, keysAndValues)
}

func (a *ZerologAdapter) Error(msg string, keysAndValues ...any) {
	a.emit(a.log.Error(), msg, keysAndValues)
}

func (a *ZerologAdapter) emit(event *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		event = event.Interface(key, kv[i+1])
	}
	event.Msg(msg)
}

// DebugConfig controls per-concern debug logging.
type DebugConfig struct {
	Enabled      bool
	LogRequests  bool
	LogRetries   bool
	LogCache     bool
	LogCircuit   bool
	LogRateLimit bool
	// RequestIDGen produces the correlation ID attached to each logical
	// call's log lines.
	RequestIDGen func() string
}

// DefaultDebugConfig enables all concerns with xid request IDs; Enabled
// stays false until WithDebug flips it.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		LogRequests:  true,
		LogRetries:   true,
		LogCache:     true,
		LogCircuit:   true,
		LogRateLimit: true,
		RequestIDGen: DefaultRequestIDGenerator,
	}
}

// DefaultRequestIDGenerator returns a globally unique, sortable ID.
func DefaultRequestIDGenerator() string {
	return xid.New().String()
}

// on reports whether debug logging should be emitted to the given logger.
func (d *DebugConfig) on(logger Logger) bool {
	return d != nil && d.Enabled && logger != nil
}

func (d *DebugConfig) requestID() string {
	if d != nil && d.Enabled && d.RequestIDGen != nil {
		return d.RequestIDGen()
	}
	return ""
}
