package logger

import "KoordeDHT/internal/domain"

// Field is a single structured key:value pair attached to a log entry.
type Field struct {
	Key string
	Val any
}

// Logger is the structured logging interface every package in this
// module depends on, rather than a concrete library. The zap-backed
// adapter lives in logger/zap; NopLogger is the silent default.
type Logger interface {
	Named(name string) Logger
	With(fields ...Field) Logger
	WithPeer(p domain.Peer) Logger
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// F is a concise constructor for a Field.
func F(key string, val any) Field { return Field{Key: key, Val: val} }

// FPeer renders a domain.Peer as a structured field.
func FPeer(key string, p domain.Peer) Field {
	return Field{Key: key, Val: map[string]any{"id": p.ID.String(), "addr": p.Addr()}}
}

// FResource renders a domain.Resource as a structured field.
func FResource(key string, r domain.Resource) Field {
	return Field{Key: key, Val: map[string]any{"key": r.RawKey, "id": r.Key.String(), "value": r.Value}}
}

// NopLogger discards every call. It is the default when logging is
// disabled in configuration.
type NopLogger struct{}

func (l *NopLogger) Named(name string) Logger          { return l }
func (l *NopLogger) With(fields ...Field) Logger       { return l }
func (l *NopLogger) WithPeer(p domain.Peer) Logger     { return l }
func (l *NopLogger) Debug(msg string, fields ...Field) {}
func (l *NopLogger) Info(msg string, fields ...Field)  {}
func (l *NopLogger) Warn(msg string, fields ...Field)  {}
func (l *NopLogger) Error(msg string, fields ...Field) {}
