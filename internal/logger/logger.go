// Package logger provides a context-aware logging facade over logrus.
// Components attach run-scoped fields to a context once and every log
// line emitted downstream carries them.
package logger

import (
	"context"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type contextKey struct{}

var base = logrus.New()

func init() {
	base.SetOutput(os.Stdout)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// Configure sets the global log level and output format.
// Format "json" switches to the JSON formatter.
func Configure(level, format string) {
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)
	if strings.EqualFold(format, "json") {
		base.SetFormatter(&logrus.JSONFormatter{})
	}
}

// WithFields returns a context carrying the given fields merged over any
// fields already present.
func WithFields(ctx context.Context, fields map[string]interface{}) context.Context {
	entry := GetLogger(ctx).WithFields(fields)
	return context.WithValue(ctx, contextKey{}, entry)
}

// WithField returns a context carrying one extra field.
func WithField(ctx context.Context, key string, value interface{}) context.Context {
	return WithFields(ctx, map[string]interface{}{key: value})
}

// GetLogger returns the entry bound to ctx, or a plain entry on the base
// logger when none is bound.
func GetLogger(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if entry, ok := ctx.Value(contextKey{}).(*logrus.Entry); ok {
			return entry
		}
	}
	return logrus.NewEntry(base)
}

// Debugf logs a debug message with the fields bound to ctx.
func Debugf(ctx context.Context, format string, args ...interface{}) {
	GetLogger(ctx).Debugf(format, args...)
}

// Infof logs an info message with the fields bound to ctx.
func Infof(ctx context.Context, format string, args ...interface{}) {
	GetLogger(ctx).Infof(format, args...)
}

// Warnf logs a warning with the fields bound to ctx.
func Warnf(ctx context.Context, format string, args ...interface{}) {
	GetLogger(ctx).Warnf(format, args...)
}

// Errorf logs an error with the fields bound to ctx.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	GetLogger(ctx).Errorf(format, args...)
}
