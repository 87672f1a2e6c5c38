// Package logging configures the process-wide logrus logger and carries a
// request-scoped entry and correlation id through context.Context.
package logging

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

// Init sets the level of the standard logger.  Production uses JSON lines;
// other environments use the human-readable text formatter.
func Init(level, env string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	logrus.SetOutput(os.Stdout)
	if env == "prod" || env == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

type (
	entryKey         struct{}
	correlationIDKey struct{}
)

// ToContext stores entry in ctx for FromContext.
func ToContext(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, entryKey{}, entry)
}

// FromContext returns the entry stored in ctx, or one based on the standard
// logger.
func FromContext(ctx context.Context) *logrus.Entry {
	if e, ok := ctx.Value(entryKey{}).(*logrus.Entry); ok {
		return e
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationIDFromContext returns the id set by ContextWithCorrelationID or
// an empty string.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}
