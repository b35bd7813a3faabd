package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options configures New. Zero values give an info-level JSON logger on stdout.
type Options struct {
	// Env picks the default level: debug for local and dev, info otherwise.
	Env string
	// Level, when set, overrides the env default (debug, info, warn, error).
	Level string
	// Service is attached to every record as "service".
	Service string
	Output  io.Writer
}

// New returns the JSON logger shared by the api and the worker.
func New(o Options) *slog.Logger {
	out := o.Output
	if out == nil {
		out = os.Stdout
	}
	h := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: Level(o.Env, o.Level)})
	l := slog.New(h)
	if o.Service != "" {
		l = l.With(slog.String("service", o.Service))
	}
	return l
}

// Level resolves the effective level. Unknown names fall back to the env default.
func Level(env, name string) slog.Level {
	level := slog.LevelInfo
	if env == "local" || env == "dev" {
		level = slog.LevelDebug
	}
	if name = strings.TrimSpace(name); name != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(name)); err == nil {
			level = l
		}
	}
	return level
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
