// Copyright 2023 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logging is the structured logging used by cmdkit, based on
// [log/slog]. Loggers travel in the context; nothing in cmdkit reads a global
// logger directly. Runtime configuration (level and format from a file or the
// environment) lives in the config package.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sync"
)

type contextKey string

const loggerKey = contextKey("logger")

// fallback writes text to stderr at the warning level so command output on
// stdout stays clean. It is built on first use.
var fallback = sync.OnceValue(func() *slog.Logger {
	return New(os.Stderr, LevelWarning, FormatText, false)
})

// New creates a logger writing format to w at level. The level can be changed
// later with [SetLevel].
//
// Debug enables every level and adds source locations. It is meant for
// chasing a problem, not for regular use.
func New(w io.Writer, level slog.Level, format Format, debug bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		ReplaceAttr: attrsEncoder(),
	}
	if debug {
		opts.AddSource = true
		level = math.MinInt
	}

	var h slog.Handler
	switch format {
	case FormatJSON:
		h = slog.NewJSONHandler(w, opts)
	case FormatText:
		h = slog.NewTextHandler(w, opts)
	default:
		panic(fmt.Sprintf("unknown log format %q", format))
	}
	return slog.New(NewLevelHandler(level, h))
}

// SetLevel changes the level of a logger created by this package, including
// loggers derived from it with With. It panics for any other logger.
//
// It returns the logger for chaining.
func SetLevel(logger *slog.Logger, level slog.Level) *slog.Logger {
	if typ, ok := logger.Handler().(LevelableHandler); ok {
		typ.SetLevel(level)
		return logger
	}
	panic("handler is not capable of setting levels")
}

// DefaultLogger returns the logger used when the context carries none.
func DefaultLogger() *slog.Logger {
	return fallback()
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger carried by ctx, or [DefaultLogger].
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return DefaultLogger()
}

// WithAttrs returns a copy of ctx whose logger adds args to every record,
// e.g. the command being run.
func WithAttrs(ctx context.Context, args ...any) context.Context {
	if len(args) == 0 {
		return ctx
	}
	return WithLogger(ctx, FromContext(ctx).With(args...))
}

// attrsEncoder renders levels by their names in this package and durations
// in their string form.
func attrsEncoder() func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.LevelKey && len(groups) == 0 {
			if l, ok := a.Value.Any().(slog.Level); ok {
				a.Value = LevelSlogValue(l)
			}
		}
		if a.Value.Kind() == slog.KindDuration {
			a.Value = slog.StringValue(a.Value.Duration().String())
		}
		return a
	}
}
