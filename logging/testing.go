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

package logging

import (
	"context"
	"log/slog"
	"testing"
)

// TestLogger returns a debug-level logger that writes through tb.Log when the
// tests run verbosely and discards everything otherwise. Like loggers from
// [New], its level can be changed with [SetLevel].
func TestLogger(tb testing.TB) *slog.Logger {
	tb.Helper()

	h := slog.NewTextHandler(&testingWriter{tb: tb}, &slog.HandlerOptions{
		AddSource: true,
		Level:     slog.Level(-100),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// The test log already carries timestamps.
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return attrsEncoder()(groups, a)
		},
	})
	return slog.New(NewLevelHandler(LevelDebug, h))
}

// TestContext returns tb's context carrying a [TestLogger] and the test name.
func TestContext(tb testing.TB) context.Context {
	tb.Helper()

	ctx := WithLogger(tb.Context(), TestLogger(tb))
	return WithAttrs(ctx, "test", tb.Name())
}

type testingWriter struct {
	tb testing.TB
}

func (t *testingWriter) Write(b []byte) (int, error) {
	if !testing.Verbose() {
		return len(b), nil
	}
	t.tb.Log(string(b))
	return len(b), nil
}
