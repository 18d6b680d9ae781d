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

package logging_test

import (
	"log/slog"
	"testing"

	"github.com/abcxyz/cmdkit/logging"
)

//nolint:thelper // These are examples
func ExampleTestContext() {
	_ = func(t *testing.T) { // func TestLoadProfiles(t *testing.T)
		ctx := logging.TestContext(t)

		// Code under test finds the logger in the context.
		logging.FromContext(ctx).DebugContext(ctx, "loading profile", "type", "banana")
	}
}

//nolint:thelper // These are examples
func ExampleTestLogger() {
	_ = func(t *testing.T) { // func TestVerboseFlag(t *testing.T)
		logger := logging.TestLogger(t)

		// Test loggers accept level changes like any logger from this package.
		logging.SetLevel(logger, slog.LevelError)
	}
}

func TestTestLogger_setLevel(t *testing.T) {
	t.Parallel()

	logger := logging.TestLogger(t)
	ctx := t.Context()

	if !logger.Enabled(ctx, slog.LevelDebug) {
		t.Errorf("expected debug to be enabled")
	}
	logging.SetLevel(logger, slog.LevelError)
	if logger.Enabled(ctx, slog.LevelWarn) {
		t.Errorf("expected warning to be disabled after SetLevel")
	}
}
