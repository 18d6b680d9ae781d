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
	"fmt"
	"log/slog"
	"strings"
)

// The levels this package understands. They are a subset of [slog.Level]
// values with one additional level between info and warning.
const (
	LevelDebug   = slog.LevelDebug
	LevelInfo    = slog.LevelInfo
	LevelNotice  = slog.Level(2)
	LevelWarning = slog.LevelWarn
	LevelError   = slog.LevelError
)

var levelNames = map[slog.Level]string{
	LevelDebug:   "DEBUG",
	LevelInfo:    "INFO",
	LevelNotice:  "NOTICE",
	LevelWarning: "WARNING",
	LevelError:   "ERROR",
}

// LevelNames returns the names of the known levels from most to least
// verbose, lowercased as they are accepted on the command line.
func LevelNames() []string {
	return []string{"debug", "info", "notice", "warning", "error"}
}

// LookupLevel parses a level name. Matching is case-insensitive and "warn" is
// accepted as an alias for "warning".
func LookupLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "notice":
		return LevelNotice, nil
	case "warn", "warning":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	default:
		return 0, fmt.Errorf("no such level %q, valid levels are %q", name, LevelNames())
	}
}

// LevelString returns the lowercase name of the level, or the [slog.Level]
// representation for levels without a name.
func LevelString(l slog.Level) string {
	if n, ok := levelNames[l]; ok {
		return strings.ToLower(n)
	}
	return l.String()
}

// LevelSlogValue is the value written for the level attribute.
func LevelSlogValue(l slog.Level) slog.Value {
	if n, ok := levelNames[l]; ok {
		return slog.StringValue(n)
	}
	return slog.StringValue(l.String())
}
