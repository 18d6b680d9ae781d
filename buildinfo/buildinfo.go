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

// Package buildinfo reads the version stamped into a binary by the Go
// toolchain. A binary built with "go install module@version" carries its
// module version; one built from a checkout carries the VCS revision instead.
//
// The values are usually captured once in an internal version package and
// can still be overridden with LDFLAGS:
//
//	var HumanVersion = buildinfo.Read().Human("my-cli")
package buildinfo

import (
	"runtime"
	"runtime/debug"
)

const (
	// UnknownVersion is reported for binaries without a module version.
	UnknownVersion = "source"

	// UnknownCommit is reported outside a VCS checkout.
	UnknownCommit = "HEAD"
)

// Info is the build information of the running binary.
type Info struct {
	Version string
	Commit  string
	OSArch  string
}

// Read returns the build information of the running binary, substituting
// [UnknownVersion] and [UnknownCommit] where the toolchain recorded nothing.
func Read() *Info {
	info, _ := debug.ReadBuildInfo()
	return fromBuildInfo(info)
}

func fromBuildInfo(bi *debug.BuildInfo) *Info {
	out := &Info{
		Version: UnknownVersion,
		Commit:  UnknownCommit,
		OSArch:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi == nil {
		return out
	}

	// "(devel)" is what a plain "go build" records.
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		out.Version = v
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			out.Commit = s.Value
		}
	}
	return out
}

// Human formats the information for a "--version" flag, e.g.
// "my-cli v1.2.0 (8628f82, linux/amd64)".
func (i *Info) Human(name string) string {
	commit := i.Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return name + " " + i.Version + " (" + commit + ", " + i.OSArch + ")"
}

// Version returns the module version, or [UnknownVersion].
func Version() string {
	return Read().Version
}

// Commit returns the VCS revision, or [UnknownCommit].
func Commit() string {
	return Read().Commit
}

// OSArch returns the operating system and architecture separated by a slash,
// e.g. "linux/amd64".
func OSArch() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}
