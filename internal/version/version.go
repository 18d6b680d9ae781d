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

// Package version holds the build information of profilectl. LDFLAGS can
// override each value.
package version

import (
	"github.com/abcxyz/cmdkit/buildinfo"
)

var info = buildinfo.Read()

var (
	// Name is the binary name.
	Name = "profilectl"

	// Version is the module version, or "source".
	Version = info.Version

	// Commit is the VCS revision, or "HEAD".
	Commit = info.Commit

	// OSArch is the build platform, e.g. "linux/amd64".
	OSArch = info.OSArch

	// HumanVersion is printed for "--version".
	HumanVersion = info.Human(Name)
)
