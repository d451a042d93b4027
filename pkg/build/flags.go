// SPDX-License-Identifier: MIT
//
// Package build carries the metadata embedded into the tuner binary at
// compile time with linker flags: application name, build timestamp, Git
// commit hash and semantic version. The CLI uses it for --version and the
// startup banner.
//
//	go build -ldflags "-X tuner/pkg/build.buildName=tuner -X tuner/pkg/build.buildVersion=0.1.0 ..."
package build

import (
	"errors"
	"fmt"
)

// Info is the build metadata reported by the binary.
type Info struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// String formats the metadata for version output.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation. Default values of "unknown" are used during development.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = &Info{
		Name:    "tuner",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "dev",
	}
)

// Initialize validates and copies build information from ldflags variables
// into the package Info. It returns an error naming the first missing flag;
// callers running development builds may ignore it and keep the defaults.
func Initialize() error {
	if buildName == "" {
		return errors.New("BuildName is required")
	}
	if buildTime == "" {
		return errors.New("BuildTime is required")
	}
	if buildCommit == "" {
		return errors.New("BuildCommit is required")
	}
	if buildVersion == "" {
		return errors.New("BuildVersion is required")
	}

	buildInfo.Name = buildName
	buildInfo.Time = buildTime
	buildInfo.Commit = buildCommit
	buildInfo.Version = buildVersion

	return nil
}

// Get returns the current build information.
func Get() Info {
	return *buildInfo
}
