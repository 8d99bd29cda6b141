// SPDX-License-Identifier: MIT
//
// Package build carries the metadata embedded into the binary at link time:
// program name, build timestamp, Git commit and semantic version. The values
// are set with linker flags, for example:
//
//	go build -ldflags "-X direction/pkg/build.buildName=direction \
//	  -X direction/pkg/build.buildVersion=0.3.0 ..."
//
// Development builds run without them and report "dev" placeholders.
package build

import (
	"errors"
	"fmt"
)

// ErrMissingFlag is wrapped by Initialize for every unset linker flag.
var ErrMissingFlag = errors.New("build flag is required")

// Info is the build information shown by the version flag and the startup log.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String formats the information on one line.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = defaultInfo()
)

func defaultInfo() *Info {
	return &Info{
		Name:        "direction",
		Description: "Detect the dominant direction of gray frames from their 2D power spectrum",
		Time:        "dev",
		Commit:      "dev",
		Version:     "dev",
	}
}

// Initialize validates and copies build information from ldflags variables.
// Every missing flag is reported; the fields that were set are still applied,
// so a development build keeps its placeholders for the rest.
func Initialize() error {
	flags := []struct {
		name  string
		value string
		dst   *string
	}{
		{"BuildName", buildName, &buildInfo.Name},
		{"BuildTime", buildTime, &buildInfo.Time},
		{"BuildCommit", buildCommit, &buildInfo.Commit},
		{"BuildVersion", buildVersion, &buildInfo.Version},
	}

	var errs []error
	for _, f := range flags {
		if f.value == "" {
			errs = append(errs, fmt.Errorf("%s: %w", f.name, ErrMissingFlag))
			continue
		}
		*f.dst = f.value
	}
	return errors.Join(errs...)
}

// GetBuildInfo returns the current build information.
func GetBuildInfo() *Info {
	return buildInfo
}
