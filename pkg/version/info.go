// Package version exposes build metadata stamped at link time.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const (
	// Unknown is used when build metadata is not provided.
	Unknown = "unknown"
	// DevelopmentVersion is the default version in local builds.
	DevelopmentVersion = "dev"
)

// Overridden at build time:
// go build -ldflags="-X github.com/nimburion/docstore/pkg/version.AppVersion=v1.2.3"
var (
	AppVersion = DevelopmentVersion
	GitCommit  = Unknown
	BuildTime  = Unknown
)

// Info contains version metadata for the service.
type Info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Current returns the build metadata. When no commit was stamped it falls back to the VCS
// revision recorded by the Go toolchain, if any.
func Current(serviceName string) Info {
	commit := orDefault(GitCommit, "")
	if commit == "" {
		commit = vcsRevision()
	}
	return Info{
		Service:   orDefault(serviceName, Unknown),
		Version:   orDefault(AppVersion, DevelopmentVersion),
		Commit:    orDefault(commit, Unknown),
		BuildTime: orDefault(BuildTime, Unknown),
		GoVersion: runtime.Version(),
	}
}

// String returns a log-friendly representation.
func (i Info) String() string {
	return fmt.Sprintf("%s@%s (commit=%s, build_time=%s)", i.Service, i.Version, i.Commit, i.BuildTime)
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v == "" || v == Unknown {
		return fallback
	}
	return v
}
