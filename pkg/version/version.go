// Package version reports the build of the contxt binary.
//
// Release builds set the variables with -ldflags:
//
//	go build -ldflags "-X contxt/pkg/version.Version=v0.3.0 -X contxt/pkg/version.Commit=$(git rev-parse --short HEAD)" .
//
// Without them, the module version and VCS stamp recorded by the Go
// toolchain are used when available.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// Info describes one build.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
	Modified  bool   `json:"modified,omitempty"` // built from a dirty work tree
}

// Get returns the build information, filling unset ldflags values from the
// embedded build info.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.fill(bi)
	}
	return info
}

func (i *Info) fill(bi *debug.BuildInfo) {
	if i.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		i.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if i.GitCommit == "none" {
				i.GitCommit = s.Value
			}
		case "vcs.time":
			if i.BuildTime == "unknown" {
				i.BuildTime = s.Value
			}
		case "vcs.modified":
			i.Modified = s.Value == "true"
		}
	}
}

// Short returns the version number alone.
func (i Info) Short() string { return i.Version }

// String renders the build on one line, e.g.
// contxt version v0.3.0 (commit: 1a2b3c4) built at 2026-01-02T15:04:05Z with go1.23.1 on linux/amd64
func (i Info) String() string {
	commit := i.GitCommit
	if i.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("contxt version %s (commit: %s) built at %s with %s on %s",
		i.Version, commit, i.BuildTime, i.GoVersion, i.Platform)
}
