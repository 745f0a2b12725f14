// Package buildinfo provides build-time properties injected via ldflags:
//
//	go build -ldflags "-X github.com/nomis52/instrumentsim/buildinfo.version=v0.1.0 \
//	  -X github.com/nomis52/instrumentsim/buildinfo.gitCommit=$(git rev-parse --short HEAD)"
package buildinfo

import (
	"fmt"
	"runtime"
)

// APIVersion is the version of the HTTP API served by the simulator.
const APIVersion = "0.1"

// Properties holds build-time properties injected via ldflags.
type Properties struct {
	Version    string `json:"version"`
	APIVersion string `json:"api_version"`
	BuildTime  string `json:"build_time"`
	GitCommit  string `json:"git_commit"`
	GoVersion  string `json:"go_version"`
}

// Package-level variables for ldflags injection (unexported).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// Get returns the current build properties.
func Get() Properties {
	return Properties{
		Version:    version,
		APIVersion: APIVersion,
		BuildTime:  buildTime,
		GitCommit:  gitCommit,
		GoVersion:  runtime.Version(),
	}
}

func (p Properties) String() string {
	return fmt.Sprintf("%s (api v%s, commit %s, built %s, %s)", p.Version, p.APIVersion, p.GitCommit, p.BuildTime, p.GoVersion)
}
