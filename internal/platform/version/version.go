// Package version exposes build information injected via ldflags.
package version

import "runtime"

var (
	Version   = "dev"     // git tag or semantic version
	Commit    = "unknown" // git commit SHA
	BuildTime = "unknown" // ISO 8601 build timestamp
)

type Info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

const Service = "localradar"

func Get() Info {
	return Info{
		Service:   Service,
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}
