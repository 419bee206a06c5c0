// Package buildinfo exposes the ldflags-injected build metadata for the
// svcupgrade binary.
package buildinfo

import (
	"fmt"
	"runtime"

	goversion "github.com/caarlos0/go-version"
)

// These are overwritten at build time via:
//
//	-ldflags "-X github.com/b-harvest/svcupgrade/internal/buildinfo.version=1.4.0 ..."
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "source"
)

// Info is the build metadata surfaced by `svcupgrade version`.
func Info() goversion.Info {
	return goversion.GetVersionInfo(
		goversion.WithAppDetails("svcupgrade", "Docker service upgrade core", "https://github.com/b-harvest/svcupgrade"),
		func(i *goversion.Info) {
			i.GitVersion = version
			i.GitCommit = commit
			i.BuildDate = date
			i.BuiltBy = builtBy
			i.GoVersion = runtime.Version()
			i.Platform = fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
		},
	)
}
