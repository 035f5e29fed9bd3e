// Package version formats build information for the tester binaries.
package version

import (
	"fmt"
	"runtime"
)

// Name is printed on the console and in the firmware banner.
const Name = "DRAM tester"

// Info is the build information injected through ldflags.
type Info struct {
	Version string
	Commit  string
	Built   string
}

// New fills in placeholders for missing build values.
func New(version, commit, built string) Info {
	if version == "" {
		version = "dev"
	}
	if commit == "" {
		commit = "unknown"
	}
	if built == "" {
		built = "unknown"
	}
	return Info{Version: version, Commit: commit, Built: built}
}

// Short returns "<version>-<commit>" with the commit cut to seven characters.
func (i Info) Short() string {
	commit := i.Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s-%s", i.Version, commit)
}

// Banner is the single line shown when the firmware boots.
func (i Info) Banner() string {
	return fmt.Sprintf("%s %s", Name, i.Short())
}

// Detailed returns multi-line version information
func (i Info) Detailed() string {
	return fmt.Sprintf(`%s (4164/41256)
Version:    %s
Commit:     %s
Built:      %s
Go version: %s
OS/Arch:    %s/%s`,
		Name, i.Version, i.Commit, i.Built,
		runtime.Version(),
		runtime.GOOS, runtime.GOARCH)
}
