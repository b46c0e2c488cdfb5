// pkg/version/version.go - build information for c2rscrub, set through -ldflags.

package version

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
)

// These values are private which ensures they can only be set with the build flags.
var (
	version   = "unknown"
	branch    = "unknown"
	revision  = "unknown"
	buildDate = "unknown"
	appName   = "c2rscrub"
)

// Info is a structure with version build information about the current application.
type Info struct {
	AppName   string `yaml:"app_name"`
	Version   string `yaml:"version"`
	Branch    string `yaml:"branch"`
	Revision  string `yaml:"revision"`
	GoVersion string `yaml:"go_version"`
	BuildDate string `yaml:"build_date"`
}

// Version returns the build information. The revision falls back to the VCS
// stamp embedded by the Go toolchain when it was not set at link time.
func Version() Info {
	info := Info{
		AppName:   appName,
		Version:   version,
		Branch:    branch,
		Revision:  revision,
		GoVersion: runtime.Version(),
		BuildDate: buildDate,
	}
	if info.Revision != "unknown" {
		return info
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				info.Revision = s.Value
			}
		}
	}
	return info
}

func (i Info) String() string {
	return fmt.Sprintf("%s %s", i.AppName, i.Version)
}

// Print writes the application name and version.
func Print(w io.Writer) {
	fmt.Fprintln(w, Version())
}

// PrintFull writes the application name and detailed version information.
func PrintFull(w io.Writer) {
	v := Version()
	fmt.Fprintln(w, v)
	fmt.Fprintf(w, "  branch: \t%s\n", v.Branch)
	fmt.Fprintf(w, "  revision: \t%s\n", v.Revision)
	fmt.Fprintf(w, "  build date: \t%s\n", v.BuildDate)
	fmt.Fprintf(w, "  go version: \t%s\n", v.GoVersion)
}
