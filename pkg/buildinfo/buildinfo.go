// Package buildinfo contains build information.
package buildinfo

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"parsek.dev/pkg/must"
	"parsek.dev/pkg/prog"
)

// The next release of parsek. Used to build the version string of
// development builds.
const next = "0.2.0"

// VCSOverride may be set when building parsek to provide VCS information
// that is normally read from [debug.ReadBuildInfo], in the format
// "$time-$revision" with $time in YYYYMMDDHHMMSS. It is only consulted on
// development builds and is useful when building from an exported archive
// rather than a repository checkout.
var VCSOverride string

// Type describes the build information.
type Type struct {
	Version   string `json:"version"`
	GoVersion string `json:"goversion"`
}

// Value contains all the build information.
var Value = Type{
	Version:   devVersion(next, VCSOverride, debug.ReadBuildInfo),
	GoVersion: runtime.Version(),
}

func devVersion(next, vcsOverride string, f func() (*debug.BuildInfo, bool)) string {
	if vcsOverride != "" {
		return next + "-dev.0." + vcsOverride
	}
	fallback := next + "-dev.unknown"
	bi, ok := f()
	if !ok {
		return fallback
	}
	// If the main module's version is known, use it, but without the "v"
	// prefix. This is the case when the binary is built with "go install
	// parsek.dev/cmd/parsek@version".
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		return strings.TrimPrefix(v, "v")
	}
	// If VCS information is available, which is the case when the binary is
	// built from a repository checkout, build a version string in the same
	// format "go install" would use for a pseudo-version.
	var revision, revTime string
	dirty := false
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.time":
			if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
				revTime = t.Format("20060102150405")
			}
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision != "" && revTime != "" {
		s := next + "-dev.0." + revTime + "-" + revision[:12]
		if dirty {
			s += "-dirty"
		}
		return s
	}
	return fallback
}

// Program is the buildinfo subprogram.
type Program struct {
	version, buildinfo bool
	json               *bool
}

func (p *Program) RegisterFlags(fs *prog.FlagSet) {
	fs.BoolVar(&p.version, "version", false, "Output the version and quit")
	fs.BoolVar(&p.buildinfo, "buildinfo", false, "Output information about the build and quit")
	p.json = fs.JSON()
}

func (p *Program) Run(fds [3]*os.File, _ []string) error {
	switch {
	case p.buildinfo:
		if *p.json {
			fmt.Fprintln(fds[1], mustToJSON(Value))
		} else {
			fmt.Fprintln(fds[1], "Version:", Value.Version)
			fmt.Fprintln(fds[1], "Go version:", Value.GoVersion)
		}
	case p.version:
		if *p.json {
			fmt.Fprintln(fds[1], mustToJSON(Value.Version))
		} else {
			fmt.Fprintln(fds[1], Value.Version)
		}
	default:
		return prog.ErrNextProgram
	}
	return nil
}

func mustToJSON(v any) string {
	return string(must.OK1(json.Marshal(v)))
}
