// Package version reports how the groupbench binary was built, including
// the versions of the engines it benchmarks.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

const (
	unknownValue     = "unknown"
	commitHashLength = 7
)

// Build-time variables set by ldflags
var (
	Version   = "dev"
	BuildDate = unknownValue
	GitCommit = unknownValue
	GoVersion = runtime.Version()
)

// engineModules are the dependencies whose versions matter when comparing
// reports from different builds.
var engineModules = []string{
	"github.com/apache/arrow-go/v18",
	"github.com/go-gota/gota",
	"modernc.org/sqlite",
}

// BuildInfo contains detailed build information
type BuildInfo struct {
	Version   string            `json:"version"`
	BuildDate string            `json:"build_date"`
	GitCommit string            `json:"git_commit"`
	GoVersion string            `json:"go_version"`
	BuildTime time.Time         `json:"build_time"`
	Dirty     bool              `json:"dirty"`
	Module    string            `json:"module,omitempty"`
	Engines   map[string]string `json:"engines,omitempty"`
}

// Info returns the build information of the running binary.
func Info() BuildInfo {
	buildTime, _ := time.Parse(time.RFC3339, BuildDate)
	if buildTime.IsZero() {
		buildTime = time.Now()
	}

	info := BuildInfo{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: GoVersion,
		BuildTime: buildTime,
		Dirty:     strings.Contains(GitCommit, "-dirty"),
	}

	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		info.Module = buildInfo.Main.Path
		info.Engines = engineVersions(buildInfo.Deps)
	}
	return info
}

func engineVersions(deps []*debug.Module) map[string]string {
	engines := make(map[string]string)
	for _, dep := range deps {
		for _, path := range engineModules {
			if dep.Path != path {
				continue
			}
			v := dep.Version
			if dep.Replace != nil {
				v = dep.Replace.Version
			}
			engines[path] = v
		}
	}
	return engines
}

// String returns a formatted version string
func (b BuildInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "groupbench %s", b.Version)
	if b.Dirty {
		sb.WriteString(" (dirty)")
	}
	sb.WriteString("\n")

	if b.BuildDate != unknownValue {
		fmt.Fprintf(&sb, "Build Date: %s\n", b.BuildDate)
	}
	if b.GitCommit != unknownValue {
		commit := b.GitCommit
		if len(commit) > commitHashLength {
			commit = commit[:commitHashLength]
		}
		fmt.Fprintf(&sb, "Git Commit: %s\n", commit)
	}
	fmt.Fprintf(&sb, "Go Version: %s\n", b.GoVersion)

	for _, path := range engineModules {
		if v, ok := b.Engines[path]; ok {
			fmt.Fprintf(&sb, "Engine: %s %s\n", path, v)
		}
	}
	return sb.String()
}
