package config

// Set at link time, for example:
//
//	go build -ldflags "-X caliseed/internal/config.version=1.0.0 \
//	    -X caliseed/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X caliseed/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo returns the linker-injected build metadata.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}
