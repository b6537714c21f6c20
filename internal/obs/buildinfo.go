package obs

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

// BuildInfo describes the running binary and the store it was wired with.
type BuildInfo struct {
	Version string
	Commit  string
	Store   string // "postgres" or "memory"
}

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "identity_build_info",
		Help: "Constant 1, labelled with the identity service build and its store backend.",
	},
	[]string{"version", "commit", "go_version", "store"},
)

// SetBuildInfo publishes bi. Only the latest label set is kept so a restart of
// the wiring inside one process does not leave a stale series behind.
func SetBuildInfo(bi BuildInfo) {
	buildInfo.Reset()
	buildInfo.WithLabelValues(bi.Version, bi.Commit, runtime.Version(), bi.Store).Set(1)
}
