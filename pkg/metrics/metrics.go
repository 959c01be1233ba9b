package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry metrics
	ProjectsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hostingbot_projects_running",
			Help: "Number of live project runtimes",
		},
	)

	ProjectsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hostingbot_projects_total",
			Help: "Total number of projects in the catalog",
		},
	)

	UsersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hostingbot_users_total",
			Help: "Total number of known users",
		},
	)

	// Lifecycle metrics
	StartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hostingbot_starts_total",
			Help: "Total number of successful project starts",
		},
	)

	CrashRestartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hostingbot_crash_restarts_total",
			Help: "Total number of unattended crash restarts",
		},
	)

	WatchdogKillsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hostingbot_watchdog_kills_total",
			Help: "Total number of runtimes killed for exceeding the RAM limit",
		},
	)

	// Ingest metrics
	UploadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hostingbot_uploads_total",
			Help: "Total number of committed uploads",
		},
	)

	InstallsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hostingbot_installs_total",
			Help: "Total number of package install attempts",
		},
	)

	// Log pump metrics
	LogBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hostingbot_log_bytes_total",
			Help: "Total bytes drained from child output streams",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ProjectsRunning,
		ProjectsTotal,
		UsersTotal,
		StartsTotal,
		CrashRestartsTotal,
		WatchdogKillsTotal,
		UploadsTotal,
		InstallsTotal,
		LogBytesTotal,
	)
}

// Handler returns the Prometheus scrape handler
func Handler() http.Handler {
	return promhttp.Handler()
}
