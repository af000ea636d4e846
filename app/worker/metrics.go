package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pendingDiscoveryGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mirror_pending_discovery",
		Help: "Number of org mirrors waiting for a discovery pass",
	})
	pendingCreationGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mirror_pending_creation",
		Help: "Number of discovered repositories without a local repository yet",
	})
	currentlySyncingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mirror_currently_syncing",
		Help: "Number of mirror syncs running in this process",
	})

	discoveryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mirror_discovery_attempts_total",
		Help: "Org mirror discovery passes by outcome",
	}, []string{"status"})
	syncAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mirror_sync_attempts_total",
		Help: "Repo mirror sync passes by outcome",
	}, []string{"status"})
	reposCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mirror_repos_created_total",
		Help: "Local repositories created from discovered records",
	})
	reposFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mirror_repos_failed_total",
		Help: "Discovered records whose local repository creation failed",
	})
	reposDiscovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mirror_repos_discovered_total",
		Help: "Upstream repositories recorded by discovery",
	})

	discoveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mirror_discovery_duration_seconds",
		Help:    "Duration of one org mirror discovery pass",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	})
	syncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mirror_sync_duration_seconds",
		Help:    "Duration of one repo mirror sync pass",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 3600, 14400},
	})
	repoCreationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mirror_repo_creation_duration_seconds",
		Help:    "Duration of one local repository creation",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)
