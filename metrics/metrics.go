package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubsystemInits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balgil_subsystem_inits_total",
			Help: "Subsystem initialization attempts by outcome",
		},
		[]string{"subsystem", "status"},
	)

	SubsystemInitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "balgil_subsystem_init_duration_seconds",
			Help:    "Time taken by a subsystem initializer to settle",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2, 3, 5, 10},
		},
		[]string{"subsystem"},
	)

	// LateInits counts abandoned initializers that settled after the
	// orchestrator had already moved on.
	LateInits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balgil_subsystem_late_inits_total",
			Help: "Abandoned subsystem initializers that settled after their timeout",
		},
		[]string{"subsystem", "status"},
	)

	BootstrapDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "balgil_bootstrap_join_duration_seconds",
			Help:    "Time from bootstrap start until splash hold and subsystem init both settled",
			Buckets: []float64{.5, 1, 1.5, 2, 2.5, 3, 4, 5, 10},
		},
	)

	StartupDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balgil_startup_decisions_total",
			Help: "Initial screen decisions",
		},
		[]string{"screen", "reason"},
	)

	SyncTriggers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balgil_sync_triggers_total",
			Help: "Background sync requests by trigger",
		},
		[]string{"trigger"},
	)

	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balgil_sync_runs_total",
			Help: "Sync runs by result",
		},
		[]string{"result"},
	)

	RoutesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "balgil_routes_uploaded_total",
			Help: "Routes successfully uploaded to the server",
		},
	)

	RoutesStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "balgil_routes_stored_total",
			Help: "Routes written to the local store",
		},
	)

	SocialMessagesLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "balgil_social_messages_cached",
			Help: "Messages currently held in the social message cache",
		},
	)

	ConnectivityEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balgil_connectivity_events_total",
			Help: "Connectivity events published by kind",
		},
		[]string{"kind"},
	)

	SettingsErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balgil_settings_errors_total",
			Help: "Settings store failures by backend and operation",
		},
		[]string{"backend", "operation"},
	)
)
