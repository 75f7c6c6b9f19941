package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики контроллера. Регистрируются в prometheus.DefaultRegisterer
// и отдаются через promhttp.Handler() на /metrics.
var (
	// Triggers — входящие события по pipeline и решению (accepted, rejected, duplicate).
	Triggers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skyline_triggers_total",
		Help: "Trigger events by pipeline and decision",
	}, []string{"pipeline", "decision"})

	// Runs — завершённые run по pipeline и итогу.
	Runs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skyline_runs_total",
		Help: "Finished runs by pipeline and outcome",
	}, []string{"pipeline", "outcome"})

	// ActiveRuns — 1, пока у pipeline есть активный run.
	ActiveRuns = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "skyline_active_runs",
		Help: "Runs currently in progress by pipeline",
	}, []string{"pipeline"})

	// StageDuration — длительность стадий, включая все попытки.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skyline_stage_duration_seconds",
		Help:    "Stage duration in seconds by pipeline, kind and outcome",
		Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s .. ~2.3h
	}, []string{"pipeline", "kind", "outcome"})

	// StageAttempts — количество попыток стадии.
	StageAttempts = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skyline_stage_attempts",
		Help:    "Attempts per stage by kind",
		Buckets: []float64{1, 2, 3, 5, 10},
	}, []string{"kind"})

	// StatusQueries — запросы статуса к внешним сервисам (result: ok, error).
	StatusQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skyline_status_queries_total",
		Help: "Status queries to external services by label and result",
	}, []string{"label", "result"})

	// ListenerEvents — события, полученные listener'ом из bucket notifications.
	ListenerEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skyline_listener_events_total",
		Help: "Bucket notifications received by the listener by result",
	}, []string{"result"})
)
