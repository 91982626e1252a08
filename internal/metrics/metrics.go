package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds all Prometheus metrics for the pipeline and dashboard
type Metrics struct {
	// Run counters
	RunsTotal  *prometheus.CounterVec
	RunsActive prometheus.Gauge

	// Stage timings
	StageDurationSeconds *prometheus.HistogramVec

	// Generation fallbacks per sub-task
	GenerationFallbacksTotal *prometheus.CounterVec

	// CRM requests by operation and mode
	CRMRequestsTotal *prometheus.CounterVec

	// Simulated and real recipients across distributions
	CampaignRecipientsTotal prometheus.Counter

	// Dashboard HTTP metrics
	HTTPRequestsTotal          *prometheus.CounterVec
	HTTPRequestDurationSeconds *prometheus.HistogramVec
	HTTPErrorsTotal            *prometheus.CounterVec

	// System metrics
	UptimeSeconds   prometheus.Gauge
	Goroutines      prometheus.Gauge
	CampaignsStored prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_runs_total",
				Help: "Total number of finished pipeline runs by terminal status",
			},
			[]string{"status"},
		),
		RunsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pipeline_runs_active",
				Help: "Number of pipeline runs currently executing",
			},
		),
		StageDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_stage_duration_seconds",
				Help:    "Pipeline stage duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		GenerationFallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_generation_fallbacks_total",
				Help: "Total number of generation sub-tasks that fell back to a template",
			},
			[]string{"task"},
		),
		CRMRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_crm_requests_total",
				Help: "Total number of CRM operations by mode",
			},
			[]string{"operation", "mode"},
		),
		CampaignRecipientsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pipeline_campaign_recipients_total",
				Help: "Total recipients across all campaign distributions",
			},
		),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_http_requests_total",
				Help: "Total number of dashboard HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dashboard_http_request_duration_seconds",
				Help:    "Dashboard HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_http_errors_total",
				Help: "Total number of dashboard HTTP error responses",
			},
			[]string{"error_type"},
		),

		UptimeSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pipeline_uptime_seconds",
				Help: "Dashboard server uptime in seconds",
			},
		),
		Goroutines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pipeline_goroutines",
				Help: "Number of active goroutines",
			},
		),
		CampaignsStored: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pipeline_campaigns_stored",
				Help: "Number of campaign log artifacts on disk",
			},
		),

		registry: reg,
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunsActive,
		m.StageDurationSeconds,
		m.GenerationFallbacksTotal,
		m.CRMRequestsTotal,
		m.CampaignRecipientsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDurationSeconds,
		m.HTTPErrorsTotal,
		m.UptimeSeconds,
		m.Goroutines,
		m.CampaignsStored,
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetGlobal sets the global metrics instance
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// RunStarted marks one more run as active
func RunStarted() {
	m := Global()
	if m != nil {
		m.RunsActive.Inc()
	}
}

// RunFinished records a terminal run status and releases the active slot
func RunFinished(status string) {
	m := Global()
	if m != nil {
		m.RunsTotal.WithLabelValues(status).Inc()
		m.RunsActive.Dec()
	}
}

// ObserveStage records the duration of one pipeline stage
func ObserveStage(stage string, seconds float64) {
	m := Global()
	if m != nil {
		m.StageDurationSeconds.WithLabelValues(stage).Observe(seconds)
	}
}

// IncGenerationFallback counts a sub-task that degraded to its template
func IncGenerationFallback(task string) {
	m := Global()
	if m != nil {
		m.GenerationFallbacksTotal.WithLabelValues(task).Inc()
	}
}

// IncCRMRequest counts a CRM operation in the given mode
func IncCRMRequest(operation, mode string) {
	m := Global()
	if m != nil {
		m.CRMRequestsTotal.WithLabelValues(operation, mode).Inc()
	}
}

// AddCampaignRecipients adds recipients from one distribution
func AddCampaignRecipients(count int) {
	m := Global()
	if m != nil && count > 0 {
		m.CampaignRecipientsTotal.Add(float64(count))
	}
}
