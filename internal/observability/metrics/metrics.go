package metrics

import "github.com/prometheus/client_golang/prometheus"

// GuardianMetrics exposes counters/histograms for trigger, capture and backup flows.
type GuardianMetrics struct {
	triggersTotal   *prometheus.CounterVec
	capturesTotal   *prometheus.CounterVec
	analysisLatency *prometheus.HistogramVec
	uploadsTotal    *prometheus.CounterVec
	broadcastsTotal *prometheus.CounterVec
	vaultAttempts   *prometheus.CounterVec
}

func NewGuardianMetrics(reg prometheus.Registerer) *GuardianMetrics {
	m := &GuardianMetrics{
		triggersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guardian",
			Subsystem: "session",
			Name:      "triggers_total",
			Help:      "Total triggers received",
		}, []string{"trigger_type", "result"}),
		capturesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guardian",
			Subsystem: "capture",
			Name:      "frames_total",
			Help:      "Total capture ticks by outcome",
		}, []string{"status"}),
		analysisLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "guardian",
			Subsystem: "capture",
			Name:      "analysis_latency_seconds",
			Help:      "Latency of scene analysis calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		uploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guardian",
			Subsystem: "backup",
			Name:      "uploads_total",
			Help:      "Total evidence upload attempts",
		}, []string{"status"}),
		broadcastsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guardian",
			Subsystem: "community",
			Name:      "broadcasts_total",
			Help:      "Total community broadcasts",
		}, []string{"status"}),
		vaultAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guardian",
			Subsystem: "vault",
			Name:      "attempts_total",
			Help:      "Total vault PIN attempts",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.triggersTotal, m.capturesTotal, m.analysisLatency, m.uploadsTotal, m.broadcastsTotal, m.vaultAttempts)
	return m
}

func (m *GuardianMetrics) ObserveTrigger(triggerType, result string) {
	if m == nil {
		return
	}
	m.triggersTotal.WithLabelValues(triggerType, result).Inc()
}

func (m *GuardianMetrics) ObserveCapture(status string) {
	if m == nil {
		return
	}
	m.capturesTotal.WithLabelValues(status).Inc()
}

func (m *GuardianMetrics) ObserveAnalysisLatency(status string, seconds float64) {
	if m == nil {
		return
	}
	m.analysisLatency.WithLabelValues(status).Observe(seconds)
}

func (m *GuardianMetrics) ObserveUpload(status string) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(status).Inc()
}

func (m *GuardianMetrics) ObserveBroadcast(status string) {
	if m == nil {
		return
	}
	m.broadcastsTotal.WithLabelValues(status).Inc()
}

func (m *GuardianMetrics) ObserveVaultAttempt(result string) {
	if m == nil {
		return
	}
	m.vaultAttempts.WithLabelValues(result).Inc()
}
