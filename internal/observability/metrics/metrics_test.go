package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestGuardianMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGuardianMetrics(reg)
	m.ObserveTrigger("MANUAL", "started")
	m.ObserveTrigger("MANUAL", "started")
	m.ObserveCapture("appended")
	m.ObserveAnalysisLatency("ok", 0.5)
	m.ObserveUpload("secured")
	m.ObserveBroadcast("ok")
	m.ObserveVaultAttempt("denied")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := map[string]float64{}
	for _, fam := range families {
		for _, metric := range fam.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				found[fam.GetName()] += c.GetValue()
			}
		}
	}
	if found["guardian_session_triggers_total"] != 2 {
		t.Fatalf("expected 2 triggers, got %v", found["guardian_session_triggers_total"])
	}
	if found["guardian_backup_uploads_total"] != 1 {
		t.Fatalf("expected 1 upload, got %v", found["guardian_backup_uploads_total"])
	}
}

func TestGuardianMetricsNilSafe(t *testing.T) {
	var m *GuardianMetrics
	m.ObserveTrigger("VOICE", "ignored")
	m.ObserveCapture("skipped")
	m.ObserveAnalysisLatency("error", 0.1)
	m.ObserveUpload("failed")
	m.ObserveBroadcast("error")
	m.ObserveVaultAttempt("locked")
}
