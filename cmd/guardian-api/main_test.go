package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	appconfig "github.com/wolfman30/guardian-ai/internal/config"
	"github.com/wolfman30/guardian-ai/internal/kv"
	"github.com/wolfman30/guardian-ai/internal/triggers"
	"github.com/wolfman30/guardian-ai/pkg/logging"
)

func TestSetupMetricsExposesMetrics(t *testing.T) {
	handler, m := setupMetrics()
	if handler == nil || m == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	m.ObserveTrigger(string(triggers.Manual), "started")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "guardian_session_triggers_total") {
		t.Fatalf("expected trigger counter to be exported")
	}
}

func TestBuildControllerWithSimulatedCollaborators(t *testing.T) {
	cfg := &appconfig.Config{
		AnalysisProvider:           "simulated",
		CaptureInterval:            20 * time.Millisecond,
		PowerButtonCaptureInterval: 5 * time.Millisecond,
		CountdownDuration:          50 * time.Millisecond,
		AuthWindow:                 50 * time.Millisecond,
		UploadMaxAttempts:          3,
	}
	logger := logging.New("error")
	_, m := setupMetrics()

	controller, closeDeps, err := buildController(context.Background(), cfg, nil, kv.NewMemoryStore(), m, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeDeps()
	defer controller.Close()

	controller.Load(context.Background())
	if err := controller.CompleteOnboarding(context.Background(), "EN"); err != nil {
		t.Fatalf("onboarding: %v", err)
	}
	if _, err := controller.Trigger(context.Background(), triggers.Manual); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if controller.Snapshot().Session == nil {
		t.Fatalf("expected an active session")
	}
}
