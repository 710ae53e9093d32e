// Package app owns the GuardianAI application state: the current view,
// language, settings, evidence and the active capture session.
package app

import (
	"errors"
	"strings"
	"sync"

	"github.com/wolfman30/guardian-ai/internal/capture"
)

// View is the screen the client should show.
type View string

const (
	ViewOnboarding View = "ONBOARDING"
	ViewDashboard  View = "DASHBOARD"
	ViewEmergency  View = "EMERGENCY"
	ViewSummary    View = "SUMMARY"
	ViewReport     View = "REPORT"
	ViewSettings   View = "SETTINGS"
)

var (
	ErrUnknownView      = errors.New("app: unknown view")
	ErrEmergencyByRoute = errors.New("app: emergency view is entered by a trigger")
	ErrNotInSummary     = errors.New("app: no summary is showing")
)

// ParseView accepts a view name in any case.
func ParseView(s string) (View, error) {
	v := View(strings.ToUpper(strings.TrimSpace(s)))
	switch v {
	case ViewOnboarding, ViewDashboard, ViewEmergency, ViewSummary, ViewReport, ViewSettings:
		return v, nil
	}
	return "", ErrUnknownView
}

// Router holds exactly one current view.
type Router struct {
	mu      sync.RWMutex
	current View
}

// NewRouter starts on the dashboard for returning users.
func NewRouter(onboarded bool) *Router {
	v := ViewOnboarding
	if onboarded {
		v = ViewDashboard
	}
	return &Router{current: v}
}

func (r *Router) Current() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Navigate moves to v. EMERGENCY is reserved for triggers.
func (r *Router) Navigate(v View) error {
	v, err := ParseView(string(v))
	if err != nil {
		return err
	}
	if v == ViewEmergency {
		return ErrEmergencyByRoute
	}
	r.set(v)
	return nil
}

// SessionEnded routes a recorded session to its summary and an aborted
// one back to the dashboard.
func (r *Router) SessionEnded(outcome capture.Outcome) View {
	v := ViewDashboard
	if outcome.Recorded() {
		v = ViewSummary
	}
	r.set(v)
	return v
}

// CloseSummary returns from the summary to the dashboard.
func (r *Router) CloseSummary() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != ViewSummary {
		return ErrNotInSummary
	}
	r.current = ViewDashboard
	return nil
}

func (r *Router) enterEmergency() {
	r.set(ViewEmergency)
}

func (r *Router) set(v View) {
	r.mu.Lock()
	r.current = v
	r.mu.Unlock()
}
