package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/guardian-ai/internal/evidence"
	"github.com/wolfman30/guardian-ai/internal/settings"
	"github.com/wolfman30/guardian-ai/internal/triggers"
	"github.com/wolfman30/guardian-ai/pkg/logging"
)

// State of a capture session.
type State string

const (
	StateIdle      State = "IDLE"
	StateAuthCheck State = "AUTH_CHECK"
	StateCountdown State = "COUNTDOWN"
	StateRecording State = "RECORDING"
	StateStopped   State = "STOPPED"
)

// Mode is how a recording session presents itself on screen.
type Mode string

const (
	ModeVisible   Mode = "VISIBLE"
	ModeDisguised Mode = "DISGUISED"
)

// Outcome explains why a session stopped.
type Outcome string

const (
	OutcomeStopped       Outcome = "stopped"
	OutcomeCancelled     Outcome = "cancelled"
	OutcomeOwnerVerified Outcome = "owner_verified"
)

// Recorded reports whether the session reached recording.
func (o Outcome) Recorded() bool {
	return o == OutcomeStopped
}

var (
	ErrAlreadyStarted  = errors.New("capture: session already started")
	ErrSessionEnded    = errors.New("capture: session has ended")
	ErrNotAwaitingAuth = errors.New("capture: session is not awaiting owner verification")
	ErrNotCancellable  = errors.New("capture: only a countdown can be cancelled")
	ErrNotRecording    = errors.New("capture: session is not recording")
	ErrStopUnavailable = errors.New("capture: stop control is hidden in disguised mode")
)

// Timings are the session clocks.
type Timings struct {
	CaptureInterval     time.Duration
	PowerButtonInterval time.Duration
	Countdown           time.Duration
	AuthWindow          time.Duration
}

// DefaultTimings match the production cadence.
func DefaultTimings() Timings {
	return Timings{
		CaptureInterval:     4 * time.Second,
		PowerButtonInterval: 300 * time.Millisecond,
		Countdown:           5 * time.Second,
		AuthWindow:          5 * time.Second,
	}
}

// SessionConfig wires a Session.
type SessionConfig struct {
	Trigger  triggers.Type
	Settings settings.Settings
	Timings  Timings
	Camera   Camera
	Location *Tracker
	Capturer *Capturer
	Log      *evidence.Log
	OnEnd    func(Outcome)
	Logger   *logging.Logger
}

// Status is a point-in-time view of a session.
type Status struct {
	ID          string        `json:"id"`
	Trigger     triggers.Type `json:"trigger"`
	State       State         `json:"state"`
	Mode        Mode          `json:"mode"`
	Facing      Facing        `json:"facing"`
	StopControl bool          `json:"stopControl"`
	Plan        Plan          `json:"plan"`
	StartedAt   time.Time     `json:"startedAt"`
	Captured    int           `json:"captured"`
	Outcome     Outcome       `json:"outcome,omitempty"`
}

// Session is one trigger's lifecycle from IDLE to STOPPED.
type Session struct {
	id       string
	plan     Plan
	timings  Timings
	ownerPIN string
	camera   Camera
	location *Tracker
	capturer *Capturer
	log      *evidence.Log
	onEnd    func(Outcome)
	logger   *logging.Logger
	tick     time.Duration

	mu        sync.Mutex
	state     State
	facing    Facing
	source    FrameSource
	outcome   Outcome
	captured  int
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc

	inFlight atomic.Bool
	wg       sync.WaitGroup
	events   *eventHub
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Timings == (Timings{}) {
		cfg.Timings = DefaultTimings()
	}
	if cfg.Location == nil {
		cfg.Location = NewTracker()
	}
	id := uuid.NewString()
	return &Session{
		id:       id,
		plan:     NewPlan(cfg.Trigger, cfg.Settings),
		timings:  cfg.Timings,
		ownerPIN: cfg.Settings.OwnerPIN(),
		camera:   cfg.Camera,
		location: cfg.Location,
		capturer: cfg.Capturer,
		log:      cfg.Log,
		onEnd:    cfg.OnEnd,
		logger:   cfg.Logger.Component("capture").With("session_id", id, "trigger", cfg.Trigger),
		state:    StateIdle,
		facing:   FacingFront,
		events:   newEventHub(),
		tick:     time.Second,
	}
}

// ID identifies the session in logs and events.
func (s *Session) ID() string { return s.id }

// Plan returns the classification the session runs under.
func (s *Session) Plan() Plan { return s.plan }

// Location returns the tracker fed by position updates.
func (s *Session) Location() *Tracker { return s.location }

// Start leaves IDLE. The session runs until stopped or parent is done.
func (s *Session) Start(parent context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return ErrAlreadyStarted
	}
	s.ctx, s.cancel = context.WithCancel(parent)
	s.startedAt = time.Now()
	s.logger.Info("session started",
		"automatic", s.plan.Automatic,
		"critical", s.plan.Critical,
		"stealth", s.plan.EffectiveStealth,
	)

	switch {
	case s.plan.AuthCheck:
		s.setStateLocked(StateAuthCheck)
		s.runTimer(s.timings.AuthWindow, EventAuth, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.state == StateAuthCheck {
				s.logger.Warn("owner verification window expired, recording")
				s.startRecordingLocked()
			}
		})
	case s.plan.Countdown:
		s.setStateLocked(StateCountdown)
		s.runTimer(s.timings.Countdown, EventCountdown, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.state == StateCountdown {
				s.startRecordingLocked()
			}
		})
	default:
		s.startRecordingLocked()
	}
	return nil
}

// VerifyPIN answers the power-button owner check. A correct PIN ends the
// session without recording; a wrong one starts recording at once.
func (s *Session) VerifyPIN(pin string) (bool, error) {
	s.mu.Lock()
	if s.state != StateAuthCheck {
		s.mu.Unlock()
		return false, ErrNotAwaitingAuth
	}
	if pin == s.ownerPIN {
		after := s.endLocked(OutcomeOwnerVerified)
		s.mu.Unlock()
		after()
		return true, nil
	}
	s.logger.Warn("owner verification failed, recording")
	s.startRecordingLocked()
	s.mu.Unlock()
	return false, nil
}

// VerifyBiometric accepts the platform biometric prompt as owner proof.
func (s *Session) VerifyBiometric() error {
	s.mu.Lock()
	if s.state != StateAuthCheck {
		s.mu.Unlock()
		return ErrNotAwaitingAuth
	}
	after := s.endLocked(OutcomeOwnerVerified)
	s.mu.Unlock()
	after()
	return nil
}

// Cancel aborts a countdown before any recording.
func (s *Session) Cancel() error {
	s.mu.Lock()
	if s.state != StateCountdown {
		s.mu.Unlock()
		return ErrNotCancellable
	}
	after := s.endLocked(OutcomeCancelled)
	s.mu.Unlock()
	after()
	return nil
}

// Stop ends a recording from the on-screen control. A disguised session
// only has that control in demo mode.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return ErrSessionEnded
	}
	if s.state != StateRecording {
		s.mu.Unlock()
		return ErrNotRecording
	}
	if !s.plan.StopControl {
		s.mu.Unlock()
		return ErrStopUnavailable
	}
	after := s.endLocked(OutcomeStopped)
	s.mu.Unlock()
	after()
	return nil
}

// Close ends the session from any state, for shutdown.
func (s *Session) Close() {
	s.mu.Lock()
	outcome := OutcomeStopped
	if s.state == StateCountdown || s.state == StateAuthCheck || s.state == StateIdle {
		outcome = OutcomeCancelled
	}
	after := s.endLocked(outcome)
	s.mu.Unlock()
	after()
	s.wg.Wait()
}

// ToggleCamera switches sides unless the plan pins the front camera.
func (s *Session) ToggleCamera() (Facing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopped {
		return s.facing, ErrSessionEnded
	}
	next := FacingBack
	if s.facing == FacingBack {
		next = FacingFront
	}
	if s.plan.ForceFrontCamera {
		next = FacingFront
	}
	if next == s.facing {
		return s.facing, nil
	}
	s.facing = next
	if s.state == StateRecording {
		s.openCameraLocked()
	}
	s.events.publish(Event{Type: EventState, State: s.state, Facing: s.facing})
	return s.facing, nil
}

// Wait blocks until background goroutines have exited.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Status returns a snapshot.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	mode := ModeVisible
	if s.plan.Disguise && s.state == StateRecording {
		mode = ModeDisguised
	}
	return Status{
		ID:          s.id,
		Trigger:     s.plan.Trigger,
		State:       s.state,
		Mode:        mode,
		Facing:      s.facing,
		StopControl: s.plan.StopControl,
		Plan:        s.plan,
		StartedAt:   s.startedAt,
		Captured:    s.captured,
		Outcome:     s.outcome,
	}
}

// Subscribe streams session events until cancel is called.
func (s *Session) Subscribe() (<-chan Event, func()) {
	return s.events.subscribe()
}

func (s *Session) setStateLocked(state State) {
	s.state = state
	s.events.publish(Event{Type: EventState, State: state, Facing: s.facing})
}

func (s *Session) startRecordingLocked() {
	s.setStateLocked(StateRecording)
	s.openCameraLocked()
	s.location.Start()

	interval := s.timings.CaptureInterval
	if s.plan.Trigger == triggers.PowerButton {
		interval = s.timings.PowerButtonInterval
	}
	s.logger.Info("recording", "interval_ms", interval.Milliseconds(), "disguised", s.plan.Disguise)

	s.wg.Add(1)
	go s.captureLoop(s.ctx, interval)
}

// openCameraLocked (re)opens the camera on the current side. A failure
// leaves the session running without a source.
func (s *Session) openCameraLocked() {
	s.source = nil
	if s.camera == nil {
		return
	}
	s.camera.Close()
	if err := s.camera.Open(s.ctx, s.facing); err != nil {
		s.logger.Error("camera unavailable", "error", err, "facing", s.facing)
		return
	}
	s.source = s.camera
}

func (s *Session) captureLoop(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()
	s.captureTick()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.captureTick()
		}
	}
}

// captureTick starts a capture unless one is still running.
func (s *Session) captureTick() {
	if s.capturer == nil {
		return
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return
	}
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		s.inFlight.Store(false)
		return
	}
	source := s.source
	ctx := s.ctx
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Store(false)
		s.capturer.CaptureOnce(ctx, source, s.location, s.plan.Trigger, sessionSink{s})
	}()
}

// sessionSink refuses results that land after the session stopped.
type sessionSink struct{ s *Session }

func (k sessionSink) Append(ctx context.Context, item evidence.Item) (evidence.Item, bool) {
	s := k.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording || s.ctx.Err() != nil || s.log == nil {
		return evidence.Item{}, false
	}
	stored := s.log.Prepend(ctx, item)
	s.captured++
	var threat evidence.ThreatLevel
	if stored.Analysis != nil {
		threat = stored.Analysis.ThreatLevel
	}
	s.events.publish(Event{Type: EventEvidence, State: s.state, EvidenceID: stored.ID, ThreatLevel: threat})
	return stored, true
}

// runTimer fires after d, publishing a seconds-left event every tick while
// the session is still in the state it was started from. Callers hold s.mu.
func (s *Session) runTimer(d time.Duration, kind EventType, fire func()) {
	ctx, state, tick := s.ctx, s.state, s.tick
	left := int((d + tick - 1) / tick)
	s.events.publish(Event{Type: kind, State: state, SecondsLeft: left})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(d)
		defer timer.Stop()
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				if s.state == state && left > 1 {
					left--
					s.events.publish(Event{Type: kind, State: state, SecondsLeft: left})
				}
				s.mu.Unlock()
			case <-timer.C:
				fire()
				return
			}
		}
	}()
}

// endLocked moves to STOPPED once and returns the end callback to run
// after the lock is released.
func (s *Session) endLocked(outcome Outcome) func() {
	if s.state == StateStopped {
		return func() {}
	}
	wasRecording := s.state == StateRecording
	s.outcome = outcome
	s.setStateLocked(StateStopped)
	if s.cancel != nil {
		s.cancel()
	}
	if wasRecording {
		if s.camera != nil {
			s.camera.Close()
		}
		s.source = nil
		s.location.Stop()
	}
	s.events.publish(Event{Type: EventEnded, State: StateStopped, Outcome: outcome})
	s.logger.Info("session ended", "outcome", outcome, "captured", s.captured)

	onEnd := s.onEnd
	return func() {
		if onEnd != nil {
			onEnd(outcome)
		}
	}
}
