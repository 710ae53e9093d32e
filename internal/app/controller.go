package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/wolfman30/guardian-ai/internal/analysis"
	"github.com/wolfman30/guardian-ai/internal/capture"
	"github.com/wolfman30/guardian-ai/internal/cloud"
	"github.com/wolfman30/guardian-ai/internal/community"
	"github.com/wolfman30/guardian-ai/internal/evidence"
	"github.com/wolfman30/guardian-ai/internal/kv"
	"github.com/wolfman30/guardian-ai/internal/locale"
	"github.com/wolfman30/guardian-ai/internal/observability/metrics"
	"github.com/wolfman30/guardian-ai/internal/report"
	"github.com/wolfman30/guardian-ai/internal/settings"
	"github.com/wolfman30/guardian-ai/internal/triggers"
	"github.com/wolfman30/guardian-ai/internal/upload"
	"github.com/wolfman30/guardian-ai/internal/vault"
	"github.com/wolfman30/guardian-ai/pkg/logging"
)

// Reasons a trigger or signal is ignored.
var (
	ErrOnboarding      = errors.New("app: onboarding not complete")
	ErrSessionActive   = errors.New("app: a capture session is already active")
	ErrTriggerDisabled = errors.New("app: trigger disabled in settings")
	ErrDebounced       = errors.New("app: motion sample repeated too soon")
	ErrNotListening    = errors.New("app: voice listening is off")
)

var ErrNoSession = errors.New("app: no active capture session")

// IsIgnored reports whether err means a trigger was dropped on purpose.
func IsIgnored(err error) bool {
	return errors.Is(err, ErrOnboarding) ||
		errors.Is(err, ErrSessionActive) ||
		errors.Is(err, ErrTriggerDisabled) ||
		errors.Is(err, ErrDebounced) ||
		errors.Is(err, ErrNotListening)
}

// Config wires a Controller.
type Config struct {
	KV                   kv.Store
	Analyzer             analysis.Analyzer
	Uploader             cloud.Uploader
	Broadcaster          cloud.Broadcaster
	Timings              capture.Timings
	AnalysisTimeout      time.Duration
	MotionDebounce       time.Duration
	UploadMaxAttempts    int
	UploadRetryBaseDelay time.Duration
	VaultLockout         time.Duration
	OwnerEmail           string
	Metrics              *metrics.GuardianMetrics
	Logger               *logging.Logger
}

// Controller is the single owner of application state.
type Controller struct {
	kv          kv.Store
	settings    *settings.Store
	log         *evidence.Log
	community   *community.Map
	router      *Router
	camera      *capture.PushCamera
	capturer    *capture.Capturer
	queue       *upload.Queue
	gate        *vault.Gate
	broadcaster cloud.Broadcaster
	debouncer   *triggers.Debouncer
	timings     capture.Timings
	ownerEmail  string
	metrics     *metrics.GuardianMetrics
	logger      *logging.Logger
	baseLogger  *logging.Logger
	now         func() time.Time

	mu        sync.Mutex
	lang      locale.Language
	listening bool
	session   *capture.Session
	baseCtx   context.Context
}

func New(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.KV == nil {
		cfg.KV = kv.NewMemoryStore()
	}
	if cfg.Analyzer == nil {
		cfg.Analyzer = analysis.NewSimulatedAnalyzer()
	}
	if cfg.Uploader == nil {
		cfg.Uploader = cloud.NewSimulatedUploader(0, cfg.Logger)
	}
	if cfg.Broadcaster == nil {
		cfg.Broadcaster = cloud.NewSimulatedBroadcaster(0)
	}
	if cfg.Timings == (capture.Timings{}) {
		cfg.Timings = capture.DefaultTimings()
	}
	logger := cfg.Logger.Component("app")

	settingsStore := settings.NewStore(cfg.KV, cfg.Logger)
	log := evidence.NewLog(cfg.KV, cfg.Logger)
	c := &Controller{
		kv:          cfg.KV,
		settings:    settingsStore,
		log:         log,
		community:   community.NewMap(),
		router:      NewRouter(false),
		camera:      capture.NewPushCamera(),
		broadcaster: cfg.Broadcaster,
		debouncer:   triggers.NewDebouncer(cfg.MotionDebounce),
		timings:     cfg.Timings,
		ownerEmail:  cfg.OwnerEmail,
		metrics:     cfg.Metrics,
		logger:      logger,
		baseLogger:  cfg.Logger,
		now:         time.Now,
		lang:        locale.EN,
		baseCtx:     context.Background(),
	}
	c.capturer = capture.NewCapturer(capture.CapturerConfig{
		Analyzer:        cfg.Analyzer,
		Language:        c.Language,
		AnalysisTimeout: cfg.AnalysisTimeout,
		Metrics:         cfg.Metrics,
		Logger:          cfg.Logger,
	})
	c.queue = upload.NewQueue(log, cfg.Uploader, c.contacts, cfg.Logger).
		WithMaxAttempts(cfg.UploadMaxAttempts).
		WithBaseDelay(cfg.UploadRetryBaseDelay).
		WithMetrics(cfg.Metrics)
	c.gate = vault.NewGate(settingsStore, vault.Config{
		Lockout: cfg.VaultLockout,
		Metrics: cfg.Metrics,
		Logger:  cfg.Logger,
	})
	return c
}

// Load restores persisted state and picks the first view.
func (c *Controller) Load(ctx context.Context) {
	c.settings.Load(ctx)
	if err := c.log.Load(ctx); err != nil {
		c.logger.Warn("evidence log not restored", "error", err)
	}

	lang := locale.EN
	if raw, err := c.kv.Get(ctx, kv.KeyLanguage); err == nil {
		if parsed, err := locale.Parse(string(raw)); err == nil {
			lang = parsed
		}
	}
	onboarded := false
	if raw, err := c.kv.Get(ctx, kv.KeyOnboarded); err == nil {
		onboarded = string(raw) == "true"
	}

	c.mu.Lock()
	c.lang = lang
	c.listening = onboarded
	c.mu.Unlock()
	if onboarded {
		c.router.set(ViewDashboard)
	} else {
		c.router.set(ViewOnboarding)
	}
	c.logger.Info("state restored", "language", lang, "onboarded", onboarded, "evidence", c.log.Len())
}

// Run uploads pending evidence until ctx is done, then ends any session.
func (c *Controller) Run(ctx context.Context) {
	c.mu.Lock()
	c.baseCtx = ctx
	c.mu.Unlock()
	c.queue.Run(ctx)
	c.Close()
}

// DrainUploads processes the upload queue synchronously.
func (c *Controller) DrainUploads(ctx context.Context) int {
	return c.queue.Drain(ctx)
}

// Close ends the active session, if any, and waits for it.
func (c *Controller) Close() {
	if sess, err := c.activeSession(); err == nil {
		sess.Close()
	}
}

// Snapshot is the state the client renders from.
type Snapshot struct {
	View           View            `json:"view"`
	Language       locale.Language `json:"language"`
	RTL            bool            `json:"rtl"`
	Listening      bool            `json:"listening"`
	PendingUploads int             `json:"pendingUploads"`
	EvidenceCount  int             `json:"evidenceCount"`
	ContactCount   int             `json:"contactCount"`
	Vault          vault.Status    `json:"vault"`
	Session        *capture.Status `json:"session,omitempty"`
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	snap := Snapshot{
		Language:  c.lang,
		RTL:       c.lang.RTL(),
		Listening: c.listening,
	}
	sess := c.session
	c.mu.Unlock()

	snap.View = c.router.Current()
	snap.PendingUploads = c.log.PendingCount()
	snap.EvidenceCount = c.log.Len()
	snap.ContactCount = len(c.settings.Get().Contacts)
	snap.Vault = c.gate.Status()
	if sess != nil {
		st := sess.Status()
		snap.Session = &st
	}
	return snap
}

// View returns the current view.
func (c *Controller) View() View { return c.router.Current() }

// Navigate moves between screens. Leaving EMERGENCY is only possible by
// ending the session.
func (c *Controller) Navigate(v View) error {
	if _, err := c.activeSession(); err == nil {
		return ErrSessionActive
	}
	return c.router.Navigate(v)
}

// CloseSummary returns to the dashboard.
func (c *Controller) CloseSummary() error {
	return c.router.CloseSummary()
}

// CompleteOnboarding stores the language, marks onboarding done and
// turns voice listening on.
func (c *Controller) CompleteOnboarding(ctx context.Context, lang locale.Language) error {
	if !lang.Valid() {
		return locale.ErrUnknownLanguage
	}
	c.persist(ctx, kv.KeyLanguage, string(lang))
	c.persist(ctx, kv.KeyOnboarded, "true")

	c.mu.Lock()
	c.lang = lang
	c.listening = true
	c.mu.Unlock()
	c.router.set(ViewDashboard)
	c.logger.Info("onboarding complete", "language", lang)
	return nil
}

// Language is the active UI and analysis language.
func (c *Controller) Language() locale.Language {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lang
}

func (c *Controller) SetLanguage(ctx context.Context, lang locale.Language) error {
	if !lang.Valid() {
		return locale.ErrUnknownLanguage
	}
	c.mu.Lock()
	c.lang = lang
	c.mu.Unlock()
	c.persist(ctx, kv.KeyLanguage, string(lang))
	return nil
}

// CycleLanguage moves EN -> FR -> AR -> EN.
func (c *Controller) CycleLanguage(ctx context.Context) locale.Language {
	next := c.Language().Next()
	_ = c.SetLanguage(ctx, next)
	return next
}

func (c *Controller) SetListening(on bool) {
	c.mu.Lock()
	c.listening = on
	c.mu.Unlock()
}

// Trigger starts a capture session and shows the emergency view. MANUAL
// and VOICE always fire; the rest need their toggle on.
func (c *Controller) Trigger(ctx context.Context, t triggers.Type) (capture.Status, error) {
	if !t.Valid() {
		return capture.Status{}, triggers.ErrUnknownTrigger
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.settings.Get()
	var reason error
	switch {
	case c.router.Current() == ViewOnboarding:
		reason = ErrOnboarding
	case c.session != nil:
		reason = ErrSessionActive
	case t.Automatic() && !s.Enabled(t):
		reason = ErrTriggerDisabled
	}
	if reason != nil {
		c.metrics.ObserveTrigger(string(t), "ignored")
		c.logger.Debug("trigger ignored", "trigger", t, "reason", reason)
		return capture.Status{}, reason
	}

	var sess *capture.Session
	sess = capture.NewSession(capture.SessionConfig{
		Trigger:  t,
		Settings: s,
		Timings:  c.timings,
		Camera:   c.camera,
		Capturer: c.capturer,
		Log:      c.log,
		OnEnd:    func(o capture.Outcome) { c.sessionEnded(sess, o) },
		Logger:   c.baseLogger,
	})
	if err := sess.Start(c.baseCtx); err != nil {
		return capture.Status{}, fmt.Errorf("app: start session: %w", err)
	}
	c.session = sess
	c.router.enterEmergency()
	c.metrics.ObserveTrigger(string(t), "started")
	c.logger.Info("trigger fired", "trigger", t, "session_id", sess.ID())
	return sess.Status(), nil
}

// HandleVoiceTranscript fires VOICE when the transcript contains a phrase
// of the current language.
func (c *Controller) HandleVoiceTranscript(ctx context.Context, transcript string) (bool, error) {
	c.mu.Lock()
	listening, lang := c.listening, c.lang
	c.mu.Unlock()
	if !listening {
		return false, ErrNotListening
	}
	if !triggers.MatchVoice(transcript, lang) {
		return false, nil
	}
	if _, err := c.Trigger(ctx, triggers.Voice); err != nil {
		return false, err
	}
	return true, nil
}

// HandleMotion fires MOVEMENT on a violent acceleration sample. A burst
// of violent samples counts once until the session it started ends.
func (c *Controller) HandleMotion(ctx context.Context, x, y, z float64) (bool, error) {
	if !triggers.IsViolentMotion(x, y, z) {
		return false, nil
	}
	if !c.debouncer.Allow(triggers.Movement) {
		return false, ErrDebounced
	}
	if _, err := c.Trigger(ctx, triggers.Movement); err != nil {
		return false, err
	}
	return true, nil
}

// Session returns the active session.
func (c *Controller) Session() (*capture.Session, error) {
	return c.activeSession()
}

func (c *Controller) CancelSession() error {
	sess, err := c.activeSession()
	if err != nil {
		return err
	}
	return sess.Cancel()
}

func (c *Controller) VerifySessionPIN(pin string) (bool, error) {
	sess, err := c.activeSession()
	if err != nil {
		return false, err
	}
	return sess.VerifyPIN(pin)
}

func (c *Controller) VerifySessionBiometric() error {
	sess, err := c.activeSession()
	if err != nil {
		return err
	}
	return sess.VerifyBiometric()
}

func (c *Controller) StopSession() error {
	sess, err := c.activeSession()
	if err != nil {
		return err
	}
	return sess.Stop()
}

func (c *Controller) ToggleCamera() (capture.Facing, error) {
	sess, err := c.activeSession()
	if err != nil {
		return "", err
	}
	return sess.ToggleCamera()
}

// PushFrame hands a JPEG or PNG frame to the session camera.
func (c *Controller) PushFrame(data []byte) error {
	if _, err := c.activeSession(); err != nil {
		return err
	}
	return c.camera.Push(data)
}

// UpdateLocation feeds a position fix to the session.
func (c *Controller) UpdateLocation(lat, lng float64) error {
	sess, err := c.activeSession()
	if err != nil {
		return err
	}
	return sess.Location().Update(lat, lng)
}

func (c *Controller) activeSession() (*capture.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, ErrNoSession
	}
	return c.session, nil
}

// sessionEnded runs after the session has released its lock.
func (c *Controller) sessionEnded(sess *capture.Session, outcome capture.Outcome) {
	c.mu.Lock()
	if c.session != sess {
		c.mu.Unlock()
		return
	}
	c.session = nil
	c.mu.Unlock()
	c.debouncer.Reset()
	view := c.router.SessionEnded(outcome)
	c.logger.Info("session finished", "session_id", sess.ID(), "outcome", outcome, "view", view)
}

// Settings returns the current settings.
func (c *Controller) Settings() settings.Settings {
	return c.settings.Get()
}

func (c *Controller) UpdateSettings(ctx context.Context, patch settings.Patch) (settings.Settings, error) {
	return c.settings.Update(ctx, func(s *settings.Settings) error {
		patch.Apply(s)
		return nil
	})
}

func (c *Controller) AddContact(ctx context.Context, contact settings.Contact) (settings.Contact, error) {
	var added settings.Contact
	_, err := c.settings.Update(ctx, func(s *settings.Settings) error {
		var err error
		added, err = s.AddContact(contact)
		return err
	})
	return added, err
}

func (c *Controller) RemoveContact(ctx context.Context, id string) error {
	_, err := c.settings.Update(ctx, func(s *settings.Settings) error {
		return s.RemoveContact(id)
	})
	return err
}

// SetVaultPIN sets or changes the PIN. Changing it needs the current one.
func (c *Controller) SetVaultPIN(ctx context.Context, current, next string) error {
	if !settings.ValidPIN(next) {
		return fmt.Errorf("%w: PIN must be four digits", settings.ErrInvalid)
	}
	if err := c.gate.Verify(ctx, current); err != nil {
		return err
	}
	_, err := c.settings.Update(ctx, func(s *settings.Settings) error {
		s.VaultPIN = next
		s.FailedAttempts = 0
		s.LockoutUntil = 0
		return nil
	})
	return err
}

// ClearVaultPIN removes protection after checking the current PIN.
func (c *Controller) ClearVaultPIN(ctx context.Context, current string) error {
	if err := c.gate.Verify(ctx, current); err != nil {
		return err
	}
	_, err := c.settings.Update(ctx, func(s *settings.Settings) error {
		s.VaultPIN = ""
		s.FailedAttempts = 0
		s.LockoutUntil = 0
		return nil
	})
	return err
}

// VaultStatus describes PIN protection and lockout.
func (c *Controller) VaultStatus() vault.Status {
	return c.gate.Status()
}

// Evidence lists the vault, newest first.
func (c *Controller) Evidence(ctx context.Context, pin string) ([]evidence.Item, error) {
	if err := c.gate.Verify(ctx, pin); err != nil {
		return nil, err
	}
	return c.log.List(), nil
}

// ClearEvidence empties the vault and resets the community map.
func (c *Controller) ClearEvidence(ctx context.Context, pin string) error {
	if err := c.gate.Verify(ctx, pin); err != nil {
		return err
	}
	err := c.log.Clear(ctx)
	c.community.Reset()
	if err != nil {
		c.logger.Error("evidence key not removed", "error", err)
	}
	c.logger.Info("evidence vault cleared")
	return nil
}

// DeleteEvidence removes one item. Secured items are immutable.
func (c *Controller) DeleteEvidence(ctx context.Context, id, pin string) error {
	if err := c.gate.Verify(ctx, pin); err != nil {
		return err
	}
	return c.log.Remove(ctx, id)
}

func (c *Controller) ClassifyEvidence(ctx context.Context, id string, classification evidence.Classification) error {
	return c.log.Classify(ctx, id, classification)
}

// ShareResult is the outcome of a community share.
type ShareResult struct {
	Item   evidence.Item     `json:"item"`
	Reach  int               `json:"reach"`
	Marker *community.Marker `json:"marker,omitempty"`
}

// ShareEvidence broadcasts an item to the community and records the
// sightings. Analyzed items also get a marker on the map.
func (c *Controller) ShareEvidence(ctx context.Context, id string) (ShareResult, error) {
	if err := c.log.MarkShared(ctx, id); err != nil {
		return ShareResult{}, err
	}
	item, err := c.log.Get(id)
	if err != nil {
		return ShareResult{}, err
	}

	res, err := c.broadcaster.Broadcast(ctx, item)
	if err != nil {
		c.metrics.ObserveBroadcast("failed")
		return ShareResult{}, fmt.Errorf("app: broadcast: %w", err)
	}
	c.metrics.ObserveBroadcast("ok")
	if err := c.log.SetSightings(ctx, id, res.Sightings); err != nil {
		return ShareResult{}, err
	}

	out := ShareResult{Reach: res.Reach}
	if item.Analysis != nil {
		marker, err := c.community.AddUserReport(item.Latitude, item.Longitude)
		if err != nil {
			c.logger.Warn("community marker skipped", "evidence_id", id, "error", err)
		} else {
			out.Marker = &marker
		}
	}
	out.Item, _ = c.log.Get(id)
	return out, nil
}

// Incidents lists the community map markers.
func (c *Controller) Incidents() []community.Marker {
	return c.community.List()
}

// Report writes the vault PDF to w.
func (c *Controller) Report(ctx context.Context, w io.Writer, pin string) error {
	items, err := c.Evidence(ctx, pin)
	if err != nil {
		return err
	}
	return report.Generate(w, report.Options{
		Owner:       c.ownerEmail,
		Language:    c.Language(),
		Contacts:    c.settings.Get().Contacts,
		GeneratedAt: c.now(),
	}, items)
}

func (c *Controller) contacts() []settings.Contact {
	return c.settings.Get().Contacts
}

func (c *Controller) persist(ctx context.Context, key, value string) {
	if err := c.kv.Set(ctx, key, []byte(value)); err != nil {
		c.logger.Error("state persist failed", "key", key, "error", err)
	}
}
