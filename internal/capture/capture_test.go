package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/guardian-ai/internal/evidence"
	"github.com/wolfman30/guardian-ai/internal/kv"
	"github.com/wolfman30/guardian-ai/internal/locale"
	"github.com/wolfman30/guardian-ai/internal/settings"
	"github.com/wolfman30/guardian-ai/internal/triggers"
)

type stubAnalyzer struct {
	mu       sync.Mutex
	payloads [][]byte
	langs    []locale.Language
	err      error
	block    chan struct{}

	running atomic.Int32
	maxRun  atomic.Int32
}

func (a *stubAnalyzer) Analyze(ctx context.Context, jpegBytes []byte, lang locale.Language) (evidence.Analysis, error) {
	n := a.running.Add(1)
	defer a.running.Add(-1)
	for {
		cur := a.maxRun.Load()
		if n <= cur || a.maxRun.CompareAndSwap(cur, n) {
			break
		}
	}
	a.mu.Lock()
	a.payloads = append(a.payloads, jpegBytes)
	a.langs = append(a.langs, lang)
	block := a.block
	err := a.err
	a.mu.Unlock()
	if block != nil {
		<-block
	}
	if err != nil {
		return evidence.Analysis{}, err
	}
	return evidence.Analysis{ThreatLevel: evidence.ThreatHigh, Persons: []string{"man"}, Vehicles: []string{}, LocationContext: "street"}, nil
}

func (a *stubAnalyzer) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.payloads)
}

type brokenCamera struct{ closed atomic.Int32 }

func (c *brokenCamera) Open(context.Context, Facing) error { return errors.New("permission denied") }

func (c *brokenCamera) Close() { c.closed.Add(1) }

func (c *brokenCamera) Frame() (image.Image, bool) { return nil, false }

type fixedSource struct{ img image.Image }

func (f fixedSource) Frame() (image.Image, bool) { return f.img, f.img != nil }

func testFrame(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	return img
}

func fastTimings() Timings {
	return Timings{
		CaptureInterval:     20 * time.Millisecond,
		PowerButtonInterval: 5 * time.Millisecond,
		Countdown:           40 * time.Millisecond,
		AuthWindow:          40 * time.Millisecond,
	}
}

type harness struct {
	log      *evidence.Log
	camera   *PushCamera
	analyzer *stubAnalyzer
	capturer *Capturer

	mu       sync.Mutex
	outcomes []Outcome
}

func newHarness() *harness {
	h := &harness{
		log:      evidence.NewLog(kv.NewMemoryStore(), nil),
		camera:   NewPushCamera(),
		analyzer: &stubAnalyzer{},
	}
	h.capturer = NewCapturer(CapturerConfig{Analyzer: h.analyzer, AnalysisTimeout: time.Second})
	return h
}

func (h *harness) session(t triggers.Type, s settings.Settings) *Session {
	return NewSession(SessionConfig{
		Trigger:  t,
		Settings: s,
		Timings:  fastTimings(),
		Camera:   h.camera,
		Capturer: h.capturer,
		Log:      h.log,
		OnEnd: func(o Outcome) {
			h.mu.Lock()
			h.outcomes = append(h.outcomes, o)
			h.mu.Unlock()
		},
	})
}

func (h *harness) ended() []Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Outcome(nil), h.outcomes...)
}

func visibleSettings() settings.Settings {
	s := settings.Defaults()
	s.StealthMode = false
	return s
}

func TestNewPlan(t *testing.T) {
	stealth := settings.Defaults()
	visible := visibleSettings()
	demo := settings.Defaults()
	demo.DemoMode = true

	tests := []struct {
		name string
		t    triggers.Type
		s    settings.Settings
		want Plan
	}{
		{"manual ignores stealth", triggers.Manual, stealth, Plan{Trigger: triggers.Manual, StopControl: true}},
		{"voice", triggers.Voice, stealth, Plan{Trigger: triggers.Voice, StopControl: true}},
		{"movement visible counts down", triggers.Movement, visible, Plan{Trigger: triggers.Movement, Automatic: true, Countdown: true, StopControl: true}},
		{"movement stealth disguises", triggers.Movement, stealth, Plan{Trigger: triggers.Movement, Automatic: true, EffectiveStealth: true, Disguise: true}},
		{"sim eject visible skips countdown", triggers.SIMEject, visible, Plan{Trigger: triggers.SIMEject, Automatic: true, Critical: true, StopControl: true}},
		{"sim eject stealth forces front", triggers.SIMEject, stealth, Plan{Trigger: triggers.SIMEject, Automatic: true, Critical: true, EffectiveStealth: true, Disguise: true, ForceFrontCamera: true}},
		{"airplane critical", triggers.AirplaneMode, visible, Plan{Trigger: triggers.AirplaneMode, Automatic: true, Critical: true, StopControl: true}},
		{"power button checks owner", triggers.PowerButton, visible, Plan{Trigger: triggers.PowerButton, Automatic: true, AuthCheck: true, StopControl: true}},
		{"unlock failed demo stealth", triggers.UnlockFailed, demo, Plan{Trigger: triggers.UnlockFailed, Automatic: true, EffectiveStealth: true, Disguise: true, StopControl: true, ForceFrontCamera: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewPlan(tt.t, tt.s))
		})
	}
}

func TestCaptureOnceWithoutFrameIsNoop(t *testing.T) {
	h := newHarness()
	sink := LogAppender{Log: h.log}

	assert.Nil(t, h.capturer.CaptureOnce(context.Background(), nil, nil, triggers.Manual, sink))
	assert.Nil(t, h.capturer.CaptureOnce(context.Background(), h.camera, nil, triggers.Manual, sink))
	assert.Equal(t, 0, h.analyzer.calls())
	assert.Equal(t, 0, h.log.Len())
}

func TestCaptureOnceDownscalesAndAppends(t *testing.T) {
	h := newHarness()
	h.capturer.language = func() locale.Language { return locale.AR }
	tracker := NewTracker()
	tracker.Start()
	require.NoError(t, tracker.Update(36.7, 3.1))

	item := h.capturer.CaptureOnce(context.Background(), fixedSource{testFrame(1024, 768)}, tracker, triggers.Voice, LogAppender{Log: h.log})
	require.NotNil(t, item)

	require.Equal(t, 1, h.analyzer.calls())
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(h.analyzer.payloads[0]))
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Width)
	assert.Equal(t, 384, cfg.Height)
	assert.Equal(t, locale.AR, h.analyzer.langs[0])

	assert.True(t, strings.HasPrefix(item.ImageURL, "data:image/jpeg;base64,"))
	assert.Equal(t, evidence.StatusPending, item.BackupStatus)
	assert.Equal(t, triggers.Voice, item.TriggerType)
	assert.False(t, item.IsShared)
	assert.Equal(t, 0, item.Sightings)
	require.True(t, item.HasLocation())
	assert.Equal(t, 36.7, *item.Latitude)
	assert.Equal(t, 1, h.log.Len())
}

func TestCaptureOnceSmallFrameKeepsSize(t *testing.T) {
	h := newHarness()
	item := h.capturer.CaptureOnce(context.Background(), fixedSource{testFrame(320, 240)}, nil, triggers.Manual, LogAppender{Log: h.log})
	require.NotNil(t, item)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(h.analyzer.payloads[0]))
	require.NoError(t, err)
	assert.Equal(t, 320, cfg.Width)
	assert.False(t, item.HasLocation())
}

func TestCaptureOnceAnalysisFailureDropsFrame(t *testing.T) {
	h := newHarness()
	h.analyzer.err = errors.New("quota")
	item := h.capturer.CaptureOnce(context.Background(), fixedSource{testFrame(64, 64)}, nil, triggers.Manual, LogAppender{Log: h.log})
	assert.Nil(t, item)
	assert.Equal(t, 0, h.log.Len())
}

type refusingSink struct{}

func (refusingSink) Append(context.Context, evidence.Item) (evidence.Item, bool) {
	return evidence.Item{}, false
}

func TestCaptureOnceRefusedBySink(t *testing.T) {
	h := newHarness()
	assert.Nil(t, h.capturer.CaptureOnce(context.Background(), fixedSource{testFrame(64, 64)}, nil, triggers.Manual, refusingSink{}))
}

func TestManualSessionRecordsAndStops(t *testing.T) {
	h := newHarness()
	s := h.session(triggers.Manual, settings.Defaults())
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateRecording, s.Status().State)
	assert.Equal(t, ModeVisible, s.Status().Mode)
	assert.Equal(t, FacingFront, h.camera.Facing())
	require.NoError(t, h.camera.PushImage(testFrame(64, 48)))

	require.Eventually(t, func() bool { return h.log.Len() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	s.Wait()
	assert.Equal(t, []Outcome{OutcomeStopped}, h.ended())
	assert.False(t, h.camera.IsOpen())
	assert.ErrorIs(t, s.Stop(), ErrSessionEnded)
	assert.Equal(t, StateStopped, s.Status().State)
	assert.Equal(t, h.log.Len(), s.Status().Captured)
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
}

func TestCountdownCancelProducesNothing(t *testing.T) {
	h := newHarness()
	s := h.session(triggers.Movement, visibleSettings())
	events, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateCountdown, s.Status().State)
	assert.ErrorIs(t, s.Stop(), ErrNotRecording)
	require.NoError(t, s.Cancel())
	s.Wait()

	assert.Equal(t, []Outcome{OutcomeCancelled}, h.ended())
	assert.Equal(t, 0, h.log.Len())
	assert.False(t, h.camera.IsOpen())
	assert.ErrorIs(t, s.Cancel(), ErrNotCancellable)

	var sawCountdown, sawEnded bool
	for done := false; !done; {
		select {
		case ev := <-events:
			if ev.Type == EventCountdown && ev.SecondsLeft == 1 {
				sawCountdown = true
			}
			if ev.Type == EventEnded && ev.Outcome == OutcomeCancelled {
				sawEnded = true
			}
		default:
			done = true
		}
	}
	assert.True(t, sawCountdown)
	assert.True(t, sawEnded)
}

func TestCountdownTicksCarryState(t *testing.T) {
	h := newHarness()
	timings := fastTimings()
	timings.Countdown = 120 * time.Millisecond
	s := NewSession(SessionConfig{
		Trigger:  triggers.Movement,
		Settings: visibleSettings(),
		Timings:  timings,
		Camera:   h.camera,
		Capturer: h.capturer,
		Log:      h.log,
	})
	s.tick = 20 * time.Millisecond
	events, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return s.Status().State == StateRecording }, time.Second, 5*time.Millisecond)
	s.Close()

	var countdown []Event
	for done := false; !done; {
		select {
		case ev := <-events:
			if ev.Type == EventCountdown {
				countdown = append(countdown, ev)
			}
		default:
			done = true
		}
	}
	require.GreaterOrEqual(t, len(countdown), 2, "expected the initial event and at least one tick")
	assert.Equal(t, 6, countdown[0].SecondsLeft)
	for _, ev := range countdown {
		assert.Equal(t, StateCountdown, ev.State)
	}
	assert.Less(t, countdown[len(countdown)-1].SecondsLeft, countdown[0].SecondsLeft)
}

func TestCountdownExpiryStartsRecording(t *testing.T) {
	h := newHarness()
	s := h.session(triggers.Geofence, visibleSettings())
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return s.Status().State == StateRecording }, time.Second, 5*time.Millisecond)
	s.Close()
	assert.Equal(t, []Outcome{OutcomeStopped}, h.ended())
}

func TestPowerButtonOwnerVerified(t *testing.T) {
	h := newHarness()
	s := h.session(triggers.PowerButton, visibleSettings())
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateAuthCheck, s.Status().State)

	ok, err := s.VerifyPIN(settings.DefaultPIN)
	require.NoError(t, err)
	assert.True(t, ok)
	s.Wait()
	assert.Equal(t, []Outcome{OutcomeOwnerVerified}, h.ended())
	assert.Equal(t, 0, h.analyzer.calls())
	assert.False(t, h.camera.IsOpen())
}

func TestPowerButtonUsesVaultPIN(t *testing.T) {
	h := newHarness()
	cfg := visibleSettings()
	cfg.VaultPIN = "9876"
	s := h.session(triggers.PowerButton, cfg)
	require.NoError(t, s.Start(context.Background()))

	ok, err := s.VerifyPIN(settings.DefaultPIN)
	require.NoError(t, err)
	assert.False(t, ok, "default pin is not accepted once a vault pin exists")
	assert.Equal(t, StateRecording, s.Status().State)

	_, err = s.VerifyPIN("9876")
	assert.ErrorIs(t, err, ErrNotAwaitingAuth)
	s.Close()
}

func TestPowerButtonWrongPINRecordsFast(t *testing.T) {
	h := newHarness()
	s := h.session(triggers.PowerButton, visibleSettings())
	require.NoError(t, s.Start(context.Background()))
	ok, err := s.VerifyPIN("0000")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, h.camera.PushImage(testFrame(32, 32)))

	require.Eventually(t, func() bool { return h.log.Len() >= 3 }, time.Second, 2*time.Millisecond)
	s.Close()
}

func TestPowerButtonWindowExpiry(t *testing.T) {
	h := newHarness()
	s := h.session(triggers.PowerButton, visibleSettings())
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return s.Status().State == StateRecording }, time.Second, 5*time.Millisecond)
	s.Close()
}

func TestPowerButtonBiometric(t *testing.T) {
	h := newHarness()
	s := h.session(triggers.PowerButton, visibleSettings())
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.VerifyBiometric())
	assert.ErrorIs(t, s.VerifyBiometric(), ErrNotAwaitingAuth)
	s.Wait()
	assert.Equal(t, []Outcome{OutcomeOwnerVerified}, h.ended())
}

func TestStealthSessionHidesStopControl(t *testing.T) {
	h := newHarness()
	s := h.session(triggers.SIMEject, settings.Defaults())
	require.NoError(t, s.Start(context.Background()))
	st := s.Status()
	assert.Equal(t, StateRecording, st.State)
	assert.Equal(t, ModeDisguised, st.Mode)
	assert.False(t, st.StopControl)
	assert.ErrorIs(t, s.Stop(), ErrStopUnavailable)
	s.Close()
	assert.Equal(t, []Outcome{OutcomeStopped}, h.ended())
}

func TestStealthDemoModeAllowsStop(t *testing.T) {
	h := newHarness()
	cfg := settings.Defaults()
	cfg.DemoMode = true
	s := h.session(triggers.Movement, cfg)
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, ModeDisguised, s.Status().Mode)
	require.NoError(t, s.Stop())
	s.Wait()
}

func TestToggleCamera(t *testing.T) {
	h := newHarness()
	s := h.session(triggers.Manual, settings.Defaults())
	require.NoError(t, s.Start(context.Background()))

	facing, err := s.ToggleCamera()
	require.NoError(t, err)
	assert.Equal(t, FacingBack, facing)
	assert.Equal(t, FacingBack, h.camera.Facing())
	assert.True(t, h.camera.IsOpen())

	facing, err = s.ToggleCamera()
	require.NoError(t, err)
	assert.Equal(t, FacingFront, facing)
	s.Close()

	_, err = s.ToggleCamera()
	assert.ErrorIs(t, err, ErrSessionEnded)
}

func TestToggleCameraForcedFront(t *testing.T) {
	h := newHarness()
	s := h.session(triggers.UnlockFailed, settings.Defaults())
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, h.camera.PushImage(testFrame(16, 16)))

	facing, err := s.ToggleCamera()
	require.NoError(t, err)
	assert.Equal(t, FacingFront, facing)
	_, ok := h.camera.Frame()
	assert.True(t, ok, "camera is not reopened when facing does not change")
	s.Close()
}

func TestSlowAnalysisSkipsTicks(t *testing.T) {
	h := newHarness()
	h.analyzer.block = make(chan struct{})
	s := h.session(triggers.Manual, settings.Defaults())
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, h.camera.PushImage(testFrame(16, 16)))

	require.Eventually(t, func() bool { return h.analyzer.calls() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, h.analyzer.calls(), "ticks are skipped while a capture is in flight")

	require.NoError(t, s.Stop())
	close(h.analyzer.block)
	s.Wait()

	assert.Equal(t, int32(1), h.analyzer.maxRun.Load())
	assert.Equal(t, 0, h.log.Len(), "result landing after stop is discarded")
}

func TestCameraFailureKeepsSessionAlive(t *testing.T) {
	h := newHarness()
	cam := &brokenCamera{}
	s := NewSession(SessionConfig{
		Trigger:  triggers.Manual,
		Settings: settings.Defaults(),
		Timings:  fastTimings(),
		Camera:   cam,
		Capturer: h.capturer,
		Log:      h.log,
	})
	require.NoError(t, s.Start(context.Background()))
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, StateRecording, s.Status().State)
	assert.Equal(t, 0, h.analyzer.calls())
	require.NoError(t, s.Stop())
	s.Wait()
}

func TestParentCancelStopsCapture(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	s := h.session(triggers.Manual, settings.Defaults())
	require.NoError(t, s.Start(ctx))
	cancel()
	s.Close()
	assert.Len(t, h.ended(), 1)
}

func TestTrackerIgnoresFixesWhenNotWatching(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.Update(1, 2))
	_, _, ok := tr.Location()
	assert.False(t, ok)

	tr.Start()
	assert.ErrorIs(t, tr.Update(91, 0), ErrInvalidFix)
	require.NoError(t, tr.Update(1, 2))
	lat, lng, ok := tr.Location()
	assert.True(t, ok)
	assert.Equal(t, 1.0, lat)
	assert.Equal(t, 2.0, lng)

	tr.Stop()
	_, _, ok = tr.Location()
	assert.False(t, ok)
}

func TestPushCameraDecodesFrames(t *testing.T) {
	cam := NewPushCamera()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testFrame(8, 8), nil))

	assert.ErrorIs(t, cam.Push(buf.Bytes()), ErrCameraClosed)
	require.NoError(t, cam.Open(context.Background(), FacingBack))
	require.NoError(t, cam.Push(buf.Bytes()))
	img, ok := cam.Frame()
	require.True(t, ok)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Error(t, cam.Push([]byte("not an image")))
}
