package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/image/draw"

	"github.com/wolfman30/guardian-ai/internal/analysis"
	"github.com/wolfman30/guardian-ai/internal/evidence"
	"github.com/wolfman30/guardian-ai/internal/locale"
	"github.com/wolfman30/guardian-ai/internal/observability/metrics"
	"github.com/wolfman30/guardian-ai/internal/triggers"
	"github.com/wolfman30/guardian-ai/pkg/logging"
)

const (
	analysisWidth   = 512
	analysisQuality = 60
	archiveQuality  = 80
)

var captureTracer = otel.Tracer("guardian.internal.capture")

// Appender receives analyzed items. ok is false when the item was refused.
type Appender interface {
	Append(ctx context.Context, item evidence.Item) (evidence.Item, bool)
}

// LogAppender appends straight to an evidence log.
type LogAppender struct {
	Log *evidence.Log
}

func (a LogAppender) Append(ctx context.Context, item evidence.Item) (evidence.Item, bool) {
	return a.Log.Prepend(ctx, item), true
}

// Capturer grabs a frame, analyzes it and appends the result.
type Capturer struct {
	analyzer analysis.Analyzer
	language func() locale.Language
	timeout  time.Duration
	metrics  *metrics.GuardianMetrics
	logger   *logging.Logger
	now      func() time.Time
}

// CapturerConfig wires a Capturer.
type CapturerConfig struct {
	Analyzer        analysis.Analyzer
	Language        func() locale.Language
	AnalysisTimeout time.Duration
	Metrics         *metrics.GuardianMetrics
	Logger          *logging.Logger
}

func NewCapturer(cfg CapturerConfig) *Capturer {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Language == nil {
		cfg.Language = func() locale.Language { return locale.EN }
	}
	if cfg.AnalysisTimeout <= 0 {
		cfg.AnalysisTimeout = 20 * time.Second
	}
	return &Capturer{
		analyzer: cfg.Analyzer,
		language: cfg.Language,
		timeout:  cfg.AnalysisTimeout,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		now:      time.Now,
	}
}

// CaptureOnce runs one capture-and-analyze cycle. It returns nil when no
// frame was available, analysis failed, or sink refused the item.
// Analysis is not cancelled with ctx; sink decides whether a late
// result is still wanted.
func (c *Capturer) CaptureOnce(ctx context.Context, source FrameSource, location LocationSource, trigger triggers.Type, sink Appender) *evidence.Item {
	if source == nil {
		c.metrics.ObserveCapture("no_source")
		return nil
	}
	frame, ok := source.Frame()
	if !ok || frame == nil || frame.Bounds().Empty() {
		c.metrics.ObserveCapture("no_frame")
		return nil
	}

	ctx, span := captureTracer.Start(ctx, "capture.frame")
	defer span.End()
	span.SetAttributes(attribute.String("guardian.trigger", string(trigger)))

	capturedAt := c.now()
	var lat, lng *float64
	if location != nil {
		if la, lo, ok := location.Location(); ok {
			lat, lng = &la, &lo
		}
	}

	payload, err := encodeJPEG(downscale(frame, analysisWidth), analysisQuality)
	if err != nil {
		span.RecordError(err)
		c.logger.Error("frame encode failed", "error", err)
		c.metrics.ObserveCapture("encode_error")
		return nil
	}

	analyzeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	started := time.Now()
	result, err := c.analyzer.Analyze(analyzeCtx, payload, c.language())
	if err != nil {
		c.metrics.ObserveAnalysisLatency("error", time.Since(started).Seconds())
		c.metrics.ObserveCapture("analysis_error")
		span.RecordError(err)
		c.logger.Warn("scene analysis failed, frame dropped", "error", err, "trigger", trigger)
		return nil
	}
	c.metrics.ObserveAnalysisLatency("ok", time.Since(started).Seconds())

	original, err := encodeJPEG(frame, archiveQuality)
	if err != nil {
		span.RecordError(err)
		c.logger.Error("frame encode failed", "error", err)
		c.metrics.ObserveCapture("encode_error")
		return nil
	}

	item := evidence.Item{
		ImageURL:     DataURL(original),
		Analysis:     &result,
		Timestamp:    capturedAt.UnixMilli(),
		Latitude:     lat,
		Longitude:    lng,
		BackupStatus: evidence.StatusPending,
		TriggerType:  trigger,
	}
	stored, ok := sink.Append(ctx, item)
	if !ok {
		c.metrics.ObserveCapture("discarded")
		c.logger.Info("analysis finished after session end, result discarded", "trigger", trigger)
		return nil
	}
	c.metrics.ObserveCapture("appended")
	span.SetAttributes(attribute.String("guardian.evidence_id", stored.ID))
	c.logger.Info("evidence captured",
		"evidence_id", stored.ID,
		"threat_level", result.ThreatLevel,
		"trigger", trigger,
		"has_location", stored.HasLocation(),
	)
	return &stored
}

// DataURL wraps JPEG bytes as an inline image URL.
func DataURL(jpegBytes []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegBytes)
}

// downscale shrinks img to width, keeping the aspect ratio. Narrower
// frames are returned unchanged.
func downscale(img image.Image, width int) image.Image {
	b := img.Bounds()
	if b.Dx() <= width {
		return img
	}
	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("capture: encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
