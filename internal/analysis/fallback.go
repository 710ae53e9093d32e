package analysis

import (
	"context"

	"github.com/wolfman30/guardian-ai/internal/evidence"
	"github.com/wolfman30/guardian-ai/internal/locale"
	"github.com/wolfman30/guardian-ai/pkg/logging"
)

// FallbackAnalyzer wraps a primary analyzer with a fallback provider.
// If the primary fails, the frame is retried on the fallback.
type FallbackAnalyzer struct {
	primary  Analyzer
	fallback Analyzer
	logger   *logging.Logger
}

// NewFallbackAnalyzer builds the chain; a nil fallback disables it.
func NewFallbackAnalyzer(primary, fallback Analyzer, logger *logging.Logger) *FallbackAnalyzer {
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackAnalyzer{primary: primary, fallback: fallback, logger: logger}
}

func (a *FallbackAnalyzer) Analyze(ctx context.Context, jpeg []byte, lang locale.Language) (evidence.Analysis, error) {
	result, err := a.primary.Analyze(ctx, jpeg, lang)
	if err == nil {
		return result, nil
	}

	a.logger.Warn("primary analyzer failed, attempting fallback",
		"error", err.Error(),
		"fallback_available", a.fallback != nil,
	)
	if a.fallback == nil {
		return evidence.Analysis{}, err
	}

	result, fallbackErr := a.fallback.Analyze(ctx, jpeg, lang)
	if fallbackErr != nil {
		a.logger.Error("fallback analyzer also failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return evidence.Analysis{}, fallbackErr
	}
	return result, nil
}
