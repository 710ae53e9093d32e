package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/wolfman30/guardian-ai/internal/analysis"
	appconfig "github.com/wolfman30/guardian-ai/internal/config"
	"github.com/wolfman30/guardian-ai/pkg/logging"
)

// BuildAnalyzer wires the scene analyzer named by ANALYSIS_PROVIDER. A
// configured secondary provider becomes the fallback; with nothing
// configured the simulated analyzer is used.
func BuildAnalyzer(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (analysis.Analyzer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var gemini, bedrock analysis.Analyzer
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		g, err := analysis.NewGeminiAnalyzer(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gemini analyzer: %w", err)
		}
		gemini = g
	}
	if strings.TrimSpace(cfg.BedrockModelID) != "" && awsCfg != nil {
		bedrock = analysis.NewBedrockAnalyzer(bedrockruntime.NewFromConfig(*awsCfg), cfg.BedrockModelID)
	}

	primary, secondary := gemini, bedrock
	if cfg.AnalysisProvider == "bedrock" {
		primary, secondary = bedrock, gemini
	}
	if cfg.AnalysisProvider == "simulated" || (primary == nil && secondary == nil) {
		logger.Warn("no scene analysis provider configured; using simulated analyzer")
		return analysis.NewSimulatedAnalyzer(), nil
	}
	if primary == nil {
		logger.Warn("preferred analysis provider unavailable; using secondary", "provider", cfg.AnalysisProvider)
		return secondary, nil
	}
	if secondary == nil {
		logger.Info("scene analysis enabled", "provider", cfg.AnalysisProvider)
		return primary, nil
	}
	logger.Info("scene analysis enabled with fallback", "provider", cfg.AnalysisProvider)
	return analysis.NewFallbackAnalyzer(primary, secondary, logger), nil
}
