// Package analysis turns a camera frame into a structured threat description.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/guardian-ai/internal/evidence"
	"github.com/wolfman30/guardian-ai/internal/locale"
)

// Analyzer describes one JPEG frame in the requested language.
type Analyzer interface {
	Analyze(ctx context.Context, jpeg []byte, lang locale.Language) (evidence.Analysis, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, jpeg []byte, lang locale.Language) (evidence.Analysis, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, jpeg []byte, lang locale.Language) (evidence.Analysis, error) {
	return f(ctx, jpeg, lang)
}

var (
	ErrEmptyFrame    = errors.New("analysis: empty frame")
	ErrEmptyResponse = errors.New("analysis: model returned no content")
)

const unknownLocation = "Unknown location"

// Prompt is the instruction sent alongside the frame.
func Prompt(lang locale.Language) string {
	return fmt.Sprintf("Analyze this scene for safety in Algeria. Respond in %s. "+
		"Identify threat level (LOW, MEDIUM, HIGH), persons (clothing, features), "+
		"vehicles (color, type, plate if visible), and location context. Return valid JSON.", lang.Name())
}

type modelOutput struct {
	ThreatLevel     string   `json:"threatLevel"`
	Persons         []string `json:"persons"`
	Vehicles        []string `json:"vehicles"`
	LocationContext string   `json:"locationContext"`
}

// parseModelOutput decodes the JSON answer, tolerating markdown fences.
func parseModelOutput(text string, now time.Time) (evidence.Analysis, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		return evidence.Analysis{}, ErrEmptyResponse
	}

	var out modelOutput
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return evidence.Analysis{}, fmt.Errorf("analysis: decode model output: %w", err)
	}
	level, err := evidence.ParseThreatLevel(out.ThreatLevel)
	if err != nil {
		return evidence.Analysis{}, fmt.Errorf("analysis: %w", err)
	}
	result := evidence.Analysis{
		ThreatLevel:     level,
		Persons:         out.Persons,
		Vehicles:        out.Vehicles,
		LocationContext: strings.TrimSpace(out.LocationContext),
		Timestamp:       now.UTC().Format(time.RFC3339),
	}
	if result.Persons == nil {
		result.Persons = []string{}
	}
	if result.Vehicles == nil {
		result.Vehicles = []string{}
	}
	if result.LocationContext == "" {
		result.LocationContext = unknownLocation
	}
	return result, nil
}
