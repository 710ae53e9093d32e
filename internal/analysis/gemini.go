package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/wolfman30/guardian-ai/internal/evidence"
	"github.com/wolfman30/guardian-ai/internal/locale"
)

// DefaultGeminiModel is used when no model id is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

type generateFunc func(ctx context.Context, model *genai.GenerativeModel, parts ...genai.Part) (*genai.GenerateContentResponse, error)

// GeminiAnalyzer asks Gemini for a schema-constrained JSON description.
type GeminiAnalyzer struct {
	client   *genai.Client
	modelID  string
	generate generateFunc
	now      func() time.Time
}

// NewGeminiAnalyzer creates a Gemini-backed analyzer.
func NewGeminiAnalyzer(ctx context.Context, apiKey, modelID string) (*GeminiAnalyzer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("analysis: gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("analysis: failed to create gemini client: %w", err)
	}
	return newGeminiAnalyzer(client, modelID), nil
}

func newGeminiAnalyzer(client *genai.Client, modelID string) *GeminiAnalyzer {
	if strings.TrimSpace(modelID) == "" {
		modelID = DefaultGeminiModel
	}
	return &GeminiAnalyzer{
		client:  client,
		modelID: modelID,
		generate: func(ctx context.Context, model *genai.GenerativeModel, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
			return model.GenerateContent(ctx, parts...)
		},
		now: time.Now,
	}
}

// Analyze sends the frame and prompt and decodes the JSON answer.
func (a *GeminiAnalyzer) Analyze(ctx context.Context, jpeg []byte, lang locale.Language) (evidence.Analysis, error) {
	if len(jpeg) == 0 {
		return evidence.Analysis{}, ErrEmptyFrame
	}
	var model *genai.GenerativeModel
	if a.client != nil {
		model = a.client.GenerativeModel(a.modelID)
	} else {
		model = &genai.GenerativeModel{}
	}
	configureSceneModel(model)

	resp, err := a.generate(ctx, model, genai.ImageData("jpeg", jpeg), genai.Text(Prompt(lang)))
	if err != nil {
		return evidence.Analysis{}, fmt.Errorf("analysis: gemini request failed: %w", err)
	}
	text, err := geminiResponseText(resp)
	if err != nil {
		return evidence.Analysis{}, err
	}
	return parseModelOutput(text, a.now())
}

// Close releases resources held by the Gemini client.
func (a *GeminiAnalyzer) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

func configureSceneModel(model *genai.GenerativeModel) {
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = sceneSchema()
}

func sceneSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"threatLevel": {
				Type: genai.TypeString,
				Enum: []string{string(evidence.ThreatLow), string(evidence.ThreatMedium), string(evidence.ThreatHigh)},
			},
			"persons": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
			"vehicles": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
			"locationContext": {
				Type: genai.TypeString,
			},
		},
		Required: []string{"threatLevel", "persons", "vehicles", "locationContext"},
	}
}

func geminiResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("analysis: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}
