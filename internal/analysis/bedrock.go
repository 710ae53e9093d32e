package analysis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/wolfman30/guardian-ai/internal/evidence"
	"github.com/wolfman30/guardian-ai/internal/locale"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockAnalyzer sends the frame as an image block through the Converse API.
type BedrockAnalyzer struct {
	api     bedrockConverseAPI
	modelID string
	now     func() time.Time
}

func NewBedrockAnalyzer(api bedrockConverseAPI, modelID string) *BedrockAnalyzer {
	if api == nil {
		panic("analysis: bedrock converse client cannot be nil")
	}
	return &BedrockAnalyzer{api: api, modelID: modelID, now: time.Now}
}

func (a *BedrockAnalyzer) Analyze(ctx context.Context, jpeg []byte, lang locale.Language) (evidence.Analysis, error) {
	if strings.TrimSpace(a.modelID) == "" {
		return evidence.Analysis{}, errors.New("analysis: bedrock model id is required")
	}
	if len(jpeg) == 0 {
		return evidence.Analysis{}, ErrEmptyFrame
	}

	out, err := a.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(a.modelID),
		System: []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: "Answer with a single JSON object with keys threatLevel, persons, vehicles, locationContext."},
		},
		Messages: []brtypes.Message{{
			Role: brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{
				&brtypes.ContentBlockMemberImage{Value: brtypes.ImageBlock{
					Format: brtypes.ImageFormatJpeg,
					Source: &brtypes.ImageSourceMemberBytes{Value: jpeg},
				}},
				&brtypes.ContentBlockMemberText{Value: Prompt(lang)},
			},
		}},
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(512),
			Temperature: aws.Float32(0),
		},
	})
	if err != nil {
		return evidence.Analysis{}, err
	}
	text, err := bedrockExtractOutputText(out)
	if err != nil {
		return evidence.Analysis{}, err
	}
	return parseModelOutput(text, a.now())
}

func bedrockExtractOutputText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil {
		return "", errors.New("analysis: bedrock response is nil")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("analysis: bedrock response did not include a message output")
	}
	var builder strings.Builder
	for _, block := range msgOut.Value.Content {
		if textBlock, ok := block.(*brtypes.ContentBlockMemberText); ok {
			builder.WriteString(textBlock.Value)
		}
	}
	if strings.TrimSpace(builder.String()) == "" {
		return "", ErrEmptyResponse
	}
	return builder.String(), nil
}
