package knowledge

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicRewriter implements SummaryRewriter by asking a Claude model to
// condense an instruction plus its QA/failure notes into a short archival
// task_summary.
type AnthropicRewriter struct {
	client *sdk.Client
	model  string
}

// NewAnthropicRewriter constructs a rewriter using the default Anthropic
// HTTP client. apiKey must be non-empty; callers should leave Rewriter nil
// in Store when no key is configured rather than constructing one.
func NewAnthropicRewriter(apiKey, model string) *AnthropicRewriter {
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	if model == "" {
		model = "claude-3-5-haiku-20241022"
	}
	return &AnthropicRewriter{client: &client, model: model}
}

// Rewrite asks the model for a one-sentence task summary. Any SDK error, or
// an empty reply, is returned as a wrapped error so Store.Archive falls back
// to the raw instruction.
func (r *AnthropicRewriter) Rewrite(ctx context.Context, instruction string, notes string) (string, error) {
	prompt := fmt.Sprintf("Summarize this video-edit task in one sentence for an internal case archive.\nInstruction: %s\nNotes: %s", instruction, notes)

	msg, err := r.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(r.model),
		MaxTokens: 200,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("knowledge: anthropic rewrite: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	summary := strings.TrimSpace(sb.String())
	if summary == "" {
		return "", fmt.Errorf("knowledge: anthropic rewrite: empty response")
	}
	return summary, nil
}
