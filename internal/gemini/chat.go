package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type Chat struct {
	client *genai.Client
	model  string
}

func NewChat(ctx context.Context, apiKey, model string) (*Chat, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	return &Chat{client: client, model: model}, nil
}

// Summarize condenses retrieved passages into a single short answer-style
// summary.
func (c *Chat) Summarize(ctx context.Context, texts []string) (string, error) {
	prompt := "Summarize the following document passages into a concise overview. " +
		"Stick to what the passages say.\n\n" + strings.Join(texts, "\n---\n")
	return c.generate(ctx, prompt)
}

// Discuss answers a follow-up question against previously retrieved context.
func (c *Chat) Discuss(ctx context.Context, question, background string) (string, error) {
	prompt := fmt.Sprintf(
		"Answer the question using only the context below. If the context does not contain the answer, say so.\n\nContext:\n%s\n\nQuestion: %s",
		background, question)
	return c.generate(ctx, prompt)
}

func (c *Chat) generate(ctx context.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.model)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: empty completion", ErrGateway)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}

func (c *Chat) Close() error {
	return c.client.Close()
}
