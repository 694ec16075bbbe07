package coach

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const systemPrompt = `You are SafeBite's nutrition coach. Answer questions about food safety,
ingredients, allergens and nutrition. Be concise, practical and
non-judgmental. You are not a doctor; recommend professional advice for
medical questions.`

// Coach is a thin proxy to the hosted model. It carries no quota logic of
// its own: callers go through the engine's feature gate first.
type Coach struct {
	client *genai.Client
	model  string
}

type CoachOption = func(c *Coach) error

func NewCoach(apiKey string, opts ...CoachOption) (*Coach, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create coach client: %w", err)
	}

	c := &Coach{
		client: client,
		model:  "gemini-3-flash-preview",
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply options: %w", err)
		}
	}
	return c, nil
}

func WithModel(model string) CoachOption {
	return func(c *Coach) error {
		c.model = model
		return nil
	}
}

// SendMessage forwards one user message and returns the model's reply.
func (c *Coach) SendMessage(ctx context.Context, message string) (string, error) {
	prompt := systemPrompt + "\n\nUser: " + strings.TrimSpace(message)

	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate coach reply: %w", err)
	}
	return result.Text(), nil
}
