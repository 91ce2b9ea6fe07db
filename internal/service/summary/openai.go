// Package summary asks a chat model for a short natural-language purchase summary.
package summary

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"

	"github.com/iliamunaev/invoice-emission/internal/model"
)

// DefaultModel is used when no model is configured.
const DefaultModel = openai.GPT4oMini

const systemPrompt = "You write one short, friendly paragraph summarizing a customer's purchase " +
	"for an invoice notification. Mention the customer by name, the products and the total in MXN. " +
	"Do not invent products or amounts."

// Client produces purchase summaries through the OpenAI chat API.
type Client struct {
	api   *openai.Client
	model string
}

// New returns a Client. baseURL may point at any OpenAI-compatible endpoint;
// empty keeps the default.
func New(apiKey, baseURL, model string, timeout time.Duration) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	if model == "" {
		model = DefaultModel
	}
	return &Client{api: openai.NewClientWithConfig(cfg), model: model}
}

// Summarize returns the model's summary of the purchase.
func (c *Client) Summarize(ctx context.Context, customerName string, items []model.LineItem, total decimal.Decimal) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.3,
		MaxTokens:   200,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: Prompt(customerName, items, total)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices in response")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("openai: empty summary")
	}
	return text, nil
}

// Prompt renders the user message describing the purchase.
func Prompt(customerName string, items []model.LineItem, total decimal.Decimal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Customer: %s\nProducts:\n", customerName)
	for _, it := range items {
		fmt.Fprintf(&b, "- %d x %s at %s each\n", it.Quantity, it.Name, model.Money(it.UnitPrice))
	}
	fmt.Fprintf(&b, "Total: %s MXN", model.Money(total))
	return b.String()
}
