package summary

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliamunaev/invoice-emission/internal/model"
)

var items = []model.LineItem{{Name: "Widget", UnitPrice: decimal.NewFromInt(100), Quantity: 2}}

func TestSummarize(t *testing.T) {
	t.Parallel()

	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  Acme SA bought 2 widgets.  "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := New("sk-test", srv.URL+"/v1", "", time.Second)
	text, err := c.Summarize(context.Background(), "Acme SA", items, decimal.NewFromInt(200))
	require.NoError(t, err)
	assert.Equal(t, "Acme SA bought 2 widgets.", text)

	assert.Equal(t, DefaultModel, got.Model)
	require.Len(t, got.Messages, 2)
	assert.Contains(t, got.Messages[1].Content, "2 x Widget at $100.00 each")
	assert.Contains(t, got.Messages[1].Content, "Total: $200.00 MXN")
}

func TestSummarize_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "provider_error", status: http.StatusTooManyRequests, body: `{"error":{"message":"rate limited","type":"requests"}}`},
		{name: "no_choices", status: http.StatusOK, body: `{"id":"c1","choices":[]}`},
		{name: "blank_content", status: http.StatusOK, body: `{"id":"c1","choices":[{"index":0,"message":{"role":"assistant","content":" "}}]}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New("sk-test", srv.URL+"/v1", "gpt-test", time.Second).
				Summarize(context.Background(), "Acme SA", items, decimal.NewFromInt(200))
			require.Error(t, err)
		})
	}
}

func TestPrompt(t *testing.T) {
	t.Parallel()

	want := "Customer: Acme SA\nProducts:\n- 2 x Widget at $100.00 each\nTotal: $200.00 MXN"
	assert.Equal(t, want, Prompt("Acme SA", items, decimal.NewFromInt(200)))
}
