package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/evernorth/melodie/internal/reliability"
)

// ChatCompleter produces one assistant reply for a user message plus the
// preceding turns. It backs the text-only fallback when voice transport is
// unavailable.
type ChatCompleter interface {
	Complete(ctx context.Context, turns []ChatTurn) (string, error)
}

// Synthesizer renders assistant text as 16-bit PCM audio for spoken replies
// in fallback mode. Optional.
type Synthesizer interface {
	Speak(ctx context.Context, text string) (pcm []byte, sampleRate int, err error)
}

// ChatTurn is one prior message in the completions conversation.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionsClient drives the standard chat completions endpoint.
type CompletionsClient struct {
	url          string
	model        string
	apiKey       string
	instructions string
	client       *http.Client
}

func NewCompletionsClient(url, model, apiKey, instructions string) *CompletionsClient {
	return &CompletionsClient{
		url:          url,
		model:        model,
		apiKey:       apiKey,
		instructions: instructions,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
}

type completionsRequest struct {
	Model    string     `json:"model"`
	Messages []ChatTurn `json:"messages"`
}

type completionsResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Configured reports whether the client has a key to authenticate with. An
// unconfigured client means fallback conversations run in demo mode.
func (c *CompletionsClient) Configured() bool {
	return strings.TrimSpace(c.apiKey) != ""
}

func (c *CompletionsClient) Complete(ctx context.Context, turns []ChatTurn) (string, error) {
	messages := make([]ChatTurn, 0, len(turns)+1)
	if c.instructions != "" {
		messages = append(messages, ChatTurn{Role: "system", Content: c.instructions})
	}
	messages = append(messages, turns...)

	body, err := json.Marshal(completionsRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("encode completions request: %w", err)
	}

	var reply string
	err = reliability.Retry(ctx, 3, 200*time.Millisecond, 2*time.Second, func() (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return false, fmt.Errorf("build completions request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			return true, fmt.Errorf("completions request: %w", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return true, fmt.Errorf("read completions response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return reliability.IsRetryableHTTPStatus(resp.StatusCode),
				fmt.Errorf("completions status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}

		var parsed completionsResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return false, fmt.Errorf("decode completions response: %w", err)
		}
		if len(parsed.Choices) == 0 {
			return false, fmt.Errorf("completions response has no choices")
		}
		reply = parsed.Choices[0].Message.Content
		return false, nil
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}
