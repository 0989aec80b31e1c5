package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// OpenAI talks to any OpenAI-compatible chat completions endpoint
// (OpenAI, OpenRouter, Groq, Cerebras).
type OpenAI struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewOpenAI(name, baseURL, apiKey string, client *http.Client) *OpenAI {
	if client == nil {
		client = http.DefaultClient
	}
	return &OpenAI{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

func (c *OpenAI) Name() string { return c.name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *OpenAI) request(model, prompt string, opts Options, stream bool) chatRequest {
	req := chatRequest{
		Model:       model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      stream,
	}
	if opts.System != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: opts.System})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: prompt})
	// Compatible endpoints only agree on json_object; prompts carry the shape.
	if opts.JSONMode || len(opts.Schema) > 0 {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return req
}

func (c *OpenAI) do(ctx context.Context, body chatRequest) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, errorFromResponse(c.name, resp)
	}
	return resp, nil
}

func (c *OpenAI) Generate(ctx context.Context, model, prompt string, opts Options) (string, error) {
	resp, err := c.do(ctx, c.request(model, prompt, opts, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%s: decoding response: %w", c.name, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("%s: %s", c.name, out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%s: response has no choices", c.name)
	}
	return out.Choices[0].Message.Content, nil
}

func (c *OpenAI) GenerateStream(ctx context.Context, model, prompt string, opts Options) (<-chan Chunk, error) {
	resp, err := c.do(ctx, c.request(model, prompt, opts, true))
	if err != nil {
		return nil, err
	}

	ch := make(chan Chunk)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		err := readSSE(resp.Body, func(data string) error {
			if data == "[DONE]" {
				return errStopStream
			}
			var ev chatResponse
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				return nil
			}
			if ev.Error != nil {
				return errors.New(ev.Error.Message)
			}
			for _, choice := range ev.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !send(ctx, ch, Chunk{Text: choice.Delta.Content}) {
					return ctx.Err()
				}
			}
			return nil
		})
		if err != nil {
			send(ctx, ch, Chunk{Err: fmt.Errorf("%s: stream: %w", c.name, err)})
		}
	}()
	return ch, nil
}
