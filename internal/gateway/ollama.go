package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const ollamaBaseURL = "http://localhost:11434"

// Ollama talks to a local Ollama server through /api/generate.
type Ollama struct {
	baseURL string
	client  *http.Client
}

func NewOllama(baseURL string, client *http.Client) *Ollama {
	if baseURL == "" {
		baseURL = ollamaBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Ollama{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (c *Ollama) Name() string { return "ollama" }

type ollamaRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Stream  bool            `json:"stream"`
	Format  json.RawMessage `json:"format,omitempty"`
	Options map[string]any  `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

func (c *Ollama) request(model, prompt string, opts Options, stream bool) ollamaRequest {
	req := ollamaRequest{Model: model, Prompt: prompt, System: opts.System, Stream: stream}
	switch {
	case len(opts.Schema) > 0:
		req.Format = opts.Schema
	case opts.JSONMode:
		req.Format = json.RawMessage(`"json"`)
	}
	if opts.Temperature != nil || opts.MaxTokens > 0 {
		req.Options = map[string]any{}
		if opts.Temperature != nil {
			req.Options["temperature"] = *opts.Temperature
		}
		if opts.MaxTokens > 0 {
			req.Options["num_predict"] = opts.MaxTokens
		}
	}
	return req
}

func (c *Ollama) do(ctx context.Context, body ollamaRequest) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, errorFromResponse("ollama", resp)
	}
	return resp, nil
}

func (c *Ollama) Generate(ctx context.Context, model, prompt string, opts Options) (string, error) {
	resp, err := c.do(ctx, c.request(model, prompt, opts, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ollama: decoding response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama: %s", out.Error)
	}
	return out.Response, nil
}

// GenerateStream reads the newline-delimited JSON objects Ollama streams.
func (c *Ollama) GenerateStream(ctx context.Context, model, prompt string, opts Options) (<-chan Chunk, error) {
	resp, err := c.do(ctx, c.request(model, prompt, opts, true))
	if err != nil {
		return nil, err
	}

	ch := make(chan Chunk)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var ev ollamaResponse
			if err := json.Unmarshal(line, &ev); err != nil {
				continue
			}
			if ev.Error != "" {
				send(ctx, ch, Chunk{Err: fmt.Errorf("ollama: %s", ev.Error)})
				return
			}
			if ev.Response != "" && !send(ctx, ch, Chunk{Text: ev.Response}) {
				return
			}
			if ev.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			send(ctx, ch, Chunk{Err: fmt.Errorf("ollama: stream: %w", err)})
		}
	}()
	return ch, nil
}
