package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Gemini talks to the Google Generative Language REST API. It is the only
// client that honors Options.SearchGrounding.
type Gemini struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewGemini(baseURL, apiKey string, client *http.Client) *Gemini {
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Gemini{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, client: client}
}

func (c *Gemini) Name() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      *float64        `json:"temperature,omitempty"`
	MaxOutputTokens  int             `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseJsonSchema,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
	Tools             []map[string]struct{}  `json:"tools,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (r *geminiResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

func (c *Gemini) request(prompt string, opts Options) geminiRequest {
	req := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     opts.Temperature,
			MaxOutputTokens: opts.MaxTokens,
		},
	}
	if opts.System != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: opts.System}}}
	}
	if opts.JSONMode || len(opts.Schema) > 0 {
		req.GenerationConfig.ResponseMimeType = "application/json"
		req.GenerationConfig.ResponseSchema = opts.Schema
	}
	// Grounding and JSON responses cannot be combined on this API.
	if opts.SearchGrounding && req.GenerationConfig.ResponseMimeType == "" {
		req.Tools = []map[string]struct{}{{"google_search": {}}}
	}
	return req
}

func (c *Gemini) do(ctx context.Context, model, method string, body geminiRequest, query url.Values) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/models/%s:%s", c.baseURL, url.PathEscape(model), method)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, errorFromResponse("gemini", resp)
	}
	return resp, nil
}

func (c *Gemini) Generate(ctx context.Context, model, prompt string, opts Options) (string, error) {
	resp, err := c.do(ctx, model, "generateContent", c.request(prompt, opts), nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("gemini: decoding response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("gemini: %s: %s", out.Error.Status, out.Error.Message)
	}
	return out.text(), nil
}

func (c *Gemini) GenerateStream(ctx context.Context, model, prompt string, opts Options) (<-chan Chunk, error) {
	resp, err := c.do(ctx, model, "streamGenerateContent", c.request(prompt, opts), url.Values{"alt": {"sse"}})
	if err != nil {
		return nil, err
	}

	ch := make(chan Chunk)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		err := readSSE(resp.Body, func(data string) error {
			var ev geminiResponse
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				return nil
			}
			if ev.Error != nil {
				return fmt.Errorf("%s: %s", ev.Error.Status, ev.Error.Message)
			}
			if text := ev.text(); text != "" && !send(ctx, ch, Chunk{Text: text}) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil {
			send(ctx, ch, Chunk{Err: fmt.Errorf("gemini: stream: %w", err)})
		}
	}()
	return ch, nil
}
