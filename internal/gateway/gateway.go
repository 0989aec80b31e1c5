// Package gateway is the contract between the pipeline and a language-model
// provider, plus HTTP clients for the providers syllabot speaks to.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Options tune a single generation call.
type Options struct {
	System      string
	Temperature *float64
	MaxTokens   int

	// JSONMode asks for a JSON response. Schema, when set, narrows it to a
	// specific shape on providers that support structured output.
	JSONMode bool
	Schema   json.RawMessage

	// SearchGrounding lets providers with built-in web search use it.
	SearchGrounding bool
}

// Temperature is a convenience for setting Options.Temperature.
func Temperature(t float64) *float64 { return &t }

// Chunk is one streamed text delta. A chunk with Err set is the last one
// sent before the channel closes.
type Chunk struct {
	Text string
	Err  error
}

// Gateway generates text from a prompt. Implementations must be safe for
// concurrent use.
type Gateway interface {
	Name() string
	Generate(ctx context.Context, model, prompt string, opts Options) (string, error)
	GenerateStream(ctx context.Context, model, prompt string, opts Options) (<-chan Chunk, error)
}

// HTTPError is a non-2xx response from a provider.
type HTTPError struct {
	Provider string
	Status   int
	Body     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.Status, e.Body)
}

// StatusCode lets retry classification see the HTTP status.
func (e *HTTPError) StatusCode() int { return e.Status }

// Temporary reports whether retrying the same request could succeed.
func (e *HTTPError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests ||
		e.Status == http.StatusRequestTimeout ||
		e.Status >= 500
}

func errorFromResponse(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &HTTPError{Provider: provider, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// Collect drains a stream into a single string, calling onDelta for each
// chunk if it is non-nil. A stream cut short by ctx reports ctx.Err().
func Collect(ctx context.Context, ch <-chan Chunk, onDelta func(string)) (string, error) {
	var sb strings.Builder
	for c := range ch {
		if c.Err != nil {
			return sb.String(), c.Err
		}
		sb.WriteString(c.Text)
		if onDelta != nil && c.Text != "" {
			onDelta(c.Text)
		}
	}
	return sb.String(), ctx.Err()
}

// send delivers c unless ctx is done first.
func send(ctx context.Context, ch chan<- Chunk, c Chunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
