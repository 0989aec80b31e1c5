package stage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jorge-barreto/syllabot/internal/event"
	"github.com/jorge-barreto/syllabot/internal/extract"
	"github.com/jorge-barreto/syllabot/internal/gateway"
	"github.com/jorge-barreto/syllabot/internal/retry"
)

// Researcher supplies web research as prompt context. It returns "" when
// nothing useful was found.
type Researcher interface {
	Research(ctx context.Context, query string) string
}

// Capabilities is what a stage may do besides pure computation: call the
// model, relay text to the client, and report what it is doing.
type Capabilities struct {
	Gateway  gateway.Gateway
	Model    string
	Retry    *retry.Policy
	Sink     event.Sink
	Research Researcher
	Logger   *zap.Logger
}

func (c *Capabilities) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *Capabilities) sink() event.Sink {
	if c.Sink == nil {
		return event.Discard
	}
	return c.Sink
}

func (c *Capabilities) policy() *retry.Policy {
	if c.Retry == nil {
		c.Retry = retry.New(retry.DefaultOptions(), c.logger())
	}
	return c.Retry
}

// classify stops retries for provider errors that will not go away.
func classify(err error) error {
	var herr *gateway.HTTPError
	if errors.As(err, &herr) && !herr.Temporary() {
		return retry.Permanent(err)
	}
	return err
}

// Text runs a non-streaming call under the retry policy.
func (c *Capabilities) Text(ctx context.Context, label, prompt string, opts gateway.Options) (string, error) {
	c.logger().Debug("generating text", zap.String("stage", label), zap.String("model", c.Model))
	return retry.Do(ctx, c.policy(), label, func(ctx context.Context) (string, error) {
		text, err := c.Gateway.Generate(ctx, c.Model, prompt, opts)
		return text, classify(err)
	})
}

// JSON runs a non-streaming JSON call and decodes the response into v.
// Decoding failures are not retried.
func (c *Capabilities) JSON(ctx context.Context, label, prompt string, opts gateway.Options, v any) error {
	opts.JSONMode = true
	text, err := c.Text(ctx, label, prompt, opts)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(extract.StripFences(text)), v); err != nil {
		c.logger().Warn("unparseable JSON response", zap.String("stage", label), zap.String("response", truncate(text, 500)))
		return fmt.Errorf("parsing JSON response: %w", err)
	}
	return nil
}

// Stream opens a streaming call, retrying only the opening request, and
// passes every delta to onDelta. It returns the full text.
func (c *Capabilities) Stream(ctx context.Context, label, prompt string, opts gateway.Options, onDelta func(string)) (string, error) {
	c.logger().Debug("streaming text", zap.String("stage", label), zap.String("model", c.Model))
	ch, err := retry.Do(ctx, c.policy(), label, func(ctx context.Context) (<-chan gateway.Chunk, error) {
		ch, err := c.Gateway.GenerateStream(ctx, c.Model, prompt, opts)
		return ch, classify(err)
	})
	if err != nil {
		return "", err
	}
	return gateway.Collect(ctx, ch, onDelta)
}

// Think reports a human-readable status line.
func (c *Capabilities) Think(agent, message string) {
	c.logger().Info(message, zap.String("agent", agent))
	c.sink().Emit(event.AgentThinking, event.Thinking{Agent: agent, Message: message})
}

// Relay forwards text for a chapter to the client as it is produced.
func (c *Capabilities) Relay(chapterID, text string) {
	if text == "" {
		return
	}
	c.sink().Emit(event.StreamChunk, event.Chunk{ChapterID: chapterID, Chunk: text})
}

// NativeSearch reports whether the active model grounds on web search by
// itself, making external research redundant.
func (c *Capabilities) NativeSearch() bool {
	if c.Gateway != nil && c.Gateway.Name() == "gemini" {
		return true
	}
	return strings.Contains(strings.ToLower(c.Model), "gemini")
}

// Ground returns research for query when search is enabled and the model
// cannot search on its own.
func (c *Capabilities) Ground(ctx context.Context, enabled bool, query string) string {
	if !enabled || c.Research == nil || c.NativeSearch() {
		return ""
	}
	return c.Research.Research(ctx, query)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
