// Package gatewaytest provides a programmable gateway for tests.
package gatewaytest

import (
	"context"
	"strings"
	"sync"

	"github.com/jorge-barreto/syllabot/internal/gateway"
)

// Call records one request made to a Scripted gateway.
type Call struct {
	Model  string
	Prompt string
	Opts   gateway.Options
	Stream bool
}

// Reply is one scripted response. Chunks are streamed in order; Err, if set,
// is returned by Generate or sent after the chunks on a stream. OpenErr
// fails the stream before any chunk is sent.
type Reply struct {
	Text    string
	Chunks  []string
	Err     error
	OpenErr error
}

// Scripted answers each call with the next reply whose matcher accepts the
// prompt. Rules are tried in the order they were added.
type Scripted struct {
	mu    sync.Mutex
	rules []*rule
	calls []Call
}

type rule struct {
	contains string
	replies  []Reply
}

func New() *Scripted { return &Scripted{} }

func (s *Scripted) Name() string { return "scripted" }

// On queues replies for prompts containing substr. The last reply repeats
// once the queue is drained.
func (s *Scripted) On(substr string, replies ...Reply) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, &rule{contains: substr, replies: replies})
	return s
}

// Calls returns every call made so far.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsMatching counts calls whose prompt contains substr.
func (s *Scripted) CallsMatching(substr string) int {
	n := 0
	for _, c := range s.Calls() {
		if strings.Contains(c.Prompt, substr) {
			n++
		}
	}
	return n
}

func (s *Scripted) next(c Call) Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
	for _, r := range s.rules {
		if !strings.Contains(c.Prompt, r.contains) || len(r.replies) == 0 {
			continue
		}
		reply := r.replies[0]
		if len(r.replies) > 1 {
			r.replies = r.replies[1:]
		}
		return reply
	}
	return Reply{Err: &gateway.HTTPError{Provider: "scripted", Status: 400, Body: "no scripted reply"}}
}

func (s *Scripted) Generate(ctx context.Context, model, prompt string, opts gateway.Options) (string, error) {
	r := s.next(Call{Model: model, Prompt: prompt, Opts: opts})
	if r.Err != nil {
		return "", r.Err
	}
	if r.Text == "" {
		return strings.Join(r.Chunks, ""), nil
	}
	return r.Text, nil
}

func (s *Scripted) GenerateStream(ctx context.Context, model, prompt string, opts gateway.Options) (<-chan gateway.Chunk, error) {
	r := s.next(Call{Model: model, Prompt: prompt, Opts: opts, Stream: true})
	if r.OpenErr != nil {
		return nil, r.OpenErr
	}
	chunks := r.Chunks
	if len(chunks) == 0 && r.Text != "" {
		chunks = []string{r.Text}
	}
	ch := make(chan gateway.Chunk, len(chunks)+1)
	for _, c := range chunks {
		ch <- gateway.Chunk{Text: c}
	}
	if r.Err != nil {
		ch <- gateway.Chunk{Err: r.Err}
	}
	close(ch)
	return ch, nil
}
