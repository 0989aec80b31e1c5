// Package event defines the notifications the pipeline sends to a client
// while a course is being generated.
package event

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/jorge-barreto/syllabot/internal/course"
)

// Event names.
const (
	ProgressUpdate          = "progress:update"
	AgentThinking           = "agent:thinking"
	StreamChunk             = "stream:chunk"
	ChapterCompleted        = "chapter:completed"
	ChapterSectionCompleted = "chapter:section-completed"
	ChapterSectionFailed    = "chapter:section-failed"
	OutlineReady            = "outline:ready"
	Error                   = "error"

	// HistoryUpdated is broadcast by the server when stored courses change.
	HistoryUpdated = "history:updated"
)

// Progress stages and statuses carried by ProgressUpdate.
const (
	StageOutline = "outline"
	StageChapter = "chapter"

	StatusGenerating = "generating"
	StatusReady      = "ready"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type Progress struct {
	Stage     string `json:"stage"`
	Status    string `json:"status"`
	ChapterID string `json:"chapterId,omitempty"`
	Message   string `json:"message,omitempty"`
}

type Thinking struct {
	Agent   string `json:"agent"`
	Message string `json:"message"`
}

type Chunk struct {
	ChapterID string `json:"chapterId"`
	Chunk     string `json:"chunk"`
}

type ChapterDone struct {
	Chapter         *course.Chapter  `json:"chapter"`
	SectionFailures []course.Section `json:"sectionFailures"`
}

type SectionResult struct {
	ChapterID string         `json:"chapterId"`
	Section   course.Section `json:"section"`
	Message   string         `json:"message,omitempty"`
}

type Outline struct {
	CourseID   string          `json:"courseId"`
	Outline    *course.Outline `json:"outline"`
	CourseName string          `json:"courseName"`
}

type Failure struct {
	Message   string `json:"message"`
	ChapterID string `json:"chapterId,omitempty"`
}

// Sink receives events for one client. Implementations must tolerate
// concurrent calls.
type Sink interface {
	Emit(name string, payload any)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(name string, payload any)

func (f SinkFunc) Emit(name string, payload any) { f(name, payload) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(string, any) {})

// Multi fans every event out to each sink in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(name string, payload any) {
		for _, s := range sinks {
			if s != nil {
				s.Emit(name, payload)
			}
		}
	})
}

// Envelope is the wire form of an event.
type Envelope struct {
	Event string          `json:"event"`
	Time  time.Time       `json:"time"`
	Data  json.RawMessage `json:"data"`
}

// Encode wraps payload in an Envelope and marshals it.
func Encode(name string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: name, Time: time.Now().UTC(), Data: data})
}

// JSONLines writes one Envelope per line to w.
type JSONLines struct {
	mu sync.Mutex
	w  io.Writer
}

func NewJSONLines(w io.Writer) *JSONLines { return &JSONLines{w: w} }

func (j *JSONLines) Emit(name string, payload any) {
	line, err := Encode(name, payload)
	if err != nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.w.Write(append(line, '\n'))
}

// Recorded is one event captured by a Recorder.
type Recorded struct {
	Name    string
	Payload any
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

func (r *Recorder) Emit(name string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Name: name, Payload: payload})
}

// Events returns a copy of the captured events.
func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.events...)
}

// Named returns the payloads of every event called name.
func (r *Recorder) Named(name string) []any {
	var out []any
	for _, e := range r.Events() {
		if e.Name == name {
			out = append(out, e.Payload)
		}
	}
	return out
}

// Names returns the event names in order.
func (r *Recorder) Names() []string {
	var out []string
	for _, e := range r.Events() {
		out = append(out, e.Name)
	}
	return out
}
