package stage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jorge-barreto/syllabot/internal/course"
	"github.com/jorge-barreto/syllabot/internal/event"
	"github.com/jorge-barreto/syllabot/internal/gateway"
	"github.com/jorge-barreto/syllabot/internal/gateway/gatewaytest"
	"github.com/jorge-barreto/syllabot/internal/retry"
)

const (
	outlineMarker  = "Create a comprehensive course outline"
	namingMarker   = "You are naming a course"
	writerMarker   = "Write the FULL content for CHAPTER"
	exerciseMarker = "practical exercises"
	quizMarker     = "multiple-choice quiz questions"
)

func noSleep(context.Context, time.Duration) error { return nil }

func testCaps(gw gateway.Gateway, sink event.Sink) *Capabilities {
	return &Capabilities{
		Gateway: gw,
		Model:   "test-model",
		Retry:   retry.New(retry.Options{MaxRetries: 2}, nil).WithSleep(noSleep),
		Sink:    sink,
	}
}

func testConfig() course.Config {
	return course.Config{
		Topic:                   "Intro to X",
		Language:                "English",
		WritingStyle:            "academic",
		MinChapters:             3,
		WordsPerChapter:         1000,
		ExercisesPerChapter:     2,
		QuizQuestionsPerChapter: 1,
	}
}

func testOutline() *course.Outline {
	return &course.Outline{
		Title: "Intro to X",
		Chapters: []*course.Chapter{
			{ID: "ch-1", Title: "Basics", Description: "first", Order: 1, Status: course.StatusCompleted,
				Content: "## Setup\n\ntext\n\n### Install\n\nmore"},
			{ID: "ch-2", Title: "Types", Description: "second", Order: 2, Status: course.StatusPending,
				Subtopics: []string{"structs", "interfaces"}, Content: "## Types\n\nbody"},
		},
	}
}

func chunks(s string, size int) []string {
	var out []string
	for i := 0; i < len(s); i += size {
		out = append(out, s[i:min(i+size, len(s))])
	}
	return out
}

type fakeResearch struct {
	queries []string
}

func (f *fakeResearch) Research(_ context.Context, q string) string {
	f.queries = append(f.queries, q)
	return "RESEARCH-CONTEXT"
}

func TestOutlineStage(t *testing.T) {
	gw := gatewaytest.New().On(outlineMarker, gatewaytest.Reply{
		Text: "```json\n{\"title\":\"X 101\",\"description\":\"All about X\",\"chapters\":[" +
			"{\"title\":\"One\",\"description\":\"d1\",\"subtopics\":[\"a\",\"b\"]}," +
			"{\"title\":\"Two\",\"description\":\"d2\",\"subtopics\":[]}," +
			"{\"title\":\"Three\",\"description\":\"d3\",\"subtopics\":[\"c\"]}]}\n```",
	})
	rec := &event.Recorder{}
	pc := &Context{Config: testConfig(), Caps: testCaps(gw, rec)}

	res, err := Outline{}.Run(context.Background(), pc)
	if err != nil {
		t.Fatal(err)
	}
	o := res.Outline
	if o.Title != "X 101" || o.Description != "All about X" {
		t.Fatalf("outline = %+v", o)
	}
	if err := o.Validate(); err != nil {
		t.Fatal(err)
	}
	if len(o.Chapters) != 3 || o.Chapters[2].ID != "ch-3" || o.Chapters[2].Order != 3 {
		t.Fatalf("chapters = %+v", o.Chapters)
	}
	calls := gw.Calls()
	if len(calls) != 1 || !calls[0].Opts.JSONMode || len(calls[0].Opts.Schema) == 0 {
		t.Fatalf("calls = %+v", calls)
	}
	if !strings.Contains(calls[0].Prompt, "MINIMUM CHAPTERS: 3") {
		t.Fatalf("prompt missing chapter count:\n%s", calls[0].Prompt)
	}
	if len(rec.Named(event.AgentThinking)) == 0 {
		t.Fatal("expected thinking events")
	}
}

func TestOutlineStage_NoChapters(t *testing.T) {
	gw := gatewaytest.New().On(outlineMarker, gatewaytest.Reply{Text: `{"title":"Empty","chapters":[]}`})
	pc := &Context{Config: testConfig(), Caps: testCaps(gw, nil)}
	_, err := Outline{}.Run(context.Background(), pc)
	if !errors.Is(err, ErrNoChapters) {
		t.Fatalf("err = %v, want ErrNoChapters", err)
	}
}

func TestOutlineStage_ResearchOnlyWithoutNativeSearch(t *testing.T) {
	reply := gatewaytest.Reply{Text: `{"chapters":[{"title":"One"}]}`}
	cfg := testConfig()
	cfg.EnableSearch = true

	research := &fakeResearch{}
	gw := gatewaytest.New().On(outlineMarker, reply)
	caps := testCaps(gw, nil)
	caps.Research = research
	if _, err := (Outline{}).Run(context.Background(), &Context{Config: cfg, Caps: caps}); err != nil {
		t.Fatal(err)
	}
	if len(research.queries) != 1 || !strings.Contains(gw.Calls()[0].Prompt, "RESEARCH-CONTEXT") {
		t.Fatalf("research not used: %v", research.queries)
	}

	research = &fakeResearch{}
	caps = testCaps(gatewaytest.New().On(outlineMarker, reply), nil)
	caps.Model = "gemini-2.5-flash"
	caps.Research = research
	if _, err := (Outline{}).Run(context.Background(), &Context{Config: cfg, Caps: caps}); err != nil {
		t.Fatal(err)
	}
	if len(research.queries) != 0 {
		t.Fatal("research should be skipped for models with native search")
	}
}

func TestNamingStage(t *testing.T) {
	gw := gatewaytest.New().On(namingMarker, gatewaytest.Reply{Text: "\"X for “Everyone”\"\n"})
	res, err := Naming{}.Run(context.Background(), &Context{Config: testConfig(), Caps: testCaps(gw, nil)})
	if err != nil {
		t.Fatal(err)
	}
	if res.CourseName != "X for Everyone" {
		t.Fatalf("CourseName = %q", res.CourseName)
	}
	if c := gw.Calls()[0]; c.Opts.Temperature == nil || *c.Opts.Temperature != 0.3 {
		t.Fatalf("temperature = %v", c.Opts.Temperature)
	}
}

func TestNamingStage_FallsBackToTopic(t *testing.T) {
	cfg := testConfig()
	cfg.Topic = strings.Repeat("t", 70)
	gw := gatewaytest.New().On(namingMarker, gatewaytest.Reply{Err: errors.New("unavailable")})
	res, err := Naming{}.Run(context.Background(), &Context{Config: cfg, Caps: testCaps(gw, nil)})
	if err != nil {
		t.Fatalf("naming must not fail, got %v", err)
	}
	if res.CourseName != strings.Repeat("t", 60) {
		t.Fatalf("CourseName = %q", res.CourseName)
	}
	if n := len(gw.Calls()); n != 3 {
		t.Fatalf("calls = %d, want 3 (one try plus two retries)", n)
	}

	gw = gatewaytest.New().On(namingMarker, gatewaytest.Reply{Text: "\"\"\n"})
	res, _ = Naming{}.Run(context.Background(), &Context{Config: testConfig(), Caps: testCaps(gw, nil)})
	if res.CourseName != "Intro to X" {
		t.Fatalf("empty name should fall back, got %q", res.CourseName)
	}
}

func TestWriterStage(t *testing.T) {
	gw := gatewaytest.New().On(writerMarker, gatewaytest.Reply{
		Chunks: []string{"# Types\n\n", "## What ", "is a type\n\nBody."},
	})
	rec := &event.Recorder{}
	pc := &Context{Config: testConfig(), Outline: testOutline(), ChapterID: "ch-2", Caps: testCaps(gw, rec)}

	res, err := Writer{}.Run(context.Background(), pc)
	if err != nil {
		t.Fatal(err)
	}
	if res.Content != "## What is a type\n\nBody." {
		t.Fatalf("Content = %q", res.Content)
	}
	relayed := rec.Named(event.StreamChunk)
	if len(relayed) != 3 || relayed[0].(event.Chunk).Chunk != "# Types\n\n" || relayed[0].(event.Chunk).ChapterID != "ch-2" {
		t.Fatalf("relayed = %+v", relayed)
	}

	prompt := gw.Calls()[0].Prompt
	for _, want := range []string{"## Setup", "### Install", "- structs", "- interfaces", "CHAPTER 2: \"Types\""} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if pc.Outline.Chapter("ch-2").Content != "## Types\n\nbody" {
		t.Fatal("stage must not modify the outline")
	}
}

func TestWriterStage_StreamFailure(t *testing.T) {
	gw := gatewaytest.New().On(writerMarker, gatewaytest.Reply{Chunks: []string{"## Partial"}, Err: errors.New("connection reset")})
	pc := &Context{Config: testConfig(), Outline: testOutline(), ChapterID: "ch-2", Caps: testCaps(gw, nil)}
	if _, err := (Writer{}).Run(context.Background(), pc); err == nil {
		t.Fatal("expected error")
	}

	pc.ChapterID = "ch-9"
	if _, err := (Writer{}).Run(context.Background(), pc); err == nil {
		t.Fatal("expected error for unknown chapter")
	}
}

func TestStripLeadingTitle(t *testing.T) {
	tests := []struct{ in, want string }{
		{"# Title\n\n## Section", "## Section"},
		{"# Title\r\nText", "Text"},
		{"## Section\n# Later", "## Section\n# Later"},
		{"Intro\n# Title\n", "Intro\n# Title\n"},
	}
	for _, tt := range tests {
		if got := StripLeadingTitle(tt.in); got != tt.want {
			t.Errorf("StripLeadingTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
