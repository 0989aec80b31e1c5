package ux

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/jorge-barreto/syllabot/internal/course"
	"github.com/jorge-barreto/syllabot/internal/event"
	"github.com/jorge-barreto/syllabot/internal/store"
)

func fixedClock(t *testing.T) {
	t.Helper()
	prev := now
	now = func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = prev })
}

func TestTerminal_StreamThenLine(t *testing.T) {
	fixedClock(t)
	var buf bytes.Buffer
	term := NewTerminal(&buf)
	term.Remember(&course.Outline{Chapters: []*course.Chapter{{ID: "ch-1", Title: "Basics", Order: 1}}})

	term.Emit(event.StreamChunk, event.Chunk{ChapterID: "ch-1", Chunk: "Hello"})
	term.Emit(event.StreamChunk, event.Chunk{ChapterID: "ch-1", Chunk: " world"})
	term.Emit(event.ChapterCompleted, event.ChapterDone{
		Chapter:         &course.Chapter{ID: "ch-1"},
		SectionFailures: []course.Section{course.SectionQuiz},
	})

	out := buf.String()
	if !strings.HasPrefix(out, "Hello world\n") {
		t.Fatalf("streamed text not terminated:\n%q", out)
	}
	if !strings.Contains(out, "Chapter 1. Basics complete") {
		t.Fatalf("missing completion line:\n%s", out)
	}
	if !strings.Contains(out, "Sections failed: quiz") {
		t.Fatalf("missing failure line:\n%s", out)
	}
}

func TestTerminal_Quiet(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)
	term.Quiet = true
	term.Emit(event.StreamChunk, event.Chunk{ChapterID: "ch-1", Chunk: "secret"})
	if buf.Len() != 0 {
		t.Fatalf("quiet terminal printed %q", buf.String())
	}
}

func TestTerminal_OutlineAndErrors(t *testing.T) {
	fixedClock(t)
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	term.Emit(event.OutlineReady, event.Outline{
		CourseID:   "20250101_120000_X",
		CourseName: "X",
		Outline:    &course.Outline{Chapters: []*course.Chapter{{ID: "ch-1", Title: "Basics", Order: 1}}},
	})
	term.Emit(event.Error, event.Failure{Message: "boom", ChapterID: "ch-1"})
	term.Emit(event.ChapterSectionFailed, event.SectionResult{ChapterID: "ch-1", Section: course.SectionExercises, Message: "no records"})

	out := buf.String()
	for _, want := range []string{"Outline ready: X", "20250101_120000_X", "Chapter 1. Basics failed: boom", "exercises for chapter 1. Basics failed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderCourse(t *testing.T) {
	var buf bytes.Buffer
	rec := &store.Record{
		Key:        "20250101_120000_X",
		CourseName: "X",
		Config:     course.Config{Topic: "X", Language: "English", WritingStyle: "academic"},
		Outline: &course.Outline{Chapters: []*course.Chapter{
			{ID: "ch-1", Title: "Basics", Order: 1, Status: course.StatusCompleted, Exercises: make([]course.Exercise, 2)},
			{ID: "ch-2", Title: "More", Order: 2, Status: course.StatusFailed},
		}},
	}
	RenderCourse(&buf, rec)
	out := buf.String()
	for _, want := range []string{"Basics", "done", "2 exercises", "failed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderHistory(t *testing.T) {
	var buf bytes.Buffer
	RenderHistory(&buf, nil)
	if !strings.Contains(buf.String(), "no courses") {
		t.Fatalf("got %q", buf.String())
	}

	buf.Reset()
	RenderHistory(&buf, []store.Summary{{ID: "k1", Topic: "Go", Chapters: 3, Completed: 1, MDStatus: "exists", MarkdownFile: "k1.md"}})
	out := buf.String()
	if !strings.Contains(out, "1/3 chapters") || !strings.Contains(out, "k1.md") {
		t.Fatalf("got %q", out)
	}
}
