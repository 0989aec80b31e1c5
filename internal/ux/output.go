package ux

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jorge-barreto/syllabot/internal/course"
	"github.com/jorge-barreto/syllabot/internal/event"
)

// ANSI color helpers
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
)

var now = time.Now

func timestamp() string {
	return now().Format("15:04:05")
}

// Terminal renders pipeline events as human-readable lines. Streamed
// chapter text is printed as it arrives unless Quiet is set.
type Terminal struct {
	Quiet bool

	mu      sync.Mutex
	w       io.Writer
	midLine bool
	titles  map[string]string
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w, titles: make(map[string]string)}
}

// Remember records chapter titles so later events can name chapters.
func (t *Terminal) Remember(o *course.Outline) {
	if o == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range o.Chapters {
		t.titles[ch.ID] = fmt.Sprintf("%d. %s", ch.Order, ch.Title)
	}
}

func (t *Terminal) chapterName(id string) string {
	if title, ok := t.titles[id]; ok {
		return title
	}
	return id
}

// line prints one timestamped line, first ending any streamed text.
func (t *Terminal) line(format string, args ...any) {
	if t.midLine {
		fmt.Fprintln(t.w)
		t.midLine = false
	}
	fmt.Fprintf(t.w, "%s[%s]%s  ", Dim, timestamp(), Reset)
	fmt.Fprintf(t.w, format, args...)
	fmt.Fprintln(t.w)
}

func (t *Terminal) Emit(name string, payload any) {
	if o, ok := payload.(event.Outline); ok {
		t.Remember(o.Outline)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	switch p := payload.(type) {
	case event.Progress:
		t.progress(p)
	case event.Thinking:
		t.line("%s· %s:%s %s", Dim, p.Agent, Reset, p.Message)
	case event.Chunk:
		if t.Quiet || p.Chunk == "" {
			return
		}
		fmt.Fprint(t.w, p.Chunk)
		t.midLine = !strings.HasSuffix(p.Chunk, "\n")
	case event.ChapterDone:
		t.line("%s✓ Chapter %s complete%s", Green, t.chapterName(p.Chapter.ID), Reset)
		if len(p.SectionFailures) > 0 {
			names := make([]string, len(p.SectionFailures))
			for i, s := range p.SectionFailures {
				names[i] = string(s)
			}
			t.line("%s⚠ Sections failed: %s (retry with: syllabot retry)%s", Yellow, strings.Join(names, ", "), Reset)
		}
	case event.SectionResult:
		if name == event.ChapterSectionFailed {
			t.line("%s⚠ %s for chapter %s failed: %s%s", Yellow, p.Section, t.chapterName(p.ChapterID), p.Message, Reset)
		} else {
			t.line("%s✓ %s for chapter %s regenerated%s", Green, p.Section, t.chapterName(p.ChapterID), Reset)
		}
	case event.Outline:
		t.line("%s%s══ Outline ready: %s ══%s", Bold, Green, p.CourseName, Reset)
		if p.Outline != nil {
			for _, ch := range p.Outline.Chapters {
				fmt.Fprintf(t.w, "  %s%2d%s  %s\n", Dim, ch.Order, Reset, ch.Title)
			}
		}
		fmt.Fprintf(t.w, "\n%sCourse:%s %s\n", Bold, Reset, p.CourseID)
	case event.Failure:
		if p.ChapterID != "" {
			t.line("%s✗ Chapter %s failed: %s%s", Red, t.chapterName(p.ChapterID), p.Message, Reset)
		} else {
			t.line("%s✗ %s%s", Red, p.Message, Reset)
		}
	default:
		t.line("%s%s%s", Dim, name, Reset)
	}
}

func (t *Terminal) progress(p event.Progress) {
	if p.Status != event.StatusGenerating {
		return
	}
	if t.midLine {
		fmt.Fprintln(t.w)
	}
	label := "Outline"
	if p.Stage == event.StageChapter {
		label = "Chapter " + t.chapterName(p.ChapterID)
	}
	fmt.Fprintf(t.w, "\n%s[%s]%s %s══════════════════════════════════════%s\n", Dim, timestamp(), Reset, Cyan, Reset)
	fmt.Fprintf(t.w, "%s[%s]%s  %s%s%s\n", Dim, timestamp(), Reset, Bold, label, Reset)
	fmt.Fprintf(t.w, "%s[%s]%s %s══════════════════════════════════════%s\n", Dim, timestamp(), Reset, Cyan, Reset)
	t.midLine = false
}

// ResumeHint prints the command that continues a course.
func ResumeHint(w io.Writer, courseID string) {
	fmt.Fprintf(w, "\n%sResume:%s syllabot chapter %s --all\n", Yellow, Reset, courseID)
}
