package ux

import (
	"fmt"
	"io"

	"github.com/jorge-barreto/syllabot/internal/course"
	"github.com/jorge-barreto/syllabot/internal/store"
)

// RenderCourse prints the status of every chapter of a course.
func RenderCourse(w io.Writer, rec *store.Record) {
	fmt.Fprintf(w, "%sCourse:%s  %s\n", Bold, Reset, rec.DisplayName())
	fmt.Fprintf(w, "%sKey:%s     %s\n", Bold, Reset, rec.Key)
	fmt.Fprintf(w, "%sTopic:%s   %s (%s, %s)\n", Bold, Reset, rec.Config.Topic, rec.Config.Language, rec.Config.WritingStyle)
	if rec.Outline == nil {
		fmt.Fprintf(w, "\n  %s(no outline)%s\n", Dim, Reset)
		return
	}

	fmt.Fprintf(w, "\n%sChapters:%s\n", Bold, Reset)
	for _, ch := range rec.Outline.Chapters {
		dur := rec.Timing.Last("chapter-writer", ch.ID)
		if dur != "" {
			dur = "(" + dur + ")"
		}
		fmt.Fprintf(w, "  %s%2d%s  %-40s %s  %s%s\n",
			Dim, ch.Order, Reset, ch.Title, statusLabel(ch.Status), sectionsLabel(ch), dur)
	}

	if rec.MarkdownFile != "" {
		fmt.Fprintf(w, "\n%sExport:%s  %s\n", Bold, Reset, rec.MarkdownFile)
	}
	fmt.Fprintln(w)
}

func statusLabel(s string) string {
	switch s {
	case course.StatusCompleted:
		return Green + "done      " + Reset
	case course.StatusFailed:
		return Red + "failed    " + Reset
	case course.StatusGenerating:
		return Yellow + "generating" + Reset
	}
	return Dim + "pending   " + Reset
}

func sectionsLabel(ch *course.Chapter) string {
	if ch.Status != course.StatusCompleted {
		return ""
	}
	return fmt.Sprintf("%s%d exercises, %d quiz%s ", Dim, len(ch.Exercises), len(ch.Quiz), Reset)
}

// RenderHistory prints stored courses, newest first.
func RenderHistory(w io.Writer, list []store.Summary) {
	if len(list) == 0 {
		fmt.Fprintf(w, "%s(no courses)%s\n", Dim, Reset)
		return
	}
	for _, s := range list {
		name := s.CourseName
		if name == "" {
			name = s.Topic
		}
		md := Dim + "no export" + Reset
		if s.MDStatus == "exists" {
			md = Green + s.MarkdownFile + Reset
		}
		fmt.Fprintf(w, "%s%s%s  %s%s%s  %d/%d chapters  %s\n",
			Dim, s.Timestamp.Format("2006-01-02 15:04"), Reset, Bold, name, Reset, s.Completed, s.Chapters, md)
		fmt.Fprintf(w, "  %s%s%s\n", Dim, s.ID, Reset)
	}
}
