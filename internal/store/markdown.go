package store

import (
	"fmt"
	"path/filepath"
	"strings"
)

// RenderMarkdown produces the plain markdown export of a course.
func RenderMarkdown(r *Record) string {
	var sb strings.Builder
	title := r.DisplayName()
	if r.Outline != nil && r.Outline.Title != "" {
		title = r.Outline.Title
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)
	if r.Outline != nil && r.Outline.Description != "" {
		fmt.Fprintf(&sb, "> %s\n\n", r.Outline.Description)
	}
	sb.WriteString("---\n\n")
	if r.Outline == nil {
		return sb.String()
	}
	for _, ch := range r.Outline.Chapters {
		fmt.Fprintf(&sb, "# %d. %s\n\n", ch.Order, ch.Title)
		if ch.Description != "" {
			fmt.Fprintf(&sb, "*%s*\n\n", ch.Description)
		}
		if ch.Content != "" {
			fmt.Fprintf(&sb, "%s\n\n", ch.Content)
		}
		sb.WriteString("---\n\n")
	}
	return sb.String()
}

// ExportMarkdown writes history/<key>.md for r, which must have been saved,
// and records the file name on r. The caller persists r afterwards.
func (s *Store) ExportMarkdown(r *Record) (string, error) {
	if r.Key == "" {
		return "", fmt.Errorf("course %s has not been saved", r.ID)
	}
	name := r.Key + ".md"
	if err := writeFileAtomic(filepath.Join(s.history, name), []byte(RenderMarkdown(r)), 0644); err != nil {
		return "", fmt.Errorf("writing markdown export: %w", err)
	}
	r.MarkdownFile = name
	return name, nil
}
