package stage

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jorge-barreto/syllabot/internal/course"
	"github.com/jorge-barreto/syllabot/internal/gateway"
)

// Writer streams the prose of the active chapter.
type Writer struct{}

func (Writer) Name() string { return "chapter-writer" }

var (
	headingRe   = regexp.MustCompile(`(?m)^#{1,6}\s+.+`)
	leadingH1Re = regexp.MustCompile(`^#\s+.*(\r?\n|\r)\s*`)
)

func (s Writer) Run(ctx context.Context, pc *Context) (*Result, error) {
	ch, err := pc.Chapter()
	if err != nil {
		return nil, err
	}
	cfg := pc.Config
	caps := pc.Caps
	caps.Think(s.Name(), fmt.Sprintf("Writing chapter: %s", ch.Title))

	vars := courseVars(cfg)
	vars["COURSE_TITLE"] = pc.Outline.Title
	vars["ORDER"] = fmt.Sprint(ch.Order)
	vars["CHAPTER_TITLE"] = ch.Title
	vars["CHAPTER_DESCRIPTION"] = ch.Description
	vars["FULL_OUTLINE"] = fullOutline(pc.Outline)
	vars["PREVIOUS"] = previousStructure(pc.Outline.Previous(ch))
	vars["SUBTOPICS"] = subtopicBlock(ch.Subtopics)
	vars["RESEARCH"] = caps.Ground(ctx, cfg.EnableSearch,
		fmt.Sprintf("detailed information about %q in the context of a course on %q", ch.Title, cfg.Topic))
	if cfg.EnableSearch {
		vars["SOURCES"] = "- Use the search results to verify facts and end the chapter with a \"Sources\" section of `- [Title](URL)` bullets."
	}
	prompt := expand(writerPrompt, vars)

	opts := gateway.Options{SearchGrounding: cfg.EnableSearch, MaxTokens: 8192}
	content, err := caps.Stream(ctx, s.Name(), prompt, opts, func(delta string) {
		caps.Relay(ch.ID, delta)
	})
	if err != nil {
		return nil, fmt.Errorf("writing chapter %s: %w", ch.ID, err)
	}
	content = StripLeadingTitle(content)
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("writing chapter %s: model returned no content", ch.ID)
	}
	caps.Think(s.Name(), fmt.Sprintf("Chapter %d completed. Length: %d chars.", ch.Order, len(content)))
	return &Result{Content: content}, nil
}

// StripLeadingTitle removes a single first-level heading at the very start
// of content. Deeper headings are kept.
func StripLeadingTitle(content string) string {
	return leadingH1Re.ReplaceAllString(content, "")
}

func fullOutline(o *course.Outline) string {
	lines := make([]string, 0, len(o.Chapters))
	for _, c := range o.Chapters {
		lines = append(lines, fmt.Sprintf("- %s: %s", c.Title, c.Description))
	}
	return strings.Join(lines, "\n")
}

func previousStructure(prev *course.Chapter) string {
	if prev == nil || prev.Content == "" {
		return ""
	}
	headers := headingRe.FindAllString(prev.Content, -1)
	if len(headers) == 0 {
		return ""
	}
	return fmt.Sprintf("\nPREVIOUS CHAPTER STRUCTURE (Chapter %d: %q):\nThe following topics were covered in the previous chapter:\n%s\n",
		prev.Order, prev.Title, strings.Join(headers, "\n"))
}

func subtopicBlock(subtopics []string) string {
	if len(subtopics) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\nCHAPTER STRUCTURE:\nThe chapter MUST cover the following key topics in order:\n")
	for _, s := range subtopics {
		sb.WriteString("- " + s + "\n")
	}
	return sb.String()
}
