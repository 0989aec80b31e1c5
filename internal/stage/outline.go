package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jorge-barreto/syllabot/internal/course"
	"github.com/jorge-barreto/syllabot/internal/extract"
	"github.com/jorge-barreto/syllabot/internal/gateway"
)

// Outline asks the model for the chapter structure of a new course.
type Outline struct{}

func (Outline) Name() string { return "outline" }

var outlineSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "title": {"type": "string", "description": "The title of the entire course"},
    "description": {"type": "string", "description": "A brief summary of what the course covers"},
    "chapters": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "description": {"type": "string"},
          "subtopics": {"type": "array", "items": {"type": "string"}}
        },
        "required": ["title", "description", "subtopics"]
      }
    }
  },
  "required": ["title", "description", "chapters"]
}`)

func (s Outline) Run(ctx context.Context, pc *Context) (*Result, error) {
	cfg := pc.Config
	caps := pc.Caps
	caps.Think(s.Name(), fmt.Sprintf("Creating outline for topic: %q in %s", cfg.Topic, cfg.Language))

	vars := courseVars(cfg)
	audience := cfg.Audience
	if audience == "" {
		audience = "general"
	}
	vars["RESEARCH"] = caps.Ground(ctx, cfg.EnableSearch,
		fmt.Sprintf("comprehensive course curriculum for %q for %s level", cfg.Topic, audience))
	prompt := expand(outlinePrompt, vars)

	var raw json.RawMessage
	err := caps.JSON(ctx, s.Name(), prompt, gateway.Options{Schema: outlineSchema, MaxTokens: 8192}, &raw)
	if err != nil {
		return nil, fmt.Errorf("generating outline: %w", err)
	}
	outline, err := NormalizeOutline(raw, cfg.Topic)
	if err != nil {
		return nil, err
	}
	caps.Think(s.Name(), fmt.Sprintf("Outline created with %d chapters.", len(outline.Chapters)))
	return &Result{Outline: outline}, nil
}

// Alias tables, tried in order. Models answering in another language
// sometimes translate the keys despite being told not to.
var (
	chapterListKeys  = []string{"chapters", "content", "modules", "hoofdstukken", "sections", "parts"}
	chapterTitleKeys = []string{"title", "titel", "name", "naam", "hoofdstuk", "chapter"}
	chapterDescKeys  = []string{"description", "desc", "summary", "samenvatting", "inhoud", "content", "omschrijving"}
	subtopicKeys     = []string{"subtopics", "topics", "sections", "points", "onderwerpen", "subtitel", "inhoudsopgave"}
	outlineTitleKeys = []string{"title", "cursus_titel", "name"}
	outlineDescKeys  = []string{"description", "samenvatting"}
)

type chapterDraft struct {
	title       string
	description string
	subtopics   []string
}

// NormalizeOutline turns a loosely shaped outline response into an Outline
// with chapters ch-1..ch-N ordered 1..N. Chapters without a title are
// dropped; if none remain it returns ErrNoChapters.
func NormalizeOutline(raw json.RawMessage, topic string) (*course.Outline, error) {
	items := findChapterList(raw)
	var drafts []chapterDraft
	for _, it := range items {
		if d, ok := normalizeChapter(it); ok {
			drafts = append(drafts, d)
		}
	}
	if len(drafts) == 0 {
		return nil, ErrNoChapters
	}

	var top []extract.Field
	if extract.Kind(raw) == '{' {
		top, _ = extract.Fields(raw)
	}
	o := &course.Outline{
		Title:       firstString(top, outlineTitleKeys...),
		Description: firstString(top, outlineDescKeys...),
	}
	if o.Title == "" {
		o.Title = topic
	}
	if o.Description == "" {
		o.Description = "A course about " + topic
	}
	for i, d := range drafts {
		o.Chapters = append(o.Chapters, &course.Chapter{
			ID:          fmt.Sprintf("ch-%d", i+1),
			Title:       d.title,
			Description: d.description,
			Order:       i + 1,
			Subtopics:   d.subtopics,
			Status:      course.StatusPending,
		})
	}
	return o, nil
}

// findChapterList looks for the chapter array: first under a known key at
// the top level, then in any array whose first element looks like a
// chapter or any nested object holding a known key, then the value itself.
func findChapterList(raw json.RawMessage) []json.RawMessage {
	if items, ok := extract.Array(raw); ok {
		if len(items) > 0 && looksLikeChapter(items[0]) {
			return items
		}
		return nil
	}
	fields, err := extract.Fields(raw)
	if err != nil {
		return nil
	}
	if items := directList(fields); items != nil {
		return items
	}
	for _, f := range fields {
		if items, ok := extract.Array(f.Value); ok {
			if len(items) > 0 && looksLikeChapter(items[0]) {
				return items
			}
			continue
		}
		if extract.Kind(f.Value) == '{' {
			nested, err := extract.Fields(f.Value)
			if err != nil {
				continue
			}
			if items := directList(nested); items != nil {
				return items
			}
		}
	}
	return nil
}

func directList(fields []extract.Field) []json.RawMessage {
	for _, key := range chapterListKeys {
		for _, f := range fields {
			if f.Key != key {
				continue
			}
			if items, ok := extract.Array(f.Value); ok {
				return items
			}
		}
	}
	return nil
}

func looksLikeChapter(raw json.RawMessage) bool {
	_, ok := normalizeChapter(raw)
	return ok
}

func normalizeChapter(raw json.RawMessage) (chapterDraft, bool) {
	if extract.Kind(raw) != '{' {
		return chapterDraft{}, false
	}
	fields, err := extract.Fields(raw)
	if err != nil {
		return chapterDraft{}, false
	}
	d := chapterDraft{
		title:       firstString(fields, chapterTitleKeys...),
		description: firstString(fields, chapterDescKeys...),
	}
	if d.title == "" {
		return chapterDraft{}, false
	}
	if d.description == "" {
		d.description = d.title
	}
	for _, key := range subtopicKeys {
		v, ok := lookup(fields, key)
		if !ok {
			continue
		}
		items, ok := extract.Array(v)
		if !ok {
			continue
		}
		d.subtopics = make([]string, 0, len(items))
		for _, it := range items {
			d.subtopics = append(d.subtopics, scalarString(it))
		}
		break
	}
	return d, true
}

func lookup(fields []extract.Field, key string) (json.RawMessage, bool) {
	for _, f := range fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// firstString returns the first alias holding a non-empty scalar.
func firstString(fields []extract.Field, keys ...string) string {
	for _, key := range keys {
		v, ok := lookup(fields, key)
		if !ok {
			continue
		}
		switch extract.Kind(v) {
		case '"', '0', 't':
			if s := strings.TrimSpace(scalarString(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

func scalarString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
