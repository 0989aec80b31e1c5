package course

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Chapter statuses.
const (
	StatusPending    = "pending"
	StatusGenerating = "generating"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Difficulty levels for exercises.
const (
	Easy   = "easy"
	Medium = "medium"
	Hard   = "hard"
)

// QuizOptions is the fixed number of answer options per quiz question.
const QuizOptions = 6

// Section names a non-fatal chapter sub-stage.
type Section string

const (
	SectionExercises Section = "exercises"
	SectionQuiz      Section = "quiz"
)

// ParseSection maps a user-supplied section name to a Section.
func ParseSection(s string) (Section, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exercises", "exercise":
		return SectionExercises, nil
	case "quiz":
		return SectionQuiz, nil
	}
	return "", fmt.Errorf("unknown section %q (want exercises or quiz)", s)
}

type Exercise struct {
	Question   string `json:"question"`
	Difficulty string `json:"difficulty,omitempty"`
	Solution   string `json:"solution,omitempty"`
	Why        string `json:"why,omitempty"`
}

type QuizQuestion struct {
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	Explanation        string   `json:"explanation,omitempty"`
}

var optionPrefixRe = regexp.MustCompile(`^[A-Fa-f0-9][.)]\s*`)

// Normalize strips letter prefixes from options, pads or truncates them to
// exactly QuizOptions entries, and resets an out-of-range answer index to 0.
func (q *QuizQuestion) Normalize() {
	opts := make([]string, 0, QuizOptions)
	for _, o := range q.Options {
		opts = append(opts, optionPrefixRe.ReplaceAllString(strings.TrimSpace(o), ""))
	}
	for len(opts) < QuizOptions {
		opts = append(opts, fmt.Sprintf("Option %c", 'A'+len(opts)))
	}
	q.Options = opts[:QuizOptions]
	if q.CorrectAnswerIndex < 0 || q.CorrectAnswerIndex >= QuizOptions {
		q.CorrectAnswerIndex = 0
	}
}

type Chapter struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Order       int            `json:"order"`
	Content     string         `json:"content,omitempty"`
	Subtopics   []string       `json:"subtopics,omitempty"`
	Exercises   []Exercise     `json:"exercises,omitempty"`
	Quiz        []QuizQuestion `json:"quiz,omitempty"`
	Status      string         `json:"status"`
}

// Outline is the ordered chapter structure of a course.
type Outline struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Chapters    []*Chapter `json:"chapters"`
}

// Chapter returns the chapter with the given ID, or nil.
func (o *Outline) Chapter(id string) *Chapter {
	if o == nil {
		return nil
	}
	for _, ch := range o.Chapters {
		if ch.ID == id {
			return ch
		}
	}
	return nil
}

// Previous returns the chapter ordered directly before ch, or nil.
func (o *Outline) Previous(ch *Chapter) *Chapter {
	if o == nil || ch == nil {
		return nil
	}
	for _, c := range o.Chapters {
		if c.Order == ch.Order-1 {
			return c
		}
	}
	return nil
}

// ErrInvalidOutline wraps every Outline.Validate failure.
var ErrInvalidOutline = errors.New("invalid outline")

// Validate checks that chapter IDs are unique and orders run densely from 1.
func (o *Outline) Validate() error {
	if o == nil {
		return fmt.Errorf("%w: nil", ErrInvalidOutline)
	}
	if len(o.Chapters) == 0 {
		return fmt.Errorf("%w: no chapters", ErrInvalidOutline)
	}
	var errs []string
	seen := make(map[string]bool)
	for i, ch := range o.Chapters {
		if ch == nil {
			errs = append(errs, fmt.Sprintf("chapter %d: nil", i+1))
			continue
		}
		if ch.ID == "" {
			errs = append(errs, fmt.Sprintf("chapter %d: id is required", i+1))
		} else if seen[ch.ID] {
			errs = append(errs, fmt.Sprintf("chapter %d: duplicate id %q", i+1, ch.ID))
		}
		seen[ch.ID] = true
		if strings.TrimSpace(ch.Title) == "" {
			errs = append(errs, fmt.Sprintf("chapter %d: title is required", i+1))
		}
		if ch.Order != i+1 {
			errs = append(errs, fmt.Sprintf("chapter %d: order is %d, want %d", i+1, ch.Order, i+1))
		}
		switch ch.Status {
		case StatusPending, StatusGenerating, StatusCompleted, StatusFailed:
		default:
			errs = append(errs, fmt.Sprintf("chapter %d: unknown status %q", i+1, ch.Status))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  %s", ErrInvalidOutline, strings.Join(errs, "\n  "))
	}
	return nil
}

// Clone returns a deep copy of the outline.
func (o *Outline) Clone() *Outline {
	if o == nil {
		return nil
	}
	c := &Outline{Title: o.Title, Description: o.Description}
	for _, ch := range o.Chapters {
		cp := *ch
		cp.Subtopics = append([]string(nil), ch.Subtopics...)
		cp.Exercises = append([]Exercise(nil), ch.Exercises...)
		cp.Quiz = nil
		for _, q := range ch.Quiz {
			q.Options = append([]string(nil), q.Options...)
			cp.Quiz = append(cp.Quiz, q)
		}
		c.Chapters = append(c.Chapters, &cp)
	}
	return c
}
