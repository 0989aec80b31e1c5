package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jorge-barreto/syllabot/internal/course"
	"github.com/jorge-barreto/syllabot/internal/gateway"
)

// Quiz streams multiple-choice questions for the active chapter.
type Quiz struct{}

func (Quiz) Name() string { return "quiz" }

type quizRecord struct {
	course.QuizQuestion
	SectionTitle string      `json:"sectionTitle"`
	Labels       *QuizLabels `json:"labels"`
}

func validQuizQuestion(raw json.RawMessage) bool {
	var r quizRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return false
	}
	return strings.TrimSpace(r.Question) != "" && r.Options != nil
}

func (s Quiz) Run(ctx context.Context, pc *Context) (*Result, error) {
	ch, err := pc.Chapter()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(ch.Content) == "" {
		return nil, ErrNoContent
	}
	n := pc.Config.QuizQuestionsPerChapter
	if n <= 0 {
		return &Result{}, nil
	}
	caps := pc.Caps
	caps.Think(s.Name(), fmt.Sprintf("Generating %d quiz questions for: %s", n, ch.Title))

	vars := courseVars(pc.Config)
	vars["CONTENT"] = truncate(ch.Content, maxContentPrompt)
	prompt := expand(quizPrompt, vars)

	var (
		res    Result
		md     strings.Builder
		labels = defaultQuizLabels()
	)
	err = streamRecords(ctx, caps, s.Name(), prompt, gateway.Options{MaxTokens: 8192}, validQuizQuestion, func(raw json.RawMessage) {
		var r quizRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			return
		}
		labels = labels.merge(r.Labels)
		q := r.QuizQuestion
		q.Normalize()

		var out string
		if len(res.Quiz) == 0 {
			title := r.SectionTitle
			if title == "" {
				title = "Quiz"
			}
			out = SectionHeader(title)
		}
		res.Quiz = append(res.Quiz, q)
		out += FormatQuizQuestion(q, len(res.Quiz), labels)
		md.WriteString(out)
		caps.Relay(ch.ID, out)
	})
	if err != nil {
		return nil, fmt.Errorf("generating quiz: %w", err)
	}
	res.Markdown = md.String()
	caps.Think(s.Name(), fmt.Sprintf("Generated %d quiz questions.", len(res.Quiz)))
	return &res, nil
}
