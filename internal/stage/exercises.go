package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jorge-barreto/syllabot/internal/course"
	"github.com/jorge-barreto/syllabot/internal/gateway"
)

// Exercises streams practical exercises for the active chapter.
type Exercises struct{}

func (Exercises) Name() string { return "exercises" }

type exerciseRecord struct {
	course.Exercise
	SectionTitle string          `json:"sectionTitle"`
	Labels       *ExerciseLabels `json:"labels"`
}

func validExercise(raw json.RawMessage) bool {
	var r exerciseRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return false
	}
	return strings.TrimSpace(r.Question) != "" && strings.TrimSpace(r.Solution) != ""
}

func (s Exercises) Run(ctx context.Context, pc *Context) (*Result, error) {
	ch, err := pc.Chapter()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(ch.Content) == "" {
		return nil, ErrNoContent
	}
	n := pc.Config.ExercisesPerChapter
	if n <= 0 {
		return &Result{}, nil
	}
	caps := pc.Caps
	caps.Think(s.Name(), fmt.Sprintf("Generating %d exercises for: %s", n, ch.Title))

	vars := courseVars(pc.Config)
	vars["CONTENT"] = truncate(ch.Content, maxContentPrompt)
	prompt := expand(exercisePrompt, vars)

	var (
		res    Result
		md     strings.Builder
		labels = defaultExerciseLabels()
	)
	err = streamRecords(ctx, caps, s.Name(), prompt, gateway.Options{MaxTokens: 8192}, validExercise, func(raw json.RawMessage) {
		var r exerciseRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			return
		}
		labels = labels.merge(r.Labels)
		ex := r.Exercise
		ex.Difficulty = strings.ToLower(strings.TrimSpace(ex.Difficulty))

		var out string
		if len(res.Exercises) == 0 {
			title := r.SectionTitle
			if title == "" {
				title = "Exercises"
			}
			out = SectionHeader(title)
		}
		res.Exercises = append(res.Exercises, ex)
		out += FormatExercise(ex, len(res.Exercises), labels)
		md.WriteString(out)
		caps.Relay(ch.ID, out)
	})
	if err != nil {
		return nil, fmt.Errorf("generating exercises: %w", err)
	}
	res.Markdown = md.String()
	caps.Think(s.Name(), fmt.Sprintf("Generated %d exercises.", len(res.Exercises)))
	return &res, nil
}
