package stage

import (
	"fmt"
	"strings"

	"github.com/jorge-barreto/syllabot/internal/course"
)

// ExerciseLabels are the localized words used when rendering exercises.
type ExerciseLabels struct {
	Item     string `json:"item,omitempty"`
	Solution string `json:"solution,omitempty"`
	Why      string `json:"why,omitempty"`
}

func defaultExerciseLabels() ExerciseLabels {
	return ExerciseLabels{Item: "Exercise", Solution: "Solution", Why: "Why"}
}

func (l ExerciseLabels) merge(o *ExerciseLabels) ExerciseLabels {
	if o == nil {
		return l
	}
	if o.Item != "" {
		l.Item = o.Item
	}
	if o.Solution != "" {
		l.Solution = o.Solution
	}
	if o.Why != "" {
		l.Why = o.Why
	}
	return l
}

// QuizLabels are the localized words used when rendering quiz questions.
type QuizLabels struct {
	Item        string `json:"item,omitempty"`
	Answer      string `json:"answer,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

func defaultQuizLabels() QuizLabels {
	return QuizLabels{Item: "Question", Answer: "Answer", Explanation: "Explanation"}
}

func (l QuizLabels) merge(o *QuizLabels) QuizLabels {
	if o == nil {
		return l
	}
	if o.Item != "" {
		l.Item = o.Item
	}
	if o.Answer != "" {
		l.Answer = o.Answer
	}
	if o.Explanation != "" {
		l.Explanation = o.Explanation
	}
	return l
}

// SectionHeader opens an exercises or quiz section below chapter content.
func SectionHeader(title string) string {
	return "\n\n---\n\n## " + title + "\n\n"
}

// difficultyStars maps a difficulty to one, two or three asterisks.
func difficultyStars(d string) string {
	switch d {
	case course.Medium:
		return "**"
	case course.Hard:
		return "***"
	default:
		return "*"
	}
}

// labelled renders "**Label:** value", moving a value that opens with a
// code fence onto its own paragraph.
func labelled(label, value string) string {
	sep := " "
	if strings.HasPrefix(strings.TrimSpace(value), "```") {
		sep = "\n\n"
	}
	return "**" + label + ":**" + sep + value
}

// FormatExercise renders exercise n (1-based) as markdown.
func FormatExercise(ex course.Exercise, n int, l ExerciseLabels) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### %s %d %s\n\n%s\n\n", l.Item, n, difficultyStars(ex.Difficulty), ex.Question)
	if ex.Solution != "" {
		sb.WriteString(labelled(l.Solution, ex.Solution) + "\n\n")
	}
	if ex.Why != "" {
		sb.WriteString(labelled(l.Why, ex.Why) + "\n\n")
	}
	return sb.String()
}

// FormatQuizQuestion renders question n (1-based) as markdown with lettered
// options and the answer letter.
func FormatQuizQuestion(q course.QuizQuestion, n int, l QuizLabels) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### %s %d\n\n%s\n\n", l.Item, n, q.Question)
	for i, opt := range q.Options {
		fmt.Fprintf(&sb, "- **%c.** %s\n", 'A'+i, opt)
	}
	fmt.Fprintf(&sb, "\n**%s: %c**", l.Answer, 'A'+q.CorrectAnswerIndex)
	if q.Explanation != "" {
		sb.WriteString("\n\n" + labelled(l.Explanation, q.Explanation))
	}
	sb.WriteString("\n\n")
	return sb.String()
}
