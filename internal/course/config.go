package course

import (
	"errors"
	"fmt"
	"strings"
)

// Config is the immutable set of parameters a course is generated from.
type Config struct {
	Language                string `json:"language" yaml:"language"`
	Topic                   string `json:"topic" yaml:"topic"`
	Audience                string `json:"audience" yaml:"audience"`
	WritingStyle            string `json:"writingStyle" yaml:"writing-style"`
	MinChapters             int    `json:"minChapters" yaml:"min-chapters"`
	WordsPerChapter         int    `json:"wordsPerChapter" yaml:"words-per-chapter"`
	ExercisesPerChapter     int    `json:"exercisesPerChapter" yaml:"exercises-per-chapter"`
	QuizQuestionsPerChapter int    `json:"quizQuestionsPerChapter" yaml:"quiz-questions-per-chapter"`
	SpecialNeeds            string `json:"specialNeeds,omitempty" yaml:"special-needs"`
	GeneratedTopics         string `json:"generatedTopics,omitempty" yaml:"generated-topics"`
	MermaidDiagrams         bool   `json:"mermaidDiagrams,omitempty" yaml:"mermaid-diagrams"`
	EnableSearch            bool   `json:"enableSearch,omitempty" yaml:"enable-search"`
	Provider                string `json:"provider,omitempty" yaml:"provider"`
	Model                   string `json:"modelId,omitempty" yaml:"model"`
}

// Defaults holds the values used for fields a request leaves empty.
type Defaults struct {
	Language                string `json:"language" yaml:"language"`
	MinChapters             int    `json:"minChapters" yaml:"min-chapters"`
	WordsPerChapter         int    `json:"wordsPerChapter" yaml:"words-per-chapter"`
	ExercisesPerChapter     int    `json:"exercisesPerChapter" yaml:"exercises-per-chapter"`
	QuizQuestionsPerChapter int    `json:"quizQuestionsPerChapter" yaml:"quiz-questions-per-chapter"`
	WritingStyle            string `json:"writingStyle" yaml:"writing-style"`
}

// DefaultDefaults returns the built-in course defaults.
func DefaultDefaults() Defaults {
	return Defaults{
		Language:                "English",
		MinChapters:             8,
		WordsPerChapter:         3000,
		ExercisesPerChapter:     10,
		QuizQuestionsPerChapter: 10,
		WritingStyle:            "academic",
	}
}

// WithDefaults returns a copy of c with empty fields taken from d.
// Exercise and quiz counts are left alone: zero is a valid request.
func (c Config) WithDefaults(d Defaults) Config {
	if c.Language == "" {
		c.Language = d.Language
	}
	if c.WritingStyle == "" {
		c.WritingStyle = d.WritingStyle
	}
	if c.MinChapters == 0 {
		c.MinChapters = d.MinChapters
	}
	if c.WordsPerChapter == 0 {
		c.WordsPerChapter = d.WordsPerChapter
	}
	return c
}

// Validate reports every problem with the config at once.
func (c Config) Validate() error {
	var errs []string
	if strings.TrimSpace(c.Topic) == "" {
		errs = append(errs, "topic is required")
	}
	if c.MinChapters < 1 {
		errs = append(errs, fmt.Sprintf("min-chapters must be at least 1, got %d", c.MinChapters))
	}
	if c.WordsPerChapter < 0 {
		errs = append(errs, "words-per-chapter must not be negative")
	}
	if c.ExercisesPerChapter < 0 {
		errs = append(errs, "exercises-per-chapter must not be negative")
	}
	if c.QuizQuestionsPerChapter < 0 {
		errs = append(errs, "quiz-questions-per-chapter must not be negative")
	}
	if len(errs) > 0 {
		return errors.New("invalid course config:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}

// WritingStyle describes a selectable prose register.
type WritingStyle struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Styles lists the writing styles offered to clients.
var Styles = []WritingStyle{
	{ID: "academic", Name: "Academic", Description: "Formal, precise and well-referenced prose."},
	{ID: "conversational", Name: "Conversational", Description: "Friendly, direct and easy to follow."},
	{ID: "technical", Name: "Technical", Description: "Dense and exact, with code and specifications up front."},
	{ID: "storytelling", Name: "Storytelling", Description: "Concepts introduced through narratives and cases."},
	{ID: "socratic", Name: "Socratic", Description: "Guides the reader through questions before answers."},
}

// Languages lists the course languages offered to clients.
var Languages = []string{
	"English", "Dutch", "French", "German", "Spanish", "Italian", "Portuguese",
	"Chinese", "Japanese", "Korean", "Arabic", "Russian", "Hindi", "Turkish",
	"Polish", "Swedish", "Norwegian", "Danish", "Finnish", "Czech",
}
