// Package stage holds the individual generation steps of the course
// pipeline. Stages read a Context and return a Result; they never modify
// the outline they are given.
package stage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jorge-barreto/syllabot/internal/course"
)

var (
	// ErrNoChapters means the outline response could not be turned into
	// at least one chapter.
	ErrNoChapters = errors.New("no chapters found in response")

	// ErrNoRecords means a section stream produced nothing usable.
	ErrNoRecords = errors.New("no records found in response")

	// ErrNoContent means a section stage ran before the chapter was written.
	ErrNoContent = errors.New("chapter content missing")
)

type Stage interface {
	Name() string
	Run(ctx context.Context, pc *Context) (*Result, error)
}

// Context is the read-only view of a course a stage works from.
type Context struct {
	Config     course.Config
	CourseName string
	Outline    *course.Outline
	ChapterID  string
	Caps       *Capabilities
}

// Chapter returns the active chapter.
func (pc *Context) Chapter() (*course.Chapter, error) {
	if pc.Outline == nil {
		return nil, errors.New("no outline loaded")
	}
	ch := pc.Outline.Chapter(pc.ChapterID)
	if ch == nil {
		return nil, fmt.Errorf("chapter %q not found", pc.ChapterID)
	}
	return ch, nil
}

// Result carries whatever a stage produced. Fields a stage does not
// produce are left zero.
type Result struct {
	Outline    *course.Outline
	CourseName string
	Content    string
	Exercises  []course.Exercise
	Quiz       []course.QuizQuestion

	// Markdown is the formatted section text to append to chapter content.
	Markdown string
}

// Set bundles the five pipeline stages.
type Set struct {
	Outline   Stage
	Naming    Stage
	Writer    Stage
	Exercises Stage
	Quiz      Stage
}

// Defaults returns the standard stage set.
func Defaults() Set {
	return Set{
		Outline:   Outline{},
		Naming:    Naming{},
		Writer:    Writer{},
		Exercises: Exercises{},
		Quiz:      Quiz{},
	}
}

// Section returns the stage that produces s.
func (s Set) Section(sec course.Section) (Stage, error) {
	switch sec {
	case course.SectionExercises:
		return s.Exercises, nil
	case course.SectionQuiz:
		return s.Quiz, nil
	}
	return nil, fmt.Errorf("unknown section %q", sec)
}
