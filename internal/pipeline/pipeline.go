// Package pipeline sequences the generation stages for a course, tracks
// chapter status, persists the course after every transition, and reports
// progress to an event sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jorge-barreto/syllabot/internal/course"
	"github.com/jorge-barreto/syllabot/internal/event"
	"github.com/jorge-barreto/syllabot/internal/gateway"
	"github.com/jorge-barreto/syllabot/internal/retry"
	"github.com/jorge-barreto/syllabot/internal/stage"
	"github.com/jorge-barreto/syllabot/internal/store"
)

var (
	ErrChapterNotFound = errors.New("chapter not found")
	ErrNoContent       = errors.New("chapter has no content yet")
	ErrUnknownSection  = errors.New("unknown section")
	ErrNoOutline       = errors.New("course has no outline")
)

// Gateways resolves a provider name to a model gateway.
type Gateways interface {
	Get(provider string) (gateway.Gateway, error)
}

// Orchestrator runs course operations. All mutating operations on one
// course hold that course's lock for their whole duration.
type Orchestrator struct {
	Store    *store.Store
	Gateways Gateways
	Stages   stage.Set
	Retry    *retry.Policy
	Research stage.Researcher
	Defaults course.Defaults
	Logger   *zap.Logger

	// Provider and Model are used when a course config names neither.
	Provider string
	Model    string

	locks *store.Locker
}

// New returns an Orchestrator with the standard stages and course defaults.
func New(st *store.Store, gws Gateways, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		Store:    st,
		Gateways: gws,
		Stages:   stage.Defaults(),
		Retry:    retry.New(retry.DefaultOptions(), logger),
		Defaults: course.DefaultDefaults(),
		Logger:   logger,
		locks:    store.NewLocker(),
	}
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o *Orchestrator) lock(id string) func() {
	if o.locks == nil {
		o.locks = store.NewLocker()
	}
	return o.locks.Lock(id)
}

// capabilities builds the stage capability bundle for one operation.
func (o *Orchestrator) capabilities(cfg course.Config, sink event.Sink) (*stage.Capabilities, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = o.Provider
	}
	model := cfg.Model
	if model == "" {
		model = o.Model
	}
	if model == "" {
		return nil, fmt.Errorf("no model configured for provider %q", provider)
	}
	gw, err := o.Gateways.Get(provider)
	if err != nil {
		return nil, err
	}
	return &stage.Capabilities{
		Gateway:  gw,
		Model:    model,
		Retry:    o.Retry,
		Sink:     sink,
		Research: o.Research,
		Logger:   o.logger(),
	}, nil
}

// fail reports a fatal error to the client with exactly one error event
// and returns err.
func (o *Orchestrator) fail(sink event.Sink, chapterID string, err error) error {
	o.logger().Error("operation failed", zap.String("chapter", chapterID), zap.Error(err))
	sink.Emit(event.Error, event.Failure{Message: err.Error(), ChapterID: chapterID})
	return err
}

// persist saves rec, adopting the key the store returns.
func (o *Orchestrator) persist(rec *store.Record) error {
	if _, err := o.Store.Save(rec.Key, rec); err != nil {
		return fmt.Errorf("saving course: %w", err)
	}
	return nil
}

// persistQuietly saves rec on a path that is already failing; a save
// error is logged rather than returned.
func (o *Orchestrator) persistQuietly(rec *store.Record) {
	if err := o.persist(rec); err != nil {
		o.logger().Warn("failed to save course state", zap.String("course", rec.Key), zap.Error(err))
	}
}

// exportQuietly refreshes the markdown export of rec. The caller persists
// rec afterwards so the file name is recorded.
func (o *Orchestrator) exportQuietly(rec *store.Record) {
	if _, err := o.Store.ExportMarkdown(rec); err != nil {
		o.logger().Warn("failed to export markdown", zap.String("course", rec.Key), zap.Error(err))
	}
}

// acquire loads the course, takes its lock, and reloads it so the caller
// works on the latest persisted state. The returned unlock must be called.
func (o *Orchestrator) acquire(courseID string) (*store.Record, func(), error) {
	rec, err := o.Store.Load(courseID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading course %q: %w", courseID, err)
	}
	unlock := o.lock(rec.ID)
	fresh, err := o.Store.Load(rec.Key)
	if errors.Is(err, store.ErrNotFound) && rec.ID != "" {
		fresh, err = o.Store.Load(rec.ID)
	}
	if err != nil {
		unlock()
		return nil, nil, fmt.Errorf("loading course %q: %w", courseID, err)
	}
	if fresh.Outline == nil {
		unlock()
		return nil, nil, ErrNoOutline
	}
	if fresh.Timing == nil {
		fresh.Timing = &store.Timing{}
	}
	return fresh, unlock, nil
}

// StartOutline generates the outline and display name for a new course,
// saves it, and returns the course's storage key.
func (o *Orchestrator) StartOutline(ctx context.Context, cfg course.Config, sink event.Sink) (string, error) {
	if sink == nil {
		sink = event.Discard
	}
	cfg = cfg.WithDefaults(o.Defaults)
	if err := cfg.Validate(); err != nil {
		return "", o.fail(sink, "", err)
	}
	sink.Emit(event.ProgressUpdate, event.Progress{Stage: event.StageOutline, Status: event.StatusGenerating})

	caps, err := o.capabilities(cfg, sink)
	if err != nil {
		return "", o.outlineFailed(sink, err)
	}
	timing := &store.Timing{}
	pc := &stage.Context{Config: cfg, Caps: caps}

	timing.AddStart(o.Stages.Outline.Name(), "")
	res, err := o.Stages.Outline.Run(ctx, pc)
	timing.AddEnd(o.Stages.Outline.Name(), "", err != nil)
	if err == nil && (res == nil || res.Outline == nil) {
		err = stage.ErrNoChapters
	}
	if err == nil {
		err = res.Outline.Validate()
	}
	if err != nil {
		return "", o.outlineFailed(sink, fmt.Errorf("generating outline: %w", err))
	}
	outline := res.Outline
	pc.Outline = outline

	name := o.courseName(ctx, pc, timing)

	rec := &store.Record{
		Config:     cfg,
		Outline:    outline,
		CourseName: name,
		Timing:     timing,
	}
	key, err := o.Store.Save("", rec)
	if err != nil {
		return "", o.outlineFailed(sink, fmt.Errorf("saving course: %w", err))
	}
	o.logger().Info("outline ready",
		zap.String("course", key),
		zap.String("id", rec.ID),
		zap.Int("chapters", len(outline.Chapters)))

	sink.Emit(event.OutlineReady, event.Outline{CourseID: key, Outline: outline, CourseName: name})
	sink.Emit(event.ProgressUpdate, event.Progress{Stage: event.StageOutline, Status: event.StatusReady})
	return key, nil
}

func (o *Orchestrator) outlineFailed(sink event.Sink, err error) error {
	sink.Emit(event.ProgressUpdate, event.Progress{Stage: event.StageOutline, Status: event.StatusFailed, Message: err.Error()})
	return o.fail(sink, "", err)
}

// courseName runs the naming stage, falling back to the topic.
func (o *Orchestrator) courseName(ctx context.Context, pc *stage.Context, timing *store.Timing) string {
	fallback := truncateRunes(strings.TrimSpace(pc.Config.Topic), 60)
	if o.Stages.Naming == nil {
		return fallback
	}
	timing.AddStart(o.Stages.Naming.Name(), "")
	res, err := o.Stages.Naming.Run(ctx, pc)
	timing.AddEnd(o.Stages.Naming.Name(), "", err != nil)
	if err != nil || res == nil || strings.TrimSpace(res.CourseName) == "" {
		if err != nil {
			o.logger().Warn("course naming failed, using topic", zap.Error(err))
		}
		return fallback
	}
	return res.CourseName
}

// GenerateChapter writes one chapter and its sections. A content failure
// marks the chapter failed and skips the sections; a section failure is
// reported and the chapter still completes. It returns the course key.
func (o *Orchestrator) GenerateChapter(ctx context.Context, courseID, chapterID string, sink event.Sink) (string, error) {
	if sink == nil {
		sink = event.Discard
	}
	rec, unlock, err := o.acquire(courseID)
	if err != nil {
		return "", o.fail(sink, chapterID, err)
	}
	defer unlock()

	ch := rec.Outline.Chapter(chapterID)
	if ch == nil {
		return rec.Key, o.fail(sink, chapterID, fmt.Errorf("%w: %q", ErrChapterNotFound, chapterID))
	}
	caps, err := o.capabilities(rec.Config, sink)
	if err != nil {
		return rec.Key, o.fail(sink, chapterID, err)
	}

	ch.Status = course.StatusGenerating
	if err := o.persist(rec); err != nil {
		return rec.Key, o.fail(sink, chapterID, err)
	}
	sink.Emit(event.ProgressUpdate, event.Progress{Stage: event.StageChapter, Status: event.StatusGenerating, ChapterID: chapterID})

	pc := &stage.Context{
		Config:     rec.Config,
		CourseName: rec.CourseName,
		Outline:    rec.Outline,
		ChapterID:  chapterID,
		Caps:       caps,
	}

	writer := o.Stages.Writer
	rec.Timing.AddStart(writer.Name(), chapterID)
	res, err := writer.Run(ctx, pc)
	if err == nil && (res == nil || strings.TrimSpace(res.Content) == "") {
		err = stage.ErrNoContent
	}
	rec.Timing.AddEnd(writer.Name(), chapterID, err != nil)
	if err != nil {
		// A failed chapter carries no output from an earlier run.
		ch.Status = course.StatusFailed
		ch.Content, ch.Exercises, ch.Quiz = "", nil, nil
		o.persistQuietly(rec)
		sink.Emit(event.ProgressUpdate, event.Progress{Stage: event.StageChapter, Status: event.StatusFailed, ChapterID: chapterID})
		return rec.Key, o.fail(sink, chapterID, fmt.Errorf("writing chapter %q: %w", ch.Title, err))
	}
	ch.Content = res.Content
	ch.Exercises, ch.Quiz = nil, nil

	failures := []course.Section{}
	for _, sec := range []course.Section{course.SectionExercises, course.SectionQuiz} {
		if err := o.runSection(ctx, pc, rec, ch, sec); err != nil {
			failures = append(failures, sec)
			sink.Emit(event.ChapterSectionFailed, event.SectionResult{ChapterID: chapterID, Section: sec, Message: err.Error()})
		}
	}

	ch.Status = course.StatusCompleted
	o.exportQuietly(rec)
	if err := o.persist(rec); err != nil {
		return rec.Key, o.fail(sink, chapterID, err)
	}
	o.logger().Info("chapter completed",
		zap.String("course", rec.Key),
		zap.String("chapter", chapterID),
		zap.Int("section_failures", len(failures)),
		zap.String("duration", rec.Timing.Last(writer.Name(), chapterID)))

	sink.Emit(event.ChapterCompleted, event.ChapterDone{Chapter: ch, SectionFailures: failures})
	sink.Emit(event.ProgressUpdate, event.Progress{Stage: event.StageChapter, Status: event.StatusCompleted, ChapterID: chapterID})
	return rec.Key, nil
}

// runSection runs one section stage and applies its output to ch. On
// error ch is left untouched.
func (o *Orchestrator) runSection(ctx context.Context, pc *stage.Context, rec *store.Record, ch *course.Chapter, sec course.Section) error {
	st, err := o.Stages.Section(sec)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownSection, sec)
	}
	rec.Timing.AddStart(st.Name(), ch.ID)
	res, err := st.Run(ctx, pc)
	rec.Timing.AddEnd(st.Name(), ch.ID, err != nil)
	if err != nil {
		o.logger().Warn("section failed",
			zap.String("chapter", ch.ID),
			zap.String("section", string(sec)),
			zap.Error(err))
		return err
	}
	if res == nil {
		return nil
	}
	switch sec {
	case course.SectionExercises:
		if len(res.Exercises) > 0 {
			ch.Exercises = res.Exercises
		}
	case course.SectionQuiz:
		if len(res.Quiz) > 0 {
			ch.Quiz = res.Quiz
		}
	}
	ch.Content += res.Markdown
	return nil
}

// RetrySection regenerates the exercises or quiz of a completed chapter,
// appending the new text to its content. Chapter status is unchanged.
func (o *Orchestrator) RetrySection(ctx context.Context, courseID, chapterID string, sec course.Section, sink event.Sink) error {
	if sink == nil {
		sink = event.Discard
	}
	sectionFailed := func(err error) error {
		o.logger().Warn("section retry failed", zap.String("chapter", chapterID), zap.String("section", string(sec)), zap.Error(err))
		sink.Emit(event.ChapterSectionFailed, event.SectionResult{ChapterID: chapterID, Section: sec, Message: err.Error()})
		return err
	}
	if _, err := o.Stages.Section(sec); err != nil {
		return sectionFailed(fmt.Errorf("%w: %q", ErrUnknownSection, sec))
	}

	rec, unlock, err := o.acquire(courseID)
	if err != nil {
		return sectionFailed(err)
	}
	defer unlock()

	ch := rec.Outline.Chapter(chapterID)
	if ch == nil {
		return sectionFailed(fmt.Errorf("%w: %q", ErrChapterNotFound, chapterID))
	}
	if ch.Status != course.StatusCompleted || strings.TrimSpace(ch.Content) == "" {
		return sectionFailed(fmt.Errorf("%w: %q", ErrNoContent, chapterID))
	}
	caps, err := o.capabilities(rec.Config, sink)
	if err != nil {
		return sectionFailed(err)
	}
	caps.Think("Orchestrator", fmt.Sprintf("Retrying %s for chapter %q...", sec, ch.Title))

	pc := &stage.Context{
		Config:     rec.Config,
		CourseName: rec.CourseName,
		Outline:    rec.Outline,
		ChapterID:  chapterID,
		Caps:       caps,
	}
	if err := o.runSection(ctx, pc, rec, ch, sec); err != nil {
		o.persistQuietly(rec)
		return sectionFailed(err)
	}
	o.exportQuietly(rec)
	if err := o.persist(rec); err != nil {
		return sectionFailed(err)
	}
	sink.Emit(event.ChapterSectionCompleted, event.SectionResult{ChapterID: chapterID, Section: sec})
	return nil
}

// GenerateAll writes every chapter that is not yet completed, one at a
// time, in outline order. It stops at the first chapter that fails.
func (o *Orchestrator) GenerateAll(ctx context.Context, courseID string, sink event.Sink) (string, error) {
	rec, err := o.Store.Load(courseID)
	if err != nil {
		return "", fmt.Errorf("loading course %q: %w", courseID, err)
	}
	if rec.Outline == nil {
		return rec.Key, ErrNoOutline
	}
	key := rec.Key
	for _, ch := range rec.Outline.Chapters {
		if ch.Status == course.StatusCompleted {
			continue
		}
		if err := ctx.Err(); err != nil {
			return key, err
		}
		key, err = o.GenerateChapter(ctx, key, ch.ID, sink)
		if err != nil {
			return key, err
		}
	}
	return key, nil
}

// UpdateOutline replaces the whole outline of a course.
func (o *Orchestrator) UpdateOutline(ctx context.Context, courseID string, outline *course.Outline) (string, error) {
	if outline == nil {
		return "", ErrNoOutline
	}
	for _, ch := range outline.Chapters {
		if ch == nil {
			return "", fmt.Errorf("%w: empty chapter", course.ErrInvalidOutline)
		}
	}
	outline = outline.Clone()
	for _, ch := range outline.Chapters {
		if ch.Status == "" {
			ch.Status = course.StatusPending
		}
	}
	if err := outline.Validate(); err != nil {
		return "", err
	}
	rec, unlock, err := o.acquire(courseID)
	if err != nil {
		return "", err
	}
	defer unlock()

	rec.Outline = outline
	if err := o.persist(rec); err != nil {
		return "", err
	}
	o.logger().Info("outline replaced", zap.String("course", rec.Key), zap.Int("chapters", len(outline.Chapters)))
	return rec.Key, nil
}

// Courses lists every stored course, newest first.
func (o *Orchestrator) Courses() ([]store.Summary, error) {
	return o.Store.List()
}

// Course loads one course by key, key fragment, or stable ID.
func (o *Orchestrator) Course(id string) (*store.Record, error) {
	return o.Store.Load(id)
}

// DeleteCourse removes a course and its exports.
func (o *Orchestrator) DeleteCourse(id string) (bool, error) {
	rec, err := o.Store.Load(id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	unlock := o.lock(rec.ID)
	defer unlock()
	return o.Store.Delete(rec.Key)
}

// ExportMarkdown regenerates the markdown export of a course and returns
// its file name.
func (o *Orchestrator) ExportMarkdown(id string) (string, error) {
	rec, unlock, err := o.acquire(id)
	if err != nil {
		return "", err
	}
	defer unlock()

	name, err := o.Store.ExportMarkdown(rec)
	if err != nil {
		return "", err
	}
	if err := o.persist(rec); err != nil {
		return "", err
	}
	return name, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
