// Package doctor diagnoses setup problems and unfinished courses and
// prints the command that fixes each one.
package doctor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jorge-barreto/syllabot/internal/config"
	"github.com/jorge-barreto/syllabot/internal/course"
	"github.com/jorge-barreto/syllabot/internal/gateway"
	"github.com/jorge-barreto/syllabot/internal/store"
	"github.com/jorge-barreto/syllabot/internal/ux"
)

type Level int

const (
	OK Level = iota
	Warn
	Fail
)

// Finding is one diagnosed condition. Hint, when set, is a command that
// resolves it.
type Finding struct {
	Level   Level
	Subject string
	Message string
	Hint    string
}

// Preflight checks that the configured provider, data directory and
// search key are usable. getenv is usually os.Getenv.
func Preflight(cfg *config.Config, getenv func(string) string) []Finding {
	var out []Finding
	out = append(out, checkProvider(cfg, getenv))
	if cfg.Gateway.Model == "" {
		out = append(out, Finding{Level: Warn, Subject: "model",
			Message: "no default model; every course must name one with --model"})
	} else {
		out = append(out, Finding{Level: OK, Subject: "model", Message: cfg.Gateway.Model})
	}
	out = append(out, checkDataDir(cfg.DataDir))

	if key := cfg.Search.APIKeyEnv; getenv(key) == "" || strings.HasPrefix(getenv(key), "your_") {
		out = append(out, Finding{Level: Warn, Subject: "search",
			Message: fmt.Sprintf("$%s is not set; --search is unavailable", key)})
	} else {
		out = append(out, Finding{Level: OK, Subject: "search", Message: "web search grounding available"})
	}
	return out
}

func checkProvider(cfg *config.Config, getenv func(string) string) Finding {
	name := strings.ToLower(cfg.Gateway.Provider)
	p, ok := gateway.Builtin(name)
	if !ok {
		return Finding{Level: Fail, Subject: "provider",
			Message: fmt.Sprintf("unknown provider %q (known: %s)", name, strings.Join(gateway.Providers(), ", "))}
	}
	for _, o := range cfg.GatewayProviders() {
		if o.Name == name && o.APIKeyEnv != "" {
			p.APIKeyEnv = o.APIKeyEnv
		}
	}
	if p.APIKeyEnv != "" && getenv(p.APIKeyEnv) == "" {
		return Finding{Level: Fail, Subject: "provider",
			Message: fmt.Sprintf("%s needs $%s", name, p.APIKeyEnv),
			Hint:    fmt.Sprintf("export %s=...", p.APIKeyEnv)}
	}
	return Finding{Level: OK, Subject: "provider", Message: name}
}

func checkDataDir(dir string) Finding {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Finding{Level: Fail, Subject: "data-dir", Message: err.Error()}
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return Finding{Level: Fail, Subject: "data-dir", Message: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	f.Close()
	os.Remove(f.Name())
	return Finding{Level: OK, Subject: "data-dir", Message: filepath.Clean(dir)}
}

// Course reports chapters that failed, were interrupted, or are missing a
// section, and a stale markdown export.
func Course(rec *store.Record) []Finding {
	if rec.Outline == nil {
		return []Finding{{Level: Fail, Subject: "outline", Message: "course has no outline",
			Hint: fmt.Sprintf("syllabot outline %q", rec.Config.Topic)}}
	}

	var out []Finding
	pending, completed := 0, 0
	for _, ch := range rec.Outline.Chapters {
		subject := fmt.Sprintf("chapter %d", ch.Order)
		rerun := fmt.Sprintf("syllabot chapter %s %s", rec.Key, ch.ID)
		switch ch.Status {
		case course.StatusFailed:
			out = append(out, Finding{Level: Fail, Subject: subject, Message: ch.Title + ": writing failed", Hint: rerun})
		case course.StatusGenerating:
			out = append(out, Finding{Level: Warn, Subject: subject, Message: ch.Title + ": interrupted while generating", Hint: rerun})
		case course.StatusPending:
			pending++
		case course.StatusCompleted:
			completed++
			if rec.Config.ExercisesPerChapter > 0 && len(ch.Exercises) == 0 {
				out = append(out, Finding{Level: Warn, Subject: subject, Message: ch.Title + ": no exercises",
					Hint: fmt.Sprintf("syllabot retry %s %s exercises", rec.Key, ch.ID)})
			}
			if rec.Config.QuizQuestionsPerChapter > 0 && len(ch.Quiz) == 0 {
				out = append(out, Finding{Level: Warn, Subject: subject, Message: ch.Title + ": no quiz",
					Hint: fmt.Sprintf("syllabot retry %s %s quiz", rec.Key, ch.ID)})
			}
		}
	}
	if pending > 0 {
		out = append(out, Finding{Level: OK, Subject: "chapters",
			Message: fmt.Sprintf("%d of %d not written yet", pending, len(rec.Outline.Chapters)),
			Hint:    fmt.Sprintf("syllabot chapter %s --all", rec.Key)})
	}
	if completed > 0 && rec.MarkdownFile == "" {
		out = append(out, Finding{Level: Warn, Subject: "export", Message: "no markdown export",
			Hint: "syllabot export " + rec.Key})
	}
	if len(out) == 0 {
		out = append(out, Finding{Level: OK, Subject: "course", Message: "nothing to fix"})
	}
	return out
}

// Render prints findings and reports whether any of them failed.
func Render(w io.Writer, title string, findings []Finding) bool {
	fmt.Fprintf(w, "\n%s%s══ Doctor: %s ══%s\n\n", ux.Bold, ux.Cyan, title, ux.Reset)
	failed := false
	for _, f := range findings {
		var mark string
		switch f.Level {
		case OK:
			mark = ux.Green + "✓" + ux.Reset
		case Warn:
			mark = ux.Yellow + "⚠" + ux.Reset
		case Fail:
			mark = ux.Red + "✗" + ux.Reset
			failed = true
		}
		fmt.Fprintf(w, "  %s %-10s %s\n", mark, f.Subject, f.Message)
		if f.Hint != "" {
			fmt.Fprintf(w, "    %s→ %s%s\n", ux.Dim, f.Hint, ux.Reset)
		}
	}
	fmt.Fprintln(w)
	return failed
}
