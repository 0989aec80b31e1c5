package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jorge-barreto/syllabot/internal/gateway"
)

const (
	maxNameRunes     = 80
	maxFallbackRunes = 60
)

// Naming picks a short display name for the course. It never fails: any
// problem falls back to the topic.
type Naming struct{}

func (Naming) Name() string { return "course-name" }

var nameCleaner = strings.NewReplacer(
	`"`, "", "'", "", "“", "", "”", "", "‘", "", "’", "",
	"\r", "", "\n", "",
)

func (s Naming) Run(ctx context.Context, pc *Context) (*Result, error) {
	cfg := pc.Config
	caps := pc.Caps
	caps.Think(s.Name(), fmt.Sprintf("Generating course name for topic: %q", cfg.Topic))

	prompt := expand(namingPrompt, courseVars(cfg))
	text, err := caps.Text(ctx, s.Name(), prompt, gateway.Options{Temperature: gateway.Temperature(0.3)})
	name := truncate(strings.TrimSpace(nameCleaner.Replace(text)), maxNameRunes)
	if err != nil || name == "" {
		fallback := truncate(cfg.Topic, maxFallbackRunes)
		caps.Think(s.Name(), fmt.Sprintf("Failed to generate name, falling back to: %q", fallback))
		return &Result{CourseName: fallback}, nil
	}
	caps.Think(s.Name(), fmt.Sprintf("Course name: %q", name))
	return &Result{CourseName: name}, nil
}
