package config

import (
	"fmt"
	"strings"

	"github.com/jorge-barreto/syllabot/internal/course"
	"github.com/jorge-barreto/syllabot/internal/gateway"
	"github.com/jorge-barreto/syllabot/internal/retry"
)

// Validate checks the config for errors. Defaults must already be applied.
func Validate(cfg *Config) error {
	if _, ok := gateway.Builtin(cfg.Gateway.Provider); !ok {
		return fmt.Errorf("config: gateway: unknown provider %q (known: %s)",
			cfg.Gateway.Provider, strings.Join(gateway.Providers(), ", "))
	}
	if cfg.Gateway.Timeout < 0 {
		return fmt.Errorf("config: gateway: 'timeout' must not be negative")
	}

	seen := make(map[string]bool)
	for i, p := range cfg.Providers {
		name := strings.ToLower(p.Name)
		if name == "" {
			return fmt.Errorf("config: providers: entry %d: 'name' is required", i+1)
		}
		if _, ok := gateway.Builtin(name); !ok {
			return fmt.Errorf("config: providers: unknown provider %q", p.Name)
		}
		if seen[name] {
			return fmt.Errorf("config: providers: duplicate provider %q", p.Name)
		}
		seen[name] = true
	}

	r := cfg.Retry
	if r.MaxRetries < 0 {
		return fmt.Errorf("config: retry: 'max-retries' must not be negative")
	}
	if r.InitialDelay < 0 || r.MaxDelay < 0 || r.RateLimitFloor < 0 {
		return fmt.Errorf("config: retry: delays must not be negative")
	}
	if r.MaxDelay < r.InitialDelay {
		return fmt.Errorf("config: retry: 'max-delay' (%s) is shorter than 'initial-delay' (%s)", r.MaxDelay, r.InitialDelay)
	}
	if r.RateLimitFloor > retry.Ceiling {
		return fmt.Errorf("config: retry: 'rate-limit-floor' (%s) exceeds the %s ceiling", r.RateLimitFloor, retry.Ceiling)
	}
	if r.Multiplier < 1 {
		return fmt.Errorf("config: retry: 'multiplier' must be at least 1, got %g", r.Multiplier)
	}

	if cfg.Search.MaxResults < 1 || cfg.Search.MaxResults > 20 {
		return fmt.Errorf("config: search: 'max-results' must be between 1 and 20, got %d", cfg.Search.MaxResults)
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("config: server: invalid port %d", cfg.Server.Port)
	}
	for _, o := range cfg.Server.AllowedOrigins {
		if strings.TrimSpace(o) == "" {
			return fmt.Errorf("config: server: 'allowed-origins' entries must be non-empty")
		}
	}

	d := cfg.Defaults
	if d.MinChapters < 1 {
		return fmt.Errorf("config: defaults: 'min-chapters' must be at least 1")
	}
	if d.WordsPerChapter < 0 || d.ExercisesPerChapter < 0 || d.QuizQuestionsPerChapter < 0 {
		return fmt.Errorf("config: defaults: counts must not be negative")
	}
	if !knownStyle(d.WritingStyle) {
		return fmt.Errorf("config: defaults: unknown writing style %q", d.WritingStyle)
	}
	return nil
}

func knownStyle(id string) bool {
	for _, s := range course.Styles {
		if s.ID == id {
			return true
		}
	}
	return false
}
