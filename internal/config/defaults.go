package config

import (
	"time"

	"github.com/jorge-barreto/syllabot/internal/course"
	"github.com/jorge-barreto/syllabot/internal/retry"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.Gateway.Provider == "" {
		cfg.Gateway.Provider = "gemini"
	}
	if cfg.Gateway.Model == "" && cfg.Gateway.Provider == "gemini" {
		cfg.Gateway.Model = "gemini-2.5-flash"
	}
	if cfg.Gateway.Timeout == 0 {
		cfg.Gateway.Timeout = 10 * time.Minute
	}

	def := retry.DefaultOptions()
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = def.MaxRetries
	}
	if cfg.Retry.InitialDelay == 0 {
		cfg.Retry.InitialDelay = def.InitialDelay
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = def.MaxDelay
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry.Multiplier = def.Multiplier
	}
	if cfg.Retry.RateLimitFloor == 0 {
		cfg.Retry.RateLimitFloor = def.RateLimitFloor
	}

	if cfg.Search.APIKeyEnv == "" {
		cfg.Search.APIKeyEnv = "TAVILY_API_KEY"
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 5
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3001
	}
	if cfg.Server.AllowedOrigins == nil {
		cfg.Server.AllowedOrigins = []string{"http://localhost:*"}
	}

	d := course.DefaultDefaults()
	if cfg.Defaults.Language == "" {
		cfg.Defaults.Language = d.Language
	}
	if cfg.Defaults.MinChapters == 0 {
		cfg.Defaults.MinChapters = d.MinChapters
	}
	if cfg.Defaults.WordsPerChapter == 0 {
		cfg.Defaults.WordsPerChapter = d.WordsPerChapter
	}
	if cfg.Defaults.ExercisesPerChapter == 0 {
		cfg.Defaults.ExercisesPerChapter = d.ExercisesPerChapter
	}
	if cfg.Defaults.QuizQuestionsPerChapter == 0 {
		cfg.Defaults.QuizQuestionsPerChapter = d.QuizQuestionsPerChapter
	}
	if cfg.Defaults.WritingStyle == "" {
		cfg.Defaults.WritingStyle = d.WritingStyle
	}
}
