package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jorge-barreto/syllabot/internal/config"
	"github.com/jorge-barreto/syllabot/internal/ux"
)

var configTemplate = `# Where course records (courses/) and markdown exports (history/) live.
data-dir: data

gateway:
  # gemini, openai, openrouter, groq, cerebras or ollama
  provider: gemini
  model: gemini-2.5-flash
  timeout: 10m

# Per-provider overrides, e.g. a self-hosted OpenAI-compatible endpoint.
# providers:
#   - name: openai
#     base-url: http://localhost:1234/v1
#     api-key-env: LOCAL_LLM_KEY

retry:
  max-retries: 5
  initial-delay: 1s
  max-delay: 60s
  multiplier: 2
  rate-limit-floor: 5s

search:
  api-key-env: TAVILY_API_KEY
  max-results: 5

server:
  host: localhost
  port: 3001
  allowed-origins:
    - http://localhost:*

defaults:
  language: English
  min-chapters: 8
  words-per-chapter: 3000
  exercises-per-chapter: 10
  quiz-questions-per-chapter: 10
  writing-style: academic
`

var envTemplate = `GEMINI_API_KEY=your_gemini_key
OPENROUTER_API_KEY=your_openrouter_key
GROQ_API_KEY=your_groq_key
CEREBRAS_API_KEY=your_cerebras_key
TAVILY_API_KEY=your_tavily_key
`

// Init writes a starter syllabot.yaml and .env.example into targetDir.
func Init(targetDir string) error {
	configPath := filepath.Join(targetDir, config.FileName)
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists in %s", config.FileName, targetDir)
	}
	if err := os.MkdirAll(filepath.Join(targetDir, "data"), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", config.FileName, err)
	}
	envPath := filepath.Join(targetDir, ".env.example")
	if _, err := os.Stat(envPath); err != nil {
		if err := os.WriteFile(envPath, []byte(envTemplate), 0644); err != nil {
			return fmt.Errorf("writing .env.example: %w", err)
		}
	}

	fmt.Printf("\n%s%s✓ Initialized syllabot%s\n\n", ux.Bold, ux.Green, ux.Reset)
	fmt.Printf("  Created:\n")
	fmt.Printf("    %s%s%s   model, retry, search and server settings\n", ux.Cyan, config.FileName, ux.Reset)
	fmt.Printf("    %s.env.example%s    API key variables\n\n", ux.Cyan, ux.Reset)
	fmt.Printf("  Next steps:\n")
	fmt.Printf("    1. Export the API key for your provider (see %s.env.example%s)\n", ux.Cyan, ux.Reset)
	fmt.Printf("    2. Run %ssyllabot outline \"<topic>\"%s to plan a course\n", ux.Cyan, ux.Reset)
	fmt.Printf("    3. Run %ssyllabot serve%s for the web client\n\n", ux.Cyan, ux.Reset)
	return nil
}
