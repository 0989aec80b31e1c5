package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap/zapcore"

	"github.com/jorge-barreto/syllabot/internal/course"
	"github.com/jorge-barreto/syllabot/internal/docs"
	"github.com/jorge-barreto/syllabot/internal/doctor"
	"github.com/jorge-barreto/syllabot/internal/scaffold"
	"github.com/jorge-barreto/syllabot/internal/server"
	"github.com/jorge-barreto/syllabot/internal/ux"
)

func main() {
	app := &cli.Command{
		Name:        "syllabot",
		Usage:       "Generate complete courses with language models",
		Description: "Run 'syllabot docs' for documentation on config, providers, storage and the server.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to the config file (default: ./syllabot.yaml)"},
			&cli.BoolFlag{Name: "json", Usage: "Print events as JSON lines instead of text"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Do not echo streamed chapter text"},
			&cli.BoolFlag{Name: "debug", Usage: "Verbose logging to stderr"},
		},
		Commands: []*cli.Command{
			initCmd(),
			outlineCmd(),
			chapterCmd(),
			retryCmd(),
			listCmd(),
			showCmd(),
			deleteCmd(),
			exportCmd(),
			serveCmd(),
			doctorCmd(),
			docsCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%serror:%s %v\n", ux.Red, ux.Reset, err)
		os.Exit(1)
	}
}

func interruptible(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
}

func outlineCmd() *cli.Command {
	return &cli.Command{
		Name:      "outline",
		Usage:     "Plan a new course and save its outline",
		ArgsUsage: "<topic>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "audience", Usage: "Who the course is for"},
			&cli.StringFlag{Name: "language", Usage: "Course language"},
			&cli.StringFlag{Name: "style", Usage: "Writing style (academic, conversational, technical, storytelling, socratic)"},
			&cli.IntFlag{Name: "chapters", Usage: "Minimum number of chapters"},
			&cli.IntFlag{Name: "words", Usage: "Target words per chapter"},
			&cli.IntFlag{Name: "exercises", Value: -1, Usage: "Exercises per chapter (default from config)"},
			&cli.IntFlag{Name: "quiz", Value: -1, Usage: "Quiz questions per chapter (default from config)"},
			&cli.StringFlag{Name: "special-needs", Usage: "Accessibility or learning needs to accommodate"},
			&cli.StringFlag{Name: "topics", Usage: "Subtopics the outline must cover"},
			&cli.BoolFlag{Name: "mermaid", Usage: "Allow Mermaid diagrams in chapters"},
			&cli.BoolFlag{Name: "search", Usage: "Ground prompts with web search"},
			&cli.StringFlag{Name: "provider", Usage: "Model provider for this course"},
			&cli.StringFlag{Name: "model", Usage: "Model for this course"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			topic := cmd.Args().First()
			if topic == "" {
				return fmt.Errorf("topic argument is required")
			}
			a, err := setup(cmd, zapcore.WarnLevel)
			if err != nil {
				return err
			}
			defer a.close()

			if cmd.Bool("search") && !a.search.Enabled() {
				return fmt.Errorf("--search needs a Tavily key in $%s", a.cfg.Search.APIKeyEnv)
			}
			cfg := course.Config{
				Topic:               topic,
				Audience:            cmd.String("audience"),
				Language:            cmd.String("language"),
				WritingStyle:        cmd.String("style"),
				MinChapters:         int(cmd.Int("chapters")),
				WordsPerChapter:     int(cmd.Int("words")),
				ExercisesPerChapter: countFlag(cmd, "exercises", a.cfg.Defaults.ExercisesPerChapter),
				SpecialNeeds:        cmd.String("special-needs"),
				GeneratedTopics:     cmd.String("topics"),
				MermaidDiagrams:     cmd.Bool("mermaid"),
				EnableSearch:        cmd.Bool("search"),
				Provider:            cmd.String("provider"),
				Model:               cmd.String("model"),
			}
			cfg.QuizQuestionsPerChapter = countFlag(cmd, "quiz", a.cfg.Defaults.QuizQuestionsPerChapter)

			ctx, stop := interruptible(ctx)
			defer stop()
			_, err = a.orch.StartOutline(ctx, cfg, a.sink)
			return err
		},
	}
}

// countFlag returns the flag value, or def when the flag was left at its
// negative sentinel. Zero is a valid count.
func countFlag(cmd *cli.Command, name string, def int) int {
	if v := int(cmd.Int(name)); v >= 0 {
		return v
	}
	return def
}

func chapterCmd() *cli.Command {
	return &cli.Command{
		Name:      "chapter",
		Usage:     "Write one chapter, or every unfinished chapter with --all",
		ArgsUsage: "<course> [chapter-id]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "all", Usage: "Write every chapter that is not completed"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			courseID := cmd.Args().Get(0)
			chapterID := cmd.Args().Get(1)
			if courseID == "" {
				return fmt.Errorf("course argument is required")
			}
			if chapterID == "" && !cmd.Bool("all") {
				return fmt.Errorf("chapter argument is required (or pass --all)")
			}
			a, err := setup(cmd, zapcore.WarnLevel)
			if err != nil {
				return err
			}
			defer a.close()

			rec, err := a.orch.Course(courseID)
			if err != nil {
				return err
			}
			a.term.Remember(rec.Outline)

			ctx, stop := interruptible(ctx)
			defer stop()
			var key string
			if cmd.Bool("all") {
				key, err = a.orch.GenerateAll(ctx, rec.Key, a.sink)
			} else {
				key, err = a.orch.GenerateChapter(ctx, rec.Key, chapterID, a.sink)
			}
			if err != nil && !a.json {
				if key == "" {
					key = rec.Key
				}
				ux.ResumeHint(os.Stderr, key)
			}
			return err
		},
	}
}

func retryCmd() *cli.Command {
	return &cli.Command{
		Name:      "retry",
		Usage:     "Regenerate the exercises or quiz of a completed chapter",
		ArgsUsage: "<course> <chapter-id> <exercises|quiz>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 3 {
				return fmt.Errorf("expected <course> <chapter-id> <exercises|quiz>")
			}
			sec, err := course.ParseSection(cmd.Args().Get(2))
			if err != nil {
				return err
			}
			a, err := setup(cmd, zapcore.WarnLevel)
			if err != nil {
				return err
			}
			defer a.close()

			rec, err := a.orch.Course(cmd.Args().Get(0))
			if err != nil {
				return err
			}
			a.term.Remember(rec.Outline)

			ctx, stop := interruptible(ctx)
			defer stop()
			return a.orch.RetrySection(ctx, rec.Key, cmd.Args().Get(1), sec, a.sink)
		},
	}
}

func listCmd() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List stored courses, newest first",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd, zapcore.WarnLevel)
			if err != nil {
				return err
			}
			defer a.close()

			list, err := a.orch.Courses()
			if err != nil {
				return err
			}
			ux.RenderHistory(os.Stdout, list)
			return nil
		},
	}
}

func showCmd() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show the outline and chapter status of a course",
		ArgsUsage: "<course>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return fmt.Errorf("course argument is required")
			}
			a, err := setup(cmd, zapcore.WarnLevel)
			if err != nil {
				return err
			}
			defer a.close()

			rec, err := a.orch.Course(id)
			if err != nil {
				return err
			}
			ux.RenderCourse(os.Stdout, rec)
			return nil
		},
	}
}

func deleteCmd() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a course and its exports",
		ArgsUsage: "<course>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return fmt.Errorf("course argument is required")
			}
			a, err := setup(cmd, zapcore.WarnLevel)
			if err != nil {
				return err
			}
			defer a.close()

			ok, err := a.orch.DeleteCourse(id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no course matches %q", id)
			}
			fmt.Printf("%s✓%s Deleted %s\n", ux.Green, ux.Reset, id)
			return nil
		},
	}
}

func exportCmd() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Write the course as markdown into the history directory",
		ArgsUsage: "<course>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return fmt.Errorf("course argument is required")
			}
			a, err := setup(cmd, zapcore.WarnLevel)
			if err != nil {
				return err
			}
			defer a.close()

			name, err := a.orch.ExportMarkdown(id)
			if err != nil {
				return err
			}
			fmt.Println(filepath.Join(a.store.HistoryDir(), name))
			return nil
		},
	}
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP and WebSocket server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "Listen host (default from config)"},
			&cli.IntFlag{Name: "port", Usage: "Listen port (default from config)"},
			&cli.StringFlag{Name: "static", Usage: "Directory of client files to serve at /"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd, zapcore.InfoLevel)
			if err != nil {
				return err
			}
			defer a.close()

			srvCfg := a.cfg.Server
			if h := cmd.String("host"); h != "" {
				srvCfg.Host = h
			}
			if p := cmd.Int("port"); p > 0 {
				srvCfg.Port = int(p)
			}
			if d := cmd.String("static"); d != "" {
				srvCfg.StaticDir = d
			}

			srv := server.New(a.orch, server.Options{
				Config:        srvCfg,
				Defaults:      a.cfg.Defaults,
				Provider:      a.cfg.Gateway.Provider,
				Model:         a.cfg.Gateway.Model,
				SearchEnabled: a.search.Enabled(),
				HistoryDir:    a.store.HistoryDir(),
				CoursesDir:    a.store.CoursesDir(),
			}, a.logger)

			ctx, stop := interruptible(ctx)
			defer stop()
			if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func doctorCmd() *cli.Command {
	return &cli.Command{
		Name:      "doctor",
		Usage:     "Check provider setup, or diagnose an unfinished course",
		ArgsUsage: "[course]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd, zapcore.WarnLevel)
			if err != nil {
				return err
			}
			defer a.close()

			failed := doctor.Render(os.Stdout, "setup", doctor.Preflight(a.cfg, os.Getenv))
			if id := cmd.Args().First(); id != "" {
				rec, err := a.orch.Course(id)
				if err != nil {
					return err
				}
				failed = doctor.Render(os.Stdout, rec.DisplayName(), doctor.Course(rec)) || failed
			}
			if failed {
				return fmt.Errorf("doctor found problems")
			}
			return nil
		},
	}
}

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create syllabot.yaml and .env.example in the current directory",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir, err := os.Getwd()
			if err != nil {
				return err
			}
			return scaffold.Init(dir)
		},
	}
}

func docsCmd() *cli.Command {
	return &cli.Command{
		Name:      "docs",
		Usage:     "Show documentation",
		ArgsUsage: "[topic]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				fmt.Print("\nAvailable topics:\n\n")
				for _, t := range docs.All() {
					fmt.Printf("  %-14s %s\n", t.Name, t.Summary)
				}
				fmt.Println("\nRun 'syllabot docs <topic>' to read a topic.")
				return nil
			}
			t, err := docs.Get(name)
			if err != nil {
				return err
			}
			fmt.Print(t.Content)
			return nil
		},
	}
}
