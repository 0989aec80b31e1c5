package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jorge-barreto/syllabot/internal/config"
	"github.com/jorge-barreto/syllabot/internal/event"
	"github.com/jorge-barreto/syllabot/internal/gateway"
	"github.com/jorge-barreto/syllabot/internal/pipeline"
	"github.com/jorge-barreto/syllabot/internal/retry"
	"github.com/jorge-barreto/syllabot/internal/search"
	"github.com/jorge-barreto/syllabot/internal/store"
	"github.com/jorge-barreto/syllabot/internal/ux"
)

// app holds everything a command needs once config is loaded.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
	orch   *pipeline.Orchestrator
	search *search.Tavily
	term   *ux.Terminal
	sink   event.Sink
	json   bool
}

// newLogger writes to stderr. Without --debug only warnings and errors
// are shown, so streamed output on stdout stays readable.
func newLogger(debug bool, level zapcore.Level) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.DisableStacktrace = true
	return zc.Build()
}

func configPath(cmd *cli.Command) (string, bool) {
	if p := cmd.String("config"); p != "" {
		return p, true
	}
	return config.FileName, false
}

// setup loads config and wires the store, gateways, retry policy, search
// client and orchestrator.
func setup(cmd *cli.Command, level zapcore.Level) (*app, error) {
	logger, err := newLogger(cmd.Bool("debug"), level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	path, explicit := configPath(cmd)
	cfg, err := config.LoadOrDefault(path, explicit)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if !filepath.IsAbs(cfg.DataDir) {
		abs, err := filepath.Abs(cfg.DataDir)
		if err == nil {
			cfg.DataDir = abs
		}
	}

	st, err := store.Open(cfg.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening data dir: %w", err)
	}

	client := &http.Client{Timeout: cfg.Gateway.Timeout}
	policy := retry.New(cfg.Retry, logger)
	gws := gateway.NewRegistry(cfg.Gateway.Provider, cfg.GatewayProviders(), client)

	orch := pipeline.New(st, gws, logger)
	orch.Retry = policy
	orch.Defaults = cfg.Defaults
	orch.Provider = cfg.Gateway.Provider
	orch.Model = cfg.Gateway.Model

	tavily := search.NewTavily(cfg.SearchKey(), cfg.Search.MaxResults, policy, logger)
	if tavily.Enabled() {
		orch.Research = tavily
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		store:  st,
		orch:   orch,
		search: tavily,
		term:   ux.NewTerminal(os.Stdout),
		json:   cmd.Bool("json"),
	}
	if a.json {
		a.sink = event.NewJSONLines(os.Stdout)
	} else {
		a.term.Quiet = cmd.Bool("quiet")
		a.sink = a.term
	}
	return a, nil
}

func (a *app) close() {
	a.logger.Sync()
}
