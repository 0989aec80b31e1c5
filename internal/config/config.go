package config

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jorge-barreto/syllabot/internal/course"
	"github.com/jorge-barreto/syllabot/internal/gateway"
	"github.com/jorge-barreto/syllabot/internal/retry"
)

// FileName is the config file looked up in the working directory.
const FileName = "syllabot.yaml"

// Gateway selects the default model provider.
type Gateway struct {
	Provider  string        `yaml:"provider"`
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base-url"`
	APIKeyEnv string        `yaml:"api-key-env"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Provider overrides or adds an OpenAI-compatible provider.
type Provider struct {
	Name      string `yaml:"name"`
	BaseURL   string `yaml:"base-url"`
	APIKeyEnv string `yaml:"api-key-env"`
}

type Search struct {
	APIKeyEnv  string `yaml:"api-key-env"`
	MaxResults int    `yaml:"max-results"`
}

type Server struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed-origins"`
	StaticDir      string   `yaml:"static-dir"`
}

type Config struct {
	DataDir   string          `yaml:"data-dir"`
	Gateway   Gateway         `yaml:"gateway"`
	Providers []Provider      `yaml:"providers"`
	Retry     retry.Options   `yaml:"retry"`
	Search    Search          `yaml:"search"`
	Server    Server          `yaml:"server"`
	Defaults  course.Defaults `yaml:"defaults"`
}

// Load reads a YAML config file and returns a validated Config with
// defaults applied. A relative data-dir is resolved against the directory
// holding the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	ApplyDefaults(&cfg)
	if !filepath.IsAbs(cfg.DataDir) {
		cfg.DataDir = filepath.Join(filepath.Dir(path), cfg.DataDir)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads path, or returns the defaults when path does not
// exist and was not named explicitly.
func LoadOrDefault(path string, explicit bool) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return nil, err
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// GatewayProviders returns the provider settings to hand to the gateway registry,
// with the gateway section applied on top of its provider.
func (c *Config) GatewayProviders() []gateway.Provider {
	var out []gateway.Provider
	for _, p := range c.Providers {
		out = append(out, gateway.Provider{Name: strings.ToLower(p.Name), BaseURL: p.BaseURL, APIKeyEnv: p.APIKeyEnv})
	}
	if c.Gateway.BaseURL == "" && c.Gateway.APIKeyEnv == "" {
		return out
	}
	name := strings.ToLower(c.Gateway.Provider)
	p, _ := gateway.Builtin(name)
	p.Name = name
	for _, o := range out {
		if o.Name == name {
			p = o
		}
	}
	if c.Gateway.BaseURL != "" {
		p.BaseURL = c.Gateway.BaseURL
	}
	if c.Gateway.APIKeyEnv != "" {
		p.APIKeyEnv = c.Gateway.APIKeyEnv
	}
	return append(out, p)
}

// SearchKey returns the web search API key, or "" when search is not
// configured.
func (c *Config) SearchKey() string {
	key := strings.TrimSpace(os.Getenv(c.Search.APIKeyEnv))
	if strings.HasPrefix(key, "your_") {
		return ""
	}
	return key
}

// Addr is the server listen address.
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
