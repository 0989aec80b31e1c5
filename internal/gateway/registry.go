package gateway

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
)

// Provider describes how to reach one model provider.
type Provider struct {
	Name      string
	BaseURL   string
	APIKeyEnv string
}

var builtin = map[string]Provider{
	"gemini":     {Name: "gemini", BaseURL: geminiBaseURL, APIKeyEnv: "GEMINI_API_KEY"},
	"openai":     {Name: "openai", BaseURL: "https://api.openai.com/v1", APIKeyEnv: "OPENAI_API_KEY"},
	"openrouter": {Name: "openrouter", BaseURL: "https://openrouter.ai/api/v1", APIKeyEnv: "OPENROUTER_API_KEY"},
	"groq":       {Name: "groq", BaseURL: "https://api.groq.com/openai/v1", APIKeyEnv: "GROQ_API_KEY"},
	"cerebras":   {Name: "cerebras", BaseURL: "https://api.cerebras.ai/v1", APIKeyEnv: "CEREBRAS_API_KEY"},
	"ollama":     {Name: "ollama", BaseURL: ollamaBaseURL},
}

// Builtin returns the default settings for a known provider.
func Builtin(name string) (Provider, bool) {
	p, ok := builtin[strings.ToLower(name)]
	return p, ok
}

// Providers lists the known provider names in sorted order.
func Providers() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds a client for p. Empty fields fall back to the built-in
// settings for p.Name.
func New(p Provider, client *http.Client) (Gateway, error) {
	def, ok := Builtin(p.Name)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (known: %s)", p.Name, strings.Join(Providers(), ", "))
	}
	if p.BaseURL == "" {
		p.BaseURL = def.BaseURL
	}
	if p.APIKeyEnv == "" {
		p.APIKeyEnv = def.APIKeyEnv
	}
	var key string
	if p.APIKeyEnv != "" {
		key = os.Getenv(p.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("provider %s: environment variable %s is not set", def.Name, p.APIKeyEnv)
		}
	}

	switch def.Name {
	case "gemini":
		return NewGemini(p.BaseURL, key, client), nil
	case "ollama":
		return NewOllama(p.BaseURL, client), nil
	default:
		return NewOpenAI(def.Name, p.BaseURL, key, client), nil
	}
}

// Registry hands out one shared client per provider name.
type Registry struct {
	fallback  string
	overrides map[string]Provider
	client    *http.Client

	mu      sync.Mutex
	clients map[string]Gateway
}

// NewRegistry returns a Registry that resolves an empty provider name to
// fallback. overrides replace built-in settings per provider.
func NewRegistry(fallback string, overrides []Provider, client *http.Client) *Registry {
	r := &Registry{
		fallback:  strings.ToLower(fallback),
		overrides: make(map[string]Provider),
		client:    client,
		clients:   make(map[string]Gateway),
	}
	for _, p := range overrides {
		r.overrides[strings.ToLower(p.Name)] = p
	}
	return r
}

// Register installs a ready-made gateway under name.
func (r *Registry) Register(name string, gw Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[strings.ToLower(name)] = gw
}

// Get returns the gateway for provider, creating it on first use.
func (r *Registry) Get(provider string) (Gateway, error) {
	name := strings.ToLower(provider)
	if name == "" {
		name = r.fallback
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if gw, ok := r.clients[name]; ok {
		return gw, nil
	}
	p, ok := r.overrides[name]
	if !ok {
		p = Provider{Name: name}
	}
	gw, err := New(p, r.client)
	if err != nil {
		return nil, err
	}
	r.clients[name] = gw
	return gw, nil
}
