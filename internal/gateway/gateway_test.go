package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAI_Generate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"hello"}}]}`)
	}))
	defer srv.Close()

	c := NewOpenAI("openai", srv.URL, "secret", srv.Client())
	text, err := c.Generate(context.Background(), "gpt-test", "say hi", Options{System: "be brief", JSONMode: true, Temperature: Temperature(0.3)})
	if err != nil {
		t.Fatal(err)
	}
	if text != "hello" {
		t.Fatalf("text = %q", text)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "say hi" {
		t.Fatalf("messages = %+v", got.Messages)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Fatalf("response_format = %+v", got.ResponseFormat)
	}
	if got.Temperature == nil || *got.Temperature != 0.3 {
		t.Fatalf("temperature = %v", got.Temperature)
	}
}

func TestOpenAI_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ignored\"}}]}\n\n")
	}))
	defer srv.Close()

	c := NewOpenAI("groq", srv.URL, "", srv.Client())
	ch, err := c.GenerateStream(context.Background(), "m", "p", Options{})
	if err != nil {
		t.Fatal(err)
	}
	var deltas []string
	text, err := Collect(context.Background(), ch, func(d string) { deltas = append(deltas, d) })
	if err != nil {
		t.Fatal(err)
	}
	if text != "Hello" || len(deltas) != 2 {
		t.Fatalf("text = %q, deltas = %q", text, deltas)
	}
}

func TestHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, "slow down")
	}))
	defer srv.Close()

	c := NewOpenAI("openai", srv.URL, "k", srv.Client())
	_, err := c.GenerateStream(context.Background(), "m", "p", Options{})
	var herr *HTTPError
	if !errors.As(err, &herr) {
		t.Fatalf("err = %v, want *HTTPError", err)
	}
	if herr.StatusCode() != 429 || !herr.Temporary() || herr.Body != "slow down" {
		t.Fatalf("herr = %+v", herr)
	}
	if (&HTTPError{Status: 400}).Temporary() {
		t.Fatal("400 should not be temporary")
	}
}

func TestGemini_StreamAndGrounding(t *testing.T) {
	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-test:streamGenerateContent") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("alt") != "sse" {
			t.Errorf("alt = %q", r.URL.Query().Get("alt"))
		}
		if r.Header.Get("x-goog-api-key") != "g-key" {
			t.Errorf("missing api key header")
		}
		json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"# Title\\n\"}]}}]}\r\n\r\n")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Body\"}]}}]}\r\n\r\n")
	}))
	defer srv.Close()

	c := NewGemini(srv.URL, "g-key", srv.Client())
	ch, err := c.GenerateStream(context.Background(), "gemini-test", "write", Options{SearchGrounding: true, System: "sys"})
	if err != nil {
		t.Fatal(err)
	}
	text, err := Collect(context.Background(), ch, nil)
	if err != nil {
		t.Fatal(err)
	}
	if text != "# Title\nBody" {
		t.Fatalf("text = %q", text)
	}
	if len(got.Tools) != 1 {
		t.Fatalf("tools = %+v", got.Tools)
	}
	if got.SystemInstruction == nil || got.SystemInstruction.Parts[0].Text != "sys" {
		t.Fatalf("system instruction = %+v", got.SystemInstruction)
	}
}

func TestGemini_JSONDropsGrounding(t *testing.T) {
	req := NewGemini("", "k", nil).request("p", Options{JSONMode: true, SearchGrounding: true})
	if req.GenerationConfig.ResponseMimeType != "application/json" {
		t.Fatalf("mime = %q", req.GenerationConfig.ResponseMimeType)
	}
	if len(req.Tools) != 0 {
		t.Fatal("grounding should be dropped for JSON responses")
	}
}

func TestOllama_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream || req.Model != "llama3" {
			t.Errorf("request = %+v", req)
		}
		fmt.Fprintln(w, `{"response":"a","done":false}`)
		fmt.Fprintln(w, ``)
		fmt.Fprintln(w, `{"response":"b","done":false}`)
		fmt.Fprintln(w, `{"response":"","done":true}`)
	}))
	defer srv.Close()

	ch, err := NewOllama(srv.URL, srv.Client()).GenerateStream(context.Background(), "llama3", "p", Options{})
	if err != nil {
		t.Fatal(err)
	}
	text, err := Collect(context.Background(), ch, nil)
	if err != nil {
		t.Fatal(err)
	}
	if text != "ab" {
		t.Fatalf("text = %q", text)
	}
}

func TestOllama_StreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"response":"a"}`)
		fmt.Fprintln(w, `{"error":"model not found"}`)
	}))
	defer srv.Close()

	ch, err := NewOllama(srv.URL, srv.Client()).GenerateStream(context.Background(), "x", "p", Options{})
	if err != nil {
		t.Fatal(err)
	}
	text, err := Collect(context.Background(), ch, nil)
	if err == nil || !strings.Contains(err.Error(), "model not found") {
		t.Fatalf("err = %v", err)
	}
	if text != "a" {
		t.Fatalf("partial text = %q", text)
	}
}

func TestNew(t *testing.T) {
	if _, err := New(Provider{Name: "nope"}, nil); err == nil {
		t.Fatal("expected error for unknown provider")
	}

	t.Setenv("OPENROUTER_API_KEY", "")
	if _, err := New(Provider{Name: "openrouter"}, nil); err == nil {
		t.Fatal("expected error for missing key")
	}

	t.Setenv("OPENROUTER_API_KEY", "k")
	gw, err := New(Provider{Name: "OpenRouter"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if gw.Name() != "openrouter" {
		t.Fatalf("Name() = %q", gw.Name())
	}

	gw, err = New(Provider{Name: "ollama"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := gw.(*Ollama); !ok {
		t.Fatalf("got %T", gw)
	}
}

func TestRegistry_CachesAndFallsBack(t *testing.T) {
	r := NewRegistry("ollama", []Provider{{Name: "ollama", BaseURL: "http://example.invalid"}}, nil)
	a, err := r.Get("")
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Get("OLLAMA")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatal("registry should reuse the client")
	}
	if a.(*Ollama).baseURL != "http://example.invalid" {
		t.Fatalf("override ignored: %s", a.(*Ollama).baseURL)
	}
}
