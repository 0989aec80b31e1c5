package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jorge-barreto/syllabot/internal/retry"
)

func fastPolicy() *retry.Policy {
	return retry.New(retry.DefaultOptions(), nil).WithSleep(func(context.Context, time.Duration) error { return nil })
}

func TestResearch_FormatsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req tavilyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
		}
		if req.APIKey != "tv-key" || req.MaxResults != 2 || req.SearchDepth != "basic" {
			t.Errorf("request = %+v", req)
		}
		fmt.Fprint(w, `{"query":"q","results":[{"title":"Go","url":"https://go.dev","content":"Go is a language"},{"title":"Tour","url":"https://go.dev/tour","content":"Learn Go"}]}`)
	}))
	defer srv.Close()

	tv := NewTavily("tv-key", 2, fastPolicy(), nil, WithEndpoint(srv.URL), WithHTTPClient(srv.Client()))
	got := tv.Research(context.Background(), "golang basics")
	for _, want := range []string{`SEARCH RESULTS FOR "golang basics"`, "[Source 1]: Go (https://go.dev)\nGo is a language", "[Source 2]: Tour"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestResearch_FailsSoft(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	tv := NewTavily("wrong", 3, fastPolicy(), nil, WithEndpoint(srv.URL))
	if got := tv.Research(context.Background(), "q"); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, a 401 should not be retried", calls)
	}
}

func TestResearch_DisabledWithoutKey(t *testing.T) {
	tv := NewTavily("", 3, nil, nil)
	if tv.Enabled() {
		t.Fatal("should be disabled")
	}
	if got := tv.Research(context.Background(), "q"); got != "" {
		t.Fatalf("got %q", got)
	}
	var nilClient *Tavily
	if nilClient.Enabled() {
		t.Fatal("nil client should be disabled")
	}
}

func TestFormatEmpty(t *testing.T) {
	if got := Format("q", nil); got != "" {
		t.Fatalf("got %q", got)
	}
}
