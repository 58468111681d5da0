package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientComplete(t *testing.T) {
	var got messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("expected /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "k" || r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("missing auth headers: %v", r.Header)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.Write([]byte(`{"content":[{"type":"text","text":"  hello  "}]}`))
	}))
	defer srv.Close()

	stats := NewStats(time.Hour)
	c := NewClient("k", "model-x", stats).WithBaseURL(srv.URL)
	out, err := c.Complete(context.Background(), Request{Op: "interpret", System: "sys", Prompt: "hi", Temperature: 0.1, MaxTokens: 400})
	if err != nil {
		t.Fatal(err)
	}
	if out != "hello" {
		t.Errorf("expected %q, got %q", "hello", out)
	}
	if got.Model != "model-x" || got.System != "sys" || got.MaxTokens != 400 || *got.Temperature != 0.1 {
		t.Errorf("unexpected request %+v", got)
	}
	if n := stats.Snapshot().Operations["interpret"].Count; n != 1 {
		t.Errorf("expected one recorded sample, got %d", n)
	}
}

func TestClientStatusErrors(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(`{"error":{"type":"x","message":"y"}}`))
		}))
		_, err := NewClient("k", "m", nil).WithBaseURL(srv.URL).Complete(context.Background(), Request{Prompt: "p"})
		srv.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", tt.status)
		}
		if IsRetryable(err) != tt.retryable {
			t.Errorf("status %d: expected retryable=%v, got %v", tt.status, tt.retryable, err)
		}
	}
}

func TestClientEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()
	if _, err := NewClient("k", "m", nil).WithBaseURL(srv.URL).Complete(context.Background(), Request{Prompt: "p"}); err == nil {
		t.Error("expected error for empty content")
	}
}

func TestStripCodeBlock(t *testing.T) {
	tests := []struct{ in, want string }{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\nplain\n```", "plain"},
		{"```markdown\n# Title\n\nBody.\n```", "# Title\n\nBody."},
		{"```inline```", "inline"},
		{"  no fence  ", "no fence"},
	}
	for _, tt := range tests {
		if got := StripCodeBlock(tt.in); got != tt.want {
			t.Errorf("StripCodeBlock(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

type scripted struct {
	errs  []error
	calls int
}

func (s *scripted) Complete(context.Context, Request) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	return "ok", nil
}

func TestRetrying(t *testing.T) {
	log := slog.New(slog.DiscardHandler)
	busy := &RetryableError{StatusCode: 529}

	next := &scripted{errs: []error{busy, busy}}
	r := NewRetrying(next, log)
	r.delay = func(int) time.Duration { return 0 }
	out, err := r.Complete(context.Background(), Request{})
	if err != nil || out != "ok" || next.calls != 3 {
		t.Errorf("expected success on third call, got %q %v after %d calls", out, err, next.calls)
	}

	next = &scripted{errs: []error{busy, busy, busy, busy}}
	r = NewRetrying(next, log)
	r.delay = func(int) time.Duration { return 0 }
	if _, err := r.Complete(context.Background(), Request{}); !IsRetryable(err) || next.calls != MaxRetries {
		t.Errorf("expected retryable error after %d calls, got %v after %d", MaxRetries, err, next.calls)
	}

	fatal := errors.New("bad request")
	next = &scripted{errs: []error{fatal}}
	r = NewRetrying(next, log)
	if _, err := r.Complete(context.Background(), Request{}); !errors.Is(err, fatal) || next.calls != 1 {
		t.Errorf("expected no retry for permanent error, got %v after %d calls", err, next.calls)
	}
}

func TestBackoffBounds(t *testing.T) {
	for attempt := range 8 {
		d := Backoff(attempt)
		base := min(time.Duration(1<<uint(attempt))*time.Second, 30*time.Second)
		if d < base || d >= base+base/2 {
			t.Errorf("attempt %d: %v outside [%v, %v)", attempt, d, base, base+base/2)
		}
	}
}

func TestStatsPercentiles(t *testing.T) {
	s := NewStats(time.Hour)
	for _, ms := range []int64{100, 200, 300, 400, 500} {
		s.Record("write", ms)
	}
	s.Record("interpret", -5)

	snap := s.Snapshot()
	w := snap.Operations["write"]
	if w.Count != 5 || w.MinMs != 100 || w.MaxMs != 500 || w.AvgMs != 300 {
		t.Errorf("unexpected aggregate %+v", w)
	}
	if w.P50Ms != 300 || w.P95Ms != 480 || w.P99Ms != 496 {
		t.Errorf("unexpected percentiles %+v", w)
	}
	if i := snap.Operations["interpret"]; i.Count != 1 || i.MinMs != 0 {
		t.Errorf("expected clamped sample, got %+v", i)
	}
	if snap.Operations["all"].Count != 6 {
		t.Errorf("expected 6 samples overall, got %d", snap.Operations["all"].Count)
	}
}

func TestStatsWindow(t *testing.T) {
	s := NewStats(time.Minute)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	s.Record("a", 10)
	clock = clock.Add(2 * time.Minute)
	s.Record("a", 20)
	got := s.Snapshot().Operations["a"]
	if got.Count != 1 || got.MinMs != 20 {
		t.Errorf("expected only the fresh sample, got %+v", got)
	}
}
