package gemini_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"review_pulse/internal/adapters/gemini"
	"review_pulse/internal/domain"
)

func envelope(inner string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%s}]}}]}`, strconv.Quote(inner))
}

const findingsJSON = `{"aspects":[{"name":"service","sentiment":"negative","quote":"slow service"}]}`

func TestExtract_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/models/gemini-1.5-flash:generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("X-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		switch atomic.AddInt32(&hits, 1) {
		case 1:
			// one transient failure
			w.WriteHeader(429)
		default:
			w.WriteHeader(200)
			_, _ = w.Write([]byte(envelope(findingsJSON)))
		}
	}))
	defer ts.Close()

	cl, err := gemini.New(ts.URL, "gemini-1.5-flash", "test-key", 100, 4, nil) // high RPS for tests
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	findings, err := cl.Extract(ctx, "the service was slow service honestly")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(findings) != 1 || findings[0].AspectName != "service" || findings[0].Quote != "slow service" {
		t.Fatalf("unexpected findings: %+v", findings)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("expected 2 calls due to retry, got %d", hits)
	}
}

func TestExtract_UnauthorizedFailsFast(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(401)
	}))
	defer ts.Close()

	cl, err := gemini.New(ts.URL, "gemini-1.5-flash", "bad-key", 100, 4, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	_, err = cl.Extract(context.Background(), "anything")
	if !errors.Is(err, gemini.ErrUnauthorized) || !errors.Is(err, domain.ErrFatalService) {
		t.Fatalf("expected unauthorized fatal error, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("401 must not be retried, got %d calls", hits)
	}
}

func TestExtract_ExhaustsRetriesOn500(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(500)
	}))
	defer ts.Close()

	cl, err := gemini.New(ts.URL, "gemini-1.5-flash", "test-key", 100, 3, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = cl.Extract(ctx, "anything")
	if !errors.Is(err, domain.ErrRetryable) {
		t.Fatalf("expected ErrRetryable, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", hits)
	}
}

func TestExtract_StripsMarkdownFences(t *testing.T) {
	fenced := "```json\n" + findingsJSON + "\n```"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte(envelope(fenced)))
	}))
	defer ts.Close()

	cl, err := gemini.New(ts.URL, "gemini-1.5-flash", "test-key", 100, 4, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	findings, err := cl.Extract(context.Background(), "anything")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(findings) != 1 || findings[0].AspectSentiment != domain.SentimentNegative {
		t.Fatalf("unexpected findings: %+v", findings)
	}
}

func TestExtract_GarbageBecomesBadPayload(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(200)
		_, _ = w.Write([]byte(envelope("sorry, I cannot answer that")))
	}))
	defer ts.Close()

	cl, err := gemini.New(ts.URL, "gemini-1.5-flash", "test-key", 100, 2, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = cl.Extract(ctx, "anything")
	if !errors.Is(err, domain.ErrBadPayload) {
		t.Fatalf("expected ErrBadPayload, got %v", err)
	}
	// an unusable answer is retried before giving up
	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("expected 2 attempts, got %d", hits)
	}
}

func TestExtract_NetworkErrorIsRetryable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // nothing listens anymore

	cl, err := gemini.New(ts.URL, "gemini-1.5-flash", "test-key", 100, 2, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = cl.Extract(ctx, "anything")
	if !errors.Is(err, domain.ErrRetryable) {
		t.Fatalf("expected ErrRetryable, got %v", err)
	}
}

func TestNew_RequiresKey(t *testing.T) {
	if _, err := gemini.New("https://example.com", "gemini-1.5-flash", "", 10, 4, nil); err == nil {
		t.Fatalf("expected error for missing key")
	}
}
