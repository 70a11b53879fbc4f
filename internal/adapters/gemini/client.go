// internal/adapters/gemini/client.go
package gemini

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"review_pulse/internal/adapters/observability"
	"review_pulse/internal/domain"
)

// DefaultAspects are the categories the service is asked to look for.
var DefaultAspects = []string{
	"food quality", "service", "ambiance", "price",
	"cleanliness", "location", "wait time", "portion size",
}

var ErrUnauthorized = fmt.Errorf("gemini: unauthorized: %w", domain.ErrFatalService)

type Client struct {
	base     string
	model    string
	key      string
	hc       *http.Client
	rl       *rate.Limiter
	attempts int
	aspects  []string
}

func New(base, model, key string, rps, attempts int, aspects []string) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if rps <= 0 {
		rps = 10
	}
	if attempts <= 0 {
		attempts = 4
	}
	if len(aspects) == 0 {
		aspects = DefaultAspects
	}
	return &Client{
		base:     strings.TrimRight(base, "/"),
		model:    model,
		key:      key,
		hc:       &http.Client{Timeout: 30 * time.Second},
		rl:       rate.NewLimiter(rate.Limit(rps), rps),
		attempts: attempts,
		aspects:  aspects,
	}, nil
}

// Extract asks the model for (aspect, sentiment, quote) tuples on one review.
// The call is read-only on the service side, so retrying is safe. Transient
// failures (429, 5xx, network) are retried with exponential backoff and
// jitter, honoring Retry-After; an unusable model response gets the same
// backoff and surfaces as ErrBadPayload once attempts run out; 401/403 is
// ErrUnauthorized immediately. Exhausted retries wrap ErrRetryable.
func (c *Client) Extract(ctx context.Context, reviewText string) ([]domain.AspectFinding, error) {
	// client-side rate limiting
	if err := c.rl.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.base, c.model)
	payload, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: c.buildPrompt(reviewText)}}}},
	})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for i := 0; i < c.attempts; i++ {
		// build a fresh request each attempt
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-goog-api-key", c.key)
		req.Header.Set("User-Agent", "review-pulse/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			// network error or context canceled
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			observability.ObserveExternal("gemini", "generateContent", 0, time.Since(start))
			lastErr = err
			if i < c.attempts-1 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("gemini: %d attempts exhausted: %w (last: %s)", c.attempts, domain.ErrRetryable, lastErr)
		}
		observability.ObserveExternal("gemini", "generateContent", resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			findings, err := decodeFindings(resp.Body)
			resp.Body.Close()
			if err == nil {
				return findings, nil
			}
			// the model emitted something unusable; give it another try
			lastErr = err
			if i < c.attempts-1 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("gemini: response unusable after %d attempts: %w (last: %s)", c.attempts, domain.ErrBadPayload, lastErr)

		case http.StatusUnauthorized, http.StatusForbidden:
			resp.Body.Close()
			return nil, ErrUnauthorized

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < c.attempts-1 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("gemini: %d attempts exhausted: %w (last: %s)", c.attempts, domain.ErrRetryable, lastErr)

		default:
			// read a small error body for diagnostics
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, fmt.Errorf("gemini: status %d: %s: %w",
				resp.StatusCode, strings.TrimSpace(string(b)), domain.ErrFatalService)
		}
	}

	return nil, lastErr
}

func (c *Client) buildPrompt(reviewText string) string {
	return fmt.Sprintf(`Analyze this review and extract mentioned aspects with their sentiment.
Return JSON only, no markdown:
{"aspects": [{"name": "food quality", "sentiment": "positive", "quote": "exact phrase"}]}

Possible aspects: %s

Review: %s`, strings.Join(c.aspects, ", "), reviewText)
}

// ---- wire format ----

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type aspectsDoc struct {
	Aspects []struct {
		Name      string `json:"name"`
		Sentiment string `json:"sentiment"`
		Quote     string `json:"quote"`
	} `json:"aspects"`
}

func decodeFindings(r io.Reader) ([]domain.AspectFinding, error) {
	var env generateResponse
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if len(env.Candidates) == 0 || len(env.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("no candidates in response")
	}
	text := stripFences(env.Candidates[0].Content.Parts[0].Text)

	var doc aspectsDoc
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("decode aspects: %w", err)
	}
	out := make([]domain.AspectFinding, 0, len(doc.Aspects))
	for _, a := range doc.Aspects {
		out = append(out, domain.AspectFinding{
			AspectName:      a.Name,
			AspectSentiment: domain.SentimentLabel(a.Sentiment),
			Quote:           a.Quote,
		})
	}
	return out, nil
}

// stripFences removes markdown code fences the model sometimes wraps JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	for _, ln := range lines {
		if strings.HasPrefix(strings.TrimSpace(ln), "```") {
			continue
		}
		kept = append(kept, ln)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	// seconds form
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	// HTTP-date form
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns an exponential backoff delay with concurrency-safe jitter.
// i = retry attempt (0,1,2,...). Base doubles each attempt (200ms, 400ms, 800ms...),
// with up to +50% random jitter to avoid thundering herds.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0                  // 0..1
	j := time.Duration(0.5 * f * float64(base)) // up to +50%
	return base + j
}
