package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderSignature = "X-Mediaflow-Signature"
	HeaderTimestamp = "X-Mediaflow-Timestamp"
	HeaderEvent     = "X-Mediaflow-Event"
	HeaderMediaID   = "X-Mediaflow-Media-Id"
)

const (
	EventMediaOptimized = "media.optimized"
	EventMediaSkipped   = "media.skipped"
	EventMediaFailed    = "media.failed"
)

// Delivery is the envelope posted to per-media callback URLs.
type Delivery struct {
	Event      string    `json:"event"`
	MediaID    string    `json:"media_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

type Config struct {
	SigningSecret  string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type Client struct {
	http    *http.Client
	secret  string
	retries retryPolicy
}

type retryPolicy struct {
	attempts int
	first    time.Duration
	ceiling  time.Duration
}

// delay is the wait before attempt n+1; it doubles from first up to ceiling.
func (p retryPolicy) delay(n int) time.Duration {
	d := p.first
	for i := 1; i < n && d < p.ceiling; i++ {
		d *= 2
	}
	return min(d, p.ceiling)
}

// StatusError is returned when the receiver answered with a non-2xx status.
type StatusError struct {
	StatusCode int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook receiver returned status %d", e.StatusCode)
}

// Temporary reports whether the receiver may accept the same delivery later.
// Client errors other than 408 and 429 will not change on retry.
func (e *StatusError) Temporary() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return false
	}
	return true
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	return &Client{
		http:   &http.Client{Timeout: cfg.Timeout},
		secret: cfg.SigningSecret,
		retries: retryPolicy{
			attempts: max(cfg.MaxAttempts, 1),
			first:    cfg.InitialBackoff,
			ceiling:  max(cfg.MaxBackoff, cfg.InitialBackoff),
		},
	}
}

// Send posts delivery to endpoint, signed with the client secret, retrying
// transport errors and temporary statuses. An empty endpoint is a no-op.
func (c *Client) Send(ctx context.Context, endpoint string, delivery Delivery) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil
	}
	if delivery.OccurredAt.IsZero() {
		delivery.OccurredAt = time.Now().UTC()
	}

	body, err := json.Marshal(delivery)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	headers := http.Header{
		"Content-Type":  {"application/json"},
		HeaderTimestamp: {timestamp},
		HeaderSignature: {Sign(c.secret, timestamp, body)},
		HeaderEvent:     {delivery.Event},
		HeaderMediaID:   {delivery.MediaID},
	}

	var lastErr error
	for attempt := 1; attempt <= c.retries.attempts; attempt++ {
		lastErr = c.post(ctx, endpoint, headers, body)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := c.retries.delay(attempt)
		var status *StatusError
		if errors.As(lastErr, &status) {
			if !status.Temporary() {
				break
			}
			wait = max(wait, min(status.RetryAfter, c.retries.ceiling))
		}
		if attempt == c.retries.attempts {
			break
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("deliver %s for media %s: %w", delivery.Event, delivery.MediaID, lastErr)
}

func (c *Client) post(ctx context.Context, endpoint string, headers http.Header, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header = headers.Clone()

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &StatusError{StatusCode: resp.StatusCode, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
}

// parseRetryAfter understands the delay-seconds form only.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// Sign computes the signature header value for a timestamp and raw body.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "."))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a received signature in constant time.
func Verify(secret, timestamp string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, timestamp, body)), []byte(signature))
}
