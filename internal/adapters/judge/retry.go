package judge

import (
	"context"
	"errors"
	"math/rand"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/openai/openai-go"
)

const (
	defaultMaxAttempts = 4
	defaultBackoff     = 500 * time.Millisecond
	minBackoff         = 250 * time.Millisecond
	maxBackoff         = 2 * time.Second
	attemptGrowth      = 0.25
	jitterSpan         = 100 * time.Millisecond
)

var retryAfterHint = regexp.MustCompile(`try again in\s+(\d+(?:\.\d+)?)\s*(ms|s)`)

// retryableStatuses are the transient provider responses worth another
// attempt. Everything else fails the attempt loop immediately.
var retryableStatuses = map[int]struct{}{
	429: {}, 500: {}, 502: {}, 503: {}, 504: {},
}

// Policy drives the attempt loop around a single judge request. Structured
// output is degraded from json_schema to json_object after the first failed
// strict attempt and never restored within the call.
// One Policy is shared across every judge client, so the jitter rng is
// hit from concurrent attempt loops and must be locked.
type Policy struct {
	maxAttempts int
	sleep       func(context.Context, time.Duration) error

	rngMu sync.Mutex
	rng   *rand.Rand
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithMaxAttempts caps the total attempts per call, including the first.
func WithMaxAttempts(n int) PolicyOption {
	return func(p *Policy) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// withSleep replaces the backoff sleep, used by tests.
func withSleep(fn func(context.Context, time.Duration) error) PolicyOption {
	return func(p *Policy) { p.sleep = fn }
}

// NewPolicy builds a retry policy with defaults suitable for chat providers.
func NewPolicy(opts ...PolicyOption) *Policy {
	p := &Policy{
		maxAttempts: defaultMaxAttempts,
		sleep:       sleepCtx,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Do runs attempt until it succeeds, attempts are exhausted or the error is
// not retryable. The attempt callback receives whether strict structured
// output should be requested.
func (p *Policy) Do(ctx context.Context, strict bool, attempt func(ctx context.Context, strict bool) (string, error)) (string, error) {
	degraded := false
	var lastErr error
	for n := 0; n < p.maxAttempts; n++ {
		content, err := attempt(ctx, strict)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if strict && !degraded {
			strict = false
			degraded = true
			continue
		}
		status, ok := httpStatus(err)
		if ok {
			if _, retryable := retryableStatuses[status]; !retryable {
				return "", err
			}
		}
		if err := p.sleep(ctx, p.backoff(err, n, !ok)); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

// backoff derives the wait before the next attempt: provider hints first,
// clamped to a sane window, then scaled by attempt number. Network failures
// without a status get extra jitter to spread reconnects.
func (p *Policy) backoff(err error, attempt int, network bool) time.Duration {
	base := defaultBackoff
	if hint, ok := backoffHint(err); ok {
		base = hint
	}
	if base < minBackoff {
		base = minBackoff
	}
	if base > maxBackoff {
		base = maxBackoff
	}
	wait := time.Duration(float64(base) * (1 + attemptGrowth*float64(attempt)))
	if network && p.rng != nil {
		p.rngMu.Lock()
		jitter := p.rng.Int63n(int64(jitterSpan))
		p.rngMu.Unlock()
		wait += time.Duration(jitter)
	}
	return wait
}

// backoffHint pulls a suggested wait out of the error: the Retry-After
// header when present, else a "try again in Nms" phrase in the body.
func backoffHint(err error) (time.Duration, bool) {
	var apierr *openai.Error
	if errors.As(err, &apierr) && apierr.Response != nil {
		if ra := apierr.Response.Header.Get("Retry-After"); ra != "" {
			if secs, perr := strconv.ParseFloat(ra, 64); perr == nil && secs > 0 {
				return time.Duration(secs * float64(time.Second)), true
			}
		}
	}
	if m := retryAfterHint.FindStringSubmatch(err.Error()); m != nil {
		val, perr := strconv.ParseFloat(m[1], 64)
		if perr == nil {
			if m[2] == "ms" {
				return time.Duration(val * float64(time.Millisecond)), true
			}
			return time.Duration(val * float64(time.Second)), true
		}
	}
	return 0, false
}

// httpStatus extracts the provider status code when the error carries one.
func httpStatus(err error) (int, bool) {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode, true
	}
	return 0, false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
