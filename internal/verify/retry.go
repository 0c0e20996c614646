package verify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dgallion1/veridoc/internal/gemini"
)

// sleepFunc pauses for d or returns early with the context's error. Tests
// substitute a recording implementation.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryableMarkers is the message fallback for errors that arrive without a
// typed classification (wrapped transport errors, collaborator clients).
var retryableMarkers = []string{
	"rate limit",
	"429",
	"timeout",
	"500",
	"503",
	"temporarily",
	"unavailable",
	"deadline",
	"resource_exhausted",
	"resource exhausted",
}

// retryable reports whether err is worth retrying. Typed classification
// from the gemini client boundary wins; anything else falls back to
// message markers.
func retryable(err error) bool {
	var apiErr *gemini.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range retryableMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// backoffFor computes the wait before retrying attempt (0-indexed):
// rate-limit signals wait min(30, 10*2^attempt)s, overload signals wait
// min(60, 15*2^attempt)s, everything else plain 2^attempt seconds.
func backoffFor(err error, attempt int) time.Duration {
	pow := time.Duration(1) << uint(attempt)

	kind := gemini.KindTransient
	var apiErr *gemini.APIError
	if errors.As(err, &apiErr) {
		kind = apiErr.Kind
	} else {
		msg := strings.ToLower(err.Error())
		switch {
		case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
			kind = gemini.KindRateLimited
		case strings.Contains(msg, "503") || strings.Contains(msg, "overloaded"):
			kind = gemini.KindOverloaded
		}
	}

	switch kind {
	case gemini.KindRateLimited:
		return minDuration(30*time.Second, 10*pow*time.Second)
	case gemini.KindOverloaded:
		return minDuration(60*time.Second, 15*pow*time.Second)
	default:
		return pow * time.Second
	}
}

// runWithRetry executes fn up to maxRetries times. Non-retryable errors
// propagate on first occurrence; a failure on the final allowed attempt
// propagates instead of waiting again.
func runWithRetry(ctx context.Context, maxRetries int, sleep sleepFunc, fn func() error) error {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt == maxRetries-1 || !retryable(err) {
			return err
		}
		if serr := sleep(ctx, backoffFor(err, attempt)); serr != nil {
			return serr
		}
	}
	return err
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
