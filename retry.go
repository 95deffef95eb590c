package simpleai

import (
	"context"
	"errors"
	"time"

	"github.com/simpleai-go/simpleai/adapter"
)

// defaultMaxRetries bounds rate-limit retries when the provider settings do
// not say otherwise.
const defaultMaxRetries = 3

// defaultRetryWait is slept when a rate-limit rejection carries no wait hint.
const defaultRetryWait = time.Second

// retryController re-issues an adapter call after rate-limit rejections,
// sleeping exactly the wait hint the provider supplied. Other failures
// propagate immediately; exhausted retries surface as ErrRateLimited.
type retryController struct {
	maxRetries int
	sleep      func(context.Context, time.Duration) error
}

func newRetryController(maxRetries *int) *retryController {
	rc := &retryController{maxRetries: defaultMaxRetries, sleep: sleepContext}
	if maxRetries != nil && *maxRetries >= 0 {
		rc.maxRetries = *maxRetries
	}
	return rc
}

func (rc *retryController) execute(ctx context.Context, a adapter.Adapter, req *adapter.Request) (*adapter.Result, error) {
	for attempt := 0; ; attempt++ {
		res, err := a.Execute(ctx, req)
		if err == nil {
			return res, nil
		}
		var rle *adapter.RateLimitError
		if !errors.As(err, &rle) {
			return nil, err
		}
		if attempt >= rc.maxRetries {
			return nil, wrapErr(ErrRateLimited, a.Name(), "rate limit retries exhausted", err)
		}
		wait := rle.RetryAfter
		if wait <= 0 {
			wait = defaultRetryWait
		}
		if err := rc.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// sleepContext blocks for d or until ctx is done. A non-positive d only
// checks for cancellation.
func sleepContext(ctx context.Context, d time.Duration) error {
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
