package http

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/cumulo-io/cumulo-client/internal/constants"
	"github.com/cumulo-io/cumulo-client/pkg/cumulo"
)

// RetryPolicy bounds the retry loop around one API call.
type RetryPolicy struct {
	// Max is the number of additional attempts after the first failure.
	Max int
	// WaitMin is the base backoff unit. The deterministic wait doubles from
	// here and the jitter is drawn from [0, WaitMin).
	WaitMin time.Duration
	// WaitMax caps the deterministic part of the wait.
	WaitMax time.Duration
}

// DefaultRetryPolicy returns the retry limits used when the caller does not
// override them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Max:     constants.DefaultRetryMax,
		WaitMin: constants.DefaultRetryWaitMin,
		WaitMax: constants.DefaultRetryWaitMax,
	}
}

// Backoff computes the wait before retry number attempt (0-based). The
// deterministic part doubles from waitMin up to waitMax; the jitter adds
// [0, waitMin) on top so concurrent clients spread out. The wait never
// shrinks as attempts grow.
func Backoff(waitMin, waitMax time.Duration, attempt int, _ *http.Response) time.Duration {
	wait := waitMin
	for i := 0; i < attempt && wait < waitMax; i++ {
		wait *= constants.ExponentialBackoffBase
	}

	if wait > waitMax {
		wait = waitMax
	}

	if waitMin > 0 {
		wait += time.Duration(rand.Int63n(int64(waitMin)))
	}

	return wait
}

// checkRetry classifies one attempt. Transport-level failures defer to the
// library's default policy, which already refuses to retry redirect loops
// and scheme or certificate failures.
func (c *Client) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err != nil || resp == nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	return c.shouldRetryResponse(resp), nil
}

// shouldRetryResponse decides attempt repetition from the response alone.
func (c *Client) shouldRetryResponse(resp *http.Response) bool {
	status := resp.StatusCode

	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		return true
	}

	if status == http.StatusTooManyRequests {
		return true
	}

	// The service can put a remote error code in any response, including a
	// 200. Throttling and clock-skew codes warrant another attempt since
	// every retry is re-signed with a fresh timestamp.
	if apiErr := c.parser.DecodeError(status, bufferBody(resp)); apiErr != nil {
		return cumulo.IsRetryable(apiErr)
	}

	return false
}

// bufferBody reads resp.Body fully and replaces it with an in-memory copy,
// so the retry check can inspect bodies the caller still needs to read.
func bufferBody(resp *http.Response) []byte {
	if resp.Body == nil {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	if err != nil {
		return nil
	}

	return body
}
