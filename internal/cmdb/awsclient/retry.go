/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package awsclient

import (
	"context"
	"errors"
	"math"
	"net"
	"time"

	"github.com/aws/smithy-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/connector"
)

// RetryOptions configures the retry behavior
type RetryOptions struct {
	MaxAttempts       int           // Maximum number of attempts per page, 1 disables retries
	InitialBackoff    time.Duration // Initial backoff duration
	MaxBackoff        time.Duration // Maximum backoff duration
	BackoffMultiplier float64       // Multiplier for exponential backoff
	// RequestsPerSecond caps page requests across attempts, 0 means unlimited.
	RequestsPerSecond float64
}

// DefaultRetryOptions provides sensible default retry settings
var DefaultRetryOptions = RetryOptions{
	MaxAttempts:       3,
	InitialBackoff:    200 * time.Millisecond,
	MaxBackoff:        5 * time.Second,
	BackoffMultiplier: 2.0,
	RequestsPerSecond: 10,
}

// throttling and availability codes returned by the CloudFront and ELB APIs
var transientCodes = map[string]struct{}{
	"Throttling":                     {},
	"ThrottlingException":            {},
	"ThrottledException":             {},
	"TooManyRequestsException":       {},
	"RequestLimitExceeded":           {},
	"RequestThrottled":               {},
	"RequestThrottledException":      {},
	"SlowDown":                       {},
	"ServiceUnavailable":             {},
	"ServiceUnavailableException":    {},
	"InternalError":                  {},
	"InternalFailure":                {},
	"RequestTimeout":                 {},
	"RequestTimeoutException":        {},
	"PriorRequestNotComplete":        {},
	"TransactionInProgressException": {},
}

// Classify wraps errors worth retrying in *connector.ErrTransient and
// returns every other error unchanged.
func Classify(err error) error {
	if err == nil || connector.IsTransient(err) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if _, ok := transientCodes[apiErr.ErrorCode()]; ok {
			return &connector.ErrTransient{Msg: apiErr.ErrorCode(), Err: err}
		}
		if apiErr.ErrorFault() == smithy.FaultServer {
			return &connector.ErrTransient{Msg: "server fault", Err: err}
		}
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &connector.ErrTransient{Msg: "deadline exceeded", Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &connector.ErrTransient{Msg: "network timeout", Err: err}
	}

	return err
}

// RetryingLister decorates a page lister with rate limiting and retries of
// transient failures. Non-transient errors are returned after one attempt.
type RetryingLister[T any] struct {
	inner   connector.PageLister[T]
	opts    RetryOptions
	limiter *rate.Limiter
	logger  *zap.Logger
	sleep   func(context.Context, time.Duration) error
}

func NewRetryingLister[T any](inner connector.PageLister[T], opts RetryOptions, logger *zap.Logger) *RetryingLister[T] {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.BackoffMultiplier < 1 {
		opts.BackoffMultiplier = 1
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &RetryingLister[T]{
		inner:   inner,
		opts:    opts,
		limiter: limiter,
		logger:  logger,
		sleep:   sleepContext,
	}
}

func (l *RetryingLister[T]) ListPage(ctx context.Context, token string) (connector.Page[T], error) {
	var lastErr error

	for attempt := 0; attempt < l.opts.MaxAttempts; attempt++ {
		if err := l.limiter.Wait(ctx); err != nil {
			return connector.Page[T]{}, err
		}

		page, err := l.inner.ListPage(ctx, token)
		if err == nil {
			return page, nil
		}

		lastErr = Classify(err)
		if !connector.IsTransient(lastErr) || attempt == l.opts.MaxAttempts-1 {
			break
		}

		backoff := l.backoff(attempt)
		l.logger.Warn("page request failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(lastErr),
		)
		if err := l.sleep(ctx, backoff); err != nil {
			return connector.Page[T]{}, lastErr
		}
	}

	return connector.Page[T]{}, lastErr
}

func (l *RetryingLister[T]) backoff(attempt int) time.Duration {
	backoff := time.Duration(float64(l.opts.InitialBackoff) * math.Pow(l.opts.BackoffMultiplier, float64(attempt)))
	if l.opts.MaxBackoff > 0 && backoff > l.opts.MaxBackoff {
		backoff = l.opts.MaxBackoff
	}
	return backoff
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
