package queue

import (
	"errors"
	"math/rand"
	"time"

	"github.com/ds124wfegd/railbook/internal/entity"
)

// ErrPermanent marks a handler failure that must go straight to the DLQ
var ErrPermanent = errors.New("permanent task failure")

// RetryManager manages retry logic for failed tasks
type RetryManager struct {
	baseDelay time.Duration
	maxDelay  time.Duration
}

func NewRetryManager(baseDelay time.Duration) *RetryManager {
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	return &RetryManager{
		baseDelay: baseDelay,
		maxDelay:  baseDelay * 16,
	}
}

// ShouldRetry determines if a task should be retried and returns the delay
func (r *RetryManager) ShouldRetry(task *Task, err error) (bool, time.Duration) {
	if task.Attempts >= task.MaxRetries {
		return false, 0
	}
	if !isRetryable(err) {
		return false, 0
	}
	return true, r.backoff(task.Attempts)
}

// a missing booking or user will not appear on retry
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrPermanent) {
		return false
	}
	switch entity.KindOf(err) {
	case entity.KindValidation, entity.KindNotFound, entity.KindAuthorization, entity.KindUnauthenticated:
		return false
	}
	return true
}

// backoff is base * 2^(attempt-1) with ±25% jitter, capped at maxDelay
func (r *RetryManager) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return r.baseDelay
	}

	delay := r.baseDelay << uint(attempt-1)
	if delay <= 0 || delay > r.maxDelay {
		delay = r.maxDelay
	}

	quarter := int64(delay / 4)
	if quarter > 0 {
		delay += time.Duration(rand.Int63n(2*quarter) - quarter)
	}
	return delay
}
