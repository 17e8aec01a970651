package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Circuit breaker states
const (
	CircuitClosed   = "closed"
	CircuitOpen     = "open"
	CircuitHalfOpen = "half-open"
)

// CircuitBreaker tracks consecutive upstream failures in Redis. While open,
// runs are refused before any request is made. It never retries anything.
//
// - Closed: normal operation, failed runs are counted.
// - Open: runs are refused until the cooldown elapses.
// - Half-open: one run is let through. Success closes, failure reopens.
type CircuitBreaker struct {
	redisClient      *redis.Client
	logger           *slog.Logger
	failureThreshold int
	cooldownPeriod   time.Duration
	now              func() time.Time
}

// CircuitBreakerState is the externally visible state of one upstream.
type CircuitBreakerState struct {
	State        string `json:"state"`
	Failures     int    `json:"failures"`
	LastFailedAt string `json:"last_failed_at,omitempty"`
}

func NewCircuitBreaker(redisClient *redis.Client, logger *slog.Logger, failureThreshold int, cooldown time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		redisClient:      redisClient,
		logger:           logger,
		failureThreshold: failureThreshold,
		cooldownPeriod:   cooldown,
		now:              time.Now,
	}
}

func cbKey(upstream string) string {
	return fmt.Sprintf("leadsync:cb:%s", upstream)
}

// AllowRequest returns the current state and whether a run may call upstream.
func (cb *CircuitBreaker) AllowRequest(ctx context.Context, upstream string) (string, bool) {
	key := cbKey(upstream)

	data, err := cb.redisClient.HGetAll(ctx, key).Result()
	if err != nil || len(data) == 0 {
		return CircuitClosed, true
	}

	switch data["state"] {
	case CircuitOpen:
		lastFailedAt, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)
		if !cb.cooledDown(lastFailedAt) {
			return CircuitOpen, false
		}
		cb.redisClient.HSet(ctx, key, "state", CircuitHalfOpen)
		cb.logger.Info("circuit breaker half-open", "upstream", upstream)
		return CircuitHalfOpen, true

	case CircuitHalfOpen:
		return CircuitHalfOpen, true

	default:
		return CircuitClosed, true
	}
}

// RecordSuccess resets the circuit to closed.
func (cb *CircuitBreaker) RecordSuccess(ctx context.Context, upstream string) {
	key := cbKey(upstream)

	state, _ := cb.redisClient.HGet(ctx, key, "state").Result()

	cb.redisClient.HSet(ctx, key,
		"state", CircuitClosed,
		"failures", 0,
	)

	if state == CircuitHalfOpen || state == CircuitOpen {
		cb.logger.Info("circuit breaker closed (recovered)", "upstream", upstream)
	}
}

// RecordFailure counts a failure and opens the circuit at the threshold.
func (cb *CircuitBreaker) RecordFailure(ctx context.Context, upstream string) {
	key := cbKey(upstream)

	failures, err := cb.redisClient.HIncrBy(ctx, key, "failures", 1).Result()
	if err != nil {
		cb.logger.Error("failed to record circuit breaker failure", "error", err, "upstream", upstream)
		return
	}

	cb.redisClient.HSet(ctx, key, "last_failed_at", cb.now().Unix())

	state, _ := cb.redisClient.HGet(ctx, key, "state").Result()

	switch {
	case state == CircuitHalfOpen:
		cb.redisClient.HSet(ctx, key, "state", CircuitOpen)
		cb.logger.Warn("circuit breaker re-opened (half-open test failed)", "upstream", upstream)
	case failures >= int64(cb.failureThreshold):
		cb.redisClient.HSet(ctx, key, "state", CircuitOpen)
		cb.logger.Warn("circuit breaker opened",
			"upstream", upstream,
			"failures", failures,
			"threshold", cb.failureThreshold,
		)
	case state == "":
		cb.redisClient.HSet(ctx, key, "state", CircuitClosed)
	}
}

// GetState returns the circuit state for upstream without changing it.
func (cb *CircuitBreaker) GetState(ctx context.Context, upstream string) CircuitBreakerState {
	data, err := cb.redisClient.HGetAll(ctx, cbKey(upstream)).Result()
	if err != nil || len(data) == 0 {
		return CircuitBreakerState{State: CircuitClosed}
	}

	failures, _ := strconv.Atoi(data["failures"])
	lastFailedAt, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)

	state := data["state"]
	if state == "" {
		state = CircuitClosed
	}
	if state == CircuitOpen && cb.cooledDown(lastFailedAt) {
		state = CircuitHalfOpen
	}

	result := CircuitBreakerState{State: state, Failures: failures}
	if lastFailedAt > 0 {
		result.LastFailedAt = time.Unix(lastFailedAt, 0).UTC().Format(time.RFC3339)
	}
	return result
}

func (cb *CircuitBreaker) cooledDown(lastFailedAt int64) bool {
	return cb.now().Unix()-lastFailedAt >= int64(cb.cooldownPeriod.Seconds())
}
