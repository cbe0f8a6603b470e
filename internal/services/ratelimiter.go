package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/a-abukar/cv-review-generator/internal/models"
)

const (
	PolicyGeneral = "general"
	PolicySummary = "summary"
)

type RateLimitPolicy struct {
	Name   string
	Window time.Duration
	Limit  int
}

// SlidingWindowLimiter admits at most Limit requests per key in any trailing Window.
// Rejected requests are not counted.
type SlidingWindowLimiter struct {
	policy RateLimitPolicy
	now    func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time
}

func NewSlidingWindowLimiter(policy RateLimitPolicy) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		policy: policy,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

func (l *SlidingWindowLimiter) Policy() RateLimitPolicy {
	return l.policy
}

// Allow records a request for key if the policy admits it. The check and the
// increment happen under one lock.
func (l *SlidingWindowLimiter) Allow(key string) (models.ClientQuota, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	hits := l.prune(key, now)

	quota := models.ClientQuota{
		ClientKey: key,
		Policy:    l.policy.Name,
		Limit:     l.policy.Limit,
		Count:     len(hits),
	}

	if len(hits) >= l.policy.Limit {
		next := hits[0].Add(l.policy.Window)
		quota.WindowStart = hits[0]
		quota.ResetAt = next
		quota.NextAvailableAt = &next
		return quota, false
	}

	hits = append(hits, now)
	l.hits[key] = hits

	quota.Count = len(hits)
	quota.WindowStart = hits[0]
	quota.ResetAt = hits[0].Add(l.policy.Window)
	return quota, true
}

// prune drops hits that fell out of the window. Callers hold l.mu.
func (l *SlidingWindowLimiter) prune(key string, now time.Time) []time.Time {
	hits := l.hits[key]
	cutoff := now.Add(-l.policy.Window)
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return hits
	}
	hits = append(hits[:0:0], hits[i:]...)
	if len(hits) == 0 {
		delete(l.hits, key)
		return nil
	}
	l.hits[key] = hits
	return hits
}

// Sweep removes keys whose windows have fully elapsed and reports how many it removed.
func (l *SlidingWindowLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key := range l.hits {
		if len(l.prune(key, now)) == 0 {
			removed++
		}
	}
	return removed
}

func (l *SlidingWindowLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

// StartJanitor sweeps every interval until ctx is done.
func (l *SlidingWindowLimiter) StartJanitor(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := l.Sweep(); n > 0 {
					logger.Debug("🧹 Expired rate-limit entries removed", "policy", l.policy.Name, "removed", n)
				}
			}
		}
	}()
}
