package security

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultRateLimiterMaxEntries bounds the number of tracked identifiers.
	DefaultRateLimiterMaxEntries = 10000

	defaultRateLimiterCleanupInterval = 5 * time.Minute
	defaultRateLimiterMaxIdle         = 30 * time.Minute
)

type limiterEntry struct {
	identifier string
	limiter    *rate.Limiter
	lastSeen   time.Time
}

// RateLimiter is a per-identifier token bucket. When more than maxEntries
// identifiers are tracked the least recently used one is evicted.
type RateLimiter struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	lru        *list.List // front = most recently used
	rate       rate.Limit
	burst      int
	maxEntries int
	logger     *slog.Logger

	evictions   int64
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewRateLimiter creates a limiter allowing requestsPerSecond with the given
// burst per identifier and starts its idle cleanup loop.
func NewRateLimiter(requestsPerSecond, burst int, logger *slog.Logger) *RateLimiter {
	return NewRateLimiterWithConfig(requestsPerSecond, burst, DefaultRateLimiterMaxEntries, logger)
}

// NewRateLimiterWithConfig is NewRateLimiter with an explicit entry bound.
// maxEntries of 0 disables eviction.
func NewRateLimiterWithConfig(requestsPerSecond, burst, maxEntries int, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	if maxEntries < 0 {
		logger.Warn("Invalid rate limiter max entries, using default", "max_entries", maxEntries)
		maxEntries = DefaultRateLimiterMaxEntries
	}
	if burst <= 0 {
		burst = requestsPerSecond
	}

	rl := &RateLimiter{
		entries:     make(map[string]*list.Element),
		lru:         list.New(),
		rate:        rate.Limit(requestsPerSecond),
		burst:       burst,
		maxEntries:  maxEntries,
		logger:      logger,
		stopCleanup: make(chan struct{}),
	}

	go rl.cleanupLoop(defaultRateLimiterCleanupInterval)

	return rl
}

// Allow consumes one token for identifier and reports whether it was available.
func (rl *RateLimiter) Allow(identifier string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if elem, ok := rl.entries[identifier]; ok {
		rl.lru.MoveToFront(elem)
		entry := elem.Value.(*limiterEntry)
		entry.lastSeen = now
		return entry.limiter.AllowN(now, 1)
	}

	if rl.maxEntries > 0 && len(rl.entries) >= rl.maxEntries {
		rl.evictOldest()
	}

	entry := &limiterEntry{
		identifier: identifier,
		limiter:    rate.NewLimiter(rl.rate, rl.burst),
		lastSeen:   now,
	}
	rl.entries[identifier] = rl.lru.PushFront(entry)

	return entry.limiter.AllowN(now, 1)
}

// evictOldest must be called with rl.mu held.
func (rl *RateLimiter) evictOldest() {
	elem := rl.lru.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*limiterEntry)
	rl.lru.Remove(elem)
	delete(rl.entries, entry.identifier)
	rl.evictions++

	rl.logger.Debug("Rate limiter evicted identifier",
		"total_evictions", rl.evictions,
		"current_entries", len(rl.entries))
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Cleanup(defaultRateLimiterMaxIdle)
		case <-rl.stopCleanup:
			return
		}
	}
}

// Cleanup drops identifiers idle for longer than maxIdle and returns how many
// were removed.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	removed := 0

	// The list is ordered by recency, so stop at the first fresh entry.
	for elem := rl.lru.Back(); elem != nil; {
		entry := elem.Value.(*limiterEntry)
		if !entry.lastSeen.Before(cutoff) {
			break
		}
		prev := elem.Prev()
		rl.lru.Remove(elem)
		delete(rl.entries, entry.identifier)
		removed++
		elem = prev
	}

	if removed > 0 {
		rl.logger.Debug("Rate limiter cleanup completed", "removed", removed, "remaining", len(rl.entries))
	}
	return removed
}

// Len returns the number of tracked identifiers.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}

// Evictions returns the number of LRU evictions performed so far.
func (rl *RateLimiter) Evictions() int64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.evictions
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}
