package auth

import (
	"sync"
	"time"
)

// ──────────────────────────────────────────────────────────────────────
// Per-Identity Login Attempt Limiter
//
// A login attempt is expensive (a full DSP pipeline run) and the thing it
// threatens isn't a network address, it's one user's enrolled template —
// an attacker brute-forcing a specific victim can trivially rotate source
// IPs, so bucketing by IP (the teacher's ratelimit.go) doesn't defend the
// thing that actually matters here. Buckets are keyed by normalized user
// id instead, falling back to remote address only for an unscoped login
// that names no candidate.
//
// A background goroutine evicts buckets idle for more than
// loginLimiterCleanupIdle to bound memory growth from one-off identities.
// ──────────────────────────────────────────────────────────────────────

const (
	maxLoginAttempts        = 5
	loginAttemptWindow      = 5 * time.Minute
	loginLimiterCleanupIdle = 30 * time.Minute
)

type attemptBucket struct {
	tokens   float64
	lastSeen time.Time
	mu       sync.Mutex
}

// loginLimiter is a token bucket per identity: each starts with a full
// bucket of burst tokens, refilling at burst/window tokens per second.
type loginLimiter struct {
	rate  float64 // tokens added per second
	burst float64

	mu      sync.Mutex
	buckets map[string]*attemptBucket
}

func newLoginLimiter(burst int, window time.Duration) *loginLimiter {
	l := &loginLimiter{
		rate:    float64(burst) / window.Seconds(),
		burst:   float64(burst),
		buckets: make(map[string]*attemptBucket),
	}
	go l.cleanupLoop()
	return l
}

// allow reports whether identity has an attempt left in its current budget,
// consuming one token if so. An empty identity is never throttled.
func (l *loginLimiter) allow(identity string) bool {
	if identity == "" {
		return true
	}

	l.mu.Lock()
	bucket, ok := l.buckets[identity]
	if !ok {
		bucket = &attemptBucket{tokens: l.burst}
		l.buckets[identity] = bucket
	}
	l.mu.Unlock()

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(bucket.lastSeen).Seconds()
	bucket.tokens += elapsed * l.rate
	if bucket.tokens > l.burst {
		bucket.tokens = l.burst
	}
	bucket.lastSeen = now

	if bucket.tokens < 1.0 {
		return false
	}
	bucket.tokens--
	return true
}

// cleanupLoop removes buckets idle for more than loginLimiterCleanupIdle.
func (l *loginLimiter) cleanupLoop() {
	ticker := time.NewTicker(loginLimiterCleanupIdle)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-loginLimiterCleanupIdle)
		l.mu.Lock()
		for id, b := range l.buckets {
			b.mu.Lock()
			idle := b.lastSeen.Before(cutoff)
			b.mu.Unlock()
			if idle {
				delete(l.buckets, id)
			}
		}
		l.mu.Unlock()
	}
}
