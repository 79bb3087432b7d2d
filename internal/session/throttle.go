package session

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// DefaultThrottleKeys caps how many identifiers get their own bucket.
const DefaultThrottleKeys = 10000

// LoginThrottle limits authentication attempts per identifier with a token
// bucket. A nil *LoginThrottle allows everything.
//
// Buckets untouched for a full refill window are equivalent to fresh ones and
// are dropped by Prune. Once MaxKeys identifiers are tracked, unseen
// identifiers share a single overflow bucket.
type LoginThrottle struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	overflow  *rate.Limiter
	rate      rate.Limit
	burst     int
	refill    time.Duration
	lastPrune time.Time

	// configuration knobs
	Clock   clockwork.Clock
	MaxKeys int
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLoginThrottle allows perMinute attempts per identifier with the given
// burst. It returns nil (throttling disabled) when perMinute <= 0.
func NewLoginThrottle(perMinute, burst int) *LoginThrottle {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	interval := time.Minute / time.Duration(perMinute)
	return &LoginThrottle{
		buckets:  make(map[string]*bucket),
		overflow: rate.NewLimiter(rate.Every(interval), burst),
		rate:     rate.Every(interval),
		burst:    burst,
		refill:   interval * time.Duration(burst),
		Clock:    clockwork.NewRealClock(),
		MaxKeys:  DefaultThrottleKeys,
	}
}

// ThrottleFromEnv reads LOGIN_RATE_PER_MINUTE, LOGIN_BURST and
// LOGIN_THROTTLE_MAX_KEYS.
func ThrottleFromEnv() *LoginThrottle {
	perMinute, _ := strconv.Atoi(os.Getenv("LOGIN_RATE_PER_MINUTE"))
	burst, _ := strconv.Atoi(os.Getenv("LOGIN_BURST"))
	if burst == 0 {
		burst = 5
	}
	t := NewLoginThrottle(perMinute, burst)
	if n, err := strconv.Atoi(os.Getenv("LOGIN_THROTTLE_MAX_KEYS")); t != nil && err == nil && n > 0 {
		t.MaxKeys = n
	}
	return t
}

// Allow consumes one attempt for identifier.
func (t *LoginThrottle) Allow(identifier string) bool {
	if t == nil {
		return true
	}
	key := strings.ToLower(identifier)
	now := t.Clock.Now()

	t.mu.Lock()
	b, ok := t.buckets[key]
	if !ok && len(t.buckets) >= t.MaxKeys && now.Sub(t.lastPrune) >= t.refill {
		t.prune(now)
	}
	if !ok && len(t.buckets) >= t.MaxKeys {
		t.mu.Unlock()
		return t.overflow.AllowN(now, 1)
	}
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(t.rate, t.burst)}
		t.buckets[key] = b
	}
	b.lastSeen = now
	t.mu.Unlock()

	return b.limiter.AllowN(now, 1)
}

// Prune drops buckets idle for at least one refill window and reports how
// many were removed.
func (t *LoginThrottle) Prune() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prune(t.Clock.Now())
}

func (t *LoginThrottle) prune(now time.Time) int {
	n := 0
	for k, b := range t.buckets {
		if now.Sub(b.lastSeen) >= t.refill {
			delete(t.buckets, k)
			n++
		}
	}
	t.lastPrune = now
	return n
}

// Len reports how many identifiers currently hold a bucket.
func (t *LoginThrottle) Len() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buckets)
}
