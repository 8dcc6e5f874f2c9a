package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"courseshop-be/internal/utils"

	"golang.org/x/time/rate"
)

const (
	WebhookPath        = "/orders/yookassa/webhook"
	CheckoutPathPrefix = "/orders/checkout/"
	ReturnPathPrefix   = "/orders/yookassa/"
	CoursesPathPrefix  = "/courses"
)

// Policy is a token bucket applied per caller to one class of routes.
type Policy struct {
	Name  string
	Limit rate.Limit
	Burst int
}

var (
	// Gateway notifications come from a few addresses and are retried in bursts.
	WebhookPolicy = Policy{Name: "webhook", Limit: 20, Burst: 50}
	// Every checkout submit opens a gateway payment session.
	CheckoutPolicy = Policy{Name: "checkout", Limit: 0.5, Burst: 3}
	// Return pages poll the gateway while an order is still pending.
	ReturnPolicy  = Policy{Name: "return", Limit: 2, Burst: 5}
	ContentPolicy = Policy{Name: "content", Limit: 10, Burst: 30}
	DefaultPolicy = Policy{Name: "default", Limit: 5, Burst: 10}
)

// PolicyFor picks the bucket class for a request.
func PolicyFor(r *http.Request) Policy {
	path := r.URL.Path
	switch {
	case path == WebhookPath:
		return WebhookPolicy
	case strings.HasPrefix(path, CheckoutPathPrefix):
		if r.Method == http.MethodPost {
			return CheckoutPolicy
		}
		return ContentPolicy
	case strings.HasPrefix(path, ReturnPathPrefix):
		return ReturnPolicy
	case strings.HasPrefix(path, CoursesPathPrefix):
		return ContentPolicy
	default:
		return DefaultPolicy
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one bucket per caller and policy.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	idleTTL time.Duration
	now     func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		idleTTL: 3 * time.Minute,
		now:     time.Now,
	}
}

func (l *RateLimiter) allow(key string, p Policy) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(p.Limit, p.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = l.now()
	return b.limiter.AllowN(b.lastSeen, 1)
}

// Sweep drops buckets idle for longer than the idle TTL.
func (l *RateLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, key)
		}
	}
}

// Run sweeps on every tick until ctx is done.
func (l *RateLimiter) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PolicyFor(r)
		key := callerKey(r, p) + ":" + p.Name

		if !l.allow(key, p) {
			w.Header().Set("Retry-After", "1")
			utils.WriteJSONError(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// callerKey identifies signed-in users by id and everyone else by address.
// Webhook calls are always keyed by address.
func callerKey(r *http.Request, p Policy) string {
	if p.Name != WebhookPolicy.Name {
		if userID, ok := utils.GetUserIDFromContext(r.Context()); ok {
			return "user:" + strconv.FormatInt(userID, 10)
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return "ip:" + ip
}
