package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"golang.org/x/time/rate"

	"github.com/guardianhq/guardian/internal/metrics"
)

// clientIdleTTL bounds how long an idle client's bucket is retained.
const clientIdleTTL = 10 * time.Minute

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttle is a per-client token bucket for admin calls. Clients are keyed
// by remote IP, so it belongs after chi's RealIP middleware.
type Throttle struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*clientBucket
	sweepAt time.Time
}

// NewThrottle allows perSecond requests per client with the given burst.
// A non-positive perSecond disables throttling.
func NewThrottle(perSecond float64, burst int) *Throttle {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttle{
		limit:   limit,
		burst:   burst,
		now:     time.Now,
		clients: make(map[string]*clientBucket),
	}
}

// Handler is the middleware.
func (t *Throttle) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reservation := t.bucket(clientKey(r)).ReserveN(t.now(), 1)
		if delay := reservation.DelayFrom(t.now()); delay > 0 {
			reservation.CancelAt(t.now())
			retryAfter := int(math.Ceil(delay.Seconds()))
			envelope := errors.NewErrorEnvelope("RATE_LIMITED", "too many admin requests").
				WithCorrelationID(GetRequestID(r.Context()))
			envelope, _ = envelope.WithContext(map[string]interface{}{
				"retry_after_seconds": retryAfter,
			})
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			metrics.RecordAdminRejection("throttled")
			writeEnvelope(w, envelope, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (t *Throttle) bucket(key string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if now.After(t.sweepAt) {
		for k, b := range t.clients {
			if now.Sub(b.lastSeen) > clientIdleTTL {
				delete(t.clients, k)
			}
		}
		t.sweepAt = now.Add(clientIdleTTL)
	}

	b, ok := t.clients[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.clients[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
