package scraper

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter spaces out requests per host. Hosts without an explicit
// interval share the default rate.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limits   map[string]rate.Limit
	def      rate.Limit
}

// NewHostLimiter allows perSecond requests per host; <= 0 means unlimited
func NewHostLimiter(perSecond float64) *HostLimiter {
	def := rate.Inf
	if perSecond > 0 {
		def = rate.Limit(perSecond)
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		limits:   make(map[string]rate.Limit),
		def:      def,
	}
}

// SetInterval overrides the spacing for one host
func (l *HostLimiter) SetInterval(host string, every time.Duration) {
	if every <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := hostKey(host)
	l.limits[key] = rate.Every(every)
	delete(l.limiters, key)
}

func (l *HostLimiter) Wait(ctx context.Context, target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return err
	}
	return l.limiter(u.Hostname()).Wait(ctx)
}

func (l *HostLimiter) limiter(host string) *rate.Limiter {
	key := hostKey(host)

	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.limiters[key]; ok {
		return lim
	}
	limit, ok := l.limits[key]
	if !ok {
		limit = l.def
	}
	lim := rate.NewLimiter(limit, 1)
	l.limiters[key] = lim
	return lim
}

func hostKey(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
