// Package ratelimit implements the per-domain courtesy policy applied
// before every remote fetch: a rolling request window, a concurrency cap,
// and a minimum delay between consecutive request starts. Waiters are
// served in FIFO order. Acquire never fails on its own; callers bound it
// with a context deadline.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Clock abstracts wall-clock access so the limiter can be driven by a
// fake clock in tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the default wall clock.
var SystemClock Clock = systemClock{}

type Config struct {
	Requests      int           // max request starts per Window
	Window        time.Duration // rolling window size
	MaxConcurrent int           // max in-flight requests per domain
	MinDelay      time.Duration // floor between consecutive request starts
}

type Limiter struct {
	cfg    Config
	clock  Clock
	logger *slog.Logger

	mu      sync.Mutex
	domains map[string]*domainState
}

type domainState struct {
	minDelay time.Duration
	history  []time.Time // request start times within the window, oldest first
	active   int
	queue    []*waiter
}

type waiter struct {
	ready chan struct{}
}

// Permit represents an in-flight request slot. Release must be called
// exactly once on every exit path; it is idempotent to make that easy.
type Permit struct {
	limiter *Limiter
	domain  string
	once    sync.Once
}

func (p *Permit) Release() {
	if p == nil {
		return
	}
	p.once.Do(func() { p.limiter.release(p.domain) })
}

func New(cfg Config, clock Clock, logger *slog.Logger) *Limiter {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		cfg:     cfg,
		clock:   clock,
		logger:  logger.With("component", "ratelimit"),
		domains: make(map[string]*domainState),
	}
}

// SetMinDelay raises the per-domain delay floor, e.g. from a robots.txt
// crawl-delay. It never lowers the configured minimum.
func (l *Limiter) SetMinDelay(domain string, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.state(domain)
	if d > st.minDelay {
		l.logger.Info("raising min delay", "domain", domain, "delay", d)
		st.minDelay = d
	}
}

// Acquire blocks until the domain's window, concurrency, and min-delay
// constraints all clear, in FIFO order with other waiters. The returned
// permit must be released when the request finishes.
func (l *Limiter) Acquire(ctx context.Context, domain string) (*Permit, error) {
	w := &waiter{ready: make(chan struct{}, 1)}

	l.mu.Lock()
	st := l.state(domain)
	st.queue = append(st.queue, w)

	for {
		now := l.clock.Now()
		st.prune(now, l.cfg.Window)

		if st.queue[0] == w {
			if st.active >= l.cfg.MaxConcurrent {
				// Nothing to wait on but a release.
				l.mu.Unlock()
				select {
				case <-ctx.Done():
					l.abandon(domain, w)
					return nil, ctx.Err()
				case <-w.ready:
				}
				l.mu.Lock()
				continue
			}

			wait := st.nextSlot(now, l.cfg)
			if wait <= 0 {
				st.queue = st.queue[1:]
				st.active++
				st.history = append(st.history, now)
				st.signalHead()
				l.mu.Unlock()
				return &Permit{limiter: l, domain: domain}, nil
			}

			l.mu.Unlock()
			select {
			case <-ctx.Done():
				l.abandon(domain, w)
				return nil, ctx.Err()
			case <-l.clock.After(wait):
			case <-w.ready:
			}
			l.mu.Lock()
			continue
		}

		// Not at the head yet; wait for a grant or release to move the queue.
		l.mu.Unlock()
		select {
		case <-ctx.Done():
			l.abandon(domain, w)
			return nil, ctx.Err()
		case <-w.ready:
		}
		l.mu.Lock()
	}
}

func (l *Limiter) release(domain string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.state(domain)
	if st.active > 0 {
		st.active--
	}
	st.signalHead()
}

func (l *Limiter) abandon(domain string, w *waiter) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.state(domain)
	for i, queued := range st.queue {
		if queued == w {
			st.queue = append(st.queue[:i], st.queue[i+1:]...)
			break
		}
	}
	st.signalHead()
}

// Stats is an advisory snapshot of one domain's limiter state.
type Stats struct {
	Active           int `json:"active"`
	Queued           int `json:"queued"`
	RequestsInWindow int `json:"requestsInWindow"`
}

func (l *Limiter) DomainStats(domain string) Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.domains[domain]
	if !ok {
		return Stats{}
	}
	st.prune(l.clock.Now(), l.cfg.Window)
	return Stats{
		Active:           st.active,
		Queued:           len(st.queue),
		RequestsInWindow: len(st.history),
	}
}

func (l *Limiter) AllStats() map[string]Stats {
	l.mu.Lock()
	domains := make([]string, 0, len(l.domains))
	for d := range l.domains {
		domains = append(domains, d)
	}
	l.mu.Unlock()

	out := make(map[string]Stats, len(domains))
	for _, d := range domains {
		out[d] = l.DomainStats(d)
	}
	return out
}

func (l *Limiter) state(domain string) *domainState {
	st, ok := l.domains[domain]
	if !ok {
		st = &domainState{minDelay: l.cfg.MinDelay}
		l.domains[domain] = st
	}
	return st
}

func (st *domainState) prune(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(st.history) && !st.history[i].After(cutoff) {
		i++
	}
	if i > 0 {
		st.history = append(st.history[:0], st.history[i:]...)
	}
}

// nextSlot returns how long the head waiter must still wait for the
// rolling-window and min-delay constraints. Zero or negative means go now.
func (st *domainState) nextSlot(now time.Time, cfg Config) time.Duration {
	var wait time.Duration

	if len(st.history) >= cfg.Requests {
		oldest := st.history[len(st.history)-cfg.Requests]
		if d := oldest.Add(cfg.Window).Sub(now); d > wait {
			wait = d
		}
	}

	if len(st.history) > 0 {
		last := st.history[len(st.history)-1]
		if d := st.minDelay - now.Sub(last); d > wait {
			wait = d
		}
	}

	return wait
}

func (st *domainState) signalHead() {
	if len(st.queue) == 0 {
		return
	}
	select {
	case st.queue[0].ready <- struct{}{}:
	default:
	}
}
