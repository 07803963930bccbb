package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Stats is a point-in-time view of a Group.
type Stats struct {
	Running  int `json:"running"`
	Queued   int `json:"queued"`
	Limiters int `json:"limiters"`
}

// member is one keyed Limiter and its use.
type member struct {
	limiter  *Limiter
	users    int
	lastUsed time.Time
}

// Group hands out Limiters by key. A per-key Group creates one Limiter per
// key on first use; a shared Group uses a single Limiter for every key.
type Group struct {
	opts   Options
	perKey bool
	now    func() time.Time

	mu      sync.Mutex
	members map[string]*member
	closed  bool
}

// NewGroup returns a Group. When perKey is false every key maps to the
// same Limiter.
func NewGroup(opts Options, perKey bool) *Group {
	return &Group{
		opts:    opts,
		perKey:  perKey,
		now:     time.Now,
		members: make(map[string]*member),
	}
}

// acquire returns the member for key, creating it if needed. With hold
// set the member counts one more user until release.
func (g *Group) acquire(key string, hold bool) (*member, error) {
	if !g.perKey {
		key = ""
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, ErrClosed
	}
	m, ok := g.members[key]
	if !ok {
		m = &member{limiter: NewLimiter(g.opts)}
		g.members[key] = m
	}
	if hold {
		m.users++
	}
	m.lastUsed = g.now()
	return m, nil
}

func (g *Group) release(m *member) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m.users--
	m.lastUsed = g.now()
}

// Limiter returns the Limiter for key, creating it if needed. A Limiter
// obtained here is not tracked as in use and may be evicted by EvictIdle;
// Schedule keeps it alive for the duration of the call.
func (g *Group) Limiter(key string) (*Limiter, error) {
	m, err := g.acquire(key, false)
	if err != nil {
		return nil, err
	}
	return m.limiter, nil
}

// Schedule runs fn under the Limiter for key.
func (g *Group) Schedule(ctx context.Context, key string, fn func(context.Context) error) error {
	m, err := g.acquire(key, true)
	if err != nil {
		return err
	}
	defer g.release(m)
	return m.limiter.Schedule(ctx, fn)
}

// EvictIdle closes and forgets the Limiters that have no callers and have
// been unused long enough to be back at full capacity. It returns how many
// were removed.
func (g *Group) EvictIdle() int {
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for key, m := range g.members {
		if m.users > 0 || now.Sub(m.lastUsed) < m.limiter.recovery() {
			continue
		}
		m.limiter.Close()
		delete(g.members, key)
		n++
	}
	return n
}

// Stats sums running and queued counts over all Limiters.
func (g *Group) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Stats{Limiters: len(g.members)}
	for _, m := range g.members {
		s.Running += m.limiter.Running()
		s.Queued += m.limiter.Queued()
	}
	return s
}

// Clear drops queued work on every Limiter.
func (g *Group) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range g.members {
		m.limiter.Clear()
	}
}

// Close closes every Limiter. Later calls to Schedule fail with ErrClosed.
func (g *Group) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	for _, m := range g.members {
		m.limiter.Close()
	}
}
