package throttle

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Memory is an in-process Limiter with one rate.Limiter per client id.
type Memory struct {
	limit      Limit
	idleTTL    time.Duration
	sweepEvery time.Duration
	now        func() time.Time

	buckets sync.Map // client id -> *bucket
}

type bucket struct {
	mu       sync.Mutex
	lim      *rate.Limiter
	lastSeen time.Time
	evicted  bool
}

// MemoryOption configures a Memory limiter.
type MemoryOption func(*Memory)

// WithIdleTTL sets how long a bucket may go unused before the janitor drops it.
func WithIdleTTL(d time.Duration) MemoryOption {
	return func(m *Memory) { m.idleTTL = d }
}

// WithSweepEvery sets the janitor interval. Zero disables the janitor.
func WithSweepEvery(d time.Duration) MemoryOption {
	return func(m *Memory) { m.sweepEvery = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates an in-memory limiter. The idle TTL is raised to the
// window when set lower, so a swept bucket is always a full one.
func NewMemory(limit Limit, opts ...MemoryOption) (*Memory, error) {
	if err := limit.validate(); err != nil {
		return nil, err
	}
	m := &Memory{
		limit:      limit,
		idleTTL:    15 * time.Minute,
		sweepEvery: 2 * time.Minute,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.idleTTL < limit.Window {
		m.idleTTL = limit.Window
	}
	return m, nil
}

// Limit returns the bucket shape.
func (m *Memory) Limit() Limit {
	return m.limit
}

func (m *Memory) bucket(clientID string, now time.Time) *bucket {
	if b, ok := m.buckets.Load(clientID); ok {
		return b.(*bucket)
	}
	// A new rate.Limiter reports a full bucket on first use.
	fresh := &bucket{
		lim:      rate.NewLimiter(rate.Every(m.limit.perToken()), m.limit.Capacity),
		lastSeen: now,
	}
	b, _ := m.buckets.LoadOrStore(clientID, fresh)
	return b.(*bucket)
}

// TryConsume implements Limiter. It never blocks on other clients.
func (m *Memory) TryConsume(_ context.Context, clientID string) (Decision, error) {
	for {
		now := m.now()
		b := m.bucket(clientID, now)

		b.mu.Lock()
		if b.evicted {
			// Lost a race with Sweep; the replacement bucket is created on retry.
			b.mu.Unlock()
			continue
		}
		b.lastSeen = now
		admitted := b.lim.AllowN(now, 1)
		tokens := b.lim.TokensAt(now)
		b.mu.Unlock()

		d := Decision{Admitted: admitted}
		if admitted {
			d.Remaining = int64(math.Floor(math.Max(tokens, 0)))
		} else {
			d.RetryAfter = m.limit.retryAfter(tokens)
		}
		return d, nil
	}
}

// Sweep drops buckets idle for at least the idle TTL and returns how many
// were removed.
func (m *Memory) Sweep() int {
	now := m.now()
	removed := 0
	m.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		if now.Sub(b.lastSeen) >= m.idleTTL {
			b.evicted = true
			m.buckets.Delete(key)
			removed++
		}
		b.mu.Unlock()
		return true
	})
	return removed
}

// Len returns the number of live buckets.
func (m *Memory) Len() int {
	n := 0
	m.buckets.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// StartJanitor sweeps idle buckets periodically until ctx is done.
func (m *Memory) StartJanitor(ctx context.Context) {
	if m.sweepEvery <= 0 {
		return
	}

	t := time.NewTicker(m.sweepEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := m.Sweep(); n > 0 {
					slog.Debug("throttle: swept idle buckets", "removed", n, "remaining", m.Len())
				}
			}
		}
	}()
}
