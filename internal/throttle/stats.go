package throttle

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is one throttle decision. Events carry no client id: client ids are
// unbounded, so counters are kept per path and per minute only.
type Event struct {
	Admitted bool
	Path     string
	At       time.Time
}

// RecentMinutes is how many minutes Snapshot reports in ByMinute.
const RecentMinutes = 60

// minuteLayout keys ByMinute in snapshots.
const minuteLayout = "2006-01-02T15:04Z"

// Counters holds admitted and rejected totals.
type Counters struct {
	Admitted int64 `json:"admitted"`
	Rejected int64 `json:"rejected"`
}

func (c *Counters) add(admitted bool) {
	if admitted {
		c.Admitted++
	} else {
		c.Rejected++
	}
}

// Snapshot is a point-in-time view of the stats.
type Snapshot struct {
	Total  Counters            `json:"total"`
	ByPath map[string]Counters `json:"by_path,omitempty"`
	// ByMinute holds the last RecentMinutes minutes that saw a decision,
	// keyed by UTC minute ("2006-01-02T15:04Z").
	ByMinute map[string]Counters `json:"by_minute,omitempty"`
}

// StatsRecorder stores throttle decisions. Recording is best effort: the
// middleware logs errors and never fails a request because of them.
type StatsRecorder interface {
	Record(ctx context.Context, ev Event) error
	Snapshot(ctx context.Context) (Snapshot, error)
}

// MemoryStats keeps counters in process. Totals never expire; minute
// counters older than RecentMinutes are dropped on the next Record.
type MemoryStats struct {
	mu       sync.Mutex
	total    Counters
	byPath   map[string]Counters
	byMinute map[int64]Counters // unix minute -> counters
	now      func() time.Time
}

// NewMemoryStats creates empty in-memory stats.
func NewMemoryStats() *MemoryStats {
	return &MemoryStats{
		byPath:   make(map[string]Counters),
		byMinute: make(map[int64]Counters),
		now:      time.Now,
	}
}

func unixMinute(t time.Time) int64 {
	return t.Unix() / 60
}

// Record implements StatsRecorder.
func (s *MemoryStats) Record(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := ev.At
	if at.IsZero() {
		at = s.now()
	}

	s.total.add(ev.Admitted)
	if ev.Path != "" {
		c := s.byPath[ev.Path]
		c.add(ev.Admitted)
		s.byPath[ev.Path] = c
	}

	m := unixMinute(at)
	c := s.byMinute[m]
	c.add(ev.Admitted)
	s.byMinute[m] = c

	for k := range s.byMinute {
		if k <= m-RecentMinutes {
			delete(s.byMinute, k)
		}
	}
	return nil
}

// Snapshot implements StatsRecorder.
func (s *MemoryStats) Snapshot(_ context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Snapshot{
		Total:    s.total,
		ByPath:   make(map[string]Counters, len(s.byPath)),
		ByMinute: make(map[string]Counters),
	}
	for k, v := range s.byPath {
		out.ByPath[k] = v
	}

	now := unixMinute(s.now())
	for m, v := range s.byMinute {
		if m > now-RecentMinutes && m <= now {
			out.ByMinute[time.Unix(m*60, 0).UTC().Format(minuteLayout)] = v
		}
	}
	return out, nil
}

// RedisStats keeps counters in Redis hashes:
//
//	<prefix>:total               admitted/rejected, never expires
//	<prefix>:minute:YYYYMMDDhhmm admitted/rejected per minute, expires after ttl
//	<prefix>:path                "<path>:admitted" / "<path>:rejected"
type RedisStats struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStats creates Redis-backed stats. An empty prefix uses
// "txtconvert:throttle:stats"; a non-positive ttl keeps minute buckets for a day.
func NewRedisStats(rdb *redis.Client, prefix string, ttl time.Duration) *RedisStats {
	prefix = strings.Trim(prefix, ":")
	if prefix == "" {
		prefix = "txtconvert:throttle:stats"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStats{rdb: rdb, prefix: prefix, ttl: ttl, now: time.Now}
}

func (s *RedisStats) minuteKey(t time.Time) string {
	return fmt.Sprintf("%s:minute:%s", s.prefix, t.UTC().Format("200601021504"))
}

func field(admitted bool) string {
	if admitted {
		return "admitted"
	}
	return "rejected"
}

// Record implements StatsRecorder with a single pipelined round trip.
func (s *RedisStats) Record(ctx context.Context, ev Event) error {
	at := ev.At
	if at.IsZero() {
		at = s.now()
	}
	f := field(ev.Admitted)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", f, 1)

	bucketKey := s.minuteKey(at)
	pipe.HIncrBy(ctx, bucketKey, f, 1)
	pipe.Expire(ctx, bucketKey, s.ttl)

	if p := strings.TrimSpace(ev.Path); p != "" {
		pipe.HIncrBy(ctx, s.prefix+":path", p+":"+f, 1)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// Snapshot implements StatsRecorder. Totals, paths and the last
// RecentMinutes minute hashes are read in one pipelined round trip.
func (s *RedisStats) Snapshot(ctx context.Context) (Snapshot, error) {
	now := s.now().UTC().Truncate(time.Minute)

	pipe := s.rdb.Pipeline()
	totalCmd := pipe.HGetAll(ctx, s.prefix+":total")
	pathCmd := pipe.HGetAll(ctx, s.prefix+":path")
	minuteCmds := make([]*redis.MapStringStringCmd, RecentMinutes)
	for i := range minuteCmds {
		minuteCmds[i] = pipe.HGetAll(ctx, s.minuteKey(now.Add(-time.Duration(i)*time.Minute)))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return Snapshot{}, fmt.Errorf("throttle: read stats: %w", err)
	}

	out := Snapshot{ByPath: make(map[string]Counters), ByMinute: make(map[string]Counters)}
	for i, cmd := range minuteCmds {
		v := cmd.Val()
		if len(v) == 0 {
			continue
		}
		at := now.Add(-time.Duration(i) * time.Minute)
		out.ByMinute[at.Format(minuteLayout)] = Counters{
			Admitted: parseCount(v["admitted"]),
			Rejected: parseCount(v["rejected"]),
		}
	}

	total := totalCmd.Val()
	out.Total.Admitted = parseCount(total["admitted"])
	out.Total.Rejected = parseCount(total["rejected"])

	for k, v := range pathCmd.Val() {
		i := strings.LastIndex(k, ":")
		if i <= 0 {
			continue
		}
		path, kind := k[:i], k[i+1:]
		c := out.ByPath[path]
		switch kind {
		case "admitted":
			c.Admitted = parseCount(v)
		case "rejected":
			c.Rejected = parseCount(v)
		}
		out.ByPath[path] = c
	}
	return out, nil
}

func parseCount(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
