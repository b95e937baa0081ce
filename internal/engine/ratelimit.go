package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Admission control per caller identifier: sliding window, capacity N per
// window. Two interchangeable backends, selected once at startup by
// configuration presence and fixed for the process lifetime:
//   - redisLimiter: window state in a Redis sorted set, shared across replicas
//   - memoryLimiter: in-process timestamp map with a periodic sweep
// CheckLimit never fails the request pipeline: any backend error falls
// through to the in-process window.

// RateLimitDecision is the per-call admission outcome. Never persisted.
type RateLimitDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration // hint for denied callers
}

// anonIdentifier buckets callers with no usable identifier together rather
// than letting them bypass the limiter.
const anonIdentifier = "anon"

type limiterBackend interface {
	check(ctx context.Context, id string) (RateLimitDecision, error)
}

var activeLimiter limiterBackend

// InitLimiter selects the rate-limit backend. Call after Init().
// redisURL can be empty to force the in-process window.
func InitLimiter(redisURL string, capacity int, window time.Duration) {
	mem := newMemoryLimiter(capacity, window)
	go mem.sweepLoop(5 * time.Minute)

	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Warn("limiter: invalid redis URL, using in-process window", slog.Any("error", err))
		} else {
			rdb := redis.NewClient(opts)
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				slog.Warn("limiter: redis unreachable, using in-process window", slog.Any("error", err))
			} else {
				activeLimiter = &redisLimiter{rdb: rdb, capacity: capacity, window: window, fallback: mem}
				slog.Info("limiter: distributed backend selected", slog.String("addr", opts.Addr))
				return
			}
		}
	}

	activeLimiter = mem
	slog.Info("limiter: in-process backend selected",
		slog.Int("capacity", capacity), slog.Duration("window", window))
}

// CheckLimit returns an admission decision for the given caller identifier.
// It never returns an error: backend failures degrade to the in-process
// window, and an uninitialized limiter allows everything.
func CheckLimit(ctx context.Context, id string) RateLimitDecision {
	if id == "" {
		id = anonIdentifier
	}
	if activeLimiter == nil {
		return RateLimitDecision{Allowed: true, Remaining: cfg.RateLimitCapacity}
	}
	d, err := activeLimiter.check(ctx, id)
	if err != nil {
		// Only the redis backend can error; its embedded fallback already
		// produced a decision in that path, so this is belt and braces.
		slog.Warn("limiter: backend check failed, allowing", slog.Any("error", err))
		return RateLimitDecision{Allowed: true, Remaining: 0}
	}
	if !d.Allowed {
		metrics.RateLimited.Add(1)
	}
	return d
}

// --- In-process backend ---

type memoryLimiter struct {
	mu       sync.Mutex
	buckets  map[string][]time.Time
	capacity int
	window   time.Duration
	now      func() time.Time // injectable for tests
}

func newMemoryLimiter(capacity int, window time.Duration) *memoryLimiter {
	return &memoryLimiter{
		buckets:  make(map[string][]time.Time),
		capacity: capacity,
		window:   window,
		now:      time.Now,
	}
}

func (m *memoryLimiter) check(_ context.Context, id string) (RateLimitDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	stamps := m.prune(m.buckets[id], now)

	if len(stamps) >= m.capacity {
		m.buckets[id] = stamps
		retry := stamps[0].Add(m.window).Sub(now)
		if retry < 0 {
			retry = 0
		}
		return RateLimitDecision{Allowed: false, Remaining: 0, RetryAfter: retry}, nil
	}

	stamps = append(stamps, now)
	m.buckets[id] = stamps
	return RateLimitDecision{Allowed: true, Remaining: m.capacity - len(stamps)}, nil
}

// prune drops timestamps older than the trailing window.
func (m *memoryLimiter) prune(stamps []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-m.window)
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	return stamps[i:]
}

// sweepLoop removes stale keys so abandoned identifiers don't grow the map.
func (m *memoryLimiter) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		m.sweep()
	}
}

func (m *memoryLimiter) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, stamps := range m.buckets {
		if pruned := m.prune(stamps, now); len(pruned) == 0 {
			delete(m.buckets, id)
		} else {
			m.buckets[id] = pruned
		}
	}
}

// --- Distributed backend ---

// redisLimiter keeps each identifier's window in a sorted set scored by
// request time. Entries older than the window are trimmed before counting.
type redisLimiter struct {
	rdb      *redis.Client
	capacity int
	window   time.Duration
	fallback *memoryLimiter
	seq      atomic.Int64 // disambiguates same-nanosecond members
}

func (r *redisLimiter) check(ctx context.Context, id string) (RateLimitDecision, error) {
	d, err := r.checkRedis(ctx, id)
	if err != nil {
		slog.Warn("limiter: redis check failed, using in-process window", slog.Any("error", err))
		return r.fallback.check(ctx, id)
	}
	return d, nil
}

// slidingWindowScript trims, counts, and conditionally records one request as
// a single atomic unit. Splitting trim+count from the ZADD across round-trips
// lets concurrent checks for one key both observe count == capacity-1 and
// over-admit. Reply: {1, countAfterAdd} on admit, {0, count} on deny.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
redis.call('ZREMRANGEBYSCORE', key, 0, ARGV[2])
local count = redis.call('ZCARD', key)
if count >= tonumber(ARGV[3]) then
	return {0, count}
end
redis.call('ZADD', key, ARGV[1], ARGV[5])
redis.call('PEXPIRE', key, ARGV[4])
return {1, count + 1}
`)

func (r *redisLimiter) checkRedis(ctx context.Context, id string) (RateLimitDecision, error) {
	key := "rl:" + id
	now := time.Now()
	member := fmt.Sprintf("%d-%d", now.UnixNano(), r.seq.Add(1))

	reply, err := slidingWindowScript.Run(ctx, r.rdb, []string{key},
		now.UnixNano(),
		strconv.FormatInt(now.Add(-r.window).UnixNano(), 10),
		r.capacity,
		r.window.Milliseconds(),
		member,
	).Int64Slice()
	if err != nil {
		return RateLimitDecision{}, fmt.Errorf("window script: %w", err)
	}
	return windowDecision(reply, r.capacity, r.window)
}

// windowDecision maps the script reply {admitted, count} to a decision.
func windowDecision(reply []int64, capacity int, window time.Duration) (RateLimitDecision, error) {
	if len(reply) != 2 {
		return RateLimitDecision{}, fmt.Errorf("window script: unexpected reply %v", reply)
	}
	if reply[0] == 0 {
		return RateLimitDecision{Allowed: false, Remaining: 0, RetryAfter: window}, nil
	}
	remaining := capacity - int(reply[1])
	if remaining < 0 {
		remaining = 0
	}
	return RateLimitDecision{Allowed: true, Remaining: remaining}, nil
}
