// Package numbering mints public complaint numbers of the form
// SNS-<year>-<sequence> from an atomic per-period counter.
package numbering

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"smartnagrik/backend/internal/apperr"
	"smartnagrik/backend/internal/config"

	"github.com/redis/go-redis/v9"
)

// Sequence hands out strictly increasing values per period. A value is never
// handed out twice, even if the caller later fails to use it.
type Sequence interface {
	Next(ctx context.Context, period int) (int64, error)
	// Seed moves the period counter forward to at least value. It never
	// moves a counter back.
	Seed(ctx context.Context, period int, value int64) error
}

// Counter is the part of the Redis client RedisSequence needs.
type Counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// seedScript sets KEYS[1] to ARGV[1] unless the stored value is already larger.
const seedScript = `
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local want = tonumber(ARGV[1])
if cur < want then
	redis.call('SET', KEYS[1], ARGV[1])
	return want
end
return cur`

// RedisSequence keeps one counter per period under sns:complaint_seq:<period>.
type RedisSequence struct {
	client Counter
}

// NewRedisSequence wraps a Redis client.
func NewRedisSequence(client Counter) *RedisSequence {
	return &RedisSequence{client: client}
}

func (s *RedisSequence) Next(ctx context.Context, period int) (int64, error) {
	return s.client.Incr(ctx, key(period)).Result()
}

func (s *RedisSequence) Seed(ctx context.Context, period int, value int64) error {
	return s.client.Eval(ctx, seedScript, []string{key(period)}, value).Err()
}

func key(period int) string {
	return config.SequenceKeyPrefix + strconv.Itoa(period)
}

// MemorySequence is a process-local Sequence.
type MemorySequence struct {
	mu       sync.Mutex
	counters map[int]int64
}

func NewMemorySequence() *MemorySequence {
	return &MemorySequence{counters: make(map[int]int64)}
}

func (s *MemorySequence) Next(ctx context.Context, period int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[period]++
	return s.counters[period], nil
}

func (s *MemorySequence) Seed(ctx context.Context, period int, value int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counters[period] < value {
		s.counters[period] = value
	}
	return nil
}

// Generator formats sequence values as complaint numbers.
type Generator struct {
	seq    Sequence
	prefix string
	width  int
}

// NewGenerator returns a Generator using the default prefix and width.
func NewGenerator(seq Sequence) *Generator {
	return &Generator{seq: seq, prefix: config.NumberPrefix, width: config.NumberWidth}
}

// NextNumber reserves the next number for period. The width is a minimum, so
// sequence 1000 renders as SNS-2025-1000.
func (g *Generator) NextNumber(ctx context.Context, period int) (string, error) {
	n, err := g.seq.Next(ctx, period)
	if err != nil {
		return "", apperr.StoreUnavailable(err, "next complaint number")
	}
	return Format(g.prefix, period, n, g.width), nil
}

// Prefix returns the part shared by every number of period, e.g. "SNS-2025-".
func (g *Generator) Prefix(period int) string {
	return fmt.Sprintf("%s-%d-", g.prefix, period)
}

// Reconcile moves the counter of period past highest, a number already in
// use. A counter that lost its state would otherwise hand out taken numbers.
func (g *Generator) Reconcile(ctx context.Context, period int, highest string) error {
	suffix, ok := strings.CutPrefix(highest, g.Prefix(period))
	if !ok {
		return apperr.Validation("number %s does not belong to period %d", highest, period)
	}
	n, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil || n < 1 {
		return apperr.Validation("number %s has no valid sequence", highest)
	}
	if err := g.seq.Seed(ctx, period, n); err != nil {
		return apperr.StoreUnavailable(err, "seed complaint number sequence")
	}
	return nil
}

// Format renders a complaint number.
func Format(prefix string, period int, n int64, width int) string {
	return fmt.Sprintf("%s-%d-%0*d", prefix, period, width, n)
}
