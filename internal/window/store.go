// Package window implements the sliding-window aggregation and cooldown
// store (C1) on top of Redis. Every compound evict-then-mutate-then-read
// operation runs as a single Lua script so it is atomic against concurrent
// callers — no client-side locking, per the "Lua-script atomicity" design
// note.
package window

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/onchainsignal/tracker/internal/model"
)

const sequentialSellsTTLSeconds = 24 * 60 * 60

// addAmountScript evicts members older than the window, inserts the new
// member, refreshes the key TTL, and returns the cumulative USD sum over
// the remaining members — all as one atomic unit.
var addAmountScript = redis.NewScript(`
local key = KEYS[1]
local windowStart = tonumber(ARGV[1])
local member = ARGV[2]
local score = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', '(' .. windowStart)
redis.call('ZADD', key, score, member)
redis.call('EXPIRE', key, ttl)

local members = redis.call('ZRANGEBYSCORE', key, windowStart, '+inf')
local sum = 0
for _, m in ipairs(members) do
  local usd = string.match(m, '^[^:]+:([^:]+):')
  if usd then
    sum = sum + tonumber(usd)
  end
end
return tostring(sum)
`)

// cumulativeScript evicts members outside the requested period and returns
// the remaining sum, without inserting anything.
var cumulativeScript = redis.NewScript(`
local key = KEYS[1]
local periodStart = tonumber(ARGV[1])

redis.call('ZREMRANGEBYSCORE', key, '-inf', '(' .. periodStart)

local members = redis.call('ZRANGEBYSCORE', key, periodStart, '+inf')
local sum = 0
for _, m in ipairs(members) do
  local usd = string.match(m, '^[^:]+:([^:]+):')
  if usd then
    sum = sum + tonumber(usd)
  end
end
return tostring(sum)
`)

// incrSequentialScript increments a wallet's sell streak and sets a 24h TTL
// the first time the key is created, atomically.
var incrSequentialScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// Store is the Redis-backed Window Store.
type Store struct {
	rdb     *redis.Client
	counter uint64 // per-process nonce, disambiguates same-timestamp inserts
}

// New wraps a *redis.Client as a Store.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func windowKey(mint string, dir model.Direction) string {
	return fmt.Sprintf("window:%s:%s", mint, dir)
}

func cooldownRedisKey(key string) string {
	return "cooldown:" + key
}

// sequentialKey is exact-case: unlike TrackedWallet lookups, Solana
// addresses are case-sensitive base58 and the sequential-sell counter
// must not fold two distinct wallets together.
func sequentialKey(wallet string) string {
	return "seq:" + wallet
}

// AddAmountToWindow evicts stale entries, inserts a new (ts, usdAmount)
// entry, refreshes the key TTL to windowSeconds+300s, and returns the
// cumulative USD sum over [ts-windowSeconds, +inf). Atomic.
func (s *Store) AddAmountToWindow(ctx context.Context, mint string, dir model.Direction, usdAmount float64, ts int64, windowSeconds int64) (float64, error) {
	nonce := atomic.AddUint64(&s.counter, 1)
	member := fmt.Sprintf("%d:%s:%d", ts, formatUSD(usdAmount), nonce)
	windowStart := ts - windowSeconds
	ttl := windowSeconds + 300

	res, err := addAmountScript.Run(ctx, s.rdb, []string{windowKey(mint, dir)},
		windowStart, member, ts, ttl).Result()
	if err != nil {
		return 0, fmt.Errorf("window: add_amount_to_window: %w", err)
	}
	return parseSum(res)
}

// CumulativeAmount evicts entries outside [now-periodSeconds, +inf) and
// returns the sum of the remaining members, without inserting.
func (s *Store) CumulativeAmount(ctx context.Context, mint string, dir model.Direction, now int64, periodSeconds int64) (float64, error) {
	periodStart := now - periodSeconds
	res, err := cumulativeScript.Run(ctx, s.rdb, []string{windowKey(mint, dir)}, periodStart).Result()
	if err != nil {
		return 0, fmt.Errorf("window: cumulative_amount: %w", err)
	}
	return parseSum(res)
}

// IsInCooldown reports whether the given cooldown key is currently set.
func (s *Store) IsInCooldown(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, cooldownRedisKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("window: is_in_cooldown: %w", err)
	}
	return n > 0, nil
}

// SetCooldown marks key as in cooldown for the given number of seconds.
func (s *Store) SetCooldown(ctx context.Context, key string, seconds int64) error {
	if err := s.rdb.Set(ctx, cooldownRedisKey(key), "1", time.Duration(seconds)*time.Second).Err(); err != nil {
		return fmt.Errorf("window: set_cooldown: %w", err)
	}
	return nil
}

// IncrementSequentialSells increments wallet's sell streak, setting a 24h
// TTL the first time the counter is created, and returns the new count.
func (s *Store) IncrementSequentialSells(ctx context.Context, wallet string) (int64, error) {
	res, err := incrSequentialScript.Run(ctx, s.rdb, []string{sequentialKey(wallet)}, sequentialSellsTTLSeconds).Result()
	if err != nil {
		return 0, fmt.Errorf("window: increment_sequential_sells: %w", err)
	}
	switch v := res.(type) {
	case int64:
		return v, nil
	default:
		return 0, fmt.Errorf("window: unexpected increment reply type %T", res)
	}
}

// ResetSequentialSells clears wallet's sell streak.
func (s *Store) ResetSequentialSells(ctx context.Context, wallet string) error {
	if err := s.rdb.Del(ctx, sequentialKey(wallet)).Err(); err != nil {
		return fmt.Errorf("window: reset_sequential_sells: %w", err)
	}
	return nil
}

// GetSequentialSells returns wallet's current sell streak (0 if unset).
func (s *Store) GetSequentialSells(ctx context.Context, wallet string) (int64, error) {
	v, err := s.rdb.Get(ctx, sequentialKey(wallet)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("window: get_sequential_sells: %w", err)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("window: get_sequential_sells: malformed counter: %w", err)
	}
	return n, nil
}

// Ping checks Redis liveness, used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func formatUSD(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseSum(res interface{}) (float64, error) {
	s, ok := res.(string)
	if !ok {
		return 0, fmt.Errorf("window: unexpected script reply type %T", res)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("window: malformed sum reply %q: %w", s, err)
	}
	return f, nil
}
