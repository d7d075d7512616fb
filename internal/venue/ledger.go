package venue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/go-redis/v9"
	"pockettrade.com/internal/constants"
	"pockettrade.com/internal/domain"
)

// ErrInsufficientFunds 转出账户余额不足
var ErrInsufficientFunds = domain.ErrInsufficientFunds

// transferScript 原子地从 from 转到 to，余额不足时返回 -1 且不做任何修改
var transferScript = redis.NewScript(`
local bal = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
local amount = tonumber(ARGV[3])
if bal < amount then
  return -1
end
redis.call('HINCRBY', KEYS[1], ARGV[1], -amount)
redis.call('HINCRBY', KEYS[1], ARGV[2], amount)
return bal - amount
`)

// Ledger 托管账户余额保存在 Redis hash 中: account -> amount
type Ledger struct {
	rdb redis.Cmdable
	key string
}

var _ domain.Custody = (*Ledger)(nil)

func NewLedger(rdb redis.Cmdable) *Ledger {
	return &Ledger{rdb: rdb, key: constants.RedisCustodyBalances}
}

// Balance 返回账户余额，不存在的账户为 0
func (l *Ledger) Balance(ctx context.Context, account string) (uint64, error) {
	v, err := l.rdb.HGet(ctx, l.key, account).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance of %s: %w", account, err)
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt balance for %s: %w", account, err)
	}
	return n, nil
}

// Transfer 原子划转
func (l *Ledger) Transfer(ctx context.Context, from, to string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	res, err := transferScript.Run(ctx, l.rdb, []string{l.key}, from, to, amount).Int64()
	if err != nil {
		return fmt.Errorf("failed to transfer %d from %s to %s: %w", amount, from, to, err)
	}
	if res < 0 {
		return fmt.Errorf("%s: %w", from, ErrInsufficientFunds)
	}
	return nil
}

// Credit 直接增加余额，用于充值入口或测试
func (l *Ledger) Credit(ctx context.Context, account string, amount uint64) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if err := l.rdb.HIncrBy(ctx, l.key, account, int64(amount)).Err(); err != nil {
		return fmt.Errorf("failed to credit %s: %w", account, err)
	}
	return nil
}

// checkAmount redis 的 HINCRBY 只支持 int64
func checkAmount(amount uint64) error {
	if amount > math.MaxInt64 {
		return fmt.Errorf("amount %d exceeds ledger limit: %w", amount, domain.ErrInvalidInput)
	}
	return nil
}
