// Package venue 提供交易场所与托管账户的实现
//
// Client 通过 Redis 队列与外部交易网关通信，Ledger 把托管余额保存在 Redis，
// Paper 是内存撮合，用于本地运行与测试。
package venue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"pockettrade.com/internal/config"
	"pockettrade.com/internal/constants"
	"pockettrade.com/internal/domain"
	"pockettrade.com/internal/infra"
	"pockettrade.com/internal/model"
)

const (
	CmdPlaceAndMatch = "PLACE_AND_MATCH"
	CmdSettle        = "SETTLE"
)

// ErrRejected 网关明确拒绝了指令
var ErrRejected = errors.New("venue rejected command")

// Client handles all outgoing communication to the venue gateway via Redis.
type Client struct {
	rdb     redis.Cmdable
	queue   string
	timeout time.Duration
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

var _ domain.Venue = (*Client)(nil)

// NewClient creates a new venue Client.
func NewClient(rdb redis.Cmdable, cfg config.VenueConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	queue := cfg.CommandQueue
	if queue == "" {
		queue = constants.RedisQueueVenueCommand
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	st := gobreaker.Settings{Name: "venue-gateway", Timeout: cfg.BreakerTimeout}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= failures }
	// 网关明确拒绝 (如余额不足) 不算故障
	st.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, ErrRejected) }
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn("VenueClient: circuit breaker state changed",
			zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
	}

	return &Client{
		rdb:     rdb,
		queue:   queue,
		timeout: cfg.ReplyTimeout,
		limiter: rate.NewLimiter(limit, burst),
		breaker: gobreaker.NewCircuitBreaker(st),
		logger:  logger,
	}
}

// PlaceAndMatch sends an IOC order and waits until the gateway has matched it.
func (c *Client) PlaceAndMatch(ctx context.Context, order model.Order) error {
	_, err := c.call(ctx, CmdPlaceAndMatch, order)
	return err
}

// Settle asks the gateway to move matched proceeds into the given wallets.
func (c *Client) Settle(ctx context.Context, req model.SettleRequest) error {
	_, err := c.call(ctx, CmdSettle, req)
	return err
}

// call 发送指令并同步等待回复
func (c *Client) call(ctx context.Context, typ string, payload interface{}) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("venue rate limit: %w", err)
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		cmd := infra.VenueCommand{
			Type:      typ,
			RequestID: uuid.NewString(),
			Payload:   payload,
		}
		if err := infra.PushVenueCommand(ctx, c.rdb, c.queue, cmd); err != nil {
			return nil, err
		}
		reply, err := infra.AwaitVenueReply(ctx, c.rdb, cmd.RequestID, c.timeout)
		if err != nil {
			return nil, err
		}
		if !reply.OK {
			return nil, fmt.Errorf("%s %s: %s: %w", typ, cmd.RequestID, reply.Error, ErrRejected)
		}
		return reply.Payload, nil
	})
	if err != nil {
		c.logger.Error("VenueClient: command failed", zap.String("type", typ), zap.Error(err))
		return nil, err
	}
	raw, _ := res.(json.RawMessage)
	return raw, nil
}
