package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"pockettrade.com/internal/constants"
)

// ErrReplyTimeout 网关在超时时间内没有回复
var ErrReplyTimeout = errors.New("venue gateway reply timeout")

// VenueCommand Go -> 网关 的统一指令
type VenueCommand struct {
	Type      string      `json:"type"` // e.g., "PLACE_AND_MATCH", "SETTLE", "BALANCE", "TRANSFER"
	RequestID string      `json:"request_id"`
	Payload   interface{} `json:"payload"`
}

// VenueReply 网关 -> Go 的回复，按 RequestID 放入独立队列
type VenueReply struct {
	RequestID string          `json:"request_id"`
	OK        bool            `json:"ok"`
	Error     string          `json:"error,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// PushVenueCommand pushes a command for the gateway to consume.
// Direction: Go -> Gateway. Action: RPUSH (Append to Right). Gateway should LPOP.
func PushVenueCommand(ctx context.Context, rdb redis.Cmdable, queue string, cmd VenueCommand) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	if err := rdb.RPush(ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("failed to push command to redis: %w", err)
	}
	return nil
}

// AwaitVenueReply blocks until the gateway answers requestID or timeout elapses.
// Direction: Gateway -> Go. Gateway LPUSHes to venue:reply:<RequestID>.
func AwaitVenueReply(ctx context.Context, rdb redis.Cmdable, requestID string, timeout time.Duration) (*VenueReply, error) {
	key := ReplyKey(requestID)
	result, err := rdb.BRPop(ctx, timeout, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrReplyTimeout
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop reply from redis: %w", err)
	}
	// BRPOP 返回 [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP result length %d", len(result))
	}

	var reply VenueReply
	if err := json.Unmarshal([]byte(result[1]), &reply); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reply: %w", err)
	}
	return &reply, nil
}

func ReplyKey(requestID string) string {
	return constants.RedisVenueReplyPrefix + requestID
}
