package constants

// Redis 队列名称
const (
	// RedisQueueVenueCommand Go → 交易网关 的指令队列
	RedisQueueVenueCommand = "venue_cmd_queue"

	// RedisVenueReplyPrefix 网关按 RequestID 回复的队列前缀
	RedisVenueReplyPrefix = "venue:reply:"
)

// Redis 键
const (
	// RedisCustodyBalances 托管账户余额 hash: account -> amount
	RedisCustodyBalances = "custody:balances"

	// RedisLockPocketPrefix 单个 Pocket 执行周期的分布式锁
	RedisLockPocketPrefix = "lock:pocket:"
)

// Redis Pub/Sub 频道
const (
	// RedisPubSubPocketPrefix Pocket 事件频道前缀，后接 owner
	RedisPubSubPocketPrefix = "pocket."
)
