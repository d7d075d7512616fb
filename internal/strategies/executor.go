package strategies

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"pockettrade.com/internal/constants"
	"pockettrade.com/internal/domain"
)

// Executor 保证同一个 Pocket 同一时刻只有一个执行周期
// 兑换结果通过前后余额差计算，期间托管账户不能被其他周期修改
type Executor struct {
	// 可选的分布式锁，多实例部署时使用
	locker domain.Locker
	logger *zap.Logger

	// 运行中的 Pocket 锁
	// Map结构: PocketID -> 引用计数的互斥锁，无人使用时删除
	locks map[string]*pocketLock

	// 保护 locks map
	mu sync.Mutex
}

type pocketLock struct {
	mu   sync.Mutex
	refs int
}

// NewExecutor 创建执行器，locker 可以为 nil
func NewExecutor(locker domain.Locker, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		locker: locker,
		logger: logger,
		locks:  make(map[string]*pocketLock),
	}
}

// Run 在持有 pocketID 的锁期间执行 fn
func (e *Executor) Run(ctx context.Context, pocketID string, fn func(ctx context.Context) error) error {
	l := e.acquire(pocketID)
	l.mu.Lock()
	defer e.release(pocketID, l)

	if e.locker != nil {
		release, err := e.locker.Obtain(ctx, constants.RedisLockPocketPrefix+pocketID)
		if err != nil {
			return fmt.Errorf("failed to obtain pocket lock: %w", err)
		}
		defer func() {
			// 周期不可中途取消，释放锁不使用调用方的 ctx
			if err := release(context.Background()); err != nil {
				e.logger.Warn("Executor: failed to release pocket lock",
					zap.String("pocket_id", pocketID), zap.Error(err))
			}
		}()
	}

	return fn(ctx)
}

func (e *Executor) acquire(pocketID string) *pocketLock {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.locks[pocketID]
	if !ok {
		l = &pocketLock{}
		e.locks[pocketID] = l
	}
	l.refs++
	return l
}

func (e *Executor) release(pocketID string, l *pocketLock) {
	l.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(e.locks, pocketID)
	}
}

// InFlight 当前持有或等待锁的 Pocket 数量
func (e *Executor) InFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.locks)
}
