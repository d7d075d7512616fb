package strategies

import (
	"time"

	"pockettrade.com/internal/model"
)

// IsReadyToSwap 判断 Pocket 当前是否可以执行兑换
// 必须是 active，且当前时间已到达 start_at 与下一次执行时间
func IsReadyToSwap(p *model.Pocket, now time.Time) bool {
	if p == nil || p.Status != model.PocketStatusActive {
		return false
	}
	ts := now.Unix()
	return ts >= p.StartAt && ts >= p.NextScheduledExecutionAt
}

// NextExecutionAt 下一次可执行时间 = now + 间隔小时数
func NextExecutionAt(p *model.Pocket, now time.Time) int64 {
	return now.Unix() + int64(p.FrequencyHours)*3600
}
