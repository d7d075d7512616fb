package event

import (
	"pockettrade.com/internal/condition"
	"pockettrade.com/internal/model"
)

// PocketEvent Pocket 事件的数据部分，推送给 owner
type PocketEvent struct {
	Type     string             `json:"type"`
	PocketID string             `json:"pocket_id"`
	Owner    string             `json:"owner"`
	Status   model.PocketStatus `json:"status"`
	Reason   string             `json:"reason,omitempty"`

	// 存入
	Asset  model.AssetKind `json:"asset,omitempty"`
	Amount uint64          `json:"amount,omitempty"`

	// 执行周期
	Outcome       *model.SwapOutcome       `json:"outcome,omitempty"`
	StopCondition *condition.StopCondition `json:"stop_condition,omitempty"`

	Pocket *model.Pocket `json:"pocket,omitempty"`
}

// NewPocketEvent 包装成总线事件
func NewPocketEvent(source string, data PocketEvent) Event {
	return Event{
		Type:   data.Type,
		Source: source,
		Data:   data,
		Metadata: map[string]interface{}{
			"owner":     data.Owner,
			"pocket_id": data.PocketID,
		},
	}
}
