package constants

// 事件类型常量
const (
	// Pocket 生命周期事件
	EventPocketCreated   = "pocket.created"
	EventPocketUpdated   = "pocket.updated"
	EventPocketDeposited = "pocket.deposited"
	EventPocketWithdrawn = "pocket.withdrawn"

	// 执行周期事件
	EventPocketSwapped       = "pocket.swapped"
	EventPocketStopTriggered = "pocket.stop_triggered"

	// Registry 事件
	EventRegistryUpdated = "registry.updated"
)

// 状态变更原因
const (
	ReasonUserUpdated          = "user_updated"
	ReasonStopConditionReached = "stop_condition_reached"
	ReasonWithdrawn            = "withdrawn"
)
