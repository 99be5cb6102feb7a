package ledger

import (
	"time"

	"crowdfund/internal/model"
)

// Phase 活动阶段，由存储的标志位和当前时间推导，不落库
type Phase int

const (
	PhaseOpen      Phase = iota // 进行中：有效且未到截止时间
	PhaseSucceeded              // 已截止且达到目标，等待发起人提取
	PhaseFailed                 // 已截止且未达到目标，出资人可退款
	PhaseCancelled              // 发起人已取消，出资人可立即退款
	PhaseSettled                // 资金已提取（包括紧急提取），终态
)

var phaseNames = map[Phase]string{
	PhaseOpen:      "open",
	PhaseSucceeded: "succeeded",
	PhaseFailed:    "failed",
	PhaseCancelled: "cancelled",
	PhaseSettled:   "settled",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Refundable 出资人能否取回出资
func (p Phase) Refundable() bool {
	return p == PhaseFailed || p == PhaseCancelled
}

// PhaseOf 推导活动在 now 时刻所处阶段
// withdrawn 优先于 active，截止时间到达的那一刻即视为已截止
func PhaseOf(c *model.Campaign, now time.Time) Phase {
	switch {
	case c.Withdrawn:
		return PhaseSettled
	case !c.Active:
		return PhaseCancelled
	case now.Before(c.Deadline):
		return PhaseOpen
	case c.Raised >= c.Goal:
		return PhaseSucceeded
	default:
		return PhaseFailed
	}
}
