package orders

import "time"

const (
	// UrgentThresholdMinutes marks a cooking order as urgent when this much
	// or less time remains.
	UrgentThresholdMinutes = 10

	// DefaultGraceMinutes is the default SLA grace on top of the promised
	// cooking duration before a violation is flagged.
	DefaultGraceMinutes = 15
)

// Timer is the derived SLA view of an order in the cooking phase. It is a
// pure function of (now, cookingStartTime, cookingDurationMinutes): no
// hidden timer state exists, so it can be recomputed at any time, including
// after a process restart.
type Timer struct {
	ElapsedMinutes   int  `json:"elapsed_minutes"`
	RemainingMinutes int  `json:"remaining_minutes"`
	IsOverdue        bool `json:"is_overdue"`
	IsUrgent         bool `json:"is_urgent"`
	SLAViolation     bool `json:"sla_violation"`
}

// ComputeTimer derives the SLA timer for an order currently being prepared.
// It fails with ErrPreconditionFailed unless the order is in 'preparing'
// and has a cooking start timestamp.
func ComputeTimer(order *Order, now time.Time, graceMinutes int) (Timer, error) {
	if order.Status != StatusPreparing || order.CookingStartTime == nil {
		return Timer{}, ErrPreconditionFailed
	}
	if graceMinutes <= 0 {
		graceMinutes = DefaultGraceMinutes
	}

	elapsed := int(now.Sub(*order.CookingStartTime) / time.Minute)
	remaining := order.CookingDurationMinutes - elapsed

	return Timer{
		ElapsedMinutes:   elapsed,
		RemainingMinutes: remaining,
		IsOverdue:        remaining <= 0,
		IsUrgent:         remaining > 0 && remaining <= UrgentThresholdMinutes,
		SLAViolation:     elapsed > order.CookingDurationMinutes+graceMinutes,
	}, nil
}
