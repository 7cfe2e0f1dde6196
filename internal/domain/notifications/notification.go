package notifications

import "time"

// Role identifies one of the three actors an inbox can belong to.
type Role string

const (
	RoleCustomer Role = "customer"
	RolePreparer Role = "preparer"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known actor role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RolePreparer, RoleAdmin:
		return true
	default:
		return false
	}
}

// Priority of a notification; rendered but never used for ordering.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Notification is a role-targeted message produced by the notification
// service. Once created it is immutable except for the Read flag; removal
// happens only through capacity-driven oldest-first eviction or a bulk
// store clear.
type Notification struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	TargetRole     Role      `json:"target_role"`
	TargetID       string    `json:"target_id"`
	RelatedOrderID string    `json:"related_order_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	Read           bool      `json:"read"`
	Priority       Priority  `json:"priority"`
}

// InboxKey builds the store key for one actor's bounded notification list.
func InboxKey(role Role, targetID string) string {
	return "inbox:" + string(role) + ":" + targetID
}
