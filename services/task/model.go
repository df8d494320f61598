package task

import (
	"time"

	"gorm.io/datatypes"

	"taskplane/services/member"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Task is one slot in a member's daily batch. ProductPrice is snapshotted
// at assignment so later catalog price changes never alter a task's
// economics. TaskNumber stays contiguous 1..N within the active batch.
type Task struct {
	ID           string         `gorm:"column:id;primaryKey" json:"id"`
	MemberID     string         `gorm:"column:member_id;index" json:"userId"`
	ProductID    string         `gorm:"column:product_id" json:"productId"`
	ProductPrice float64        `gorm:"column:product_price" json:"productPrice"`
	TaskNumber   int            `gorm:"column:task_number" json:"taskNumber"`
	Status       string         `gorm:"column:status;default:pending" json:"status"`
	Percentage   float64        `gorm:"column:percentage" json:"percentage"`
	IsEdited     bool           `gorm:"column:is_edited" json:"isEdited"`
	Rating       int            `gorm:"column:rating" json:"rating,omitempty"`
	Review       string         `gorm:"column:review" json:"review,omitempty"`
	Result       datatypes.JSON `gorm:"column:result" json:"result,omitempty"`
	CompletedAt  *time.Time     `gorm:"column:completed_at" json:"completedAt,omitempty"`
	CreatedAt    time.Time      `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt    time.Time      `gorm:"column:updated_at" json:"updatedAt"`
}

func (Task) TableName() string {
	return "tasks"
}

// Stats is the cheap dashboard read: counts only, no task bodies.
type Stats struct {
	TotalTasks     int64 `json:"totalTasks"`
	CompletedTasks int64 `json:"completedTasks"`
	PendingTasks   int64 `json:"pendingTasks"`
}

// BatchResult is what an allocation returns: the created batch plus the
// aggregates the operations side monitors.
type BatchResult struct {
	Tasks        []*Task `json:"tasks"`
	TotalTasks   int     `json:"totalTasks"`
	TotalPrice   float64 `json:"totalPrice"`
	AveragePrice float64 `json:"averagePrice"`
	BandViolated bool    `json:"-"`
}

// StatusResult pairs the ordered batch with its completion counts.
type StatusResult struct {
	Tasks []*Task `json:"tasks"`
	Stats Stats   `json:"stats"`
}

// SubmitResult carries the completed task, the credited amount and the
// member's earnings snapshot. Earnings may be nil when the member record
// was missing at accrual time (logged upstream).
type SubmitResult struct {
	Task     *Task                    `json:"task"`
	Credited float64                  `json:"credited"`
	Earnings *member.EarningsSnapshot `json:"earnings,omitempty"`
}
