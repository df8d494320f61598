package member

import "time"

// Member mirrors the identity service's user record. The engine reads the
// quota and withdrawal policy and owns only the four earnings fields plus
// the default-then-persist write of DailyAvailableOrders.
type Member struct {
	ID                   string     `gorm:"column:id;primaryKey" json:"id"`
	Name                 string     `gorm:"column:name" json:"name"`
	Role                 string     `gorm:"column:role" json:"role"`
	Status               bool       `gorm:"column:status" json:"status"`
	Balance              float64    `gorm:"column:balance" json:"balance"`
	FrozenAmount         float64    `gorm:"column:frozen_amount" json:"frozenAmount"`
	DailyAvailableOrders int        `gorm:"column:daily_available_orders" json:"dailyAvailableOrders"`
	Reputation           int        `gorm:"column:reputation" json:"reputation"`
	AllowWithdrawal      string     `gorm:"column:allow_withdrawal" json:"allowWithdrawal"`
	TotalEarnings        float64    `gorm:"column:total_earnings" json:"totalEarnings"`
	TodaysEarnings       float64    `gorm:"column:todays_earnings" json:"todaysEarnings"`
	LastEarningDate      *time.Time `gorm:"column:last_earning_date" json:"lastEarningDate"`
	CreatedAt            time.Time  `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt            time.Time  `gorm:"column:updated_at" json:"updatedAt"`
}

func (Member) TableName() string {
	return "members"
}

// EarningsSnapshot is the post-accrual view of a member's earnings fields.
type EarningsSnapshot struct {
	MemberID        string     `json:"memberId"`
	Balance         float64    `json:"balance"`
	TotalEarnings   float64    `json:"totalEarnings"`
	TodaysEarnings  float64    `json:"todaysEarnings"`
	LastEarningDate *time.Time `json:"lastEarningDate"`
}
