package membership

import (
	"time"

	"gymgate/services/plan"
)

type Status string

var (
	Pending   Status = "pending"
	Active    Status = "active"
	Expired   Status = "expired"
	Cancelled Status = "cancelled"
)

func (s Status) String() string {
	switch s {
	case Pending, Active, Expired, Cancelled:
		return string(s)
	default:
		return ""
	}
}

type PaymentMethod string

var (
	Cash       PaymentMethod = "cash"
	Transfer   PaymentMethod = "transfer"
	Card       PaymentMethod = "card"
	Electronic PaymentMethod = "electronic"
)

func (p PaymentMethod) String() string {
	switch p {
	case Cash, Transfer, Card, Electronic:
		return string(p)
	default:
		return ""
	}
}

// Membership is one paid period of gym access. Dates are date-precision
// instants: midnight in the organization's timezone. EndDate is nil until
// the engine derives it from the plan duration. AmountPaid snapshots the
// plan price at sale time so later repricing never rewrites history.
type Membership struct {
	ID            string        `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt     time.Time     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"column:updated_at" json:"updated_at"`
	MemberID      string        `gorm:"column:member_id;index" json:"member_id"`
	PlanID        string        `gorm:"column:plan_id;index" json:"plan_id"`
	Plan          *plan.Plan    `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	StartDate     time.Time     `gorm:"column:start_date" json:"start_date"`
	EndDate       *time.Time    `gorm:"column:end_date" json:"end_date"`
	PaymentMethod PaymentMethod `gorm:"column:payment_method" json:"payment_method"`
	AmountPaid    int64         `gorm:"column:amount_paid" json:"amount_paid"`
	ReceiptCode   string        `gorm:"column:receipt_code" json:"receipt_code,omitempty"`
	PaymentAt     *time.Time    `gorm:"column:payment_at" json:"payment_at"`
	Status        Status        `gorm:"column:status" json:"status"`
	IsActive      bool          `gorm:"column:is_active" json:"is_active"`
	Notes         string        `gorm:"column:notes" json:"notes"`
}
