package plan

import (
	"time"
)

type PlanType string

var (
	Weekend PlanType = "weekend"
	Weekday PlanType = "weekday"
	Full    PlanType = "full"
)

func (t PlanType) String() string {
	switch t {
	case Weekend, Weekday, Full:
		return string(t)
	default:
		return ""
	}
}

// Plan is a sellable membership product. Price is in CLP, no decimals.
// ScheduleRule is an optional boolean expression over `weekday` (1-7,
// Monday first) and `hour` (0-23) evaluated at the gate; empty means the
// plan admits at any time the gym is open.
type Plan struct {
	ID                   string    `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt            time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt            time.Time `gorm:"column:updated_at" json:"updated_at"`
	Name                 string    `gorm:"column:name" json:"name"`
	Slug                 string    `gorm:"column:slug;uniqueIndex" json:"slug"`
	Type                 PlanType  `gorm:"column:type" json:"type"`
	Description          string    `gorm:"column:description" json:"description"`
	Price                int64     `gorm:"column:price" json:"price"`
	DurationDays         int       `gorm:"column:duration_days" json:"duration_days"`
	ScheduleRule         string    `gorm:"column:schedule_rule" json:"schedule_rule"`
	IncludesClasses      bool      `gorm:"column:includes_classes" json:"includes_classes"`
	IncludesNutritionist bool      `gorm:"column:includes_nutritionist" json:"includes_nutritionist"`
	Benefits             string    `gorm:"column:benefits" json:"benefits"`
	IsActive             bool      `gorm:"column:is_active" json:"is_active"`
}

// ScheduleAttributes builds the evaluation environment for ScheduleRule.
// time.Weekday counts Sunday as 0; gym schedules are written Monday-first.
func ScheduleAttributes(t time.Time) map[string]interface{} {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return map[string]interface{}{
		"weekday": weekday,
		"hour":    t.Hour(),
	}
}
