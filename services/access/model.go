package access

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

var (
	Allowed Status = "allowed"
	Denied  Status = "denied"
)

// Outcome is the typed result of one scan. These are expected business
// results, not errors; the gate endpoint always answers 200 with one of
// them.
type Outcome string

const (
	OutcomeAdmitted           Outcome = "ADMITTED"
	OutcomeCredentialInvalid  Outcome = "CREDENTIAL_INVALID"
	OutcomeNoValidMembership  Outcome = "NO_VALID_MEMBERSHIP"
	OutcomeScheduleNotAllowed Outcome = "SCHEDULE_NOT_ALLOWED"
	OutcomeAlreadyAdmittedDay Outcome = "ALREADY_ADMITTED_TODAY"
)

// AccessLogEntry is one scan attempt, allowed or denied. Rows are never
// updated or deleted. Timestamp is the UTC instant of the scan; DayKey is
// the organizational calendar day it fell on, and carries a partial unique
// index so at most one allowed row exists per member per day. MemberID is
// empty for unattributable scans (invalid credential).
type AccessLogEntry struct {
	ID           string         `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt    time.Time      `gorm:"column:created_at" json:"created_at"`
	MemberID     string         `gorm:"column:member_id;index:idx_access_member_ts,priority:1;uniqueIndex:udx_access_allowed_day,priority:1,where:status = 'allowed'" json:"member_id"`
	MembershipID *string        `gorm:"column:membership_id" json:"membership_id,omitempty"`
	Timestamp    time.Time      `gorm:"column:timestamp;index:idx_access_member_ts,priority:2" json:"timestamp"`
	DayKey       string         `gorm:"column:day_key;uniqueIndex:udx_access_allowed_day,priority:2,where:status = 'allowed'" json:"day_key"`
	Status       Status         `gorm:"column:status" json:"status"`
	DenialReason string         `gorm:"column:denial_reason" json:"denial_reason,omitempty"`
	Metadata     datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
}

// AdmissionStats is the attendance summary shown at the front desk after
// a successful admission.
type AdmissionStats struct {
	Today          int64 `json:"today"`
	Trailing7Days  int64 `json:"trailing_7_days"`
	Trailing30Days int64 `json:"trailing_30_days"`
	MonthToDate    int64 `json:"month_to_date"`
}

type MemberSummary struct {
	ID         string `json:"id"`
	MemberCode string `json:"member_code"`
	Name       string `json:"name"`
}

type ScanResult struct {
	Outcome       Outcome         `json:"outcome"`
	Admitted      bool            `json:"admitted"`
	Reason        string          `json:"reason,omitempty"`
	Member        *MemberSummary  `json:"member,omitempty"`
	PlanName      string          `json:"plan_name,omitempty"`
	DaysRemaining int             `json:"days_remaining,omitempty"`
	AdmittedAt    *time.Time      `json:"admitted_at,omitempty"`
	Stats         *AdmissionStats `json:"stats,omitempty"`
	Entry         *AccessLogEntry `json:"entry,omitempty"`
}
