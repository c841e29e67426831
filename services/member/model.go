package member

import (
	"strings"
	"time"
)

type Role string

var (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleMember    Role = "member"
)

func (r Role) String() string {
	switch r {
	case RoleAdmin, RoleModerator, RoleMember:
		return string(r)
	default:
		return ""
	}
}

// Member is a person with a gym card. QRToken is the opaque secret encoded
// into the card's QR code; reissuing it invalidates every printed card.
// IsActiveMember is materialized by the membership engine and must not be
// written anywhere else.
type Member struct {
	ID             string     `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt      time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at" json:"updated_at"`
	MemberCode     string     `gorm:"column:member_code;uniqueIndex" json:"member_code"`
	NationalID     string     `gorm:"column:national_id;uniqueIndex" json:"national_id"`
	FirstName      string     `gorm:"column:first_name" json:"first_name"`
	LastName       string     `gorm:"column:last_name" json:"last_name"`
	Email          string     `gorm:"column:email;uniqueIndex" json:"email"`
	Phone          string     `gorm:"column:phone" json:"phone"`
	Birthdate      *time.Time `gorm:"column:birthdate" json:"birthdate,omitempty"`
	Role           Role       `gorm:"column:role" json:"role"`
	QRToken        string     `gorm:"column:qr_token;uniqueIndex" json:"-"`
	IsActiveMember bool       `gorm:"column:is_active_member" json:"is_active_member"`
}

func (m *Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}
