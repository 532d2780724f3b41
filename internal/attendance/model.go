package attendance

import (
	"time"

	"judoclub/internal/schedule"
)

type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusBooked   Status = "booked"
	StatusAttended Status = "attended"
	StatusMissed   Status = "missed"
)

type Method string

const (
	MethodNone   Method = ""
	MethodQR     Method = "qr"
	MethodManual Method = "manual"
)

type Record struct {
	ID          string     `db:"id" json:"id,omitempty"`
	TemplateID  int64      `db:"template_id" json:"template_id"`
	ClassDate   string     `db:"class_date" json:"class_date"`
	MemberID    int64      `db:"member_id" json:"member_id"`
	Status      Status     `db:"status" json:"status"`
	CheckedInAt *time.Time `db:"checked_in_at" json:"checked_in_at,omitempty"`
	Method      Method     `db:"method" json:"method,omitempty"`
	Points      int        `db:"points" json:"points"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

func (r Record) Key() schedule.InstanceKey {
	return schedule.InstanceKey{TemplateID: r.TemplateID, Date: r.ClassDate}
}

// Terminal reports whether the stored status can no longer change.
func (r Record) Terminal() bool {
	return r.Status == StatusAttended || r.Status == StatusMissed
}

// CheckIn is the event a successful check-in produces.
type CheckIn struct {
	MemberID int64
	Key      schedule.InstanceKey
	At       time.Time
	Method   Method
}

type RosterEntry struct {
	MemberID      int64      `json:"member_id"`
	Name          string     `json:"name,omitempty"`
	BookingID     int64      `json:"booking_id,omitempty"`
	BookingStatus string     `json:"booking_status,omitempty"`
	Status        Status     `json:"status,omitempty"`
	CheckedInAt   *time.Time `json:"checked_in_at,omitempty"`
	Method        Method     `json:"method,omitempty"`
}

type HistoryResponse struct {
	Records     []Record `json:"records"`
	TotalPoints int      `json:"total_points"`
}
