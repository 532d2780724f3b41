package booking

import (
	"time"

	"judoclub/internal/schedule"
)

type Status string

const (
	StatusConfirmed  Status = "confirmed"
	StatusWaitlisted Status = "waitlisted"
	StatusCancelled  Status = "cancelled"
)

type Recurrence string

const (
	RecurrenceNone     Recurrence = ""
	RecurrenceWeekly   Recurrence = "weekly"
	RecurrenceBiweekly Recurrence = "biweekly"
)

func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceWeekly, RecurrenceBiweekly:
		return true
	}
	return false
}

// StepDays is the distance in days between two occurrences of a recurring
// booking, or 0 for a one-off booking.
func (r Recurrence) StepDays() int {
	switch r {
	case RecurrenceWeekly:
		return 7
	case RecurrenceBiweekly:
		return 14
	}
	return 0
}

type Booking struct {
	ID          int64      `db:"id" json:"id"`
	TemplateID  int64      `db:"template_id" json:"template_id"`
	ClassDate   string     `db:"class_date" json:"class_date"`
	MemberID    int64      `db:"member_id" json:"member_id"`
	Status      Status     `db:"status" json:"status"`
	Recurrence  Recurrence `db:"recurrence" json:"recurrence,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	Projected   bool       `db:"-" json:"projected,omitempty"`
}

func (b Booking) Key() schedule.InstanceKey {
	return schedule.InstanceKey{TemplateID: b.TemplateID, Date: b.ClassDate}
}

// Active reports whether the booking still holds or queues for a seat.
func (b Booking) Active() bool {
	return b.Status == StatusConfirmed || b.Status == StatusWaitlisted
}

type BookRequest struct {
	MemberID   int64
	TemplateID int64
	Date       string
	Recurrence Recurrence
}

type BookRequestBody struct {
	Recurrence string `json:"recurrence" binding:"omitempty,oneof=weekly biweekly" example:"weekly"`
}

type BookResponse struct {
	Booking *Booking `json:"booking"`
	Created bool     `json:"created"`
}

type Seats struct {
	schedule.InstanceKey
	Capacity   int `json:"capacity"`
	Confirmed  int `json:"confirmed"`
	Waitlisted int `json:"waitlisted"`
	Available  int `json:"available"`
}

// CountSeats recomputes seat usage from the booking set of one instance.
func CountSeats(key schedule.InstanceKey, capacity int, bookings []Booking) Seats {
	seats := Seats{InstanceKey: key, Capacity: capacity}
	for _, b := range bookings {
		switch b.Status {
		case StatusConfirmed:
			seats.Confirmed++
		case StatusWaitlisted:
			seats.Waitlisted++
		}
	}
	if seats.Confirmed < capacity {
		seats.Available = capacity - seats.Confirmed
	}
	return seats
}
