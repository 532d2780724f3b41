package attendance

import (
	"time"

	"judoclub/internal/booking"
	"judoclub/internal/schedule"
)

// BookingState is what the ledger says about one member on one instance.
type BookingState int

const (
	BookingNone BookingState = iota
	BookingWaitlisted
	BookingConfirmed
)

func StateOf(bookings []booking.Booking, memberID int64) BookingState {
	state := BookingNone
	for _, b := range bookings {
		if b.MemberID != memberID {
			continue
		}
		switch b.Status {
		case booking.StatusConfirmed:
			return BookingConfirmed
		case booking.StatusWaitlisted:
			state = BookingWaitlisted
		}
	}
	return state
}

// Policy holds the tunable parts of the check-in window.
type Policy struct {
	Early  time.Duration
	Grace  time.Duration
	Points int
}

func DefaultPolicy() Policy {
	return Policy{Grace: 5 * time.Minute, Points: 10}
}

func (p Policy) Window(inst schedule.Instance) Window {
	return Window{Start: inst.Start, End: inst.End, Early: p.Early, Grace: p.Grace}
}

// Window is the time frame of one instance plus its check-in margins.
type Window struct {
	Start time.Time
	End   time.Time
	Early time.Duration
	Grace time.Duration
}

func (w Window) Opens() time.Time  { return w.Start.Add(-w.Early) }
func (w Window) Closes() time.Time { return w.End.Add(w.Grace) }

// Contains reports whether a check-in at t is accepted: [Start-Early, End+Grace).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Opens()) && t.Before(w.Closes())
}

func (w Window) Closed(now time.Time) bool {
	return !now.Before(w.Closes())
}

// Ended reports whether the class itself is over. Check-ins may still be
// accepted until Closes.
func (w Window) Ended(now time.Time) bool {
	return !now.Before(w.End)
}

// Derive computes the attendance status from its inputs alone. ok is false
// when the member has no record for the instance: nothing was confirmed,
// nobody checked in and the window has closed.
//
// A confirmed booking reads as missed from the end of class. A check-in
// during the grace period still turns it into attended.
func Derive(w Window, state BookingState, checkedInAt *time.Time, now time.Time) (Status, bool) {
	if checkedInAt != nil {
		return StatusAttended, true
	}
	if state == BookingConfirmed {
		if w.Ended(now) {
			return StatusMissed, true
		}
		return StatusBooked, true
	}
	if !w.Closed(now) {
		return StatusUpcoming, true
	}
	return "", false
}
