package booking

import (
	"context"
	"errors"
	"sort"
	"time"

	"judoclub/internal/logger"
	"judoclub/internal/metrics"
	"judoclub/internal/schedule"
)

var (
	ErrBookingNotFound   = errors.New("booking not found")
	ErrDuplicateBooking  = errors.New("member already holds a booking for this class")
	ErrNotOwner          = errors.New("booking belongs to another member")
	ErrAlreadyCancelled  = errors.New("booking already cancelled")
	ErrInstanceClosed    = errors.New("class has already ended")
	ErrInvalidRecurrence = errors.New("recurrence must be weekly or biweekly")
)

// Schedule resolves instance keys. schedule.Service satisfies it.
type Schedule interface {
	Instance(ctx context.Context, key schedule.InstanceKey) (schedule.Instance, error)
	Template(ctx context.Context, id int64) (*schedule.ClassTemplate, error)
	Lookup(ctx context.Context, key schedule.InstanceKey) (schedule.Instance, error)
	Location() *time.Location
}

// Notifier receives ledger transitions after they are committed.
type Notifier interface {
	BookingCreated(ctx context.Context, b Booking, inst schedule.Instance)
	BookingCancelled(ctx context.Context, b Booking, inst schedule.Instance)
	BookingPromoted(ctx context.Context, b Booking, inst schedule.Instance)
}

type NopNotifier struct{}

func (NopNotifier) BookingCreated(context.Context, Booking, schedule.Instance)   {}
func (NopNotifier) BookingCancelled(context.Context, Booking, schedule.Instance) {}
func (NopNotifier) BookingPromoted(context.Context, Booking, schedule.Instance)  {}

type Service interface {
	Book(ctx context.Context, req BookRequest, now time.Time) (*Booking, bool, error)
	Cancel(ctx context.Context, memberID, bookingID int64, now time.Time) (*Booking, error)
	CancelAny(ctx context.Context, bookingID int64, now time.Time) (*Booking, error)
	RecurringBookingsFor(ctx context.Context, memberID int64, now, until time.Time) ([]Booking, error)
	Get(ctx context.Context, id int64) (*Booking, error)
	ListByMember(ctx context.Context, memberID int64) ([]Booking, error)
	ListByInstance(ctx context.Context, key schedule.InstanceKey) ([]Booking, error)
	Seats(ctx context.Context, key schedule.InstanceKey) (Seats, error)
}

type service struct {
	repo     Repository
	schedule Schedule
	notifier Notifier
}

func NewService(repo Repository, sched Schedule, notifier Notifier) Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &service{
		repo:     repo,
		schedule: sched,
		notifier: notifier,
	}
}

// Book places the member on the instance. A full class yields a waitlisted
// booking; a repeated request returns the member's existing booking with
// created=false.
func (s *service) Book(ctx context.Context, req BookRequest, now time.Time) (*Booking, bool, error) {
	if !req.Recurrence.Valid() {
		return nil, false, ErrInvalidRecurrence
	}

	key := schedule.InstanceKey{TemplateID: req.TemplateID, Date: req.Date}
	inst, err := s.schedule.Instance(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !now.Before(inst.End) {
		return nil, false, ErrInstanceClosed
	}

	var (
		result  *Booking
		created bool
	)
	err = s.repo.WithInstanceLock(ctx, key, func(store Store) error {
		bookings, err := store.ListByInstance(ctx, key)
		if err != nil {
			return err
		}

		for _, b := range bookings {
			if b.MemberID == req.MemberID && b.Active() {
				existing := b
				result = &existing
				return nil
			}
		}

		status := StatusWaitlisted
		if CountSeats(key, inst.Capacity, bookings).Available > 0 {
			status = StatusConfirmed
		}

		result, err = store.Insert(ctx, Booking{
			TemplateID: key.TemplateID,
			ClassDate:  key.Date,
			MemberID:   req.MemberID,
			Status:     status,
			Recurrence: req.Recurrence,
			CreatedAt:  now,
		})
		if err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		metrics.RecordBooking(string(result.Status))
		logger.Info("booking created",
			"booking_id", result.ID, "member_id", result.MemberID,
			"instance", key.String(), "status", result.Status)
		s.notifier.BookingCreated(ctx, *result, inst)
	}

	return result, created, nil
}

func (s *service) Cancel(ctx context.Context, memberID, bookingID int64, now time.Time) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.MemberID != memberID {
		return nil, ErrNotOwner
	}
	return s.cancel(ctx, b, now)
}

// CancelAny cancels on behalf of staff, skipping the ownership check.
func (s *service) CancelAny(ctx context.Context, bookingID int64, now time.Time) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, b, now)
}

func (s *service) cancel(ctx context.Context, b *Booking, now time.Time) (*Booking, error) {
	if b.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	key := b.Key()
	inst, err := s.schedule.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if !now.Before(inst.End) {
		return nil, ErrInstanceClosed
	}

	var (
		cancelled Booking
		previous  Status
		promoted  []Booking
	)
	err = s.repo.WithInstanceLock(ctx, key, func(store Store) error {
		bookings, err := store.ListByInstance(ctx, key)
		if err != nil {
			return err
		}

		idx := -1
		for i := range bookings {
			if bookings[i].ID == b.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrBookingNotFound
		}
		if bookings[idx].Status == StatusCancelled {
			return ErrAlreadyCancelled
		}

		at := now
		if err := store.UpdateStatus(ctx, b.ID, StatusCancelled, &at); err != nil {
			return err
		}
		previous = bookings[idx].Status
		bookings[idx].Status = StatusCancelled
		bookings[idx].CancelledAt = &at
		cancelled = bookings[idx]

		if previous != StatusConfirmed {
			return nil
		}

		// bookings is in (created_at, id) order, so the first waitlisted
		// entries are the ones to promote.
		available := CountSeats(key, inst.Capacity, bookings).Available
		for i := range bookings {
			if available == 0 {
				break
			}
			if bookings[i].Status != StatusWaitlisted {
				continue
			}
			if err := store.UpdateStatus(ctx, bookings[i].ID, StatusConfirmed, nil); err != nil {
				return err
			}
			bookings[i].Status = StatusConfirmed
			promoted = append(promoted, bookings[i])
			available--
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordBookingCancellation(string(previous))
	logger.Info("booking cancelled",
		"booking_id", cancelled.ID, "member_id", cancelled.MemberID,
		"instance", key.String(), "was", previous, "promoted", len(promoted))
	s.notifier.BookingCancelled(ctx, cancelled, inst)

	for _, p := range promoted {
		metrics.RecordWaitlistPromotion()
		s.notifier.BookingPromoted(ctx, p, inst)
	}

	return &cancelled, nil
}

// RecurringBookingsFor projects the member's recurring bookings onto future
// instances starting after now and no later than until. Real bookings are
// returned as they are; other occurrences are projected with the status the
// capacity rule would give them today. Nothing is written.
func (s *service) RecurringBookingsFor(ctx context.Context, memberID int64, now, until time.Time) ([]Booking, error) {
	anchors, err := s.repo.ListRecurring(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if len(anchors) == 0 {
		return []Booking{}, nil
	}

	own, err := s.repo.ListByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	held := make(map[schedule.InstanceKey]Booking, len(own))
	opted := make(map[schedule.InstanceKey]bool, len(own))
	for _, b := range own {
		if b.Active() {
			held[b.Key()] = b
		} else {
			opted[b.Key()] = true
		}
	}

	loc := s.schedule.Location()
	today := civilDays(now.In(loc))
	templates := make(map[int64]*schedule.ClassTemplate)
	walked := make(map[chainKey]bool)
	seen := make(map[schedule.InstanceKey]bool)
	out := []Booking{}

	// The earliest anchor of a series covers every later one.
	sort.SliceStable(anchors, func(i, j int) bool { return anchors[i].ClassDate < anchors[j].ClassDate })

	for _, anchor := range anchors {
		step := anchor.Recurrence.StepDays()
		day, err := schedule.ParseDate(anchor.ClassDate, loc)
		if err != nil || step == 0 {
			continue
		}

		// Anchors of one series project the same dates; walk each series once.
		chain := chainKey{templateID: anchor.TemplateID, step: step, phase: mod(civilDays(day), step)}
		if walked[chain] {
			continue
		}
		walked[chain] = true

		tpl, ok := templates[anchor.TemplateID]
		if !ok {
			tpl, err = s.schedule.Template(ctx, anchor.TemplateID)
			if err != nil && !errors.Is(err, schedule.ErrTemplateNotFound) {
				return nil, err
			}
			templates[anchor.TemplateID] = tpl
		}
		if tpl == nil || !tpl.Active {
			continue
		}

		if behind := today - civilDays(day); behind > 0 {
			steps := (behind + step - 1) / step
			day = day.AddDate(0, 0, steps*step)
		}

		for ; ; day = day.AddDate(0, 0, step) {
			key := schedule.InstanceKey{TemplateID: anchor.TemplateID, Date: day.Format(schedule.DateLayout)}
			inst, err := schedule.InstanceOn(*tpl, key.Date, loc)
			if err != nil {
				break
			}
			if inst.Start.After(until) {
				break
			}
			if !inst.Start.After(now) || seen[key] {
				continue
			}
			seen[key] = true

			if b, ok := held[key]; ok {
				out = append(out, b)
				continue
			}
			if opted[key] {
				continue
			}

			bookings, err := s.repo.ListByInstance(ctx, key)
			if err != nil {
				return nil, err
			}
			status := StatusWaitlisted
			if CountSeats(key, inst.Capacity, bookings).Available > 0 {
				status = StatusConfirmed
			}

			out = append(out, Booking{
				TemplateID: key.TemplateID,
				ClassDate:  key.Date,
				MemberID:   memberID,
				Status:     status,
				Recurrence: anchor.Recurrence,
				Projected:  true,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ClassDate != out[j].ClassDate {
			return out[i].ClassDate < out[j].ClassDate
		}
		return out[i].TemplateID < out[j].TemplateID
	})
	return out, nil
}

func (s *service) Get(ctx context.Context, id int64) (*Booking, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListByMember(ctx context.Context, memberID int64) ([]Booking, error) {
	return s.repo.ListByMember(ctx, memberID)
}

func (s *service) ListByInstance(ctx context.Context, key schedule.InstanceKey) ([]Booking, error) {
	return s.repo.ListByInstance(ctx, key)
}

func (s *service) Seats(ctx context.Context, key schedule.InstanceKey) (Seats, error) {
	inst, err := s.schedule.Lookup(ctx, key)
	if err != nil {
		return Seats{}, err
	}
	bookings, err := s.repo.ListByInstance(ctx, key)
	if err != nil {
		return Seats{}, err
	}
	return CountSeats(key, inst.Capacity, bookings), nil
}

type chainKey struct {
	templateID int64
	step       int
	phase      int
}

// civilDays counts calendar days since the Unix epoch for t's local date.
func civilDays(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

func mod(a, b int) int {
	return ((a % b) + b) % b
}
