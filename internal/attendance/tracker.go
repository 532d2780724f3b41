package attendance

import (
	"context"
	"errors"
	"sort"
	"time"

	"judoclub/internal/booking"
	"judoclub/internal/logger"
	"judoclub/internal/metrics"
	"judoclub/internal/schedule"

	"github.com/google/uuid"
)

var (
	ErrRecordNotFound = errors.New("attendance record not found")
	ErrNoRecord       = errors.New("member has no attendance for this class")
	ErrOutsideWindow  = errors.New("check-in window is not open")
)

// Bookings is the read side of the booking ledger.
type Bookings interface {
	ListByInstance(ctx context.Context, key schedule.InstanceKey) ([]booking.Booking, error)
	ListByMemberBetween(ctx context.Context, memberID int64, fromDate, toDate string) ([]booking.Booking, error)
	ListBetween(ctx context.Context, fromDate, toDate string) ([]booking.Booking, error)
}

type Schedule interface {
	Lookup(ctx context.Context, key schedule.InstanceKey) (schedule.Instance, error)
	Location() *time.Location
}

type Tracker interface {
	Status(ctx context.Context, key schedule.InstanceKey, memberID int64, now time.Time) (Record, error)
	RecordCheckIn(ctx context.Context, ev CheckIn) (Record, error)
	CanCheckIn(ctx context.Context, key schedule.InstanceKey, now time.Time) error
	History(ctx context.Context, memberID int64, from, to, now time.Time) ([]Record, error)
	Roster(ctx context.Context, key schedule.InstanceKey, now time.Time) ([]RosterEntry, error)
	Materialize(ctx context.Context, now time.Time, lookback time.Duration) (int, error)
	Run(ctx context.Context, interval, lookback time.Duration, clock func() time.Time)
	Policy() Policy
}

type tracker struct {
	records  Repository
	bookings Bookings
	schedule Schedule
	policy   Policy
}

func NewTracker(records Repository, bookings Bookings, sched Schedule, policy Policy) Tracker {
	return &tracker{
		records:  records,
		bookings: bookings,
		schedule: sched,
		policy:   policy,
	}
}

func (t *tracker) Policy() Policy {
	return t.policy
}

func (t *tracker) window(ctx context.Context, key schedule.InstanceKey) (schedule.Instance, Window, error) {
	inst, err := t.schedule.Lookup(ctx, key)
	if err != nil {
		return schedule.Instance{}, Window{}, err
	}
	return inst, t.policy.Window(inst), nil
}

func (t *tracker) stored(ctx context.Context, key schedule.InstanceKey, memberID int64) (*Record, error) {
	rec, err := t.records.Get(ctx, key, memberID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, nil
	}
	return rec, err
}

// Status returns the member's record for the instance, creating or
// refreshing the stored copy when the derived status moved on.
func (t *tracker) Status(ctx context.Context, key schedule.InstanceKey, memberID int64, now time.Time) (Record, error) {
	_, w, err := t.window(ctx, key)
	if err != nil {
		return Record{}, err
	}

	stored, err := t.stored(ctx, key, memberID)
	if err != nil {
		return Record{}, err
	}
	if stored != nil && stored.Terminal() {
		return *stored, nil
	}

	bookings, err := t.bookings.ListByInstance(ctx, key)
	if err != nil {
		return Record{}, err
	}

	var checkedInAt *time.Time
	if stored != nil {
		checkedInAt = stored.CheckedInAt
	}
	status, ok := Derive(w, StateOf(bookings, memberID), checkedInAt, now)
	if !ok {
		return Record{}, ErrNoRecord
	}
	if stored != nil && stored.Status == status {
		return *stored, nil
	}

	saved, err := t.records.Save(ctx, t.newRecord(key, memberID, status, now))
	if err != nil {
		return Record{}, err
	}
	return *saved, nil
}

func (t *tracker) newRecord(key schedule.InstanceKey, memberID int64, status Status, now time.Time) Record {
	return Record{
		ID:         uuid.NewString(),
		TemplateID: key.TemplateID,
		ClassDate:  key.Date,
		MemberID:   memberID,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (t *tracker) CanCheckIn(ctx context.Context, key schedule.InstanceKey, now time.Time) error {
	_, w, err := t.window(ctx, key)
	if err != nil {
		return err
	}
	if !w.Contains(now) {
		return ErrOutsideWindow
	}
	return nil
}

// RecordCheckIn applies a check-in event. Walk-ins without a booking are
// recorded as attended too. A member already checked in keeps the first
// check-in.
func (t *tracker) RecordCheckIn(ctx context.Context, ev CheckIn) (Record, error) {
	_, w, err := t.window(ctx, ev.Key)
	if err != nil {
		return Record{}, err
	}
	if !w.Contains(ev.At) {
		return Record{}, ErrOutsideWindow
	}

	at := ev.At
	rec := t.newRecord(ev.Key, ev.MemberID, StatusAttended, ev.At)
	rec.CheckedInAt = &at
	rec.Method = ev.Method
	rec.Points = t.policy.Points

	saved, first, err := t.records.MarkAttended(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	if first {
		logger.Info("check-in recorded",
			"member_id", ev.MemberID, "instance", ev.Key.String(), "method", ev.Method)
	}
	return *saved, nil
}

type historyItem struct {
	record Record
	start  time.Time
}

// History derives the member's records for classes between from and to.
// Only stored records are persisted; the rest are computed on the fly.
func (t *tracker) History(ctx context.Context, memberID int64, from, to, now time.Time) ([]Record, error) {
	loc := t.schedule.Location()
	fromDate := from.In(loc).Format(schedule.DateLayout)
	toDate := to.In(loc).Format(schedule.DateLayout)
	if fromDate > toDate {
		return nil, schedule.ErrInvalidRange
	}

	bookings, err := t.bookings.ListByMemberBetween(ctx, memberID, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	records, err := t.records.ListByMemberBetween(ctx, memberID, fromDate, toDate)
	if err != nil {
		return nil, err
	}

	states := make(map[schedule.InstanceKey]BookingState)
	for _, b := range bookings {
		if !b.Active() {
			continue
		}
		if s := StateOf([]booking.Booking{b}, memberID); s > states[b.Key()] {
			states[b.Key()] = s
		}
	}
	stored := make(map[schedule.InstanceKey]Record, len(records))
	for _, rec := range records {
		stored[rec.Key()] = rec
	}

	keys := make(map[schedule.InstanceKey]struct{}, len(states)+len(stored))
	for k := range states {
		keys[k] = struct{}{}
	}
	for k := range stored {
		keys[k] = struct{}{}
	}

	var items []historyItem
	for key := range keys {
		inst, w, err := t.window(ctx, key)
		if errors.Is(err, schedule.ErrTemplateNotFound) || errors.Is(err, schedule.ErrInstanceNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		rec, has := stored[key]
		if has && rec.Terminal() {
			items = append(items, historyItem{record: rec, start: inst.Start})
			continue
		}

		var checkedInAt *time.Time
		if has {
			checkedInAt = rec.CheckedInAt
		}
		status, ok := Derive(w, states[key], checkedInAt, now)
		if !ok {
			continue
		}
		if !has {
			rec = Record{TemplateID: key.TemplateID, ClassDate: key.Date, MemberID: memberID}
		}
		rec.Status = status
		items = append(items, historyItem{record: rec, start: inst.Start})
	}

	sort.Slice(items, func(i, j int) bool {
		if !items[i].start.Equal(items[j].start) {
			return items[i].start.Before(items[j].start)
		}
		return items[i].record.TemplateID < items[j].record.TemplateID
	})

	out := make([]Record, 0, len(items))
	for _, it := range items {
		out = append(out, it.record)
	}
	return out, nil
}

// Roster lists everyone on the class: booked and waitlisted members in
// booking order, then walk-ins.
func (t *tracker) Roster(ctx context.Context, key schedule.InstanceKey, now time.Time) ([]RosterEntry, error) {
	_, w, err := t.window(ctx, key)
	if err != nil {
		return nil, err
	}

	bookings, err := t.bookings.ListByInstance(ctx, key)
	if err != nil {
		return nil, err
	}
	records, err := t.records.ListByInstance(ctx, key)
	if err != nil {
		return nil, err
	}

	byMember := make(map[int64]Record, len(records))
	for _, rec := range records {
		byMember[rec.MemberID] = rec
	}

	entry := func(memberID int64, state BookingState) RosterEntry {
		e := RosterEntry{MemberID: memberID}
		rec, has := byMember[memberID]
		if has && rec.Terminal() {
			e.Status, e.CheckedInAt, e.Method = rec.Status, rec.CheckedInAt, rec.Method
			return e
		}
		var checkedInAt *time.Time
		if has {
			checkedInAt = rec.CheckedInAt
		}
		if status, ok := Derive(w, state, checkedInAt, now); ok {
			e.Status = status
		}
		return e
	}

	seen := make(map[int64]bool)
	out := []RosterEntry{}
	for _, b := range bookings {
		if !b.Active() || seen[b.MemberID] {
			continue
		}
		seen[b.MemberID] = true

		e := entry(b.MemberID, StateOf([]booking.Booking{b}, b.MemberID))
		e.BookingID = b.ID
		e.BookingStatus = string(b.Status)
		out = append(out, e)
	}
	for _, rec := range records {
		if seen[rec.MemberID] || rec.CheckedInAt == nil {
			continue
		}
		seen[rec.MemberID] = true
		out = append(out, entry(rec.MemberID, BookingNone))
	}
	return out, nil
}

// Materialize persists terminal statuses for confirmed bookings whose
// check-in window closed within lookback of now.
func (t *tracker) Materialize(ctx context.Context, now time.Time, lookback time.Duration) (int, error) {
	loc := t.schedule.Location()
	since := now.Add(-lookback)
	// A class ending just after midnight still belongs to the previous day.
	fromDate := since.In(loc).AddDate(0, 0, -1).Format(schedule.DateLayout)
	toDate := now.In(loc).Format(schedule.DateLayout)

	bookings, err := t.bookings.ListBetween(ctx, fromDate, toDate)
	if err != nil {
		return 0, err
	}

	windows := make(map[schedule.InstanceKey]*Window)
	count := 0
	for _, b := range bookings {
		if b.Status != booking.StatusConfirmed {
			continue
		}
		if err := ctx.Err(); err != nil {
			return count, err
		}

		key := b.Key()
		w, ok := windows[key]
		if !ok {
			_, win, err := t.window(ctx, key)
			if err != nil {
				windows[key] = nil
				logger.Warn("materialize: instance lookup failed", "instance", key.String(), "error", err)
				continue
			}
			w = &win
			windows[key] = w
		}
		if w == nil || !w.Closed(now) || w.Closes().Before(since) {
			continue
		}

		stored, err := t.stored(ctx, key, b.MemberID)
		if err != nil {
			return count, err
		}
		if stored != nil && (stored.Terminal() || stored.CheckedInAt != nil) {
			continue
		}

		status, _ := Derive(*w, BookingConfirmed, nil, now)
		if _, err := t.records.Save(ctx, t.newRecord(key, b.MemberID, status, now)); err != nil {
			return count, err
		}
		count++
	}

	if count > 0 {
		metrics.RecordMaterialized(string(StatusMissed), count)
	}
	return count, nil
}

// Run materializes on every tick until ctx is cancelled.
func (t *tracker) Run(ctx context.Context, interval, lookback time.Duration, clock func() time.Time) {
	if clock == nil {
		clock = time.Now
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("attendance materializer started", "interval", interval.String(), "lookback", lookback.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("attendance materializer stopped")
			return
		case <-ticker.C:
			n, err := t.Materialize(ctx, clock(), lookback)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("attendance materialization failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("attendance materialized", "records", n)
			}
		}
	}
}
