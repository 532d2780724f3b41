package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"judoclub/internal/attendance"
	"judoclub/internal/booking"
	"judoclub/internal/events"
	"judoclub/internal/logger"
	"judoclub/internal/metrics"
	"judoclub/internal/schedule"
)

var (
	ErrTokenExpired     = errors.New("check-in token expired")
	ErrTokenUnknown     = errors.New("check-in token not recognised")
	ErrTokenAlreadyUsed = errors.New("check-in token already used")
)

// Tracker is the part of the attendance tracker check-ins feed into.
type Tracker interface {
	CanCheckIn(ctx context.Context, key schedule.InstanceKey, now time.Time) error
	RecordCheckIn(ctx context.Context, ev attendance.CheckIn) (attendance.Record, error)
}

type Bookings interface {
	ListByInstance(ctx context.Context, key schedule.InstanceKey) ([]booking.Booking, error)
}

type Directory interface {
	NamesByID(ctx context.Context, ids []int64) (map[int64]string, error)
}

type Service interface {
	Issue(ctx context.Context, memberID int64, now time.Time) (IssuedToken, error)
	Validate(ctx context.Context, payload string, now time.Time) (int64, error)
	CheckInWithToken(ctx context.Context, payload string, key schedule.InstanceKey, now time.Time) (attendance.Record, error)
	ManualCheckIn(ctx context.Context, name string, key schedule.InstanceKey, now time.Time) (attendance.Record, error)
	Roster(ctx context.Context, key schedule.InstanceKey) ([]Candidate, error)
}

type Options struct {
	Secret string
	TTL    time.Duration
}

type service struct {
	store     Store
	codec     codec
	ttl       time.Duration
	tracker   Tracker
	bookings  Bookings
	directory Directory
	publisher events.Publisher
}

func NewService(store Store, opts Options, tracker Tracker, bookings Bookings, directory Directory, publisher events.Publisher) (Service, error) {
	if opts.Secret == "" {
		return nil, errors.New("check-in secret cannot be empty")
	}
	if opts.TTL <= 0 {
		return nil, errors.New("check-in token ttl must be positive")
	}
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	return &service{
		store:     store,
		codec:     codec{secret: []byte(opts.Secret)},
		ttl:       opts.TTL,
		tracker:   tracker,
		bookings:  bookings,
		directory: directory,
		publisher: publisher,
	}, nil
}

// Issue replaces any live token the member holds.
func (s *service) Issue(ctx context.Context, memberID int64, now time.Time) (IssuedToken, error) {
	t := newToken(memberID, now, s.ttl)
	payload, err := s.codec.encode(t)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign check-in token: %w", err)
	}
	if err := s.store.Put(ctx, t, now); err != nil {
		return IssuedToken{}, err
	}

	metrics.RecordTokenIssued()
	return IssuedToken{
		Token:      payload,
		MemberID:   memberID,
		IssuedAt:   t.IssuedAt,
		ValidUntil: t.ValidUntil,
	}, nil
}

// Validate consumes the token on success; a second call with the same
// payload returns ErrTokenAlreadyUsed.
func (s *service) Validate(ctx context.Context, payload string, now time.Time) (int64, error) {
	t, err := s.codec.decode(payload)
	if err != nil {
		return 0, ErrTokenUnknown
	}
	if now.After(t.ValidUntil) {
		return 0, ErrTokenExpired
	}
	if err := s.store.Consume(ctx, t, now); err != nil {
		return 0, err
	}
	return t.MemberID, nil
}

// CheckInWithToken checks the window before consuming so a scan at the
// wrong class does not burn the member's token.
func (s *service) CheckInWithToken(ctx context.Context, payload string, key schedule.InstanceKey, now time.Time) (attendance.Record, error) {
	if err := s.tracker.CanCheckIn(ctx, key, now); err != nil {
		s.rejected(ctx, attendance.MethodQR, key, now, err)
		return attendance.Record{}, err
	}

	memberID, err := s.Validate(ctx, payload, now)
	if err != nil {
		s.rejected(ctx, attendance.MethodQR, key, now, err)
		return attendance.Record{}, err
	}

	return s.record(ctx, attendance.CheckIn{MemberID: memberID, Key: key, At: now, Method: attendance.MethodQR})
}

func (s *service) ManualCheckIn(ctx context.Context, name string, key schedule.InstanceKey, now time.Time) (attendance.Record, error) {
	if err := s.tracker.CanCheckIn(ctx, key, now); err != nil {
		s.rejected(ctx, attendance.MethodManual, key, now, err)
		return attendance.Record{}, err
	}

	roster, err := s.Roster(ctx, key)
	if err != nil {
		return attendance.Record{}, err
	}
	match, err := matchName(name, roster)
	if err != nil {
		s.rejected(ctx, attendance.MethodManual, key, now, err)
		return attendance.Record{}, err
	}

	return s.record(ctx, attendance.CheckIn{MemberID: match.MemberID, Key: key, At: now, Method: attendance.MethodManual})
}

// Roster lists members holding a confirmed or waitlisted booking for the
// instance, with their display names.
func (s *service) Roster(ctx context.Context, key schedule.InstanceKey) ([]Candidate, error) {
	bookings, err := s.bookings.ListByInstance(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}

	ids := make([]int64, 0, len(bookings))
	for _, b := range bookings {
		if b.Active() {
			ids = append(ids, b.MemberID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	names := map[int64]string{}
	if s.directory != nil {
		names, err = s.directory.NamesByID(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("resolve roster names: %w", err)
		}
	}

	roster := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		roster = append(roster, Candidate{MemberID: id, Name: names[id]})
	}
	return roster, nil
}

func (s *service) record(ctx context.Context, ev attendance.CheckIn) (attendance.Record, error) {
	rec, err := s.tracker.RecordCheckIn(ctx, ev)
	if err != nil {
		metrics.RecordCheckIn(string(ev.Method), "error")
		return attendance.Record{}, err
	}

	metrics.RecordCheckIn(string(ev.Method), "ok")
	events.PublishBestEffort(ctx, s.publisher, events.New(events.TypeCheckInRecorded, ev.At, map[string]any{
		"member_id":     ev.MemberID,
		"template_id":   ev.Key.TemplateID,
		"class_date":    ev.Key.Date,
		"method":        ev.Method,
		"checked_in_at": rec.CheckedInAt,
	}))
	return rec, nil
}

func (s *service) rejected(ctx context.Context, method attendance.Method, key schedule.InstanceKey, now time.Time, err error) {
	reason := rejectionReason(err)
	metrics.RecordCheckIn(string(method), reason)
	logger.Info("check-in rejected", "method", method, "instance", key.String(), "reason", reason)
	events.PublishBestEffort(ctx, s.publisher, events.New(events.TypeCheckInRejected, now, map[string]any{
		"template_id": key.TemplateID,
		"class_date":  key.Date,
		"method":      method,
		"reason":      reason,
	}))
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrTokenUnknown):
		return "token_unknown"
	case errors.Is(err, ErrTokenAlreadyUsed):
		return "token_already_used"
	case errors.Is(err, ErrNameNotFound):
		return "name_not_found"
	case errors.Is(err, ErrAmbiguousName):
		return "ambiguous_name"
	case errors.Is(err, attendance.ErrOutsideWindow):
		return "outside_window"
	case errors.Is(err, schedule.ErrTemplateNotFound), errors.Is(err, schedule.ErrInstanceNotFound):
		return "instance_not_found"
	default:
		return "error"
	}
}
