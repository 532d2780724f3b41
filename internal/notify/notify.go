package notify

import (
	"context"
	"time"

	"judoclub/internal/booking"
	"judoclub/internal/events"
	"judoclub/internal/logger"
	"judoclub/internal/member"
	"judoclub/internal/schedule"
)

type Members interface {
	GetByID(ctx context.Context, memberID int64) (*member.Member, error)
}

type Mailer interface {
	SendBookingConfirmation(ctx context.Context, email, name, className, location string, when time.Time) error
	SendWaitlisted(ctx context.Context, email, name, className string, when time.Time) error
	SendWaitlistPromotion(ctx context.Context, email, name, className, location string, when time.Time) error
	SendCancellation(ctx context.Context, email, name, className string, when time.Time) error
}

// Notifier fans booking transitions out to email and the event bus. A nil
// mailer disables email.
type Notifier struct {
	members   Members
	mailer    Mailer
	publisher events.Publisher
	clock     func() time.Time
}

var _ booking.Notifier = (*Notifier)(nil)

func New(members Members, mailer Mailer, publisher events.Publisher, clock func() time.Time) *Notifier {
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	if clock == nil {
		clock = time.Now
	}
	return &Notifier{members: members, mailer: mailer, publisher: publisher, clock: clock}
}

type bookingEvent struct {
	BookingID  int64          `json:"booking_id"`
	MemberID   int64          `json:"member_id"`
	TemplateID int64          `json:"template_id"`
	ClassDate  string         `json:"class_date"`
	Status     booking.Status `json:"status"`
	ClassName  string         `json:"class_name"`
	Start      time.Time      `json:"start"`
}

func (n *Notifier) publish(ctx context.Context, eventType string, b booking.Booking, inst schedule.Instance) {
	events.PublishBestEffort(ctx, n.publisher, events.New(eventType, n.clock(), bookingEvent{
		BookingID:  b.ID,
		MemberID:   b.MemberID,
		TemplateID: b.TemplateID,
		ClassDate:  b.ClassDate,
		Status:     b.Status,
		ClassName:  inst.Name,
		Start:      inst.Start,
	}))
}

func (n *Notifier) mail(ctx context.Context, b booking.Booking, send func(m *member.Member) error) {
	if n.mailer == nil || n.members == nil {
		return
	}
	m, err := n.members.GetByID(ctx, b.MemberID)
	if err != nil {
		logger.Warn("notification skipped, member lookup failed", "member_id", b.MemberID, "error", err)
		return
	}
	if err := send(m); err != nil {
		logger.Warn("notification email not queued", "member_id", b.MemberID, "booking_id", b.ID, "error", err)
	}
}

func (n *Notifier) BookingCreated(ctx context.Context, b booking.Booking, inst schedule.Instance) {
	n.publish(ctx, events.TypeBookingCreated, b, inst)
	n.mail(ctx, b, func(m *member.Member) error {
		if b.Status == booking.StatusWaitlisted {
			return n.mailer.SendWaitlisted(ctx, m.Email, m.Name, inst.Name, inst.Start)
		}
		return n.mailer.SendBookingConfirmation(ctx, m.Email, m.Name, inst.Name, inst.Location, inst.Start)
	})
}

func (n *Notifier) BookingCancelled(ctx context.Context, b booking.Booking, inst schedule.Instance) {
	n.publish(ctx, events.TypeBookingCancelled, b, inst)
	n.mail(ctx, b, func(m *member.Member) error {
		return n.mailer.SendCancellation(ctx, m.Email, m.Name, inst.Name, inst.Start)
	})
}

func (n *Notifier) BookingPromoted(ctx context.Context, b booking.Booking, inst schedule.Instance) {
	n.publish(ctx, events.TypeBookingPromoted, b, inst)
	n.mail(ctx, b, func(m *member.Member) error {
		return n.mailer.SendWaitlistPromotion(ctx, m.Email, m.Name, inst.Name, inst.Location, inst.Start)
	})
}
