package email

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"time"

	"judoclub/internal/logger"
	"judoclub/internal/metrics"

	"github.com/redis/go-redis/v9"
)

const (
	queueKey       = "emails"
	failedQueueKey = "emails:failed"
	maxTries       = 3
)

type EmailJob struct {
	To      string    `json:"to"`
	Name    string    `json:"name"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Kind    string    `json:"kind"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

type Options struct {
	From     string
	FromName string
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service queues mail in a redis list and delivers it over SMTP from a
// single worker.
type Service struct {
	redis      redis.Cmdable
	opts       Options
	send       sendFunc
	retryDelay time.Duration
	loc        *time.Location
}

func New(rdb redis.Cmdable, opts Options, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		redis:      rdb,
		opts:       opts,
		send:       smtp.SendMail,
		retryDelay: 5 * time.Second,
		loc:        loc,
	}
}

func (s *Service) Send(ctx context.Context, to, name, subject, body string) error {
	return s.enqueue(ctx, "generic", to, name, subject, body)
}

func (s *Service) enqueue(ctx context.Context, kind, to, name, subject, body string) error {
	job := EmailJob{
		To:      to,
		Name:    name,
		Subject: subject,
		Body:    body,
		Kind:    kind,
		Created: time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal email job: %w", err)
	}

	if err := s.redis.LPush(ctx, queueKey, string(data)).Err(); err != nil {
		metrics.RecordEmail(kind, "queue_failed")
		logger.Error("failed to queue email", "to", to, "kind", kind, "error", err)
		return fmt.Errorf("queue email: %w", err)
	}

	metrics.RecordEmail(kind, "queued")
	logger.Debug("email queued", "to", to, "kind", kind)
	return nil
}

func (s *Service) Start(ctx context.Context) {
	logger.Info("email worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("email worker stopped")
			return
		default:
			s.processNext(ctx)
		}
	}
}

func (s *Service) processNext(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, 2*time.Second, queueKey).Result()
	if err != nil {
		return
	}

	var job EmailJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Error("bad email job", "error", err)
		return
	}

	job.Tries++
	if err := s.sendNow(job); err != nil {
		logger.Error("failed to send email", "to", job.To, "attempt", job.Tries, "error", err)

		if job.Tries < maxTries {
			select {
			case <-ctx.Done():
			case <-time.After(s.retryDelay):
			}
			data, _ := json.Marshal(job)
			s.redis.LPush(context.WithoutCancel(ctx), queueKey, string(data))
			return
		}
		metrics.RecordEmail(job.Kind, "failed")
		s.saveFailed(ctx, job, err)
		return
	}

	metrics.RecordEmail(job.Kind, "sent")
	logger.Info("email sent", "to", job.To, "kind", job.Kind)
}

func (s *Service) sendNow(job EmailJob) error {
	message := fmt.Sprintf("From: %s <%s>\r\n", s.opts.FromName, s.opts.From)
	message += fmt.Sprintf("To: %s\r\n", job.To)
	message += fmt.Sprintf("Subject: %s\r\n", job.Subject)
	message += "\r\n" + job.Body

	var auth smtp.Auth
	if s.opts.SMTPUser != "" && s.opts.SMTPPass != "" {
		auth = smtp.PlainAuth("", s.opts.SMTPUser, s.opts.SMTPPass, s.opts.SMTPHost)
	}

	addr := s.opts.SMTPHost + ":" + s.opts.SMTPPort
	return s.send(addr, auth, s.opts.From, []string{job.To}, []byte(message))
}

func (s *Service) saveFailed(ctx context.Context, job EmailJob, err error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": err.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	s.redis.LPush(context.WithoutCancel(ctx), failedQueueKey, string(data))
	logger.Error("email moved to failed queue", "to", job.To, "kind", job.Kind)
}

func (s *Service) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, queueKey).Result()
	metrics.EmailQueueLength.Set(float64(length))
	return length
}

func (s *Service) when(t time.Time) string {
	return t.In(s.loc).Format("Mon Jan 2, 2006 at 15:04")
}

func (s *Service) SendBookingConfirmation(ctx context.Context, email, name, className, location string, when time.Time) error {
	subject := "Booking confirmed - " + className
	body := fmt.Sprintf(`Hi %s,

Your place is confirmed.

Class: %s
Where: %s
When: %s

Check in at the dojo with the QR code from the app.

- %s`, name, className, location, s.when(when), s.opts.FromName)

	return s.enqueue(ctx, "booking_confirmed", email, name, subject, body)
}

func (s *Service) SendWaitlisted(ctx context.Context, email, name, className string, when time.Time) error {
	subject := "Waitlisted - " + className
	body := fmt.Sprintf(`Hi %s,

The class is full, so you are on the waitlist:

Class: %s
When: %s

We will email you if a place opens up.

- %s`, name, className, s.when(when), s.opts.FromName)

	return s.enqueue(ctx, "waitlisted", email, name, subject, body)
}

func (s *Service) SendWaitlistPromotion(ctx context.Context, email, name, className, location string, when time.Time) error {
	subject := "You're in - " + className
	body := fmt.Sprintf(`Hi %s,

A place opened up and your waitlisted booking is now confirmed:

Class: %s
Where: %s
When: %s

If you can no longer come, please cancel so the next person gets the spot.

- %s`, name, className, location, s.when(when), s.opts.FromName)

	return s.enqueue(ctx, "waitlist_promoted", email, name, subject, body)
}

func (s *Service) SendCancellation(ctx context.Context, email, name, className string, when time.Time) error {
	subject := "Booking cancelled - " + className
	body := fmt.Sprintf(`Hi %s,

Your booking has been cancelled:

Class: %s
When: %s

- %s`, name, className, s.when(when), s.opts.FromName)

	return s.enqueue(ctx, "booking_cancelled", email, name, subject, body)
}
