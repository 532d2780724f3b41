package schedule

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTemplateNotFound = errors.New("class template not found")
	ErrInstanceNotFound = errors.New("class instance not found")
	ErrInvalidDate      = errors.New("invalid date, use YYYY-MM-DD")
	ErrInvalidTemplate  = errors.New("invalid class template")
)

type Service interface {
	CreateTemplate(ctx context.Context, req CreateTemplateRequest) (*ClassTemplate, error)
	ListTemplates(ctx context.Context, onlyActive bool) ([]ClassTemplate, error)
	DeactivateTemplate(ctx context.Context, id int64) error
	Instances(ctx context.Context, from, to time.Time) ([]Instance, error)
	Instance(ctx context.Context, key InstanceKey) (Instance, error)
	Template(ctx context.Context, id int64) (*ClassTemplate, error)
	Lookup(ctx context.Context, key InstanceKey) (Instance, error)
	Location() *time.Location
}

type service struct {
	repo TemplateRepository
	loc  *time.Location
}

func NewService(repo TemplateRepository, loc *time.Location) Service {
	if loc == nil {
		loc = time.UTC
	}
	return &service{
		repo: repo,
		loc:  loc,
	}
}

func (s *service) Location() *time.Location {
	return s.loc
}

func (s *service) CreateTemplate(ctx context.Context, req CreateTemplateRequest) (*ClassTemplate, error) {
	if req.DayOfWeek == nil || req.StartHour == nil {
		return nil, ErrInvalidTemplate
	}
	if *req.DayOfWeek < 0 || *req.DayOfWeek > 6 || *req.StartHour < 0 || *req.StartHour > 23 {
		return nil, ErrInvalidTemplate
	}
	if req.StartMinute < 0 || req.StartMinute > 59 || req.DurationMinutes <= 0 || req.Capacity <= 0 {
		return nil, ErrInvalidTemplate
	}
	if req.ActiveFrom != nil {
		if _, err := ParseDate(*req.ActiveFrom, s.loc); err != nil {
			return nil, err
		}
	}

	return s.repo.CreateTemplate(ctx, ClassTemplate{
		Name:            req.Name,
		DayOfWeek:       *req.DayOfWeek,
		StartHour:       *req.StartHour,
		StartMinute:     req.StartMinute,
		DurationMinutes: req.DurationMinutes,
		Capacity:        req.Capacity,
		Level:           req.Level,
		Tags:            req.Tags,
		Location:        req.Location,
		ActiveFrom:      req.ActiveFrom,
	})
}

func (s *service) ListTemplates(ctx context.Context, onlyActive bool) ([]ClassTemplate, error) {
	return s.repo.ListTemplates(ctx, onlyActive)
}

func (s *service) DeactivateTemplate(ctx context.Context, id int64) error {
	return s.repo.DeactivateTemplate(ctx, id)
}

func (s *service) Instances(ctx context.Context, from, to time.Time) ([]Instance, error) {
	templates, err := s.repo.ListTemplates(ctx, true)
	if err != nil {
		return nil, err
	}
	return Expand(templates, from, to, s.loc)
}

// Instance resolves a bookable instance: the template must exist and be active.
func (s *service) Instance(ctx context.Context, key InstanceKey) (Instance, error) {
	tpl, err := s.repo.GetTemplateByID(ctx, key.TemplateID)
	if err != nil {
		return Instance{}, err
	}
	if !tpl.Active {
		return Instance{}, ErrInstanceNotFound
	}
	return InstanceOn(*tpl, key.Date, s.loc)
}

// Template returns the template behind a series of instances, active or not.
func (s *service) Template(ctx context.Context, id int64) (*ClassTemplate, error) {
	return s.repo.GetTemplateByID(ctx, id)
}

// Lookup resolves an instance that may already carry bookings, so a template
// deactivated afterwards still answers for its past and booked dates.
func (s *service) Lookup(ctx context.Context, key InstanceKey) (Instance, error) {
	tpl, err := s.repo.GetTemplateByID(ctx, key.TemplateID)
	if err != nil {
		return Instance{}, err
	}
	return InstanceOn(*tpl, key.Date, s.loc)
}
