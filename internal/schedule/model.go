package schedule

import (
	"fmt"
	"time"

	"github.com/lib/pq"
)

// DateLayout is the civil date format used in instance keys and URLs.
const DateLayout = "2006-01-02"

type ClassTemplate struct {
	ID              int64          `db:"id" json:"id"`
	Name            string         `db:"name" json:"name"`
	DayOfWeek       int            `db:"day_of_week" json:"day_of_week"`
	StartHour       int            `db:"start_hour" json:"start_hour"`
	StartMinute     int            `db:"start_minute" json:"start_minute"`
	DurationMinutes int            `db:"duration_minutes" json:"duration_minutes"`
	Capacity        int            `db:"capacity" json:"capacity"`
	Level           string         `db:"level" json:"level"`
	Tags            pq.StringArray `db:"tags" json:"tags"`
	Location        string         `db:"location" json:"location"`
	Active          bool           `db:"active" json:"active"`
	ActiveFrom      *string        `db:"active_from" json:"active_from,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}

func (t ClassTemplate) Duration() time.Duration {
	return time.Duration(t.DurationMinutes) * time.Minute
}

// InstanceKey identifies one dated occurrence of a template.
type InstanceKey struct {
	TemplateID int64  `json:"template_id"`
	Date       string `json:"date"`
}

func (k InstanceKey) String() string {
	return fmt.Sprintf("%d@%s", k.TemplateID, k.Date)
}

type Instance struct {
	InstanceKey
	Name     string    `json:"name"`
	Level    string    `json:"level"`
	Tags     []string  `json:"tags"`
	Location string    `json:"location"`
	Capacity int       `json:"capacity"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

type CreateTemplateRequest struct {
	Name            string   `json:"name" binding:"required"`
	DayOfWeek       *int     `json:"day_of_week" binding:"required,min=0,max=6"`
	StartHour       *int     `json:"start_hour" binding:"required,min=0,max=23"`
	StartMinute     int      `json:"start_minute" binding:"min=0,max=59"`
	DurationMinutes int      `json:"duration_minutes" binding:"required,min=1,max=1440"`
	Capacity        int      `json:"capacity" binding:"required,min=1"`
	Level           string   `json:"level"`
	Tags            []string `json:"tags"`
	Location        string   `json:"location"`
	ActiveFrom      *string  `json:"active_from"`
}
