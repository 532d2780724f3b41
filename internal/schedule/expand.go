package schedule

import (
	"errors"
	"sort"
	"time"
)

var ErrInvalidRange = errors.New("from must not be after to")

// Expand turns weekly templates into dated instances for every civil day in
// [from, to] (inclusive) as seen in loc. It reads nothing but its arguments.
func Expand(templates []ClassTemplate, from, to time.Time, loc *time.Location) ([]Instance, error) {
	if loc == nil {
		loc = time.UTC
	}
	first := civilDay(from, loc)
	last := civilDay(to, loc)
	if first.After(last) {
		return nil, ErrInvalidRange
	}

	byWeekday := make(map[time.Weekday][]ClassTemplate, 7)
	for _, tpl := range templates {
		if !tpl.Active {
			continue
		}
		wd := time.Weekday(tpl.DayOfWeek)
		byWeekday[wd] = append(byWeekday[wd], tpl)
	}

	var out []Instance
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		date := day.Format(DateLayout)
		for _, tpl := range byWeekday[day.Weekday()] {
			if !startedBy(tpl, date) {
				continue
			}
			out = append(out, instanceOn(tpl, day, loc))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].TemplateID < out[j].TemplateID
	})

	return out, nil
}

// InstanceOn builds the instance of tpl on date, or reports why it does not
// exist. The active flag is not consulted; callers decide whether inactive
// templates still resolve.
func InstanceOn(tpl ClassTemplate, date string, loc *time.Location) (Instance, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := ParseDate(date, loc)
	if err != nil {
		return Instance{}, err
	}
	if int(day.Weekday()) != tpl.DayOfWeek || !startedBy(tpl, date) {
		return Instance{}, ErrInstanceNotFound
	}
	return instanceOn(tpl, day, loc), nil
}

// ParseDate parses a YYYY-MM-DD civil date at midnight in loc.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return day, nil
}

func instanceOn(tpl ClassTemplate, day time.Time, loc *time.Location) Instance {
	start := time.Date(day.Year(), day.Month(), day.Day(), tpl.StartHour, tpl.StartMinute, 0, 0, loc)
	tags := make([]string, len(tpl.Tags))
	copy(tags, tpl.Tags)

	return Instance{
		InstanceKey: InstanceKey{TemplateID: tpl.ID, Date: day.Format(DateLayout)},
		Name:        tpl.Name,
		Level:       tpl.Level,
		Tags:        tags,
		Location:    tpl.Location,
		Capacity:    tpl.Capacity,
		Start:       start,
		End:         start.Add(tpl.Duration()),
	}
}

// startedBy compares civil dates lexically; YYYY-MM-DD sorts chronologically.
func startedBy(tpl ClassTemplate, date string) bool {
	return tpl.ActiveFrom == nil || *tpl.ActiveFrom <= date
}

func civilDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
