package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HolidayLayout is the date layout used for holiday keys.
// It matches the upstream CRM export format (day.month.year).
const HolidayLayout = "02.01.2006"

// ErrNoOpenSlot is returned when no dialable moment exists within the
// search horizon. A calendar that is closed on every weekday, or a holiday
// list covering the whole horizon, triggers this.
var ErrNoOpenSlot = errors.New("schedule: no open slot within horizon")

// Window is a dialable span within a single day, in minutes from midnight.
// End is exclusive. A window never crosses midnight; model night shifts as
// two windows on adjacent weekdays.
type Window struct {
	StartMinute int
	EndMinute   int
}

// ParseWindow parses "09:00-18:30" into a Window.
func ParseWindow(s string) (Window, error) {
	parts := strings.SplitN(strings.TrimSpace(s), "-", 2)
	if len(parts) != 2 {
		return Window{}, fmt.Errorf("schedule: window %q must look like HH:MM-HH:MM", s)
	}
	start, err := parseMinuteOfDay(parts[0])
	if err != nil {
		return Window{}, err
	}
	end, err := parseMinuteOfDay(parts[1])
	if err != nil {
		return Window{}, err
	}
	w := Window{StartMinute: start, EndMinute: end}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

func (w Window) Validate() error {
	if w.StartMinute < 0 || w.StartMinute >= 24*60 {
		return fmt.Errorf("schedule: window start %d out of range", w.StartMinute)
	}
	if w.EndMinute <= w.StartMinute || w.EndMinute > 24*60 {
		return fmt.Errorf("schedule: window end %d must be after start %d", w.EndMinute, w.StartMinute)
	}
	return nil
}

func (w Window) contains(minuteOfDay int) bool {
	return minuteOfDay >= w.StartMinute && minuteOfDay < w.EndMinute
}

func parseMinuteOfDay(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("schedule: time %q must look like HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("schedule: bad hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("schedule: bad minute in %q", s)
	}
	return h*60 + m, nil
}

// WorkWeek maps each weekday to its dialable windows.
// A weekday with no entry (or an empty slice) is fully closed.
type WorkWeek map[time.Weekday][]Window

// Calendar answers "may we dial at this moment" for one campaign.
//
// All checks happen in Location. Callers pass wall-clock times from any zone;
// the calendar converts before looking at weekday and minute.
type Calendar struct {
	Week     WorkWeek
	Holidays map[string]struct{}
	Location *time.Location
}

// NewCalendar builds a calendar. Holiday entries use HolidayLayout.
// A nil location defaults to time.Local.
func NewCalendar(week WorkWeek, holidays []string, loc *time.Location) (Calendar, error) {
	if loc == nil {
		loc = time.Local
	}
	hs := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, err := time.ParseInLocation(HolidayLayout, h, loc); err != nil {
			return Calendar{}, fmt.Errorf("schedule: bad holiday %q: %w", h, err)
		}
		hs[h] = struct{}{}
	}
	for day, windows := range week {
		for _, w := range windows {
			if err := w.Validate(); err != nil {
				return Calendar{}, fmt.Errorf("schedule: %s: %w", day, err)
			}
		}
	}
	return Calendar{Week: week, Holidays: hs, Location: loc}, nil
}

// IsOpen reports whether t falls on a working day inside a window.
func (c Calendar) IsOpen(t time.Time) bool {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)

	if _, holiday := c.Holidays[local.Format(HolidayLayout)]; holiday {
		return false
	}
	windows := c.Week[local.Weekday()]
	if len(windows) == 0 {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	for _, w := range windows {
		if w.contains(minute) {
			return true
		}
	}
	return false
}

// NextOpen returns the earliest dialable moment at or after t.
//
// The walk is iterative with a hard cap derived from horizon; it advances in
// minute steps so the answer lands on a minute boundary unless t itself is
// already open.
func (c Calendar) NextOpen(t time.Time, horizon time.Duration) (time.Time, error) {
	if c.IsOpen(t) {
		return t, nil
	}
	if horizon <= 0 {
		return time.Time{}, ErrNoOpenSlot
	}

	// Align to the next whole minute, then step.
	cur := t.Truncate(time.Minute).Add(time.Minute)
	steps := int(horizon / time.Minute)
	for i := 0; i < steps; i++ {
		if c.IsOpen(cur) {
			return cur, nil
		}
		cur = cur.Add(time.Minute)
	}
	return time.Time{}, ErrNoOpenSlot
}
