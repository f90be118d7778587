package appointments

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/halcyon-wellness/storefront-api/pkg/config"
)

// Window is a bookable stretch of a day, in minutes after local midnight.
type Window struct {
	Start int
	End   int
}

// BusinessHours describes the bookable windows of every day.
type BusinessHours struct {
	Location *time.Location
	Windows  []Window
	Slot     time.Duration
}

// DefaultBusinessHours is 09:00-12:00 and 13:00-17:00 UTC in 30-minute slots.
func DefaultBusinessHours() BusinessHours {
	return BusinessHours{
		Location: time.UTC,
		Windows:  []Window{{Start: 9 * 60, End: 12 * 60}, {Start: 13 * 60, End: 17 * 60}},
		Slot:     30 * time.Minute,
	}
}

// HoursFromConfig parses the configured morning and afternoon windows.
func HoursFromConfig(cfg config.ScheduleConfig) (BusinessHours, error) {
	loc, err := cfg.Location()
	if err != nil {
		return BusinessHours{}, err
	}
	morning, err := parseWindow(cfg.MorningStart, cfg.MorningEnd)
	if err != nil {
		return BusinessHours{}, fmt.Errorf("morning window: %w", err)
	}
	afternoon, err := parseWindow(cfg.AfternoonStart, cfg.AfternoonEnd)
	if err != nil {
		return BusinessHours{}, fmt.Errorf("afternoon window: %w", err)
	}
	if afternoon.Start < morning.End {
		return BusinessHours{}, fmt.Errorf("afternoon window must start after the morning window ends")
	}
	slot := time.Duration(cfg.SlotMinutes) * time.Minute
	if slot <= 0 {
		slot = 30 * time.Minute
	}
	return BusinessHours{Location: loc, Windows: []Window{morning, afternoon}, Slot: slot}, nil
}

func parseWindow(start, end string) (Window, error) {
	s, err := parseClock(start)
	if err != nil {
		return Window{}, err
	}
	e, err := parseClock(end)
	if err != nil {
		return Window{}, err
	}
	if e <= s {
		return Window{}, fmt.Errorf("window end %s must be after start %s", end, start)
	}
	return Window{Start: s, End: e}, nil
}

func parseClock(value string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock %q, want HH:MM", value)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	if h == 24 && m != 0 {
		return 0, fmt.Errorf("invalid clock %q", value)
	}
	return h*60 + m, nil
}

// DayBounds returns [midnight, next midnight) of date's calendar day in the
// business location.
func (h BusinessHours) DayBounds(date time.Time) (time.Time, time.Time) {
	loc := h.location()
	local := date.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// GenerateSlots returns every slot start on date's calendar day. A slot is
// only emitted when it fits entirely inside its window. Pure.
func GenerateSlots(date time.Time, hours BusinessHours) []time.Time {
	if hours.Slot <= 0 {
		return nil
	}
	dayStart, _ := hours.DayBounds(date)
	slotMinutes := int(hours.Slot / time.Minute)
	if slotMinutes <= 0 {
		return nil
	}
	var slots []time.Time
	for _, w := range hours.Windows {
		for m := w.Start; m+slotMinutes <= w.End; m += slotMinutes {
			slots = append(slots, clockOn(dayStart, m))
		}
	}
	return slots
}

// Contains reports whether [start, end) lies inside a single window on
// start's calendar day.
func (h BusinessHours) Contains(start, end time.Time) bool {
	if !end.After(start) {
		return false
	}
	dayStart, _ := h.DayBounds(start)
	for _, w := range h.Windows {
		ws := clockOn(dayStart, w.Start)
		we := clockOn(dayStart, w.End)
		if !start.Before(ws) && !end.After(we) {
			return true
		}
	}
	return false
}

func (h BusinessHours) location() *time.Location {
	if h.Location == nil {
		return time.UTC
	}
	return h.Location
}

// clockOn adds minutes as wall-clock time so DST days keep their local hours.
func clockOn(dayStart time.Time, minutes int) time.Time {
	return time.Date(dayStart.Year(), dayStart.Month(), dayStart.Day(), minutes/60, minutes%60, 0, 0, dayStart.Location())
}
