package appointments

import (
	"testing"
	"time"

	"github.com/halcyon-wellness/storefront-api/pkg/config"
)

func TestGenerateSlotsDefaultHours(t *testing.T) {
	date := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
	slots := GenerateSlots(date, DefaultBusinessHours())

	// 6 morning slots + 8 afternoon slots
	if len(slots) != 14 {
		t.Fatalf("expected 14 slots, got %d", len(slots))
	}
	if !slots[0].Equal(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected first slot %s", slots[0])
	}
	if !slots[5].Equal(time.Date(2025, 6, 1, 11, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected last morning slot %s", slots[5])
	}
	if !slots[6].Equal(time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected lunch gap, got %s", slots[6])
	}
	if !slots[13].Equal(time.Date(2025, 6, 1, 16, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected last slot %s", slots[13])
	}
	for i := 1; i < len(slots); i++ {
		if !slots[i].After(slots[i-1]) {
			t.Fatalf("slots not ascending at %d", i)
		}
	}
}

func TestGenerateSlotsIsPure(t *testing.T) {
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	a := GenerateSlots(date, DefaultBusinessHours())
	b := GenerateSlots(date, DefaultBusinessHours())
	if len(a) != len(b) {
		t.Fatal("slot generation is not deterministic")
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			t.Fatalf("slot %d differs", i)
		}
	}
}

func TestHoursFromConfig(t *testing.T) {
	hours, err := HoursFromConfig(config.ScheduleConfig{
		Timezone:       "America/Halifax",
		MorningStart:   "08:30",
		MorningEnd:     "11:00",
		AfternoonStart: "12:00",
		AfternoonEnd:   "14:00",
		SlotMinutes:    30,
	})
	if err != nil {
		t.Fatalf("hours from config: %v", err)
	}
	slots := GenerateSlots(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), hours)
	if len(slots) != 9 {
		t.Fatalf("expected 9 slots, got %d", len(slots))
	}
	first := slots[0].In(hours.Location)
	if first.Hour() != 8 || first.Minute() != 30 {
		t.Fatalf("expected local 08:30, got %s", first)
	}

	_, err = HoursFromConfig(config.ScheduleConfig{Timezone: "UTC", MorningStart: "12:00", MorningEnd: "09:00", AfternoonStart: "13:00", AfternoonEnd: "17:00"})
	if err == nil {
		t.Fatal("expected inverted window to fail")
	}
	_, err = HoursFromConfig(config.ScheduleConfig{Timezone: "UTC", MorningStart: "9am", MorningEnd: "12:00", AfternoonStart: "13:00", AfternoonEnd: "17:00"})
	if err == nil {
		t.Fatal("expected malformed clock to fail")
	}
}

func TestBusinessHoursContains(t *testing.T) {
	hours := DefaultBusinessHours()
	day := func(h, m int) time.Time { return time.Date(2025, 6, 1, h, m, 0, 0, time.UTC) }

	cases := []struct {
		start, end time.Time
		want       bool
	}{
		{day(10, 0), day(10, 30), true},
		{day(11, 30), day(12, 0), true},
		{day(11, 30), day(12, 30), false},
		{day(8, 30), day(9, 0), false},
		{day(16, 30), day(17, 0), true},
		{day(10, 0), day(10, 0), false},
	}
	for _, tc := range cases {
		if got := hours.Contains(tc.start, tc.end); got != tc.want {
			t.Fatalf("Contains(%s, %s) = %v, want %v", tc.start.Format("15:04"), tc.end.Format("15:04"), got, tc.want)
		}
	}
}
