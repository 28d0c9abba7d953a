package appointments

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SlotDateLayout is the canonical slot_date format.
const SlotDateLayout = "2006-01-02"

// ParseSlotDate parses a YYYY-MM-DD slot date as a calendar day in loc.
func ParseSlotDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(SlotDateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, ErrInvalidSlotDate
	}
	return d, nil
}

// SlotMinutes returns hour*60+minute for "HH:MM" (24h) or "h:MM AM/PM".
func SlotMinutes(s string) (int, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	meridiem := ""
	for _, suffix := range []string{"AM", "PM"} {
		if strings.HasSuffix(s, suffix) {
			meridiem = suffix
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
			break
		}
	}

	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(mm) != 2 || hh == "" || len(hh) > 2 || !allDigits(hh) || !allDigits(mm) {
		return 0, ErrInvalidSlotTime
	}
	hour, err := strconv.Atoi(hh)
	if err != nil {
		return 0, ErrInvalidSlotTime
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, ErrInvalidSlotTime
	}

	switch meridiem {
	case "":
		if hour < 0 || hour > 23 {
			return 0, ErrInvalidSlotTime
		}
	default:
		if hour < 1 || hour > 12 {
			return 0, ErrInvalidSlotTime
		}
		hour %= 12
		if meridiem == "PM" {
			hour += 12
		}
	}
	return hour*60 + minute, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// NormalizeSlotTime rewrites a slot time as 24h "HH:MM" so that "2:30 PM" and
// "14:30" occupy the same ledger entry.
func NormalizeSlotTime(s string) (string, error) {
	minutes, err := SlotMinutes(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60), nil
}

// NormalizeSlot validates a slot and returns its canonical date and time strings.
func NormalizeSlot(date, clock string) (string, string, error) {
	d, err := ParseSlotDate(date, time.UTC)
	if err != nil {
		return "", "", err
	}
	t, err := NormalizeSlotTime(clock)
	if err != nil {
		return "", "", err
	}
	return d.Format(SlotDateLayout), t, nil
}
