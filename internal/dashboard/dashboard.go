// Package dashboard derives a doctor's statistics from their appointment list.
package dashboard

import (
	"sort"
	"time"

	"github.com/wolfman30/clinic-booking/internal/appointments"
)

// RecentLimit is how many of the newest appointments the dashboard shows.
const RecentLimit = 5

// Stats are the dashboard counters.
type Stats struct {
	TotalAppointments     int   `json:"total_appointments"`
	PendingAppointments   int   `json:"pending_appointments"`
	CompletedAppointments int   `json:"completed_appointments"`
	TodayAppointments     int   `json:"today_appointments"`
	ThisWeekAppointments  int   `json:"this_week_appointments"`
	ThisMonthAppointments int   `json:"this_month_appointments"`
	TotalEarnings         int64 `json:"total_earnings"`
}

// Dashboard is the GET /api/appointment/doctor/dashboard payload.
type Dashboard struct {
	Appointments       []appointments.Details `json:"appointments"`
	RecentAppointments []appointments.Details `json:"recent_appointments"`
	TodayAppointments  []appointments.Details `json:"today_appointments"`
	Stats              Stats                  `json:"stats"`
}

// Compute builds the dashboard for list, which must already be ordered newest
// first. Calendar boundaries are taken in loc. Appointments whose slot date or
// time cannot be parsed count toward the totals only.
func Compute(list []appointments.Details, now time.Time, loc *time.Location) Dashboard {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	tomorrow := todayStart.AddDate(0, 0, 1)
	weekStart := todayStart.AddDate(0, 0, -int(now.Weekday()))

	d := Dashboard{
		Appointments:       make([]appointments.Details, 0, len(list)),
		RecentAppointments: make([]appointments.Details, 0, RecentLimit),
		TodayAppointments:  make([]appointments.Details, 0),
	}
	for i, a := range list {
		d.Appointments = append(d.Appointments, a)
		if i < RecentLimit {
			d.RecentAppointments = append(d.RecentAppointments, a)
		}

		d.Stats.TotalAppointments++
		if a.IsCompleted {
			d.Stats.CompletedAppointments++
			if a.Paid() {
				d.Stats.TotalEarnings += a.Amount
			}
		} else {
			d.Stats.PendingAppointments++
		}

		day, err := appointments.ParseSlotDate(a.SlotDate, loc)
		if err != nil {
			continue
		}
		if !day.Before(todayStart) && day.Before(tomorrow) {
			d.Stats.TodayAppointments++
			d.TodayAppointments = append(d.TodayAppointments, a)
		}
		if !day.Before(weekStart) {
			d.Stats.ThisWeekAppointments++
		}
		if day.Year() == now.Year() && day.Month() == now.Month() {
			d.Stats.ThisMonthAppointments++
		}
	}

	sort.SliceStable(d.TodayAppointments, func(i, j int) bool {
		return slotMinutes(d.TodayAppointments[i].SlotTime) < slotMinutes(d.TodayAppointments[j].SlotTime)
	})
	return d
}

// slotMinutes sorts unparseable times last.
func slotMinutes(clock string) int {
	m, err := appointments.SlotMinutes(clock)
	if err != nil {
		return 24 * 60
	}
	return m
}
