package pricing

import "temporada/internal/model"

// Horizon is the number of days in a pricing window.
const Horizon = 30

// SyntheticStatus is the demo occupancy pattern for day i of a window.
func SyntheticStatus(i int) model.Status {
	if i%5 == 0 || i%7 == 0 {
		return model.StatusOccupied
	}
	return model.StatusFree
}

// BuildWindow returns a fresh Horizon-day calendar. Supplied days are copied
// as given (at most Horizon of them); with nothing supplied the window starts
// at start and follows SyntheticStatus.
func BuildWindow(start model.Date, supplied []model.CalendarDay) []model.CalendarDay {
	if len(supplied) > 0 {
		n := min(len(supplied), Horizon)
		out := make([]model.CalendarDay, n)
		copy(out, supplied[:n])
		return out
	}

	out := make([]model.CalendarDay, Horizon)
	for i := range out {
		out[i] = model.CalendarDay{
			Date:   start.AddDays(i),
			Status: SyntheticStatus(i),
		}
	}
	return out
}

// AvailabilityWindow builds a calendar from an "available nights in the next
// 30 days" count: the first avail days are free, the rest occupied.
func AvailabilityWindow(start model.Date, avail int) []model.CalendarDay {
	avail = max(0, min(Horizon, avail))
	out := make([]model.CalendarDay, Horizon)
	for i := range out {
		status := model.StatusOccupied
		if i < avail {
			status = model.StatusFree
		}
		out[i] = model.CalendarDay{Date: start.AddDays(i), Status: status}
	}
	return out
}
