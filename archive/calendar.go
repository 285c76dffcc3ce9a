package archive

import "time"

// dateDaysInMonth returns the number of days in the given calendar month,
// leap years included, by stepping back one day from the first of the
// following month (time.Date normalizes month 13 into the next year).
func dateDaysInMonth(year, month int) int {
	firstOfNext := time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, time.UTC)
	lastOfThis := firstOfNext.AddDate(0, 0, -1)
	return lastOfThis.Day()
}
