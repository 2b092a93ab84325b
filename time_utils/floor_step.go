package timeutils

import "time"

// FloorToStep returns the given `t` rounded down to the nearest `step` boundary within its day, e.g. with a step of 15 minutes
// 09:40 becomes 09:30 and 09:44:59 becomes 09:30.
// Steps that do not divide a day evenly are measured from local midnight.
func FloorToStep(t time.Time, step time.Duration) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	if step <= 0 {
		return t
	}
	sinceMidnight := t.Sub(midnight)
	return midnight.Add(sinceMidnight - sinceMidnight%step)
}

// StepTime returns the start time of the `i`th step of length `step` after `start`.
func StepTime(start time.Time, step time.Duration, i int) time.Time {
	return start.Add(time.Duration(i) * step)
}

// HourOfDay returns the fractional hour of the day of `t` in its own location, e.g. 13:45 is 13.75.
func HourOfDay(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600
}
