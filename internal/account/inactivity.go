package account

import "time"

// UnknownInactivity marks an account whose last activity was never observed.
const UnknownInactivity = -1

const day = 24 * time.Hour

// InactivityDays returns the whole days elapsed between last and now. Future
// timestamps clamp to zero; a zero last yields UnknownInactivity.
func InactivityDays(last, now time.Time) int {
	if last.IsZero() {
		return UnknownInactivity
	}
	d := now.Sub(last)
	if d <= 0 {
		return 0
	}
	return int(d / day)
}
