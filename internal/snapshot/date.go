package snapshot

import "time"

// DateFor truncates an instant to its UTC calendar day, the snapshot_date
// stamped on a snapshot row. The orchestrator passes the current time during
// each store's user or video sync, not the run's start, so a run that crosses
// UTC midnight can stamp different dates on different stores.
func DateFor(runStart time.Time) time.Time {
	u := runStart.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
