package domain

import "time"

// RefreshStats holds statistics about one cache refresh run.
type RefreshStats struct {
	Fetched   int
	New       int
	Updated   int
	Published int
	Errors    int
	Duration  time.Duration
}
