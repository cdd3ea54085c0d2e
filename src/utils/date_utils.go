package utils

import "time"

const DayFormat = "2006-01-02"

// DayKey buckets a timestamp to its UTC calendar day. Price lookups are
// memoized per (symbol, day), so the bucket must be stable for a given time.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayFormat)
}
