package utils

import (
	"slices"
	"time"
)

// SortDates sorts dates in place, ascending or descending, and returns them.
func SortDates(dates []time.Time, asc bool) []time.Time {
	slices.SortFunc(dates, func(a, b time.Time) int {
		if asc {
			return a.Compare(b)
		}
		return b.Compare(a)
	})
	return dates
}

// GetSortedKeys returns the date keys of m in sorted order.
func GetSortedKeys[T any](m map[time.Time]T, asc bool) []time.Time {
	keys := make([]time.Time, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return SortDates(keys, asc)
}
