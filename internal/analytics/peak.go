package analytics

import (
	"fmt"
	"time"
)

// HourlyHistogram buckets timestamps by local hour of day.
func HourlyHistogram(timestamps []time.Time, loc *time.Location) [24]int {
	if loc == nil {
		loc = time.Local
	}
	var buckets [24]int
	for _, ts := range timestamps {
		buckets[ts.In(loc).Hour()]++
	}
	return buckets
}

// PeakHour returns the busiest local hour. Ties go to the earliest hour;
// the result is false when there are no timestamps.
func PeakHour(timestamps []time.Time, loc *time.Location) (int, bool) {
	buckets := HourlyHistogram(timestamps, loc)
	peak, best := 0, 0
	for hour, count := range buckets {
		if count > best {
			peak, best = hour, count
		}
	}
	return peak, best > 0
}

// PeakHourLabel renders a peak hour as "14:00".
func PeakHourLabel(hour int) string {
	return fmt.Sprintf("%d:00", hour)
}
