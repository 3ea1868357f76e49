package activity

// WeekdayAt returns the weekday of the minute at 1-based index i for a series
// starting on w0 with days of dayLength minutes
func WeekdayAt(i int, w0 Weekday, dayLength int) Weekday {
	day := (i - 1) / dayLength
	return Weekday((int(w0)-1+day)%7 + 1)
}

// SegmentDays partitions n minutes into consecutive days of dayLength minutes.
// The last day may be shorter; it is still returned, marked Partial.
func SegmentDays(n int, w0 Weekday, dayLength int) []DaySegment {
	if n <= 0 || dayLength <= 0 {
		return nil
	}

	segments := make([]DaySegment, 0, (n+dayLength-1)/dayLength)
	for start, day := 0, 1; start < n; start, day = start+dayLength, day+1 {
		end := start + dayLength
		if end > n {
			end = n
		}
		segments = append(segments, DaySegment{
			Day:     day,
			Weekday: WeekdayAt(start+1, w0, dayLength),
			Start:   start,
			End:     end,
			Partial: end-start < dayLength,
		})
	}
	return segments
}
