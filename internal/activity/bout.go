package activity

// DetectBouts finds the bouts of one rule within a single day. Offsets in the
// returned bouts are relative to the start of day.
//
// A bout starts and ends on a wear minute whose band lies in the rule's range.
// In between it may contain up to rule.Tolerance interrupting wear minutes from
// other bands, each with a count no higher than rule.ToleranceUpperBound.
// Non-wear, missing and flagged minutes always end a bout.
func DetectBouts(day []Epoch, rule BoutRule) []Bout {
	usable := func(e Epoch) bool {
		return e.Wear && !e.Missing && !e.flagged()
	}
	inRange := func(e Epoch) bool {
		return e.Band >= rule.MinBand && e.Band <= rule.MaxBand
	}

	spec := runSpec{
		core: func(i int) bool {
			return usable(day[i]) && inRange(day[i])
		},
		interruption: func(i int) bool {
			e := day[i]
			return usable(e) && !inRange(e) && e.Corrected <= rule.ToleranceUpperBound
		},
		tolerance: rule.Tolerance,
		minLength: rule.MinLength,
	}

	var bouts []Bout
	scanRuns(0, len(day), spec, func(start, end int) {
		bouts = append(bouts, Bout{Rule: rule.Name, Start: start, End: end})
	})
	return bouts
}

// SummarizeBouts totals bouts into a day summary entry
func SummarizeBouts(rule string, bouts []Bout) BoutSummary {
	s := BoutSummary{Rule: rule}
	for _, b := range bouts {
		s.Count++
		s.Minutes += b.Minutes()
	}
	return s
}
