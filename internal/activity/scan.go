package activity

// runSpec describes a tolerant run: a stretch that starts on a core minute and
// may absorb up to tolerance interrupting minutes. The budget is shared by the
// whole run and never resets.
type runSpec struct {
	core         func(i int) bool
	interruption func(i int) bool
	tolerance    int
	minLength    int
	// keepTrailing keeps tolerated interruptions after the last core minute.
	// When false the run always ends on a core minute.
	keepTrailing bool
}

// scanRuns walks [lo, hi) left to right and calls emit with the inclusive bounds
// of every run of at least minLength minutes. Accepted runs never overlap;
// scanning resumes right after each one. A run that is too short is dropped and
// the next start is tried one minute later, since a later start has a fresh
// budget and may reach further.
func scanRuns(lo, hi int, s runSpec, emit func(start, end int)) {
	for i := lo; i < hi; {
		if !s.core(i) {
			i++
			continue
		}

		lastCore, end, used := i, i, 0
		for j := i + 1; j < hi; j++ {
			if s.core(j) {
				lastCore, end = j, j
				continue
			}
			if used < s.tolerance && s.interruption(j) {
				used++
				end = j
				continue
			}
			break
		}
		if !s.keepTrailing {
			end = lastCore
		}

		if end-i+1 >= s.minLength {
			emit(i, end)
			i = end + 1
			continue
		}
		i++
	}
}
