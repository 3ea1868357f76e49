package activity

// NonwearParams controls non-wear detection
type NonwearParams struct {
	// Window is the shortest run of near-zero activity treated as non-wear
	Window int
	// Tolerance is the number of small non-zero counts a single episode may absorb
	Tolerance int
	// ToleranceUpperBound is the largest count that still counts as an interruption
	ToleranceUpperBound float64
	// DaysDistinct stops episodes at day boundaries
	DaysDistinct bool
	DayLength    int
}

// NonwearParamsFromConfig extracts the non-wear settings of a configuration
func NonwearParamsFromConfig(c Config) NonwearParams {
	return NonwearParams{
		Window:              c.NonwearWindow,
		Tolerance:           c.NonwearTolerance,
		ToleranceUpperBound: c.NonwearToleranceUpperBound,
		DaysDistinct:        c.NonwearDaysDistinct,
		DayLength:           c.DayLength,
	}
}

// DetectNonwear finds the non-wear episodes of a corrected epoch sequence and
// clears the wear flag of every epoch inside one.
//
// An episode starts on a zero-count minute and grows forward while each next
// minute is zero, or is a non-zero count no higher than ToleranceUpperBound and
// the episode still has tolerance left. Missing minutes and flagged artifacts end
// the episode. Episodes shorter than Window are discarded. Interruptions before
// the first zero are never absorbed, so an episode always starts on a zero count.
func DetectNonwear(epochs []Epoch, p NonwearParams) []NonwearEpisode {
	spec := runSpec{
		core: func(i int) bool {
			e := epochs[i]
			return !e.Missing && !e.flagged() && e.Corrected == 0
		},
		interruption: func(i int) bool {
			e := epochs[i]
			return !e.Missing && !e.flagged() && e.Corrected > 0 && e.Corrected <= p.ToleranceUpperBound
		},
		tolerance:    p.Tolerance,
		minLength:    p.Window,
		keepTrailing: true,
	}

	var episodes []NonwearEpisode
	emit := func(start, end int) {
		episodes = append(episodes, NonwearEpisode{Start: start, End: end})
		for i := start; i <= end; i++ {
			epochs[i].Wear = false
		}
	}

	n := len(epochs)
	if p.DaysDistinct && p.DayLength > 0 {
		for lo := 0; lo < n; lo += p.DayLength {
			hi := lo + p.DayLength
			if hi > n {
				hi = n
			}
			scanRuns(lo, hi, spec, emit)
		}
		return episodes
	}

	scanRuns(0, n, spec, emit)
	return episodes
}
