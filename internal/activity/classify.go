package activity

import (
	"fmt"
	"math"
)

// Classifier maps a count to its intensity band
type Classifier struct {
	cutpoints []float64
}

// NewClassifier builds a classifier over strictly ascending cutpoints. k cutpoints
// define k+1 bands; band i covers [cutpoints[i-1], cutpoints[i]).
func NewClassifier(cutpoints []float64) (*Classifier, error) {
	if err := validateCutpoints(cutpoints); err != nil {
		return nil, err
	}
	return &Classifier{cutpoints: append([]float64(nil), cutpoints...)}, nil
}

func validateCutpoints(cutpoints []float64) error {
	if len(cutpoints) == 0 {
		return fmt.Errorf("cutpoints must not be empty")
	}
	for i, c := range cutpoints {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("cutpoint %d is not finite", i)
		}
		if c <= 0 {
			return fmt.Errorf("cutpoint %d must be positive, got %g", i, c)
		}
		if i > 0 && c <= cutpoints[i-1] {
			return fmt.Errorf("cutpoints must be strictly ascending: %g follows %g", c, cutpoints[i-1])
		}
	}
	return nil
}

// Bands returns the number of bands
func (c *Classifier) Bands() int {
	return len(c.cutpoints) + 1
}

// Band returns the band of a count. A count equal to a cutpoint belongs to the
// band starting there.
func (c *Classifier) Band(count float64) int {
	band := 0
	for _, cp := range c.cutpoints {
		if count < cp {
			break
		}
		band++
	}
	return band
}

// Lower returns the inclusive lower bound of a band
func (c *Classifier) Lower(band int) float64 {
	if band <= 0 {
		return 0
	}
	return c.cutpoints[band-1]
}

// Upper returns the exclusive upper bound of a band, +Inf for the top band
func (c *Classifier) Upper(band int) float64 {
	if band >= len(c.cutpoints) {
		return math.Inf(1)
	}
	return c.cutpoints[band]
}
