package activity

import (
	"math"
	"testing"
)

func TestNewClassifierRejectsBadCutpoints(t *testing.T) {
	tests := []struct {
		name      string
		cutpoints []float64
	}{
		{name: "empty", cutpoints: nil},
		{name: "descending", cutpoints: []float64{760, 100}},
		{name: "duplicate", cutpoints: []float64{100, 100, 2020}},
		{name: "zero", cutpoints: []float64{0, 100}},
		{name: "negative", cutpoints: []float64{-5, 100}},
		{name: "nan", cutpoints: []float64{100, math.NaN()}},
		{name: "infinite", cutpoints: []float64{100, math.Inf(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClassifier(tt.cutpoints); err == nil {
				t.Errorf("expected error for cutpoints %v", tt.cutpoints)
			}
		})
	}
}

func TestClassifierBand(t *testing.T) {
	c, err := NewClassifier([]float64{100, 760, 2020, 5999})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		count float64
		band  int
	}{
		{0, 0},
		{99, 0},
		{99.5, 0},
		{100, 1},
		{759, 1},
		{760, 2},
		{2019, 2},
		{2020, 3},
		{5998, 3},
		{5999, 4},
		{40000, 4},
	}

	for _, tt := range tests {
		if got := c.Band(tt.count); got != tt.band {
			t.Errorf("Band(%g) = %d, expected %d", tt.count, got, tt.band)
		}
	}

	if c.Bands() != 5 {
		t.Errorf("Bands() = %d, expected 5", c.Bands())
	}
}

func TestClassifierBandsPartitionCounts(t *testing.T) {
	c, err := NewClassifier([]float64{100, 760, 2020, 5999})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for count := 0.0; count <= 7000; count += 0.5 {
		matches := 0
		for b := 0; b < c.Bands(); b++ {
			if count >= c.Lower(b) && count < c.Upper(b) {
				matches++
				if got := c.Band(count); got != b {
					t.Fatalf("count %g lies in band %d but Band() returned %d", count, b, got)
				}
			}
		}
		if matches != 1 {
			t.Fatalf("count %g falls in %d bands, expected exactly 1", count, matches)
		}
	}
}
