package activity

import (
	"math"
	"testing"
)

func TestCorrectArtifactsReplace(t *testing.T) {
	tests := []struct {
		name     string
		raw      []int
		expected []float64
		replaced []bool
	}{
		{
			name:     "isolated artifact takes the neighbour mean",
			raw:      []int{100, 40000, 200},
			expected: []float64{100, 150, 200},
			replaced: []bool{false, true, false},
		},
		{
			name:     "artifact at the first minute uses the right neighbour",
			raw:      []int{40000, 300, 10},
			expected: []float64{300, 300, 10},
			replaced: []bool{true, false, false},
		},
		{
			name:     "artifact at the last minute uses the left neighbour",
			raw:      []int{10, 300, 40000},
			expected: []float64{10, 300, 300},
			replaced: []bool{false, false, true},
		},
		{
			name:     "contiguous run shares one replacement",
			raw:      []int{100, 30000, 40000, 200},
			expected: []float64{100, 150, 150, 200},
			replaced: []bool{false, true, true, false},
		},
		{
			name:     "count equal to the threshold is kept",
			raw:      []int{25000, 0},
			expected: []float64{25000, 0},
			replaced: []bool{false, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			epochs := CorrectArtifacts(tt.raw, 25000, ArtifactReplace)
			if len(epochs) != len(tt.raw) {
				t.Fatalf("expected %d epochs, got %d", len(tt.raw), len(epochs))
			}
			for i, e := range epochs {
				if math.Abs(e.Corrected-tt.expected[i]) > 1e-9 {
					t.Errorf("epoch %d: expected corrected %.2f, got %.2f", i, tt.expected[i], e.Corrected)
				}
				if e.Replaced != tt.replaced[i] {
					t.Errorf("epoch %d: Replaced = %v, expected %v", i, e.Replaced, tt.replaced[i])
				}
				if e.Artifact != tt.replaced[i] {
					t.Errorf("epoch %d: Artifact = %v, expected %v", i, e.Artifact, tt.replaced[i])
				}
				if e.Raw != tt.raw[i] {
					t.Errorf("epoch %d: raw count changed to %d", i, e.Raw)
				}
			}
		})
	}
}

func TestCorrectArtifactsAllArtifactsBecomeMissing(t *testing.T) {
	epochs := CorrectArtifacts([]int{30000, 40000}, 25000, ArtifactReplace)
	for i, e := range epochs {
		if !e.Missing || e.Band != BandMissing {
			t.Errorf("epoch %d: expected missing, got %+v", i, e)
		}
	}
}

func TestCorrectArtifactsFlagAndMissing(t *testing.T) {
	raw := []int{100, 40000, 200}

	flagged := CorrectArtifacts(raw, 25000, ArtifactFlag)
	if !flagged[1].Artifact || flagged[1].Missing || flagged[1].Replaced {
		t.Errorf("flag: unexpected state %+v", flagged[1])
	}
	if flagged[1].Corrected != 40000 {
		t.Errorf("flag: expected count retained, got %.0f", flagged[1].Corrected)
	}
	if flagged[1].countable() {
		t.Errorf("flag: flagged artifact must not count toward totals")
	}

	missing := CorrectArtifacts(raw, 25000, ArtifactMissing)
	if !missing[1].Missing || missing[1].Band != BandMissing {
		t.Errorf("missing: unexpected state %+v", missing[1])
	}
	if missing[1].countable() {
		t.Errorf("missing: missing minute must not count toward totals")
	}
	if !missing[0].countable() || !missing[2].countable() {
		t.Errorf("missing: neighbours must stay countable")
	}
}

func TestCorrectArtifactsDisabled(t *testing.T) {
	epochs := CorrectArtifacts([]int{100, 40000}, 0, ArtifactReplace)
	for i, e := range epochs {
		if e.Artifact || e.Replaced || e.Missing {
			t.Errorf("epoch %d: expected no artifact handling, got %+v", i, e)
		}
	}
}
