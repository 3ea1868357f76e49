package activity

import (
	"math/rand"
	"reflect"
	"testing"
)

func defaultNonwearParams() NonwearParams {
	return NonwearParams{
		Window:              60,
		Tolerance:           2,
		ToleranceUpperBound: 100,
		DayLength:           DefaultDayLength,
	}
}

func TestDetectNonwear(t *testing.T) {
	tests := []struct {
		name     string
		counts   []int
		params   func(*NonwearParams)
		expected []NonwearEpisode
	}{
		{
			name:     "long zero run between activity",
			counts:   concat(repeat(500, 10), repeat(0, 100), repeat(500, 10)),
			expected: []NonwearEpisode{{Start: 10, End: 109}},
		},
		{
			name:     "run shorter than the window stays wear",
			counts:   concat(repeat(500, 10), repeat(0, 59), repeat(500, 10)),
			expected: nil,
		},
		{
			name: "two tolerated interruptions merge into one episode",
			counts: concat(repeat(500, 5), repeat(0, 30), []int{50}, repeat(0, 30), []int{50},
				repeat(0, 30), repeat(500, 5)),
			expected: []NonwearEpisode{{Start: 5, End: 96}},
		},
		{
			name: "third interruption exhausts the budget",
			counts: concat(repeat(500, 5), repeat(0, 30), []int{50}, repeat(0, 30), []int{50},
				repeat(0, 30), []int{50}, repeat(0, 30), []int{500}),
			expected: []NonwearEpisode{{Start: 5, End: 96}},
		},
		{
			name:     "count above the upper bound breaks the run",
			counts:   concat(repeat(0, 40), []int{150}, repeat(0, 40)),
			expected: nil,
		},
		{
			name:     "leading interruption is not absorbed",
			counts:   concat([]int{5}, repeat(0, 60)),
			expected: []NonwearEpisode{{Start: 1, End: 60}},
		},
		{
			name:     "trailing interruption is absorbed",
			counts:   concat(repeat(0, 60), []int{50, 500}),
			expected: []NonwearEpisode{{Start: 0, End: 60}},
		},
		{
			name:   "episodes stop at day boundaries when days are distinct",
			counts: repeat(0, 200),
			params: func(p *NonwearParams) {
				p.DayLength = 100
				p.DaysDistinct = true
			},
			expected: []NonwearEpisode{{Start: 0, End: 99}, {Start: 100, End: 199}},
		},
		{
			name:   "episodes cross day boundaries by default",
			counts: repeat(0, 200),
			params: func(p *NonwearParams) {
				p.DayLength = 100
			},
			expected: []NonwearEpisode{{Start: 0, End: 199}},
		},
		{
			name:     "zero tolerance",
			counts:   concat(repeat(0, 70), []int{1}, repeat(0, 10)),
			params:   func(p *NonwearParams) { p.Tolerance = 0 },
			expected: []NonwearEpisode{{Start: 0, End: 69}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := defaultNonwearParams()
			if tt.params != nil {
				tt.params(&params)
			}
			epochs := CorrectArtifacts(tt.counts, 0, ArtifactFlag)
			episodes := DetectNonwear(epochs, params)

			if !reflect.DeepEqual(episodes, tt.expected) {
				t.Fatalf("expected episodes %v, got %v", tt.expected, episodes)
			}

			inEpisode := make([]bool, len(epochs))
			for _, ep := range episodes {
				for i := ep.Start; i <= ep.End; i++ {
					inEpisode[i] = true
				}
			}
			for i, e := range epochs {
				if e.Wear == inEpisode[i] {
					t.Errorf("epoch %d: Wear = %v inside episode = %v", i, e.Wear, inEpisode[i])
				}
			}
		})
	}
}

func TestDetectNonwearMissingMinuteBreaksRun(t *testing.T) {
	counts := concat(repeat(0, 40), []int{40000}, repeat(0, 40))
	epochs := CorrectArtifacts(counts, 25000, ArtifactMissing)
	if episodes := DetectNonwear(epochs, defaultNonwearParams()); len(episodes) != 0 {
		t.Errorf("expected no episodes, got %v", episodes)
	}
}

func TestDetectNonwearEpisodesAreDeterministicDisjointAndMaximal(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var counts []int
	for len(counts) < 5000 {
		block := 20 + rng.Intn(180)
		quiet := rng.Intn(2) == 0
		for i := 0; i < block; i++ {
			r := rng.Float64()
			switch {
			case quiet && r < 0.97:
				counts = append(counts, 0)
			case quiet && r < 0.995:
				counts = append(counts, 1+rng.Intn(100))
			case quiet:
				counts = append(counts, 101+rng.Intn(3000))
			default:
				counts = append(counts, rng.Intn(3000))
			}
		}
	}

	params := defaultNonwearParams()
	first := DetectNonwear(CorrectArtifacts(counts, 0, ArtifactFlag), params)
	second := DetectNonwear(CorrectArtifacts(counts, 0, ArtifactFlag), params)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("detection is not deterministic")
	}
	if len(first) == 0 {
		t.Fatalf("expected at least one episode in generated data")
	}

	for k, ep := range first {
		if k > 0 && ep.Start <= first[k-1].End {
			t.Fatalf("episode %d %v overlaps %v", k, ep, first[k-1])
		}
		if ep.Minutes() < params.Window {
			t.Errorf("episode %v shorter than the window", ep)
		}
		if counts[ep.Start] != 0 {
			t.Errorf("episode %v does not start on a zero count", ep)
		}

		interruptions := 0
		for i := ep.Start; i <= ep.End; i++ {
			if float64(counts[i]) > params.ToleranceUpperBound {
				t.Fatalf("episode %v contains count %d above the bound", ep, counts[i])
			}
			if counts[i] > 0 {
				interruptions++
			}
		}
		if interruptions > params.Tolerance {
			t.Errorf("episode %v absorbs %d interruptions", ep, interruptions)
		}

		next := ep.End + 1
		if next >= len(counts) {
			continue
		}
		c := counts[next]
		switch {
		case float64(c) > params.ToleranceUpperBound:
		case c > 0 && interruptions == params.Tolerance:
		default:
			t.Errorf("episode %v could be extended by minute %d (count %d, %d interruptions used)",
				ep, next, c, interruptions)
		}
	}
}
