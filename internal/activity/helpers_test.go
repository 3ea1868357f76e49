package activity

func repeat(v, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func concat(parts ...[]int) []int {
	var out []int
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// classified builds wear epochs for counts using the default cutpoints
func classified(counts []int) []Epoch {
	c, err := NewClassifier(DefaultConfig().Cutpoints)
	if err != nil {
		panic(err)
	}
	epochs := CorrectArtifacts(counts, 0, ArtifactFlag)
	for i := range epochs {
		epochs[i].Band = c.Band(epochs[i].Corrected)
	}
	return epochs
}
