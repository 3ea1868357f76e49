package activity

// CorrectArtifacts builds the epoch sequence for raw counts, marking every count
// above threshold as an artifact and repairing it according to action. Bands and
// wear flags are filled in later. A threshold <= 0 disables detection.
func CorrectArtifacts(raw []int, threshold int, action ArtifactAction) []Epoch {
	n := len(raw)
	epochs := make([]Epoch, n)
	for i, c := range raw {
		epochs[i] = Epoch{
			Index:     i + 1,
			Raw:       c,
			Corrected: float64(c),
			Wear:      true,
			Artifact:  threshold > 0 && c > threshold,
		}
	}
	if threshold <= 0 {
		return epochs
	}

	switch action {
	case ArtifactMissing:
		for i := range epochs {
			if epochs[i].Artifact {
				markMissing(&epochs[i])
			}
		}
	case ArtifactReplace:
		replaceArtifactRuns(epochs)
	}
	return epochs
}

// replaceArtifactRuns gives each maximal run of artifacts the mean of the
// nearest non-artifact counts on either side. A run touching the start or end of
// the sequence uses its single neighbour; a run with no neighbour at all becomes
// missing.
func replaceArtifactRuns(epochs []Epoch) {
	n := len(epochs)
	for i := 0; i < n; {
		if !epochs[i].Artifact {
			i++
			continue
		}
		start := i
		for i < n && epochs[i].Artifact {
			i++
		}
		end := i // exclusive

		var sum float64
		var neighbours int
		if start > 0 {
			sum += float64(epochs[start-1].Raw)
			neighbours++
		}
		if end < n {
			sum += float64(epochs[end].Raw)
			neighbours++
		}

		for j := start; j < end; j++ {
			if neighbours == 0 {
				markMissing(&epochs[j])
				continue
			}
			epochs[j].Corrected = sum / float64(neighbours)
			epochs[j].Replaced = true
		}
	}
}

func markMissing(e *Epoch) {
	e.Missing = true
	e.Corrected = 0
	e.Band = BandMissing
}
