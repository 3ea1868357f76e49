package activity

import (
	"errors"
	"fmt"

	"github.com/chrissnell/actisum/internal/log"
	"go.uber.org/zap"
)

// RejectionError explains why a subject's series could not be processed
type RejectionError struct {
	SubjectID string
	Reason    string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("subject %s rejected: %s", e.SubjectID, e.Reason)
}

// Processor turns one subject's raw series into summaries. It holds no mutable
// state and may be shared by any number of goroutines.
type Processor struct {
	cfg        Config
	classifier *Classifier
	logger     *zap.SugaredLogger
}

// NewProcessor validates the configuration and prepares a processor. Any
// configuration problem is returned as a *ConfigError before a subject is seen.
func NewProcessor(cfg Config, logger *zap.SugaredLogger) (*Processor, error) {
	cfg = cfg.withDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	classifier, err := NewClassifier(cfg.Cutpoints)
	if err != nil {
		return nil, &ConfigError{Problems: []string{err.Error()}}
	}

	return &Processor{
		cfg:        cfg,
		classifier: classifier,
		logger:     log.OrNop(logger),
	}, nil
}

// Config returns the effective configuration, derived defaults included
func (p *Processor) Config() Config {
	return p.cfg
}

// Process runs the full pipeline for one subject. Data problems produce a
// rejected result rather than an error.
func (p *Processor) Process(series RawSeries) Result {
	w0, err := p.validate(series)
	if err != nil {
		p.logger.Warnw("rejecting subject", "subject", series.SubjectID, "reason", err.Error())
		var rej *RejectionError
		if errors.As(err, &rej) {
			return Rejected(series.SubjectID, rej.Reason)
		}
		return Rejected(series.SubjectID, err.Error())
	}

	cfg := p.cfg
	epochs := CorrectArtifacts(series.Counts(), cfg.ArtifactThreshold, cfg.ArtifactAction)
	for i := range epochs {
		if !epochs[i].Missing {
			epochs[i].Band = p.classifier.Band(epochs[i].Corrected)
		}
	}

	episodes := DetectNonwear(epochs, NonwearParamsFromConfig(cfg))
	segments := SegmentDays(len(epochs), w0, cfg.DayLength)

	days := make([]SummaryRecord, 0, len(segments))
	for _, seg := range segments {
		day := epochs[seg.Start:seg.End]
		bouts := make([][]Bout, len(cfg.Bouts))
		for i, rule := range cfg.Bouts {
			bouts[i] = DetectBouts(day, rule)
		}
		days = append(days, Summarize(series.SubjectID, seg, day, bouts, series.Start, cfg))
	}

	eligibility := EvaluateEligibility(days, cfg)
	result := Result{
		SubjectID:   series.SubjectID,
		Status:      StatusAccepted,
		Eligibility: eligibility,
		Episodes:    episodes,
	}

	switch cfg.OutputGranularity {
	case GranularityRollup:
		rollup := Rollup(series.SubjectID, days, eligibility, cfg)
		result.Rollup = &rollup
	default:
		result.Days = days
	}
	if cfg.KeepEpochs {
		result.Epochs = epochs
	}

	p.logger.Debugw("processed subject",
		"subject", series.SubjectID,
		"minutes", len(epochs),
		"days", len(days),
		"valid_days", eligibility.ValidDays,
		"nonwear_episodes", len(episodes),
		"eligible", eligibility.Eligible)

	return result
}

// validate checks the series and returns the weekday of its first minute
func (p *Processor) validate(s RawSeries) (Weekday, error) {
	reject := func(format string, args ...interface{}) (Weekday, error) {
		return 0, &RejectionError{SubjectID: s.SubjectID, Reason: fmt.Sprintf(format, args...)}
	}

	if len(s.Records) == 0 {
		return reject("series is empty")
	}

	w0 := s.StartWeekday
	if w0 == 0 {
		w0 = s.Records[0].Weekday
	}
	if !w0.Valid() {
		return reject("start weekday %d outside 1-7", w0)
	}

	for i, r := range s.Records {
		if r.Count < 0 {
			return reject("negative count %d at index %d", r.Count, r.Index)
		}
		if r.Weekday != 0 && !r.Weekday.Valid() {
			return reject("weekday code %d at index %d outside 1-7", r.Weekday, r.Index)
		}
		if i == 0 {
			continue
		}
		prev := s.Records[i-1].Index
		if r.Index <= prev {
			return reject("index %d does not follow %d", r.Index, prev)
		}
		if r.Index != prev+1 {
			return reject("gap between index %d and %d", prev, r.Index)
		}
	}

	requiresDays := p.cfg.RequiredValidDays > 0 || p.cfg.RequiredValidWeekdays > 0 || p.cfg.RequiredValidWeekendDays > 0
	if requiresDays && len(s.Records) < p.cfg.DayLength {
		return reject("series of %d minutes is shorter than one %d-minute day", len(s.Records), p.cfg.DayLength)
	}

	return w0, nil
}
