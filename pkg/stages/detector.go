package stages

import (
	"context"

	"github.com/askiada/go-pdq/pkg/dataset"
	"github.com/askiada/go-pdq/pkg/detect"
	"github.com/askiada/go-pdq/pkg/option"
	"github.com/askiada/go-pdq/pkg/pipeline"
	"github.com/askiada/go-pdq/pkg/pipeline/model"
)

// Detector compares the distinct values of a label column with a detect.Algorithm.
//
// When every candidate has a value in the Resolutions option, the option is
// applied and the detector completes without pausing. Otherwise every candidate
// is reported and the run pauses; the decision taken on resume is then the only
// one applied.
type Detector struct {
	base

	algorithm func(opts *option.Options) detect.Algorithm
}

// NewLevenshtein creates a detector flagging labels within Threshold edits of each other.
func NewLevenshtein() *Detector {
	return &Detector{
		base: newBase(model.PatternDetector, option.New().
			AddString(OptColumn, "", option.Required()).
			AddInt(OptThreshold, 2, option.Min(0)).
			AddStringMap(OptResolutions)),
		algorithm: func(opts *option.Options) detect.Algorithm {
			return detect.Levenshtein{Threshold: opts.Int(OptThreshold)}
		},
	}
}

// NewCaseVariant creates a detector flagging labels that differ only by case or surrounding whitespace.
func NewCaseVariant() *Detector {
	return &Detector{
		base: newBase(model.PatternDetector, option.New().
			AddString(OptColumn, "", option.Required()).
			AddStringMap(OptResolutions)),
		algorithm: func(*option.Options) detect.Algorithm {
			return detect.CaseFold{}
		},
	}
}

func (s *Detector) Run(_ context.Context, input *dataset.Dataset) (*pipeline.Result, error) {
	col, err := input.Column(s.opts.String(OptColumn))
	if err != nil {
		return nil, err
	}
	candidates := detect.Pairs(col.Name, col.Strings(), s.algorithm(s.opts))

	preset := s.opts.StringMap(OptResolutions)
	for _, c := range candidates {
		_, orig := preset[c.Original]
		_, match := preset[c.Match]
		if !orig && !match {
			return &pipeline.Result{Candidates: candidates}, nil
		}
	}
	if len(preset) > 0 {
		_, err = input.ReplaceValues(col.Name, preset)
		if err != nil {
			return nil, err
		}
	}

	return &pipeline.Result{Output: input}, nil
}

// Resolve replaces the approved values of the detector column, and no others.
func (s *Detector) Resolve(_ context.Context, input *dataset.Dataset, _ []detect.Candidate, resolutions map[string]string) (*dataset.Dataset, error) {
	_, err := input.ReplaceValues(s.opts.String(OptColumn), resolutions)
	if err != nil {
		return nil, err
	}

	return input, nil
}
