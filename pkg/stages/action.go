package stages

import (
	"context"
	"strings"

	"github.com/askiada/go-pdq/pkg/dataset"
	"github.com/askiada/go-pdq/pkg/option"
	"github.com/askiada/go-pdq/pkg/pipeline"
	"github.com/askiada/go-pdq/pkg/pipeline/model"
)

// ValueReplacer replaces values of a column according to a fixed map.
type ValueReplacer struct {
	base
}

func NewValueReplacer() *ValueReplacer {
	return &ValueReplacer{base: newBase(model.Action, option.New().
		AddString(OptColumn, "", option.Required()).
		AddStringMap(OptReplacements, option.Required()))}
}

func (s *ValueReplacer) Run(_ context.Context, input *dataset.Dataset) (*pipeline.Result, error) {
	_, err := input.ReplaceValues(s.opts.String(OptColumn), s.opts.StringMap(OptReplacements))
	if err != nil {
		return nil, err
	}

	return &pipeline.Result{Output: input}, nil
}

// ColumnRemover drops a column.
type ColumnRemover struct {
	base
}

func NewColumnRemover() *ColumnRemover {
	return &ColumnRemover{base: newBase(model.Action, option.New().
		AddString(OptColumn, "", option.Required()))}
}

func (s *ColumnRemover) Run(_ context.Context, input *dataset.Dataset) (*pipeline.Result, error) {
	err := input.RemoveColumn(s.opts.String(OptColumn))
	if err != nil {
		return nil, err
	}

	return &pipeline.Result{Output: input}, nil
}

// WhitespaceTrimmer trims the string values of a column, or of every column when Column is empty.
type WhitespaceTrimmer struct {
	base
}

func NewWhitespaceTrimmer() *WhitespaceTrimmer {
	return &WhitespaceTrimmer{base: newBase(model.Action, option.New().
		AddString(OptColumn, ""))}
}

func (s *WhitespaceTrimmer) Run(_ context.Context, input *dataset.Dataset) (*pipeline.Result, error) {
	cols := input.Columns
	if name := s.opts.String(OptColumn); name != "" {
		col, err := input.Column(name)
		if err != nil {
			return nil, err
		}
		cols = []*dataset.Column{col}
	}
	for _, col := range cols {
		for i, v := range col.Values {
			if str, ok := v.(string); ok {
				col.Values[i] = strings.TrimSpace(str)
			}
		}
	}

	return &pipeline.Result{Output: input}, nil
}
