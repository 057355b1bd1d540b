// Package stages holds the built-in stages and their registration.
package stages

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/askiada/go-pdq/pkg/option"
	"github.com/askiada/go-pdq/pkg/pipeline"
	"github.com/askiada/go-pdq/pkg/pipeline/model"
)

// Stage type ids.
const (
	CSVReaderType         = "csv-reader"
	CSVWriterType         = "csv-writer"
	TableWriterType       = "table-writer"
	ValueReplacerType     = "value-replacer"
	ColumnRemoverType     = "column-remover"
	WhitespaceTrimmerType = "whitespace-trimmer"
	LevenshteinType       = "levenshtein"
	CaseVariantType       = "case-variant"
)

// Option names shared by several stages.
const (
	OptPath         = "Path"
	OptDelimiter    = "Delimiter"
	OptInferTypes   = "Infer Types"
	OptFormat       = "Format"
	OptMaxRows      = "Max Rows"
	OptColumn       = "Column"
	OptReplacements = "Replacements"
	OptThreshold    = "Threshold"
	OptResolutions  = "Resolutions"
)

type base struct {
	kind       model.Kind
	maxInputs  int
	maxOutputs int
	opts       *option.Options
}

func newBase(kind model.Kind, opts *option.Options) base {
	b := base{kind: kind, maxInputs: 1, maxOutputs: 1, opts: opts}
	switch kind {
	case model.Reader:
		b.maxInputs = 0
	case model.Writer:
		b.maxOutputs = 0
	default:
	}

	return b
}

func (b *base) Kind() model.Kind         { return b.kind }
func (b *base) Options() *option.Options { return b.opts }
func (b *base) MaxInputs() int           { return b.maxInputs }
func (b *base) MaxOutputs() int          { return b.maxOutputs }

// Register adds every built-in stage type to reg. Table writers print to out,
// or to os.Stdout when out is nil.
func Register(reg *pipeline.Registry, out io.Writer) error {
	if out == nil {
		out = os.Stdout
	}
	types := []pipeline.StageType{
		{ID: CSVReaderType, Description: "Reads a dataset from a CSV file", New: func() pipeline.Stage { return NewCSVReader() }},
		{ID: CSVWriterType, Description: "Writes the dataset to a CSV file", New: func() pipeline.Stage { return NewCSVWriter() }},
		{ID: TableWriterType, Description: "Prints the dataset as a table", New: func() pipeline.Stage { return NewTableWriter(out) }},
		{ID: ValueReplacerType, Description: "Replaces values of a column", New: func() pipeline.Stage { return NewValueReplacer() }},
		{ID: ColumnRemoverType, Description: "Removes a column", New: func() pipeline.Stage { return NewColumnRemover() }},
		{ID: WhitespaceTrimmerType, Description: "Trims surrounding whitespace of string values", New: func() pipeline.Stage { return NewWhitespaceTrimmer() }},
		{ID: LevenshteinType, Description: "Finds near duplicate labels by edit distance", New: func() pipeline.Stage { return NewLevenshtein() }},
		{ID: CaseVariantType, Description: "Finds labels differing only by case or whitespace", New: func() pipeline.Stage { return NewCaseVariant() }},
	}
	for _, typ := range types {
		err := reg.Register(typ.ID, typ.Description, typ.New)
		if err != nil {
			return errors.Wrap(err, "unable to register built-in stages")
		}
	}

	return nil
}
