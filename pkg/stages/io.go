package stages

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/askiada/go-pdq/pkg/dataio"
	"github.com/askiada/go-pdq/pkg/dataset"
	"github.com/askiada/go-pdq/pkg/option"
	"github.com/askiada/go-pdq/pkg/pipeline"
	"github.com/askiada/go-pdq/pkg/pipeline/model"
)

// CSVReader reads the dataset of a CSV file.
type CSVReader struct {
	base
}

func NewCSVReader() *CSVReader {
	return &CSVReader{base: newBase(model.Reader, option.New().
		AddString(OptPath, "", option.Required()).
		AddString(OptDelimiter, ",").
		AddBool(OptInferTypes, false))}
}

func (s *CSVReader) Run(_ context.Context, _ *dataset.Dataset) (*pipeline.Result, error) {
	ds, err := dataio.ReadCSVFile(s.opts.String(OptPath), dataio.CSVOptions{
		Delimiter:  s.opts.String(OptDelimiter),
		InferTypes: s.opts.Bool(OptInferTypes),
	})
	if err != nil {
		return nil, err
	}

	return &pipeline.Result{Output: ds}, nil
}

// CSVWriter writes its input to a CSV file.
type CSVWriter struct {
	base
}

func NewCSVWriter() *CSVWriter {
	return &CSVWriter{base: newBase(model.Writer, option.New().
		AddString(OptPath, "", option.Required()).
		AddString(OptDelimiter, ","))}
}

func (s *CSVWriter) Run(_ context.Context, input *dataset.Dataset) (*pipeline.Result, error) {
	err := dataio.WriteCSVFile(s.opts.String(OptPath), input, dataio.CSVOptions{Delimiter: s.opts.String(OptDelimiter)})
	if err != nil {
		return nil, err
	}

	return &pipeline.Result{}, nil
}

// TableWriter prints its input as a table.
type TableWriter struct {
	base

	out io.Writer
}

func NewTableWriter(out io.Writer) *TableWriter {
	return &TableWriter{
		base: newBase(model.Writer, option.New().
			AddString(OptFormat, "ascii").
			AddInt(OptMaxRows, 0, option.Min(0))),
		out: out,
	}
}

func (s *TableWriter) Run(_ context.Context, input *dataset.Dataset) (*pipeline.Result, error) {
	format, err := dataio.ParseFormat(s.opts.String(OptFormat))
	if err != nil {
		return nil, err
	}
	_, err = fmt.Fprintln(s.out, dataio.RenderTable(input, format, s.opts.Int(OptMaxRows)))
	if err != nil {
		return nil, errors.Wrap(err, "unable to print table")
	}

	return &pipeline.Result{}, nil
}
