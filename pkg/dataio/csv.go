// Package dataio reads and writes datasets: CSV files and pretty printed tables.
package dataio

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/askiada/go-pdq/pkg/dataset"
)

var (
	ErrEmptyInput    = errors.New("input has no header")
	ErrDelimiter     = errors.New("delimiter must be a single character")
	ErrUnknownFormat = errors.New("unknown table format")
)

// CSVOptions configures CSV reading and writing.
type CSVOptions struct {
	// Delimiter is the field separator. Defaults to a comma.
	Delimiter string
	// InferTypes converts integer and decimal cells to int and float64 when reading.
	InferTypes bool
	// Name is the dataset name. ReadCSVFile defaults it to the file base name.
	Name string
}

func (o CSVOptions) comma() (rune, error) {
	if o.Delimiter == "" {
		return ',', nil
	}
	if utf8.RuneCountInString(o.Delimiter) != 1 {
		return 0, errors.Wrapf(ErrDelimiter, "got %q", o.Delimiter)
	}
	r, _ := utf8.DecodeRuneInString(o.Delimiter)

	return r, nil
}

// ReadCSV reads a dataset. The first record holds the column names.
func ReadCSV(r io.Reader, opts CSVOptions) (*dataset.Dataset, error) {
	comma, err := opts.comma()
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(r)
	reader.Comma = comma

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, errors.Wrap(err, "unable to read header")
	}

	cols := make([]*dataset.Column, len(header))
	for i, name := range header {
		cols[i] = dataset.NewColumn(strings.TrimSpace(name))
	}
	ds, err := dataset.New(opts.Name, cols...)
	if err != nil {
		return nil, err
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "unable to read record")
		}
		row := make([]any, len(record))
		for i, cell := range record {
			row[i] = cell
			if opts.InferTypes {
				row[i] = infer(cell)
			}
		}
		err = ds.AppendRow(row...)
		if err != nil {
			return nil, err
		}
	}

	return ds, nil
}

// ReadCSVFile reads the dataset stored at path.
func ReadCSVFile(path string, opts CSVOptions) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open %s", path)
	}
	defer f.Close()

	if opts.Name == "" {
		opts.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	ds, err := ReadCSV(f, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", path)
	}

	return ds, nil
}

// WriteCSV writes the column names then one record per row.
func WriteCSV(w io.Writer, ds *dataset.Dataset, opts CSVOptions) error {
	comma, err := opts.comma()
	if err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	writer.Comma = comma

	err = writer.Write(ds.ColumnNames())
	if err != nil {
		return errors.Wrap(err, "unable to write header")
	}
	record := make([]string, len(ds.Columns))
	for i := range ds.RowCount() {
		for j, v := range ds.Row(i) {
			record[j] = dataset.Format(v)
		}
		err = writer.Write(record)
		if err != nil {
			return errors.Wrapf(err, "unable to write row %d", i)
		}
	}
	writer.Flush()

	return errors.Wrap(writer.Error(), "unable to flush records")
}

// WriteCSVFile writes ds to path, creating parent directories.
func WriteCSVFile(path string, ds *dataset.Dataset, opts CSVOptions) error {
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return errors.Wrapf(err, "unable to create directory of %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "unable to create %s", path)
	}
	err = WriteCSV(f, ds, opts)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = errors.Wrapf(cerr, "unable to close %s", path)
	}

	return err
}

func infer(cell string) any {
	s := strings.TrimSpace(cell)
	if s == "" {
		return cell
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}

	return cell
}
