package dataio

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/pkg/errors"

	"github.com/askiada/go-pdq/pkg/dataset"
	"github.com/askiada/go-pdq/pkg/detect"
)

// Format is the rendering of a table.
type Format int

const (
	ASCII    Format = iota // Fixed-width terminal tables
	Markdown               // GitHub-flavoured Markdown tables
)

// ParseFormat parses "ascii" or "markdown". The empty string is ASCII.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "ascii":
		return ASCII, nil
	case "markdown", "md":
		return Markdown, nil
	default:
		return ASCII, errors.Wrap(ErrUnknownFormat, s)
	}
}

func newWriter(f Format) table.Writer {
	w := table.NewWriter()
	if f == ASCII {
		w.SetStyle(table.StyleLight)
	}

	return w
}

func render(w table.Writer, f Format) string {
	if f == Markdown {
		return w.RenderMarkdown()
	}

	return w.Render()
}

// RenderTable renders at most maxRows rows of ds. maxRows 0 renders every row.
// A footer tells how many rows were left out.
func RenderTable(ds *dataset.Dataset, f Format, maxRows int) string {
	w := newWriter(f)

	header := make(table.Row, len(ds.Columns))
	for i, name := range ds.ColumnNames() {
		header[i] = name
	}
	w.AppendHeader(header)

	rows := ds.RowCount()
	shown := rows
	if maxRows > 0 && maxRows < rows {
		shown = maxRows
	}
	for i := range shown {
		w.AppendRow(table.Row(ds.Row(i)))
	}
	if shown < rows {
		footer := make(table.Row, len(ds.Columns))
		if len(footer) > 0 {
			footer[0] = fmt.Sprintf("%d more rows", rows-shown)
		}
		w.AppendFooter(footer)
	}

	return render(w, f)
}

// RenderCandidates renders candidate pairs, one per row.
func RenderCandidates(candidates []detect.Candidate, f Format) string {
	w := newWriter(f)
	w.AppendHeader(table.Row{"#", "Column", "Original", "Match", "Score", "Rows"})
	w.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	for i, c := range candidates {
		w.AppendRow(table.Row{i + 1, c.Column, c.Original, c.Match, c.Score, len(c.Rows)})
	}

	return render(w, f)
}

// RenderRows renders free-form rows under header.
func RenderRows(header []string, rows [][]any, f Format) string {
	w := newWriter(f)
	head := make(table.Row, len(header))
	for i, h := range header {
		head[i] = h
	}
	w.AppendHeader(head)
	for _, row := range rows {
		w.AppendRow(table.Row(row))
	}

	return render(w, f)
}
