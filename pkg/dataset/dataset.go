// Package dataset reads the anomaly-scored record table that feeds the
// search simulation and the classical baseline.
//
// The table is CSV with a header row. Only the score column is interpreted;
// every other column is carried through untouched as part of the payload.
package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/constants"
	qerrors "github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/errors"
)

// Options controls how a table is read.
type Options struct {
	// ScoreColumn names the anomaly score column. Default "anomaly_score".
	ScoreColumn string

	// RequireScores makes a missing score column an error. Otherwise the
	// table is read without scores and the highest-score target falls back
	// to the baseline index.
	RequireScores bool
}

// Table is a parsed anomaly table.
type Table struct {
	Header []string
	Scores []float64 // one per record, nil when the score column is absent
	Rows   int

	// Payload is the raw table as read, the data protected by the store.
	Payload []byte
}

// HasScores reports whether the table carries an anomaly score column.
func (t *Table) HasScores() bool {
	return t.Scores != nil
}

// Head returns the scores of the first n records (all records when n <= 0
// or n exceeds the table), and the number of records that covers.
func (t *Table) Head(n int) ([]float64, int) {
	rows := t.Rows
	if n > 0 && n < rows {
		rows = n
	}
	if t.Scores == nil {
		return nil, rows
	}
	return t.Scores[:rows:rows], rows
}

// Read parses a table from r.
func Read(r io.Reader, opts Options) (*Table, error) {
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	return Parse(payload, opts)
}

// Load reads the table file at path.
func Load(path string, opts Options) (*Table, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, qerrors.NewInputError("dataset.Load", fmt.Errorf("%w: %s", qerrors.ErrEmptyInput, path))
		}
		return nil, fmt.Errorf("read table: %w", err)
	}
	return Parse(payload, opts)
}

// Parse parses a table held in memory. payload is retained as the table's
// Payload and must not be modified afterwards.
func Parse(payload []byte, opts Options) (*Table, error) {
	column := opts.ScoreColumn
	if column == "" {
		column = constants.DefaultScoreColumn
	}

	cr := csv.NewReader(bytes.NewReader(payload))
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, qerrors.NewInputError("dataset.Parse", qerrors.ErrEmptyInput)
	}
	if err != nil {
		return nil, qerrors.NewInputError("dataset.Parse", fmt.Errorf("%w: %v", qerrors.ErrMalformedRecord, err))
	}
	header = slices.Clone(header)
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	idx := slices.Index(header, column)
	if idx < 0 && opts.RequireScores {
		return nil, qerrors.NewInputError("dataset.Parse", fmt.Errorf("%w: %s", qerrors.ErrMissingColumn, column))
	}

	t := &Table{Header: header, Payload: payload}
	if idx >= 0 {
		t.Scores = []float64{}
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, qerrors.NewInputError("dataset.Parse", fmt.Errorf("%w: %v", qerrors.ErrMalformedRecord, err))
		}
		t.Rows++
		if idx < 0 {
			continue
		}

		v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx]), 64)
		if err != nil || math.IsNaN(v) {
			return nil, qerrors.NewInputError("dataset.Parse",
				fmt.Errorf("%w: record %d: %s %q", qerrors.ErrMalformedRecord, t.Rows, column, rec[idx]))
		}
		t.Scores = append(t.Scores, v)
	}
	return t, nil
}
