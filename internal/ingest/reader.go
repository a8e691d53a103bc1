// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Source file encodings. Government export files commonly use legacy 8-bit
// encodings; decoding the wrong way silently corrupts accented names, so
// the encoding is explicit configuration, never auto-detected.
const (
	EncodingLatin1 = "latin1"
	EncodingUTF8   = "utf8"
)

// Row is one record of a delimited source file, addressed by declared
// column name.
type Row struct {
	fields []string
	index  map[string]int
}

// Get returns the raw string value of the named column, or "" when the
// column is not declared or the row is too short to carry it.
func (r Row) Get(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return r.fields[i]
}

// Reader streams typed rows from a delimited source without materializing
// it. The sequence is lazy, forward-only, and non-restartable. Filtering
// by jurisdiction, office, or round belongs to the caller, so one reader
// shape serves every extraction job over the same file format.
type Reader struct {
	csv     *csv.Reader
	closer  io.Closer
	columns []string
	index   map[string]int
	minCols int
	started bool
	skipped int64
}

// OpenFile opens a delimited file for streaming reads. columns declares
// the column names the caller will address. When the file starts with a
// header row the column positions come from the header, so files carrying
// extra columns or a different order still map correctly; a header missing
// a declared column is a fatal error. Headerless files are mapped by
// declared order. Rows too short to carry every declared column are
// skipped and counted rather than raised as fatal.
func OpenFile(path string, delimiter rune, encoding string, columns []string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	r, err := NewReader(f, delimiter, encoding, columns)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader wraps an io.Reader as a streaming row source. See OpenFile.
func NewReader(src io.Reader, delimiter rune, encoding string, columns []string) (*Reader, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("no columns declared")
	}

	var decoded io.Reader
	switch encoding {
	case EncodingLatin1:
		decoded = transform.NewReader(src, charmap.ISO8859_1.NewDecoder())
	case EncodingUTF8, "":
		decoded = src
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}

	cr := csv.NewReader(decoded)
	cr.Comma = delimiter
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1 // source files have inconsistent field counts
	cr.ReuseRecord = false

	index := make(map[string]int, len(columns))
	for i, col := range columns {
		index[col] = i
	}

	return &Reader{
		csv:     cr,
		columns: columns,
		index:   index,
		minCols: len(columns),
	}, nil
}

// mapHeader rebuilds the column index from a header row. Every declared
// column must appear in the header; a missing column means the file does
// not carry what the caller will read, and failing here beats silently
// handing back wrong fields.
func (r *Reader) mapHeader(header []string) error {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		positions[name] = i
	}

	index := make(map[string]int, len(r.columns))
	minCols := 0
	for _, col := range r.columns {
		pos, ok := positions[col]
		if !ok {
			return fmt.Errorf("column %q not found in source header", col)
		}
		index[col] = pos
		if pos+1 > minCols {
			minCols = pos + 1
		}
	}
	r.index = index
	r.minCols = minCols
	return nil
}

// isHeader reports whether the first row of the source is a header:
// any field repeating a declared column name marks it as one.
func (r *Reader) isHeader(fields []string) bool {
	for _, f := range fields {
		if _, ok := r.index[f]; ok {
			return true
		}
	}
	return false
}

// Next returns the next well-formed row. Malformed rows (fewer fields than
// declared, or unparseable lines) are skipped and counted. Returns io.EOF
// when the source is exhausted.
func (r *Reader) Next() (Row, error) {
	for {
		fields, err := r.csv.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Row{}, io.EOF
			}
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				r.skipped++
				continue
			}
			return Row{}, fmt.Errorf("failed to read row: %w", err)
		}
		// Exports ship with a header row naming their columns, often more
		// of them and in a different order than the caller declared. The
		// header drives the mapping; it is data to the csv reader, so
		// handle it here.
		if !r.started {
			r.started = true
			if r.isHeader(fields) {
				if err := r.mapHeader(fields); err != nil {
					return Row{}, err
				}
				continue
			}
		}
		if len(fields) < r.minCols {
			r.skipped++
			continue
		}
		return Row{fields: fields, index: r.index}, nil
	}
}

// Skipped returns how many malformed rows were dropped so far; the run
// reports the total at the end.
func (r *Reader) Skipped() int64 {
	return r.skipped
}

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
