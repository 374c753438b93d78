// Package csvio provides CSV tokenizing and writing for the bulk
// catalog import/export pipeline.
package csvio

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Common tokenizer errors
var (
	ErrEmptyFile       = fmt.Errorf("CSV file is empty")
	ErrInvalidEncoding = fmt.Errorf("invalid file encoding")
	ErrMissingHeader   = fmt.Errorf("CSV file missing header row")
)

// Row is one data row with its 1-based source line number.
// Fields is always padded to the header width.
type Row struct {
	Line   int
	Fields []string
}

// Tokenizer parses delimited text into a header row and data rows.
// Quoted fields, embedded commas/newlines, and doubled quotes are
// handled; fields are trimmed of surrounding whitespace after
// unquoting; blank lines are discarded; short rows are right-padded
// with empty strings to the header width.
type Tokenizer struct {
	reader  *csv.Reader
	headers []string
	line    int
}

// NewTokenizer creates a tokenizer from a reader, stripping a UTF-8 BOM
// if present and validating the encoding.
func NewTokenizer(r io.Reader) (*Tokenizer, error) {
	buf := bufio.NewReader(r)

	head, err := buf.Peek(3)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if len(head) >= 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		_, _ = buf.Discard(3)
	}

	probe, err := buf.Peek(4096)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if len(probe) == 0 {
		return nil, ErrEmptyFile
	}
	if !utf8.Valid(probe) && len(probe) == 4096 {
		// A full probe may split a multibyte rune at the boundary
		probe = probe[:len(probe)-utf8.UTFMax]
	}
	if !utf8.Valid(probe) {
		return nil, ErrInvalidEncoding
	}

	cr := csv.NewReader(buf)
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	return &Tokenizer{reader: cr}, nil
}

// ParseHeader reads and parses the header row
func (t *Tokenizer) ParseHeader() error {
	record, err := t.reader.Read()
	if err == io.EOF {
		return ErrMissingHeader
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	t.headers = make([]string, len(record))
	for i, h := range record {
		t.headers[i] = strings.TrimSpace(h)
	}
	t.line = 1
	return nil
}

// Headers returns the parsed header names
func (t *Tokenizer) Headers() []string {
	return t.headers
}

// ReadRow reads the next non-blank data row, right-padded to the header
// width. Returns io.EOF when the input is exhausted.
func (t *Tokenizer) ReadRow() (*Row, error) {
	for {
		record, err := t.reader.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			t.line++
			return nil, fmt.Errorf("error reading row %d: %w", t.line, err)
		}
		t.line++

		fields := make([]string, len(t.headers))
		blank := true
		for i := range t.headers {
			if i < len(record) {
				fields[i] = strings.TrimSpace(record[i])
				if fields[i] != "" {
					blank = false
				}
			}
		}
		if blank {
			continue
		}
		return &Row{Line: t.line, Fields: fields}, nil
	}
}

// ReadAllRows reads all remaining data rows
func (t *Tokenizer) ReadAllRows() ([]*Row, error) {
	var rows []*Row
	for {
		row, err := t.ReadRow()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Parse tokenizes a complete CSV document into headers and data rows
func Parse(r io.Reader) ([]string, []*Row, error) {
	tok, err := NewTokenizer(r)
	if err != nil {
		return nil, nil, err
	}
	if err := tok.ParseHeader(); err != nil {
		return nil, nil, err
	}
	rows, err := tok.ReadAllRows()
	if err != nil {
		return nil, nil, err
	}
	return tok.Headers(), rows, nil
}
