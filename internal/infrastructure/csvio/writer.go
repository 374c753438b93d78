package csvio

import (
	"encoding/csv"
	"io"
)

// Writer emits CSV rows with standard escaping: fields containing a
// comma, quote, or newline are quote-wrapped and embedded quotes are
// doubled, so export output survives a re-import round trip.
type Writer struct {
	w *csv.Writer
}

// NewWriter creates a CSV writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: csv.NewWriter(w)}
}

// WriteRow writes one row
func (w *Writer) WriteRow(fields []string) error {
	return w.w.Write(fields)
}

// Flush writes buffered data to the underlying writer
func (w *Writer) Flush() error {
	w.w.Flush()
	return w.w.Error()
}
