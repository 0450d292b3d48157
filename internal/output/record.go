// Package output writes the fixed-width text records the trace files are
// made of and names the temp files they are appended to.
package output

import (
	"bufio"
	"fmt"
	"io"
)

// ColumnWidth is the width every field is left-justified to.
const ColumnWidth = 21

// RecordWriter appends newline terminated records of left-justified
// columns to an underlying writer.
type RecordWriter struct {
	w       *bufio.Writer
	buf     []byte
	written int64
	records int
}

// NewRecordWriter returns a buffered record writer. Call Flush when done.
func NewRecordWriter(w io.Writer) *RecordWriter {
	return &RecordWriter{w: bufio.NewWriter(w)}
}

// AppendColumn appends v padded to ColumnWidth. Values wider than the
// column are written in full.
func AppendColumn(dst []byte, v any) []byte {
	return fmt.Appendf(dst, "%-*v", ColumnWidth, v)
}

// WriteRecord writes one record with fields in the given order.
func (r *RecordWriter) WriteRecord(fields ...any) error {
	r.buf = r.buf[:0]
	for _, f := range fields {
		r.buf = AppendColumn(r.buf, f)
	}
	r.buf = append(r.buf, '\n')
	return r.write(r.buf)
}

// WriteLine writes an already formatted record and terminates it.
func (r *RecordWriter) WriteLine(line []byte) error {
	if err := r.write(line); err != nil {
		return err
	}
	return r.write([]byte{'\n'})
}

func (r *RecordWriter) write(p []byte) error {
	n, err := r.w.Write(p)
	r.written += int64(n)
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if len(p) > 0 && p[len(p)-1] == '\n' {
		r.records++
	}
	return nil
}

// Flush pushes buffered records to the underlying writer.
func (r *RecordWriter) Flush() error {
	if err := r.w.Flush(); err != nil {
		return fmt.Errorf("flush records: %w", err)
	}
	return nil
}

// Written returns the number of bytes accepted so far.
func (r *RecordWriter) Written() int64 { return r.written }

// Records returns the number of records written so far.
func (r *RecordWriter) Records() int { return r.records }
