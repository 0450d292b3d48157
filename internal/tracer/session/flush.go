package session

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"

	"hsa_tracer/internal/output"
)

// Flush appends every buffered record to its trace file.
func (m *Manager) Flush() error {
	var result error
	if err := m.FlushAPIData(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := m.FlushNonAPITimestampData(); err != nil {
		result = multierror.Append(result, err)
	}
	if result != nil {
		m.flushErrors.Add(1)
	}
	return result
}

// FlushAPIData appends the admitted call records to the API trace file.
func (m *Manager) FlushAPIData() error {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	m.apiMu.Lock()
	records := m.apiRecords
	m.apiRecords = nil
	m.apiMu.Unlock()
	if len(records) == 0 {
		return nil
	}

	err := m.appendTo(output.APITraceFile, func(w *output.RecordWriter) error {
		for _, r := range records {
			if err := w.WriteRecord(r.ThreadID, r.ID, r.Kind.String(), r.Start, r.End, r.Return, r.Args); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil && isOpenError(err) {
		m.apiMu.Lock()
		m.apiRecords = append(records, m.apiRecords...)
		m.apiMu.Unlock()
	}
	return err
}

// FlushNonAPITimestampData appends finished async copies and ready packets
// to their files. Packets that are not ready stay buffered.
func (m *Manager) FlushNonAPITimestampData() error {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	var result error

	if copies := m.copies.Drain(); len(copies) > 0 {
		err := m.appendTo(output.CopyTimestampFile, func(w *output.RecordWriter) error {
			for _, c := range copies {
				if err := w.WriteRecord(c.ThreadID, c.Signal.Handle, c.Start, c.End, c.AsyncCopyID); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			if isOpenError(err) {
				m.copies.Requeue(copies)
			}
			result = multierror.Append(result, err)
		}
	}

	if m.packets.Stats().Pending > 0 {
		err := m.appendTo(output.KernelTimestampFile, func(w *output.RecordWriter) error {
			_, err := m.packets.Flush(w)
			return err
		})
		if err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result
}

type openError struct{ err error }

func (e *openError) Error() string { return e.err.Error() }
func (e *openError) Unwrap() error { return e.err }

func isOpenError(err error) bool {
	var oe *openError
	return errors.As(err, &oe)
}

// appendTo opens the file for kind in append mode and runs write against
// it. Nothing has been consumed when it fails with an *openError.
func (m *Manager) appendTo(kind output.FileKind, write func(*output.RecordWriter) error) error {
	name := m.namer.FileName(m.pid, kind)
	f, err := output.OpenAppend(m.fs, name)
	if err != nil {
		return &openError{err: fmt.Errorf("%s trace file: %w", kind, err)}
	}

	w := output.NewRecordWriter(f)
	var result error
	if err := write(w); err != nil {
		result = multierror.Append(result, err)
	}
	if err := w.Flush(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := f.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close %s: %w", name, err))
	}

	m.flushedBytes[kind].Add(uint64(w.Written()))
	m.log.Debug().
		Str("file", name).
		Int("records", w.Records()).
		Str("size", humanize.Bytes(uint64(w.Written()))).
		Msg("Trace records appended")
	return result
}
