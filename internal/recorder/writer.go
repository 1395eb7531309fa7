package recorder

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sync"

	"ammcpi/pkg/exception"
)

// Writer appends records to a journal. It is safe for concurrent use. The
// first write error is sticky: every later Append returns it.
type Writer struct {
	mu      sync.Mutex
	buf     *bufio.Writer
	closer  io.Closer
	scratch []byte
	err     error
	closed  bool
}

// NewWriter journals to w. Close flushes but does not close w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{buf: bufio.NewWriter(w)}
}

// Open creates or truncates the journal file at path, creating its
// directory if needed.
func Open(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

// Append buffers one record.
func (w *Writer) Append(r Record) error {
	if err := r.validate(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return exception.ErrJournalClosed
	}
	if w.err != nil {
		return w.err
	}

	w.scratch = encodeRecord(w.scratch[:0], r)
	if _, err := w.buf.Write(w.scratch); err != nil {
		w.err = err
		return err
	}
	return nil
}

// Flush writes buffered records through.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.flush()
}

func (w *Writer) flush() error {
	if w.err != nil {
		return w.err
	}
	if err := w.buf.Flush(); err != nil {
		w.err = err
	}
	return w.err
}

// Err returns the first error observed by the writer, if any.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.err
}

// Close flushes and closes the journal. It is safe to call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return w.err
	}
	w.closed = true

	err := w.flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); cerr != nil && err == nil {
			w.err = cerr
			err = cerr
		}
	}
	return err
}
