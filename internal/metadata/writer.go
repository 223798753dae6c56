// Package metadata records one CSV row per generated sample: the file id,
// every resolved context variable and every resolved skyline parameter in
// declaration order, plus any extra columns the simulator adapter reports.
// Rows are flushed as soon as they are written, so an aborted run keeps the
// metadata of every sample that completed.
package metadata

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"
)

// Filename is the metadata file written into every split directory.
const Filename = "metadata.csv"

// Writer appends rows to a metadata.csv file. It is safe for concurrent use
// by the orchestrator's workers.
type Writer struct {
	mu      sync.Mutex
	f       *os.File
	w       *csv.Writer
	columns []string
}

// NewWriter creates the file and writes the header row.
func NewWriter(path string, columns []string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating metadata file: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing metadata header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flushing metadata header: %w", err)
	}
	return &Writer{f: f, w: w, columns: columns}, nil
}

// Columns returns the header in order.
func (w *Writer) Columns() []string { return w.columns }

// WriteRow writes one record with cells looked up by column name; missing
// cells are left empty. The row is flushed before returning.
func (w *Writer) WriteRow(cells map[string]string) error {
	record := make([]string, len(w.columns))
	for i, col := range w.columns {
		record[i] = cells[col]
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.Write(record); err != nil {
		return fmt.Errorf("writing metadata row: %w", err)
	}
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return fmt.Errorf("flushing metadata row: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
