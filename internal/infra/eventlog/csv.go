package eventlog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"crypto_swarm/internal/domain"
)

// CSVSource loads an order log from a CSV file with a header row.
type CSVSource struct {
	Path string
}

// NewCSVSource creates a source for path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: path}
}

// Load reads every row. The first malformed row aborts the load.
func (s *CSVSource) Load(ctx context.Context) ([]domain.OrderEvent, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open order log: %w", err)
	}
	defer f.Close()

	events, err := ReadOrders(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}
	slog.Info("Order log loaded", slog.String("path", s.Path), slog.Int("events", len(events)))
	return events, nil
}

// ReadOrders parses a CSV stream in domain.OrderLogColumns order.
// The header row is skipped, not interpreted.
func ReadOrders(ctx context.Context, r io.Reader) ([]domain.OrderEvent, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // column count is checked per row with a ValidationError
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var events []domain.OrderEvent
	row := 1
	for {
		if row%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		ev, err := domain.ParseOrderEvent(row, fields)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// CSVWriter appends order-book records to a CSV stream with a header row.
type CSVWriter struct {
	mu     sync.Mutex
	w      *csv.Writer
	closer io.Closer
}

// NewCSVWriter writes the header immediately.
func NewCSVWriter(w io.Writer) (*CSVWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.OrderBookColumns); err != nil {
		return nil, err
	}
	return &CSVWriter{w: cw}, nil
}

// CreateCSV creates (truncating) the file at path and returns a writer over it.
func CreateCSV(path string) (*CSVWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewCSVWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// WriteRecords implements domain.OrderRecordSink.
func (c *CSVWriter) WriteRecords(records []domain.OrderRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range records {
		if err := c.w.Write(r.Fields()); err != nil {
			return err
		}
	}
	c.w.Flush()
	return c.w.Error()
}

// Close flushes and closes the underlying file, if any. Safe to call twice.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return err
	}
	if c.closer == nil {
		return nil
	}
	err := c.closer.Close()
	c.closer = nil
	return err
}
