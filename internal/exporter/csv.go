package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
)

// utf8BOM helps Excel recognize UTF-8.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// StreamWriter provides streaming CSV writing for large datasets
type StreamWriter struct {
	writer *csv.Writer
}

// NewStreamWriter writes the optional byte order mark and the header row.
func NewStreamWriter(w io.Writer, headers []string, bom bool) (*StreamWriter, error) {
	if bom {
		if _, err := w.Write(utf8BOM); err != nil {
			return nil, fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
	}
	return &StreamWriter{writer: writer}, nil
}

// WriteRecord writes a single record to the stream
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Close flushes the stream. The underlying writer stays open.
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	return s.writer.Error()
}

type csvRows struct {
	stream  *StreamWriter
	columns []string
	record  []string
}

func newCSVRows(w io.Writer, columns []string, bom bool) (*csvRows, error) {
	stream, err := NewStreamWriter(w, header(columns), bom)
	if err != nil {
		return nil, err
	}
	return &csvRows{stream: stream, columns: columns, record: make([]string, len(columns)+1)}, nil
}

func (c *csvRows) WriteRow(values rowValues) error {
	c.record[0] = formatDate(values.date)
	for i, v := range values.cells {
		c.record[i+1] = formatFloat(v)
	}
	return c.stream.WriteRecord(c.record)
}

func (c *csvRows) Close() error {
	return c.stream.Close()
}
