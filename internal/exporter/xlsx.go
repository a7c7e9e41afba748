package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet exported rows are written to.
const SheetName = "stock_data"

type xlsxRows struct {
	out    io.Writer
	file   *excelize.File
	stream *excelize.StreamWriter
	row    int
	cells  []interface{}
}

func newXLSXRows(w io.Writer, columns []string) (*xlsxRows, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		f.Close()
		return nil, err
	}
	stream, err := f.NewStreamWriter(SheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet stream: %w", err)
	}

	names := header(columns)
	cells := make([]interface{}, len(names))
	for i, name := range names {
		cells[i] = name
	}
	x := &xlsxRows{out: w, file: f, stream: stream, row: 1, cells: make([]interface{}, len(names))}
	if err := x.setRow(cells); err != nil {
		f.Close()
		return nil, err
	}
	return x, nil
}

func (x *xlsxRows) setRow(cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, x.row)
	if err != nil {
		return err
	}
	x.row++
	return x.stream.SetRow(cell, cells)
}

func (x *xlsxRows) WriteRow(values rowValues) error {
	x.cells[0] = formatDate(values.date)
	for i, v := range values.cells {
		if v == nil {
			x.cells[i+1] = nil
			continue
		}
		x.cells[i+1] = *v
	}
	return x.setRow(x.cells)
}

// Close finishes the workbook and writes it to the output.
func (x *xlsxRows) Close() error {
	defer x.file.Close()
	if err := x.stream.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := x.file.WriteTo(x.out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
