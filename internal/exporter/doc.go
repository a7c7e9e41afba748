// Package exporter writes stored daily rows back out as CSV or XLSX.
//
// Exported files use the stored column names, so they load again through
// the ingest package unchanged. Rows are read from the store one page at a
// time and streamed to the output.
//
// Example usage:
//
//	n, err := exporter.New(store, logger).ExportFile(ctx, "backup/market.xlsx", exporter.Options{})
package exporter
