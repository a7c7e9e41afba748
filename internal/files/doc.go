// Package files locates dataset files on disk.
//
// A Discovery lists files with the wanted extensions and resolves a
// directory to its newest file, so a scheduled ingest can point at a drop
// folder instead of a single file:
//
//	d := files.NewDiscovery("", ".csv", ".xlsx")
//	path, err := d.Resolve("/srv/market/incoming")
package files
