// Package io holds the whole-file write helpers the data store relies on.
package io

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"

	"github.com/sawpanic/crewrun/internal/tabular"
)

// TempSuffix marks in-flight writes; watchers ignore files carrying it.
const TempSuffix = ".tmp"

// WriteFileAtomic writes data to a sibling temp file and renames it over path,
// so readers see either the old or the new content.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmpPath := path + TempSuffix
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// WriteCSVAtomic encodes a table and writes it atomically.
func WriteCSVAtomic(path string, header []string, rows [][]string) error {
	var buf bytes.Buffer
	if err := tabular.WriteCSV(&buf, header, rows); err != nil {
		return err
	}
	return WriteFileAtomic(path, buf.Bytes())
}

// RemoveFiles deletes paths, ignoring ones that do not exist.
func RemoveFiles(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
