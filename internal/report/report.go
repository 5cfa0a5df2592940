package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"batch-translator/internal/checkpoint"
)

// Column order of the materialized report.
var header = []string{"query_inputs", "responses", "full_responses"}

// Write flattens the checkpoint record into a CSV at path, one row per
// translated id in ascending id order. The checkpoint stays the source of
// truth; the report is derived and safe to regenerate.
func Write(rec *checkpoint.Record, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return fmt.Errorf("write report header: %w", err)
	}
	for _, id := range rec.IDs() {
		entry, _ := rec.Get(id)
		if err := w.Write([]string{entry.Input, entry.Response, string(entry.Raw)}); err != nil {
			_ = f.Close()
			return fmt.Errorf("write report row %d: %w", id, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush report %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report %s: %w", path, err)
	}
	return nil
}

// DefaultPath derives the report location from the checkpoint location.
func DefaultPath(checkpointPath string) string {
	if strings.HasSuffix(checkpointPath, ".json") {
		return strings.TrimSuffix(checkpointPath, ".json") + ".csv"
	}
	return checkpointPath + ".csv"
}
