package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"batch-translator/internal/model"
)

// Dataset is the parsed input table reduced to the one field being
// translated.
type Dataset struct {
	Path  string
	Field string
	Items []model.WorkItem
}

// Load reads the CSV at path and extracts field from every data row. Ids are
// the zero-based data-row index; they stay stable across runs as long as the
// file does not change.
func Load(path, field string) (*Dataset, error) {
	name := strings.TrimSpace(field)
	if name == "" {
		return nil, fmt.Errorf("field name is required")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("dataset %s is empty", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read dataset header %s: %w", path, err)
	}

	fieldIdx := -1
	for i, col := range header {
		if strings.TrimSpace(col) == name {
			fieldIdx = i
			break
		}
	}
	if fieldIdx < 0 {
		return nil, fmt.Errorf("field %q not found in %s (columns: %s)", name, path, strings.Join(trimAll(header), ", "))
	}

	var items []model.WorkItem
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset row %s: %w", path, err)
		}
		items = append(items, model.WorkItem{
			ID:      int64(len(items)),
			Content: row[fieldIdx],
		})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("dataset %s has no data rows", path)
	}

	return &Dataset{Path: path, Field: name, Items: items}, nil
}

func (d *Dataset) Size() int {
	return len(d.Items)
}

func trimAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.TrimSpace(s)
	}
	return out
}
