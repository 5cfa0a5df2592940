package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Record holds everything translated so far, keyed by dataset row id. The
// three maps always carry identical key sets; Merge is the only writer the
// pipeline uses and it sets all three together.
type Record struct {
	Inputs    map[int64]string          `json:"query_inputs"`
	Responses map[int64]string          `json:"responses"`
	Raw       map[int64]json.RawMessage `json:"full_responses"`
}

// Entry is one record row as surfaced to inspection tooling.
type Entry struct {
	ID       int64
	Input    string
	Response string
	Raw      json.RawMessage
}

func NewRecord() *Record {
	return &Record{
		Inputs:    map[int64]string{},
		Responses: map[int64]string{},
		Raw:       map[int64]json.RawMessage{},
	}
}

// Merge replaces the full entry for id. Re-merging an id overwrites all three
// values, never part of them.
func (r *Record) Merge(id int64, input, response string, raw json.RawMessage) {
	r.Inputs[id] = input
	r.Responses[id] = response
	r.Raw[id] = append(json.RawMessage(nil), raw...)
}

func (r *Record) Has(id int64) bool {
	_, ok := r.Inputs[id]
	return ok
}

func (r *Record) Len() int {
	return len(r.Inputs)
}

// IDs returns every checkpointed id in ascending order.
func (r *Record) IDs() []int64 {
	ids := make([]int64, 0, len(r.Inputs))
	for id := range r.Inputs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *Record) Get(id int64) (Entry, bool) {
	input, ok := r.Inputs[id]
	if !ok {
		return Entry{}, false
	}
	return Entry{
		ID:       id,
		Input:    input,
		Response: r.Responses[id],
		Raw:      r.Raw[id],
	}, true
}

// Delete removes id from all three maps. The pipeline never calls this; it
// exists for explicit operator edits that force re-translation.
func (r *Record) Delete(id int64) {
	delete(r.Inputs, id)
	delete(r.Responses, id)
	delete(r.Raw, id)
}

func (r *Record) normalize() {
	if r.Inputs == nil {
		r.Inputs = map[int64]string{}
	}
	if r.Responses == nil {
		r.Responses = map[int64]string{}
	}
	if r.Raw == nil {
		r.Raw = map[int64]json.RawMessage{}
	}
}

func (r *Record) checkConsistent() error {
	if len(r.Responses) != len(r.Inputs) || len(r.Raw) != len(r.Inputs) {
		return fmt.Errorf("%d inputs vs %d responses vs %d raw responses", len(r.Inputs), len(r.Responses), len(r.Raw))
	}
	for id := range r.Inputs {
		if _, ok := r.Responses[id]; !ok {
			return fmt.Errorf("id %d has input but no response", id)
		}
		if _, ok := r.Raw[id]; !ok {
			return fmt.Errorf("id %d has input but no raw response", id)
		}
	}
	return nil
}

// Store reads and writes one checkpoint file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load returns the record on disk, or an empty record when the file does not
// exist yet. Anything unreadable or inconsistent is an error; the caller is
// expected to abort rather than risk clobbering real progress.
func (s *Store) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewRecord(), nil
		}
		return nil, fmt.Errorf("read checkpoint %s: %w", s.path, err)
	}

	rec := &Record{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("parse checkpoint %s: %w", s.path, err)
	}
	rec.normalize()
	if err := rec.checkConsistent(); err != nil {
		return nil, fmt.Errorf("inconsistent checkpoint %s: %w", s.path, err)
	}
	return rec, nil
}

// Persist writes the full record and renames it into place, so readers only
// ever observe complete snapshots.
func (s *Store) Persist(rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint for %s: %w", s.path, err)
	}
	data = append(data, '\n')
	return writeBytes(s.path, data)
}

func writeBytes(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".bt-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o644); err != nil {
		return fmt.Errorf("write file %s: %w", path, err)
	}
	return nil
}
