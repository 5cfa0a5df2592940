package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"batch-translator/internal/checkpoint"
)

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse report: %v", err)
	}
	return rows
}

func TestWrite_OneRowPerIDInOrder(t *testing.T) {
	rec := checkpoint.NewRecord()
	rec.Merge(2, "ciao", "CIAO_EN", json.RawMessage(`{"id":"msg_2"}`))
	rec.Merge(0, "hola", "HOLA_EN", json.RawMessage(`{"id":"msg_0"}`))
	rec.Merge(1, "bonjour", "BONJOUR_EN", json.RawMessage(`{"id":"msg_1"}`))

	path := filepath.Join(t.TempDir(), "out", "report.csv")
	if err := Write(rec, path); err != nil {
		t.Fatalf("write report: %v", err)
	}

	rows := readRows(t, path)
	if len(rows) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(rows))
	}
	wantHeader := []string{"query_inputs", "responses", "full_responses"}
	for i, col := range wantHeader {
		if rows[0][i] != col {
			t.Fatalf("unexpected header: %v", rows[0])
		}
	}
	wantInputs := []string{"hola", "bonjour", "ciao"}
	for i, input := range wantInputs {
		row := rows[i+1]
		if row[0] != input {
			t.Fatalf("row %d input %q, want %q", i, row[0], input)
		}
	}
	if rows[1][1] != "HOLA_EN" || rows[1][2] != `{"id":"msg_0"}` {
		t.Fatalf("row 0 content mangled: %v", rows[1])
	}
}

func TestWrite_QuotesAwkwardContent(t *testing.T) {
	rec := checkpoint.NewRecord()
	rec.Merge(0, "hola, \"que\" tal\nbien", "ok", json.RawMessage(`{"a":"b,c"}`))

	path := filepath.Join(t.TempDir(), "report.csv")
	if err := Write(rec, path); err != nil {
		t.Fatalf("write report: %v", err)
	}

	rows := readRows(t, path)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[1][0] != "hola, \"que\" tal\nbien" {
		t.Fatalf("input not round-tripped: %q", rows[1][0])
	}
	if rows[1][2] != `{"a":"b,c"}` {
		t.Fatalf("raw cell not round-tripped: %q", rows[1][2])
	}
}

func TestWrite_EmptyRecordWritesHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	if err := Write(checkpoint.NewRecord(), path); err != nil {
		t.Fatalf("write report: %v", err)
	}

	rows := readRows(t, path)
	if len(rows) != 1 {
		t.Fatalf("expected header only, got %d rows", len(rows))
	}
}

func TestDefaultPath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"translations.json", "translations.csv"},
		{"out/checkpoint.json", "out/checkpoint.csv"},
		{"translations.dat", "translations.dat.csv"},
		{"noext", "noext.csv"},
	}
	for _, tc := range cases {
		if got := DefaultPath(tc.in); got != tc.want {
			t.Fatalf("DefaultPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
