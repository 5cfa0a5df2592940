package cli

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"batch-translator/internal/checkpoint"
)

func TestStatusCountsTranslatedAndRemaining(t *testing.T) {
	tmp := t.TempDir()
	datasetPath := writeDataset(t, tmp, "uno", "dos", "tres")
	checkpointPath := filepath.Join(tmp, "translations.json")

	rec := checkpoint.NewRecord()
	rec.Merge(0, "uno", "UNO_EN", json.RawMessage(`{"n":0}`))
	rec.Merge(2, "tres", "TRES_EN", json.RawMessage(`{"n":2}`))
	if err := checkpoint.NewStore(checkpointPath).Persist(rec); err != nil {
		t.Fatal(err)
	}

	output := captureStdout(t, func() {
		err := Run([]string{
			"status",
			"--dataset", datasetPath,
			"--field", "text",
			"--checkpoint", checkpointPath,
		})
		if err != nil {
			t.Fatalf("status failed: %v", err)
		}
	})
	if !strings.Contains(output, "translated: 2") {
		t.Fatalf("expected translated: 2, got:\n%s", output)
	}
	if !strings.Contains(output, "remaining: 1") {
		t.Fatalf("expected remaining: 1, got:\n%s", output)
	}
}

func TestStatusJSONRemainsMachineReadable(t *testing.T) {
	tmp := t.TempDir()
	datasetPath := writeDataset(t, tmp, "uno", "dos")
	checkpointPath := filepath.Join(tmp, "translations.json")

	rec := checkpoint.NewRecord()
	rec.Merge(1, "dos", "DOS_EN", json.RawMessage(`{"n":1}`))
	if err := checkpoint.NewStore(checkpointPath).Persist(rec); err != nil {
		t.Fatal(err)
	}

	output := captureStdout(t, func() {
		err := Run([]string{
			"status",
			"--dataset", datasetPath,
			"--field", "text",
			"--checkpoint", checkpointPath,
			"--json",
		})
		if err != nil {
			t.Fatalf("status failed: %v", err)
		}
	})

	var parsed statusResult
	if err := json.Unmarshal([]byte(output), &parsed); err != nil {
		t.Fatalf("expected valid JSON output, got error: %v\noutput:\n%s", err, output)
	}
	if parsed.DatasetRows != 2 || parsed.Translated != 1 || parsed.Remaining != 1 {
		t.Fatalf("unexpected status numbers: %+v", parsed)
	}
}

func TestStatusMissingCheckpointMeansNothingTranslated(t *testing.T) {
	tmp := t.TempDir()
	datasetPath := writeDataset(t, tmp, "uno", "dos")

	output := captureStdout(t, func() {
		err := Run([]string{
			"status",
			"--dataset", datasetPath,
			"--field", "text",
			"--checkpoint", filepath.Join(tmp, "missing.json"),
		})
		if err != nil {
			t.Fatalf("status failed: %v", err)
		}
	})
	if !strings.Contains(output, "remaining: 2") {
		t.Fatalf("expected remaining: 2 for fresh checkpoint, got:\n%s", output)
	}
}

func TestReportCommandWritesRowsInIDOrder(t *testing.T) {
	tmp := t.TempDir()
	checkpointPath := filepath.Join(tmp, "translations.json")

	rec := checkpoint.NewRecord()
	rec.Merge(2, "tres", "TRES_EN", json.RawMessage(`{"n":2}`))
	rec.Merge(0, "uno", "UNO_EN", json.RawMessage(`{"n":0}`))
	if err := checkpoint.NewStore(checkpointPath).Persist(rec); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(tmp, "out.csv")

	err := Run([]string{"report", "--checkpoint", checkpointPath, "--output", outPath})
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[1][0] != "uno" || rows[2][0] != "tres" {
		t.Fatalf("rows not in id order: %v", rows)
	}
	if rows[1][2] != `{"n":0}` {
		t.Fatalf("raw envelope mangled: %q", rows[1][2])
	}
}

func TestReportCommandRequiresExistingCheckpoint(t *testing.T) {
	tmp := t.TempDir()
	err := Run([]string{"report", "--checkpoint", filepath.Join(tmp, "nope.json")})
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("expected missing checkpoint error, got %v", err)
	}
}
