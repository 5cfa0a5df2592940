package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"batch-translator/internal/checkpoint"
)

func TestHarnessRunCheckpointsAndReports(t *testing.T) {
	tmp := t.TempDir()
	server, calls := startFakeAPI(t, nil)
	setTranslatorEnv(t, server.URL)

	datasetPath := writeDataset(t, tmp, "uno", "dos", "tres")
	checkpointPath := filepath.Join(tmp, "translations.json")

	err := Run([]string{
		"run",
		"--dataset", datasetPath,
		"--field", "text",
		"--checkpoint", checkpointPath,
		"--progress=false",
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 API calls, got %d", calls.Load())
	}

	rec, err := checkpoint.NewStore(checkpointPath).Load()
	if err != nil {
		t.Fatal(err)
	}
	if rec.Len() != 3 {
		t.Fatalf("expected 3 checkpoint entries, got %d", rec.Len())
	}
	entry, ok := rec.Get(0)
	if !ok || entry.Input != "uno" || entry.Response != "UNO_EN" {
		t.Fatalf("unexpected entry for id 0: %+v", entry)
	}
	if !strings.Contains(string(entry.Raw), `"content"`) {
		t.Fatalf("raw envelope not preserved: %s", entry.Raw)
	}

	data, err := os.ReadFile(filepath.Join(tmp, "translations.csv"))
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header + 3 rows, got %d lines:\n%s", len(lines), data)
	}
	if lines[0] != "query_inputs,responses,full_responses" {
		t.Fatalf("unexpected report header: %q", lines[0])
	}
}

func TestHarnessSecondRunMakesNoRequests(t *testing.T) {
	tmp := t.TempDir()
	server, calls := startFakeAPI(t, nil)
	setTranslatorEnv(t, server.URL)

	datasetPath := writeDataset(t, tmp, "uno", "dos")
	checkpointPath := filepath.Join(tmp, "translations.json")
	args := []string{
		"run",
		"--dataset", datasetPath,
		"--field", "text",
		"--checkpoint", checkpointPath,
		"--progress=false",
	}

	if err := Run(args); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	first := calls.Load()
	if first != 2 {
		t.Fatalf("expected 2 API calls on first run, got %d", first)
	}

	output := captureStdout(t, func() {
		if err := Run(args); err != nil {
			t.Fatalf("second run failed: %v", err)
		}
	})
	if calls.Load() != first {
		t.Fatalf("second run should be free, made %d extra calls", calls.Load()-first)
	}
	if !strings.Contains(output, "planned: 0") {
		t.Fatalf("expected planned: 0 in summary, got:\n%s", output)
	}
	if !strings.Contains(output, "already_translated: 2") {
		t.Fatalf("expected already_translated: 2 in summary, got:\n%s", output)
	}
}

func TestHarnessFailedRowDoesNotPoisonTheRest(t *testing.T) {
	tmp := t.TempDir()
	server, _ := startFakeAPI(t, map[string]bool{"dos": true})
	setTranslatorEnv(t, server.URL)

	datasetPath := writeDataset(t, tmp, "uno", "dos", "tres")
	checkpointPath := filepath.Join(tmp, "translations.json")

	err := Run([]string{
		"run",
		"--dataset", datasetPath,
		"--field", "text",
		"--checkpoint", checkpointPath,
		"--progress=false",
	})
	if err == nil {
		t.Fatal("expected an error when a row exhausts its retries")
	}
	if !strings.Contains(err.Error(), "1 row(s) failed") {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, loadErr := checkpoint.NewStore(checkpointPath).Load()
	if loadErr != nil {
		t.Fatal(loadErr)
	}
	if rec.Len() != 2 {
		t.Fatalf("expected 2 surviving entries, got %d", rec.Len())
	}
	if rec.Has(1) {
		t.Fatal("failed row must not be checkpointed")
	}

	// Surviving rows still land in the report; a rerun retries the failure.
	data, readErr := os.ReadFile(filepath.Join(tmp, "translations.csv"))
	if readErr != nil {
		t.Fatalf("report should cover surviving rows: %v", readErr)
	}
	if !strings.Contains(string(data), "UNO_EN") || strings.Contains(string(data), "DOS_EN") {
		t.Fatalf("report content mismatch:\n%s", data)
	}
}

func TestHarnessSampleBoundsTheRun(t *testing.T) {
	tmp := t.TempDir()
	server, calls := startFakeAPI(t, nil)
	setTranslatorEnv(t, server.URL)

	datasetPath := writeDataset(t, tmp, "a", "b", "c", "d", "e")
	checkpointPath := filepath.Join(tmp, "translations.json")

	err := Run([]string{
		"run",
		"--dataset", datasetPath,
		"--field", "text",
		"--checkpoint", checkpointPath,
		"--sample", "2",
		"--progress=false",
	})
	if err != nil {
		t.Fatalf("sampled run failed: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 API calls for --sample 2, got %d", calls.Load())
	}

	rec, loadErr := checkpoint.NewStore(checkpointPath).Load()
	if loadErr != nil {
		t.Fatal(loadErr)
	}
	if rec.Len() != 2 {
		t.Fatalf("expected 2 checkpoint entries, got %d", rec.Len())
	}
}

// startFakeAPI serves the messages endpoint, answering with the source text
// uppercased plus _EN. Inputs listed in failOn always get a 503.
func startFakeAPI(t *testing.T, failOn map[string]bool) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}
		source := extractSourceText(req.Messages[0].Content)
		if failOn[source] {
			http.Error(w, `{"error":{"type":"overloaded_error"}}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"msg_%d","content":[{"type":"text","text":%s}]}`,
			n, strconv.Quote(strings.ToUpper(source)+"_EN"))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

// extractSourceText pulls the quoted source content back out of the prompt.
func extractSourceText(prompt string) string {
	start := strings.Index(prompt, "'")
	end := strings.LastIndex(prompt, "'")
	if start < 0 || end <= start {
		return ""
	}
	return prompt[start+1 : end]
}

func setTranslatorEnv(t *testing.T, baseURL string) {
	t.Helper()
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("TRANSLATOR_API_BASE_URL", baseURL)
	// One attempt per row keeps failure tests free of backoff sleeps.
	t.Setenv("TRANSLATOR_RETRY_MAX_ATTEMPTS", "1")
}

func writeDataset(t *testing.T, dir string, rows ...string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("id,text\n")
	for i, row := range rows {
		fmt.Fprintf(&b, "%d,%s\n", i+1, row)
	}
	path := filepath.Join(dir, "rows.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w
	defer func() {
		os.Stdout = oldStdout
	}()
	defer r.Close()

	fn()

	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}
