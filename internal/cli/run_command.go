package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"batch-translator/internal/checkpoint"
	"batch-translator/internal/config"
	"batch-translator/internal/dataset"
	"batch-translator/internal/model"
	"batch-translator/internal/pipeline"
	"batch-translator/internal/report"
	"batch-translator/internal/translator"
)

var summaryTitleStyle = lipgloss.NewStyle().Bold(true)

type runCommandResult struct {
	model.RunSummary
	Dataset    string `json:"dataset"`
	Checkpoint string `json:"checkpoint"`
	Report     string `json:"report,omitempty"`
}

func runTranslate(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	datasetPath := fs.String("dataset", "", "CSV dataset path")
	field := fs.String("field", "", "dataset column holding the text to translate")
	sample := fs.Int("sample", -1, "uniform random sample size from remaining rows (-1 = all)")
	checkpointPath := fs.String("checkpoint", "", "checkpoint file path (default from config)")
	language := fs.String("language", "", "target language (default from config)")
	workers := fs.Int("workers", 0, "parallel translation workers (0 = config/default)")
	failFast := fs.Bool("fail-fast", false, "abort the run when one row exhausts its retries")
	reportPath := fs.String("report", "", "report CSV path (default: checkpoint path with .csv)")
	noReport := fs.Bool("no-report", false, "skip writing the CSV report")
	progress := fs.Bool("progress", true, "show live progress line")
	jsonOut := fs.Bool("json", false, "print JSON output")

	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*datasetPath) == "" {
		fs.Usage()
		return errors.New("--dataset is required")
	}
	if strings.TrimSpace(*field) == "" {
		fs.Usage()
		return errors.New("--field is required")
	}
	if *sample < -1 {
		return errors.New("--sample must be >= 0, or -1 for all remaining rows")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	apiKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if apiKey == "" {
		return errors.New("ANTHROPIC_API_KEY is not set (export it or put it in .env)")
	}

	ds, err := dataset.Load(strings.TrimSpace(*datasetPath), strings.TrimSpace(*field))
	if err != nil {
		return err
	}
	store := checkpoint.NewStore(firstNonEmpty(*checkpointPath, cfg.Defaults.CheckpointPath))
	rec, err := store.Load()
	if err != nil {
		return err
	}

	client, err := translator.New(translator.Options{
		BaseURL:   cfg.API.BaseURL,
		APIKey:    apiKey,
		Model:     cfg.API.Model,
		MaxTokens: cfg.API.MaxTokens,
		Timeout:   time.Duration(cfg.API.TimeoutSeconds) * time.Second,
		Retry: translator.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			MinDelay:    time.Duration(cfg.Retry.MinDelaySeconds) * time.Second,
			MaxDelay:    time.Duration(cfg.Retry.MaxDelaySeconds) * time.Second,
		},
	})
	if err != nil {
		return err
	}

	poolSize := *workers
	if poolSize <= 0 {
		poolSize = cfg.Defaults.Workers
	}
	showProgress := *progress && !*jsonOut
	if showProgress {
		fmt.Printf("dataset: %s field=%s rows=%d\n", ds.Path, ds.Field, ds.Size())
		fmt.Printf("checkpoint: %s translated=%d\n", store.Path(), rec.Len())
	}

	summary, runErr := pipeline.Run(context.Background(), pipeline.Options{
		Items:          ds.Items,
		Translator:     client,
		Store:          store,
		TargetLanguage: firstNonEmpty(*language, cfg.Defaults.TargetLanguage),
		SampleSize:     *sample,
		Workers:        poolSize,
		FailFast:       *failFast,
		Progress:       showProgress,
	})

	result := runCommandResult{
		RunSummary: summary,
		Dataset:    ds.Path,
		Checkpoint: store.Path(),
	}
	if runErr == nil && !*noReport {
		final, err := store.Load()
		if err != nil {
			return err
		}
		target := firstNonEmpty(*reportPath, report.DefaultPath(store.Path()))
		if err := report.Write(final, target); err != nil {
			return err
		}
		result.Report = target
	}

	if *jsonOut {
		if err := printJSON(result); err != nil {
			return err
		}
	} else {
		fmt.Println(summaryTitleStyle.Render("run summary"))
		fmt.Printf("run_id: %s\n", summary.RunID)
		fmt.Printf("dataset_rows: %d\n", summary.DatasetSize)
		fmt.Printf("already_translated: %d\n", summary.AlreadyDone)
		fmt.Printf("planned: %d\n", summary.Planned)
		fmt.Printf("translated_now: %d\n", summary.Completed)
		fmt.Printf("failed: %d\n", summary.Failed)
		fmt.Printf("elapsed: %.1fs\n", summary.ElapsedSecs)
		fmt.Printf("checkpoint: %s\n", store.Path())
		if result.Report != "" {
			fmt.Printf("report: %s\n", result.Report)
		}
	}

	if runErr != nil {
		return runErr
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d row(s) failed after retries (ids %s); rerun to retry them",
			summary.Failed, formatIDs(summary.FailedIDs))
	}
	return nil
}

func formatIDs(ids []int64) string {
	const maxShown = 10
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
		if len(parts) == maxShown && len(ids) > maxShown {
			parts = append(parts, fmt.Sprintf("and %d more", len(ids)-maxShown))
			break
		}
	}
	return strings.Join(parts, ", ")
}
