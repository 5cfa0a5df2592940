package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"batch-translator/internal/checkpoint"
	"batch-translator/internal/config"
	"batch-translator/internal/dataset"
	"batch-translator/internal/pipeline"
	"batch-translator/internal/report"
)

type statusResult struct {
	Dataset           string `json:"dataset"`
	Field             string `json:"field"`
	DatasetRows       int    `json:"dataset_rows"`
	Checkpoint        string `json:"checkpoint"`
	Translated        int    `json:"translated"`
	Remaining         int    `json:"remaining"`
	CheckpointEntries int    `json:"checkpoint_entries"`
}

type reportResult struct {
	Checkpoint string `json:"checkpoint"`
	Output     string `json:"output"`
	Rows       int    `json:"rows"`
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	datasetPath := fs.String("dataset", "", "CSV dataset path")
	field := fs.String("field", "", "dataset column holding the text to translate")
	checkpointPath := fs.String("checkpoint", "", "checkpoint file path (default from config)")
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

	cfg, err := config.Load()
	if err != nil {
		return err
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

	remaining := len(pipeline.Plan(ds.Items, rec, -1, nil))
	res := statusResult{
		Dataset:           ds.Path,
		Field:             ds.Field,
		DatasetRows:       ds.Size(),
		Checkpoint:        store.Path(),
		Translated:        ds.Size() - remaining,
		Remaining:         remaining,
		CheckpointEntries: rec.Len(),
	}
	if *jsonOut {
		return printJSON(res)
	}
	fmt.Printf("dataset: %s (field %s)\n", res.Dataset, res.Field)
	fmt.Printf("checkpoint: %s\n", res.Checkpoint)
	fmt.Printf("dataset_rows: %d\n", res.DatasetRows)
	fmt.Printf("translated: %d\n", res.Translated)
	fmt.Printf("remaining: %d\n", res.Remaining)
	if res.CheckpointEntries != res.Translated {
		fmt.Printf("checkpoint_entries: %d (includes ids outside this dataset)\n", res.CheckpointEntries)
	}
	if res.Remaining > 0 {
		fmt.Println("next: rerun `batch-translator run` with the same dataset and checkpoint to continue")
	}
	return nil
}

func runReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	checkpointPath := fs.String("checkpoint", "", "checkpoint file path (default from config)")
	output := fs.String("output", "", "report CSV path (default: checkpoint path with .csv)")
	jsonOut := fs.Bool("json", false, "print JSON output")

	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store := checkpoint.NewStore(firstNonEmpty(*checkpointPath, cfg.Defaults.CheckpointPath))
	if _, err := os.Stat(store.Path()); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("checkpoint %s does not exist; run a translation first", store.Path())
		}
		return fmt.Errorf("stat checkpoint %s: %w", store.Path(), err)
	}
	rec, err := store.Load()
	if err != nil {
		return err
	}

	target := firstNonEmpty(*output, report.DefaultPath(store.Path()))
	if err := report.Write(rec, target); err != nil {
		return err
	}
	res := reportResult{Checkpoint: store.Path(), Output: target, Rows: rec.Len()}
	if *jsonOut {
		return printJSON(res)
	}
	fmt.Printf("report written: %s\n", res.Output)
	fmt.Printf("rows: %d\n", res.Rows)
	return nil
}
