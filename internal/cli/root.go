package cli

import (
	"fmt"

	"batch-translator/internal/version"
)

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "run":
		return runTranslate(args[1:])
	case "status":
		return runStatus(args[1:])
	case "report":
		return runReport(args[1:])
	case "inspect":
		return runInspect(args[1:])
	case "version":
		fmt.Println(version.Value)
		return nil
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("batch-translator: resumable batch translation of a CSV column via an LLM API")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  export ANTHROPIC_API_KEY=sk-...")
	fmt.Println("  batch-translator run --dataset rows.csv --field text --workers 4")
	fmt.Println("  batch-translator status --dataset rows.csv --field text")
	fmt.Println("  batch-translator report")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run      translate remaining rows and checkpoint progress after each one")
	fmt.Println("  status   show translated/remaining counts without issuing any requests")
	fmt.Println("  report   flatten the checkpoint into a CSV report")
	fmt.Println("  inspect  interactive checkpoint browser (view entries, delete to force redo)")
	fmt.Println("  version  print the build version")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Use --json on commands for machine-readable output")
	fmt.Println("  - Interrupted runs resume for free: rows already in the checkpoint are")
	fmt.Println("    never sent to the API again")
}
