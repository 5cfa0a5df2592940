package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"batch-translator/internal/cli"
)

func main() {
	// Optional .env so ANTHROPIC_API_KEY does not have to live in the shell.
	_ = godotenv.Load()

	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
