package main

import (
	"fmt"
	"os"

	"github.com/Samit952/NoteFlow-AI/internal/cli"
	"github.com/Samit952/NoteFlow-AI/internal/runner"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error (%s): %v\n", runner.Classify(err), err)
		os.Exit(1)
	}
}
