// Command spyfall-agents is the quick start: with no arguments it seats you at a
// table of language models in the console UI. Any arguments go to the full CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tatianab/spyfall-agents/internal/cli"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"play", "--human"}
	}

	cmd := cli.NewRootCmd()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
