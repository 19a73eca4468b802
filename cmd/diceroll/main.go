// Command diceroll runs two-party dice wagers against a local ledger.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/diceroll/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
