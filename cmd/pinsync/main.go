// Command pinsync manages Highway and Junction workflows.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/pinsync/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}
	// Commands report their own ExitErrors; anything else came from flag
	// or argument parsing.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
