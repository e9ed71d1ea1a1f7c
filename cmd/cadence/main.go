// Command cadence runs the 8-beat admission and execution scheduler.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/cadence/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
