// Command agsrecall validates topologies, plays task scripts against them
// and inspects the resulting journals.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/agsrecall/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
