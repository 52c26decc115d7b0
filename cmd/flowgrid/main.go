// Command flowgrid plans deterministic factories from the command line.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/flowgrid/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "flowgrid:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
