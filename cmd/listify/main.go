// Command listify runs the playlist API and its maintenance tasks.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

func main() {
	runner := NewRunner(RunnerOpts{Output: os.Stdout})

	app := &cli.Command{
		Name:     "listify",
		Usage:    "Playlist management API",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal("application error", "err", err)
	}
}
