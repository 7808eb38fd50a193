package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/awnumar/memguard"

	"github.com/systmms/kapsel/cmd/kapsel/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// wipe enclaves holding local secrets on the way out
	defer memguard.Purge()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return commands.Execute(ctx, args, nil, fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date))
}
