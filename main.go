package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/kvsim/kvsim/cmd"
	"github.com/kvsim/kvsim/envconfig"
	"github.com/kvsim/kvsim/simlog"
)

func main() {
	slog.SetDefault(simlog.NewLogger(os.Stderr, envconfig.LogLevel()))

	if err := cmd.NewCLI().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
