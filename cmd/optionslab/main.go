package main

import (
	"fmt"
	"os"

	"github.com/manisahni/optionslab/internal/cli"
	"github.com/manisahni/optionslab/internal/config"
	"github.com/manisahni/optionslab/internal/logging"
)

func main() {
	logger := logging.NewLogger()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rootCmd := cli.NewRootCmd(cfg, logger)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
