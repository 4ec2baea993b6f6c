package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"holdtalk/internal/config"
	"holdtalk/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(args)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "holdtalk: %v\n", err)
		return 2
	}

	log := logging.New(cfg.Log)

	if cfg.Save {
		if err := config.Save(cfg); err != nil {
			log.Error().Err(err).Str("path", cfg.SettingsPath).Msg("could not save settings")
			return 1
		}
		log.Info().Str("path", cfg.SettingsPath).Msg("settings saved")
	}

	if err := NewApp(log, stdout).Run(context.Background(), cfg); err != nil {
		log.Error().Err(err).Msg("holdtalk stopped")
		return 1
	}
	return 0
}
