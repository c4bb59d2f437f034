package main

import (
	"fmt"
	"os"

	"github.com/gearshelf/api/internal/audio"
	"github.com/gearshelf/api/internal/cli"
	"github.com/gearshelf/api/internal/client"
	"github.com/gearshelf/api/internal/config"
	"github.com/gearshelf/api/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	// keep the terminal for progress output
	logging.Init("development", "warn", "")

	deps := &cli.Dependencies{
		Config:  cfg,
		Backend: client.NewBackendClient(&cfg.Backend),
		Mic: audio.NewMic(audio.MicConfig{
			FFmpegPath:  cfg.Capture.FFmpegPath,
			InputFormat: cfg.Capture.InputFormat,
			InputDevice: cfg.Capture.InputDevice,
		}),
	}

	return cli.NewRootCmd(deps).Execute()
}
