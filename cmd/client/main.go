package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/NicolasHaas/roulette/pkg/client"
	"github.com/NicolasHaas/roulette/pkg/logging"
	"github.com/NicolasHaas/roulette/ui"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: next to the executable)")
	flag.Parse()

	// Default to "info"; override with ROULETTE_LOG_LEVEL / ROULETTE_LOG_FORMAT.
	if err := logging.Setup(logging.FromEnv("ROULETTE", os.Stdout)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	cfg, err := client.LoadConfig(*configPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	slog.Debug("config loaded", "chat_url", cfg.ChatURL, "poll_interval", cfg.PollInterval)

	app := ui.NewApp(cfg)
	app.Run()
}
