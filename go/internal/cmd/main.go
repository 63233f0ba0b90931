package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcdev12/priceguess/go/internal/config"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	cfg.SetupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start")
	}

	log.Info().
		Str("transport", cfg.Transport.Kind).
		Str("prefs", cfg.Prefs.Backend).
		Bool("voice", cfg.Voice.Enabled).
		Msg("starting priceguess client")

	if err := a.run(ctx, os.Stdin, os.Stdout); err != nil {
		log.Error().Err(err).Msg("session ended with error")
	}
	a.shutdown()
	log.Info().Msg("priceguess client shutdown complete")
}
