package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/config"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/log"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"
)

func main() {
	// A missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	logger := log.WithModule("api")

	cmd := &cli.Command{
		Name:                  "videoresearch-api",
		Usage:                 "Analyze videos and run deep research on them",
		EnableShellCompletion: true,
		Flags:                 config.Flags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			cfg, err := config.Load(command, validator.New(validator.WithRequiredStructEnabled()))
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Initializing Video DeepResearch API",
				"port", cfg.Port,
				"event_bus", cfg.EventBus,
				"twelvelabs_key", maskedOrEmpty(cfg.TwelveLabsAPIKey),
				"perplexity_key", maskedOrEmpty(cfg.PerplexityAPIKey),
			)

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			server, err := NewServer(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer server.Close(context.WithoutCancel(ctx))

			return server.Run(ctx)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Error("API exited with error", "error", err)
		os.Exit(1)
	}
}

func maskedOrEmpty(secret string) string {
	if secret == "" {
		return ""
	}

	return log.MaskSecret(secret)
}
