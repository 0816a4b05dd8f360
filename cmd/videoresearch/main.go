// Package main provides a command line client for the Video DeepResearch API.
package main

import (
	"context"
	"net/http"
	"os"

	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/log"
	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"
)

func main() {
	_ = godotenv.Load()

	logger := log.WithModule("cli")

	cmd := &cli.Command{
		Name:  "videoresearch",
		Usage: "Run video research workflows against a Video DeepResearch API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Usage:   "Base URL of the API",
				Value:   "http://localhost:5000",
				Sources: cli.EnvVars("VIDEORESEARCH_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			workflowCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func workflowCommand() *cli.Command {
	return &cli.Command{
		Name:    "workflow",
		Aliases: []string{"w"},
		Usage:   "Fetch, analyze and research one video, printing the research as markdown",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "index-id",
				Usage:    "TwelveLabs index holding the video",
				Required: true,
				Sources:  cli.EnvVars("TWELVELABS_INDEX_ID"),
			},
			&cli.StringFlag{
				Name:     "video-id",
				Usage:    "Video to research",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "query",
				Aliases:  []string{"q"},
				Usage:    "Research question",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "prompt",
				Usage: "Analysis prompt, the server default when empty",
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "TwelveLabs API key, the server key when empty",
				Sources: cli.EnvVars("TWELVELABS_API_KEY"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			client := &Client{
				BaseURL: command.Root().String("url"),
				HTTP:    &http.Client{},
				Stdout:  command.Root().Writer,
				Stderr:  command.Root().ErrWriter,
			}

			return client.RunWorkflow(ctx, WorkflowOptions{
				APIKey:         command.String("api-key"),
				IndexID:        command.String("index-id"),
				VideoID:        command.String("video-id"),
				AnalysisPrompt: command.String("prompt"),
				ResearchQuery:  command.String("query"),
			})
		},
	}
}
