package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/polymorphcorp/profilegpt/internal/app"
	"github.com/polymorphcorp/profilegpt/internal/config"
	"github.com/polymorphcorp/profilegpt/internal/observability"
	"github.com/polymorphcorp/profilegpt/internal/tools/reviewctl"
)

func main() {
	root := &cobra.Command{
		Use:   "profilegpt",
		Short: "Conversational assistant for a professional profile",
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(reviewctl.NewCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(ctx)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger, loggerProvider, err := observability.InitLogging(ctx, cfg)
			if err != nil {
				return fmt.Errorf("init logging: %w", err)
			}

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			a.Observability.LoggerProvider = loggerProvider
			return a.Run(ctx)
		},
	}
}
