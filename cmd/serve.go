package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sitesage/sitesage/api"
	"github.com/sitesage/sitesage/internal/app"
	"github.com/sitesage/sitesage/internal/config"
)

var flagListenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagListenAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	server := api.NewServer(api.Deps{
		Pool:     a.Pool,
		Tenants:  a.Tenants,
		Sessions: a.Sessions,
		Answerer: app.NewAnswerer(a.Composer, cfg),
		Jobs:     a.Jobs,
		Chunks:   a.Knowledge,
		Logger:   logger,

		HistoryWindow: cfg.HistoryWindow,
		CrawlDefaults: api.CrawlDefaults{
			MaxPages: cfg.CrawlMaxPages,
			MaxDepth: cfg.CrawlMaxDepth,
			Delay:    time.Duration(cfg.CrawlDelayMS) * time.Millisecond,
		},
	})

	addr := flagListenAddr
	if addr == "" {
		addr = cfg.ListenAddr
	}
	return server.Run(ctx, addr)
}
