package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aloqahq/aloqa/internal/config"
	"github.com/aloqahq/aloqa/internal/dashboard"
	"github.com/aloqahq/aloqa/internal/db"
	"github.com/aloqahq/aloqa/internal/directory"
	"github.com/aloqahq/aloqa/internal/engine"
	"github.com/aloqahq/aloqa/internal/engine/telegram"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the mediation daemon",
		Long:  "Connects to Telegram, routes inbound events through the engine, and serves the dashboard when enabled.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "aloqa.yaml", "path to Aloqa config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Telegram.BotToken == "" {
		return fmt.Errorf("serve: no bot token configured in %s (add telegram.bot_token)", configPath)
	}

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	dir := directory.Load(cfg.DirectoryPath)

	adapter, err := telegram.New(telegram.AdapterOpts{BotToken: cfg.Telegram.BotToken})
	if err != nil {
		return err
	}

	daemon, err := engine.NewDaemon(engine.DaemonOpts{
		DB:        gormDB,
		Config:    cfg,
		Directory: dir,
		Adapter:   adapter,
		Out:       cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle OS signals for graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if cfg.Dashboard.Enabled {
		go func() {
			err := dashboard.Start(ctx, dashboard.StartOpts{
				DB:   gormDB,
				Port: cfg.Dashboard.Port,
				Out:  cmd.OutOrStdout(),
			})
			if err != nil {
				log.Printf("serve: dashboard: %v", err)
			}
		}()
	}

	return daemon.Run(ctx)
}
