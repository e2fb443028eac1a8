package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/aloqahq/aloqa/internal/config"
	"github.com/aloqahq/aloqa/internal/db"
	"github.com/aloqahq/aloqa/internal/registry"
)

func newStatsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print request counts by unit and status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "aloqa.yaml", "path to Aloqa config file")
	return cmd
}

func runStats(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	stats, err := registry.StatsByUnit(gormDB)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no requests recorded")
		return nil
	}

	units := make([]string, 0, len(stats))
	for unit := range stats {
		units = append(units, unit)
	}
	sort.Strings(units)

	for _, unit := range units {
		c := stats[unit]
		fmt.Fprintf(cmd.OutOrStdout(),
			"%s: total=%d pending=%d accepted=%d rejected=%d cancelled=%d finished=%d\n",
			unit, c.Total, c.Pending, c.Accepted, c.Rejected, c.Cancelled, c.Finished)
	}
	return nil
}
