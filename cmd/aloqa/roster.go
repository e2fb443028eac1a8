package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aloqahq/aloqa/internal/config"
	"github.com/aloqahq/aloqa/internal/directory"
)

func newRosterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Inspect and edit the responder roster",
	}

	cmd.AddCommand(newRosterListCmd())
	cmd.AddCommand(newRosterAddUnitCmd())
	cmd.AddCommand(newRosterAddCmd())
	return cmd
}

func loadRoster(configPath string) (*directory.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return directory.Load(cfg.DirectoryPath), nil
}

func newRosterListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print all units and their responders",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := loadRoster(configPath)
			if err != nil {
				return err
			}
			units := dir.Units()
			if len(units) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "roster is empty")
				return nil
			}
			for _, unit := range units {
				fmt.Fprintf(cmd.OutOrStdout(), "%s:\n", unit)
				for _, r := range dir.Responders(unit) {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s (%d)\n", r.Name, r.ChatID)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "aloqa.yaml", "path to Aloqa config file")
	return cmd
}

func newRosterAddUnitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "add-unit <name>",
		Short: "Add an empty unit to the roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := loadRoster(configPath)
			if err != nil {
				return err
			}
			if err := dir.AddUnit(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added unit %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "aloqa.yaml", "path to Aloqa config file")
	return cmd
}

func newRosterAddCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "add <unit> <name> <chat-id>",
		Short: "Add a responder to a unit",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("chat-id must be numeric: %w", err)
			}
			dir, err := loadRoster(configPath)
			if err != nil {
				return err
			}
			if err := dir.AddResponder(args[0], args[1], chatID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s (%d) to %s\n", args[1], chatID, args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "aloqa.yaml", "path to Aloqa config file")
	return cmd
}
