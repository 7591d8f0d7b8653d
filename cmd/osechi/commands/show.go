package commands

import (
	"context"
	"errors"

	"github.com/dyluth/osechi/internal/boxview"
	"github.com/dyluth/osechi/internal/printer"
	"github.com/spf13/cobra"
)

var showOutputFormat string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current box",
	Long: `Read the box once and print it.

Output Formats:
  table - Tiers and slots with a fill and colour summary
  json  - The whole box as one JSON document
  jsonl - One filled slot per line, for piping to jq

Examples:
  osechi show
  osechi show --output=jsonl | jq 'select(.attribute=="Brown") | .title'`,
	RunE: runShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutputFormat, "output", "o", "table", "Output format: table, json or jsonl")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	format, err := boxview.ParseFormat(showOutputFormat)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: table, json, jsonl"})
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()
	client, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	b, repairs, err := boxview.Fetch(ctx, client, cfg.Layout())
	if errors.Is(err, boxview.ErrNotSeeded) {
		return printer.Error(
			"box not found",
			"Box '"+cfg.Box.Name+"' has not been seeded yet.",
			[]string{"Seed it:\n  osechi init --seed"},
		)
	}
	if err != nil {
		return printer.Error("failed to read box", err.Error(), nil)
	}

	if err := boxview.Write(cmd.OutOrStdout(), b, cfg.Box.Name, format); err != nil {
		return err
	}
	if repairs > 0 && format == boxview.OutputFormatTable {
		printer.Warning("%d malformed entries were ignored\n", repairs)
	}
	return nil
}
