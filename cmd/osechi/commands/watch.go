package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/osechi/internal/boxview"
	"github.com/dyluth/osechi/internal/printer"
	"github.com/spf13/cobra"
)

var watchOutputFormat string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the box in real time",
	Long: `Print the box every time it changes, until interrupted.

Output Formats:
  table - The full table after each change
  json  - One compact JSON document per line, per change

Examples:
  osechi watch
  osechi watch --output=json > box.jsonl`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "table", "Output format: table or json")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	format, err := boxview.ParseFormat(watchOutputFormat)
	if err != nil || format == boxview.OutputFormatJSONL {
		return printer.Error("invalid output format", fmt.Sprintf("Unknown format: %s", watchOutputFormat), []string{"Valid formats: table, json"})
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	if format == boxview.OutputFormatTable {
		printer.Step("Watching box '%s' (Ctrl+C to stop)\n", cfg.Box.Name)
	}

	enc := json.NewEncoder(out)
	updates := s.sync.Watch(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-s.sync.Errors():
			printer.Warning("%v\n", err)
		case b, ok := <-updates:
			if !ok {
				return nil
			}
			if format == boxview.OutputFormatJSON {
				if err := enc.Encode(b); err != nil {
					return fmt.Errorf("failed to write JSON output: %w", err)
				}
				continue
			}
			fmt.Fprintf(out, "\n--- %s ---\n", time.Now().Format(time.TimeOnly))
			boxview.FormatTable(out, b, cfg.Box.Name)
		}
	}
}
