package commands

import (
	"github.com/dyluth/osechi/internal/printer"
	"github.com/dyluth/osechi/pkg/box"
	"github.com/spf13/cobra"
)

var releaseToken string

var releaseCmd = &cobra.Command{
	Use:   "release TIER SLOT",
	Short: "Empty a claimed slot",
	Long: `Release a slot so someone else can claim it. TIER and SLOT are zero-based.

Slots claimed by a signed-in user can only be released with that user's
token. Guest claims can be released by anyone. Releasing an empty slot
succeeds and changes nothing.

Examples:
  osechi release 0 2
  osechi release 1 0 --token "$JWT"`,
	Args: cobra.ExactArgs(2),
	RunE: runRelease,
}

func init() {
	releaseCmd.Flags().StringVar(&releaseToken, "token", "", "Identity token (defaults to OSECHI_TOKEN)")
	rootCmd.AddCommand(releaseCmd)
}

func runRelease(cmd *cobra.Command, args []string) error {
	return withSlot(cmd, args, releaseToken, func(s *session, tier, slot int) error {
		existing := s.sync.Snapshot().SlotAt(tier, slot)

		result := s.engine.Release(tier, slot)
		if !result.Success {
			return rejected("release rejected", result)
		}
		if err := s.flush(); err != nil {
			return err
		}

		if existing == nil {
			printer.Info("%s is already empty\n", box.SlotPath(tier, slot))
			return nil
		}
		printer.Success("%s released (%s)\n", box.SlotPath(tier, slot), existing.Title)
		return nil
	})
}
