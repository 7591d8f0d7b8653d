package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/dyluth/osechi/internal/arbiter"
	"github.com/dyluth/osechi/internal/printer"
	"github.com/dyluth/osechi/pkg/box"
	"github.com/spf13/cobra"
)

var (
	claimBy       string
	claimTitle    string
	claimColour   string
	claimCategory string
	claimOrigin   string
	claimNote     string
	claimToken    string
)

var claimCmd = &cobra.Command{
	Use:   "claim TIER SLOT",
	Short: "Claim an empty slot for a dish",
	Long: `Claim an empty slot in the box. TIER and SLOT are zero-based.

The claim is checked against the current box before it is written:
  • the slot must be empty
  • no other slot may already hold the same dish
  • the capped colour (Brown by default) may not crowd out the rest

Pass --token (or OSECHI_TOKEN) to claim as a signed-in user; only that
user can then release the slot. Guest claims can be released by anyone.

Examples:
  # Bring Kuri Kinton to the top tier
  osechi claim 0 2 --by Yuki --dish "Kuri Kinton" --colour Yellow

  # Claim as a signed-in user
  osechi claim 1 0 --by Ken --dish Tai --colour Red --token "$JWT"`,
	Args: cobra.ExactArgs(2),
	RunE: runClaim,
}

func init() {
	claimCmd.Flags().StringVar(&claimBy, "by", "", "Your name as shown on the slot (required)")
	claimCmd.Flags().StringVar(&claimTitle, "dish", "", "Dish name (required)")
	claimCmd.Flags().StringVar(&claimColour, "colour", "", "Dish colour: Red, Green, Yellow, White or Brown (required)")
	claimCmd.Flags().StringVar(&claimCategory, "category", "", "Taste category")
	claimCmd.Flags().StringVar(&claimOrigin, "origin", "", "Country or region")
	claimCmd.Flags().StringVar(&claimNote, "note", "", "Symbolic meaning of the dish")
	claimCmd.Flags().StringVar(&claimToken, "token", "", "Identity token (defaults to OSECHI_TOKEN)")
	rootCmd.AddCommand(claimCmd)
}

func runClaim(cmd *cobra.Command, args []string) error {
	payload := arbiter.Payload{
		OwnerLabel: claimBy,
		Title:      claimTitle,
		Attribute:  box.Attribute(claimColour),
		Category:   claimCategory,
		Origin:     claimOrigin,
		Note:       claimNote,
	}

	return withSlot(cmd, args, claimToken, func(s *session, tier, slot int) error {
		result := s.engine.Claim(tier, slot, payload)
		if !result.Success {
			return rejected("claim rejected", result)
		}
		if err := s.flush(); err != nil {
			return err
		}
		printer.Success("%s claimed %s for %s\n", box.SlotPath(tier, slot), payload.Title, payload.OwnerLabel)
		return nil
	})
}

// withSlot loads config, opens a session, signs in and range-checks the
// TIER SLOT arguments before calling fn.
func withSlot(cmd *cobra.Command, args []string, token string, fn func(s *session, tier, slot int) error) error {
	tier, errT := strconv.Atoi(args[0])
	slot, errS := strconv.Atoi(args[1])
	if errT != nil || errS != nil {
		return printer.Error("invalid slot position", fmt.Sprintf("TIER and SLOT must be numbers, got %q %q", args[0], args[1]), nil)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	s, err := openSession(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	if token == "" {
		token = os.Getenv("OSECHI_TOKEN")
	}
	if err := s.signIn(token); err != nil {
		return err
	}

	if !s.sync.Snapshot().Contains(tier, slot) {
		return printer.Error(
			"no such slot",
			fmt.Sprintf("Position (%d, %d) is outside the box.", tier, slot),
			[]string{fmt.Sprintf("The box has %d tiers of %d slots, numbered from 0", len(cfg.Box.Tiers), cfg.Box.SlotsPerTier)},
		)
	}

	return fn(s, tier, slot)
}

// rejected prints an arbitration rejection with its reason.
func rejected(title string, r arbiter.Result) error {
	return printer.ErrorWithContext(title, r.Message, map[string]string{"Reason": string(r.Reason)}, nil)
}
