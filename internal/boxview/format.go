// Package boxview renders box snapshots for the command line.
package boxview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dyluth/osechi/internal/printer"
	"github.com/dyluth/osechi/pkg/box"
)

// OutputFormat specifies how a snapshot is written.
type OutputFormat string

const (
	// OutputFormatTable groups slots by tier with truncated columns
	OutputFormatTable OutputFormat = "table"

	// OutputFormatJSON writes the whole box as one pretty-printed document
	OutputFormatJSON OutputFormat = "json"

	// OutputFormatJSONL writes one filled slot per line
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ErrNotSeeded is returned by Fetch when the box has never been initialized.
var ErrNotSeeded = errors.New("box has not been seeded")

// Reader reads the raw box from the store.
type Reader interface {
	ReadBox(ctx context.Context) (*box.RawBox, error)
}

// ParseFormat validates an --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputFormatTable, OutputFormatJSON, OutputFormatJSONL:
		return f, nil
	case "":
		return OutputFormatTable, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or jsonl)", s)
	}
}

// Fetch reads and normalizes the box once, without subscribing.
// It returns the number of malformed entries that were repaired.
func Fetch(ctx context.Context, r Reader, layout box.Layout) (*box.Box, int, error) {
	raw, err := r.ReadBox(ctx)
	if err != nil {
		return nil, 0, &box.TransportError{Op: "read", Path: box.RootPath, Err: err}
	}
	if !raw.Present {
		return nil, 0, ErrNotSeeded
	}
	return box.Normalize(raw, layout), box.Repairs(raw, layout), nil
}

// Write renders b in the requested format.
func Write(w io.Writer, b *box.Box, boxName string, format OutputFormat) error {
	switch format {
	case OutputFormatJSON:
		return FormatJSON(w, b)
	case OutputFormatJSONL:
		return FormatJSONL(w, b)
	default:
		FormatTable(w, b, boxName)
		return nil
	}
}

// FormatTable writes every tier with its slots, then a fill and colour
// summary. Returns the number of filled slots.
func FormatTable(w io.Writer, b *box.Box, boxName string) int {
	fmt.Fprintf(w, "Box '%s':\n", boxName)

	for i, tier := range b.Tiers {
		fmt.Fprintf(w, "\n[%d] %s\n", i, tier.Name)
		fmt.Fprintf(w, "  %-4s %-24s %-8s %-16s %-12s %s\n",
			"SLOT", "DISH", "COLOUR", "BY", "ORIGIN", "OWNER")

		for j, s := range tier.Slots {
			if s == nil {
				fmt.Fprintf(w, "  %-4d %s\n", j, "(empty)")
				continue
			}
			fmt.Fprintf(w, "  %-4d %-24s %s %-16s %-12s %s\n",
				j,
				truncate(s.Title, 24),
				pad(printer.Swatch(s.Attribute), string(s.Attribute), 8),
				truncate(s.OwnerLabel, 16),
				orDash(truncate(s.Origin, 12)),
				formatOwner(s.Owner),
			)
		}
	}

	filled := b.Filled()
	fmt.Fprintf(w, "\n%d/%d slots filled", filled, b.Capacity())
	if filled > 0 {
		fmt.Fprintf(w, " (%s)", formatTally(Tally(b)))
	}
	fmt.Fprintln(w)

	return filled
}

// slotLine is the JSONL record for one filled slot.
type slotLine struct {
	Tier      int    `json:"tier"`
	SlotIndex int    `json:"slot"`
	Path      string `json:"path"`
	*box.Slot
}

// FormatJSONL writes each filled slot as a single JSON object on its own
// line, with its position. Empty slots are skipped.
func FormatJSONL(w io.Writer, b *box.Box) error {
	var err error
	b.Each(func(tier, slot int, s *box.Slot) {
		if err != nil {
			return
		}
		var data []byte
		data, err = json.Marshal(slotLine{Tier: tier, SlotIndex: slot, Path: box.SlotPath(tier, slot), Slot: s})
		if err != nil {
			err = fmt.Errorf("failed to marshal slot to JSON: %w", err)
			return
		}
		if _, werr := fmt.Fprintf(w, "%s\n", data); werr != nil {
			err = fmt.Errorf("failed to write JSONL output: %w", werr)
		}
	})
	return err
}

// FormatJSON writes the whole box as pretty-printed JSON.
func FormatJSON(w io.Writer, b *box.Box) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal box to JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)

	return nil
}

// Tally counts filled slots per attribute.
func Tally(b *box.Box) map[box.Attribute]int {
	counts := make(map[box.Attribute]int)
	b.Each(func(_, _ int, s *box.Slot) { counts[s.Attribute]++ })
	return counts
}

func formatTally(counts map[box.Attribute]int) string {
	parts := make([]string, 0, len(counts))
	for _, a := range box.Attributes() {
		if n := counts[a]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", printer.Swatch(a), n))
		}
	}
	return strings.Join(parts, ", ")
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}

// pad right-pads an already coloured string using the width of its plain form.
func pad(colored, plain string, width int) string {
	if n := width - len([]rune(plain)); n > 0 {
		return colored + strings.Repeat(" ", n)
	}
	return colored
}

func formatOwner(o box.Owner) string {
	if o.IsCommunal() {
		return "-"
	}
	return truncate(o.ID(), 12)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
