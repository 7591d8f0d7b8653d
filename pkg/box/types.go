package box

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Attribute is the closed set of categorical colour tags a dish can carry.
// The diversity rule is expressed in terms of one of these values.
type Attribute string

const (
	AttributeRed    Attribute = "Red"
	AttributeGreen  Attribute = "Green"
	AttributeYellow Attribute = "Yellow"
	AttributeWhite  Attribute = "White"
	AttributeBrown  Attribute = "Brown"
)

// Attributes returns every valid attribute in display order.
func Attributes() []Attribute {
	return []Attribute{AttributeRed, AttributeGreen, AttributeYellow, AttributeWhite, AttributeBrown}
}

// Validate checks if the Attribute is a valid enum value.
func (a Attribute) Validate() error {
	switch a {
	case AttributeRed, AttributeGreen, AttributeYellow, AttributeWhite, AttributeBrown:
		return nil
	default:
		return fmt.Errorf("unknown attribute: %q", a)
	}
}

// Slot is one claimed dish. A nil *Slot in a tier means the slot is empty.
// Slots are never edited in place: changing a dish means release then claim.
type Slot struct {
	ID             string    `json:"id"`                         // UUID generated at claim time, for list-key stability only
	OwnerLabel     string    `json:"owner_label"`                // Free-text name typed by the claimant
	Title          string    `json:"title"`                      // Dish name, unique across the whole box
	Attribute      Attribute `json:"attribute"`                  // Colour tag used by the diversity rule
	Category       string    `json:"category,omitempty"`         // Taste category
	Origin         string    `json:"origin,omitempty"`           // Country or region
	Note           string    `json:"note,omitempty"`             // Symbolic meaning of the dish
	Owner          Owner     `json:"owner_id,omitzero"`          // Authenticated principal that created the slot
	OwnerAvatarRef string    `json:"owner_avatar_ref,omitempty"` // Presentational only
}

// Validate checks the structural shape of a slot before it is written.
// It does not apply business rules; those live in the arbitration engine.
func (s *Slot) Validate() error {
	if _, err := uuid.Parse(s.ID); err != nil {
		return fmt.Errorf("invalid slot ID: not a valid UUID")
	}

	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("slot title cannot be empty")
	}

	if strings.TrimSpace(s.OwnerLabel) == "" {
		return fmt.Errorf("slot owner label cannot be empty")
	}

	if err := s.Attribute.Validate(); err != nil {
		return fmt.Errorf("invalid attribute: %w", err)
	}

	return nil
}

// Tier is one fixed-capacity group of slots.
type Tier struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Slots []*Slot `json:"slots"`
}

// Box is a normalized snapshot of the whole shared structure.
// Every tier has exactly the configured number of slots.
// A Box handed out by the synchronizer must be treated as read-only.
type Box struct {
	Tiers []Tier `json:"tiers"`
}

// Contains reports whether (tier, slot) addresses a position in the box.
func (b *Box) Contains(tier, slot int) bool {
	if tier < 0 || tier >= len(b.Tiers) {
		return false
	}
	return slot >= 0 && slot < len(b.Tiers[tier].Slots)
}

// SlotAt returns the slot at the given position, or nil when it is empty.
// Panics if the position is out of range.
func (b *Box) SlotAt(tier, slot int) *Slot {
	if !b.Contains(tier, slot) {
		panic(fmt.Sprintf("box: position (%d,%d) out of range", tier, slot))
	}
	return b.Tiers[tier].Slots[slot]
}

// Each calls fn for every filled slot in tier-major order.
func (b *Box) Each(fn func(tier, slot int, s *Slot)) {
	for i, t := range b.Tiers {
		for j, s := range t.Slots {
			if s != nil {
				fn(i, j, s)
			}
		}
	}
}

// Filled returns the number of non-empty slots.
func (b *Box) Filled() int {
	n := 0
	b.Each(func(int, int, *Slot) { n++ })
	return n
}

// Capacity returns the total number of slots.
func (b *Box) Capacity() int {
	n := 0
	for _, t := range b.Tiers {
		n += len(t.Slots)
	}
	return n
}

// Titles returns the titles of every filled slot in tier-major order.
func (b *Box) Titles() []string {
	titles := make([]string, 0, b.Filled())
	b.Each(func(_, _ int, s *Slot) { titles = append(titles, s.Title) })
	return titles
}

// Clone returns a deep copy of the box.
func (b *Box) Clone() *Box {
	out := &Box{Tiers: make([]Tier, len(b.Tiers))}
	for i, t := range b.Tiers {
		slots := make([]*Slot, len(t.Slots))
		for j, s := range t.Slots {
			if s != nil {
				cp := *s
				slots[j] = &cp
			}
		}
		out.Tiers[i] = Tier{ID: t.ID, Name: t.Name, Slots: slots}
	}
	return out
}

// TierSpec is the seed description of one tier.
type TierSpec struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Layout is the fixed shape agreed on at initialization.
type Layout struct {
	Tiers        []TierSpec `json:"tiers" yaml:"tiers"`
	SlotsPerTier int        `json:"slots_per_tier" yaml:"slots_per_tier"`
}

// DefaultLayout returns the reference three-tier, nine-slot box.
func DefaultLayout() Layout {
	return Layout{
		Tiers: []TierSpec{
			{ID: "tier-1", Name: "Tier 1: Celebration & Sweets"},
			{ID: "tier-2", Name: "Tier 2: Grills & Sea"},
			{ID: "tier-3", Name: "Tier 3: Mountain & Roots"},
		},
		SlotsPerTier: 9,
	}
}

// Validate checks that the layout describes a usable box.
func (l Layout) Validate() error {
	if len(l.Tiers) == 0 {
		return fmt.Errorf("layout must define at least one tier")
	}

	if l.SlotsPerTier < 1 {
		return fmt.Errorf("slots_per_tier must be >= 1, got %d", l.SlotsPerTier)
	}

	seen := make(map[string]int)
	for i, t := range l.Tiers {
		if t.ID == "" {
			return fmt.Errorf("tier %d: id is required", i)
		}
		if prev, exists := seen[t.ID]; exists {
			return fmt.Errorf("duplicate tier id '%s' (tiers %d and %d)", t.ID, prev, i)
		}
		seen[t.ID] = i
	}

	return nil
}

// Empty returns a box with the layout's shape and every slot empty.
func (l Layout) Empty() *Box {
	b := &Box{Tiers: make([]Tier, len(l.Tiers))}
	for i, t := range l.Tiers {
		b.Tiers[i] = Tier{ID: t.ID, Name: t.Name, Slots: make([]*Slot, l.SlotsPerTier)}
	}
	return b
}
