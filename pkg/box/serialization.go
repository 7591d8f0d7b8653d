package box

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// A tier is a Redis hash. Its scalar fields (id, name) are stored as plain
// strings and each filled slot is one JSON-encoded field named slots/{j}.
// Empty slots have no field at all.

// RawTier is one tier exactly as read from the store, before normalization.
type RawTier struct {
	ID      string
	Name    string
	Slots   map[int]*Slot // sparse: only fields that were present and decodable
	Dropped int           // fields that could not be decoded
}

// MaxTiers caps how many tier hashes ReadBox fetches, whatever count the
// root hash declares.
const MaxTiers = 64

// RawBox is the store's view of the box before normalization.
type RawBox struct {
	Present bool // root key exists, the box has been seeded
	Count   int  // tier count recorded in the root hash, possibly above MaxTiers
	Tiers   []RawTier
}

// SlotToJSON encodes a slot for storage in a tier hash field.
func SlotToJSON(s *Slot) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal slot: %w", err)
	}
	return string(data), nil
}

// SlotFromJSON decodes a tier hash field into a slot.
// A JSON null decodes to (nil, nil), meaning the slot is empty.
func SlotFromJSON(data string) (*Slot, error) {
	var s *Slot
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal slot: %w", err)
	}
	return s, nil
}

// TierSpecToHash converts a tier seed description to a Redis hash.
func TierSpecToHash(t TierSpec) map[string]interface{} {
	return map[string]interface{}{
		"id":   t.ID,
		"name": t.Name,
	}
}

// HashToRawTier converts a tier hash to a RawTier.
// Fields that are neither scalars nor decodable slot fields are counted in
// Dropped and otherwise ignored.
func HashToRawTier(hash map[string]string) RawTier {
	raw := RawTier{
		ID:    hash["id"],
		Name:  hash["name"],
		Slots: make(map[int]*Slot),
	}

	for field, value := range hash {
		if field == "id" || field == "name" {
			continue
		}

		idx, ok := ParseSlotField(field)
		if !ok {
			raw.Dropped++
			continue
		}

		s, err := SlotFromJSON(value)
		if err != nil {
			raw.Dropped++
			continue
		}
		if s != nil {
			raw.Slots[idx] = s
		}
	}

	return raw
}

// Normalize rebuilds a raw snapshot into the fixed shape described by the
// layout. Every tier in the layout is present and has exactly
// layout.SlotsPerTier entries; indices missing from the raw payload are empty
// and indices beyond the layout are discarded. Tier id and name fall back to
// the layout when the store has none.
//
// Normalize never fails: a nil or absent raw box yields layout.Empty().
func Normalize(raw *RawBox, layout Layout) *Box {
	b := layout.Empty()
	if raw == nil {
		return b
	}

	for i := range b.Tiers {
		if i >= len(raw.Tiers) {
			break
		}
		rt := raw.Tiers[i]

		if rt.ID != "" {
			b.Tiers[i].ID = rt.ID
		}
		if rt.Name != "" {
			b.Tiers[i].Name = rt.Name
		}

		for idx, s := range rt.Slots {
			if idx >= 0 && idx < layout.SlotsPerTier && s != nil {
				b.Tiers[i].Slots[idx] = s
			}
		}
	}

	return b
}

// Repairs counts how much of a raw snapshot Normalize had to discard or
// fill in: undecodable fields, out-of-range slots, tiers missing from
// the store and tiers declared beyond MaxTiers. An unseeded box needs
// no repairs.
func Repairs(raw *RawBox, layout Layout) int {
	if raw == nil || !raw.Present {
		return 0
	}

	n := 0
	for i, rt := range raw.Tiers {
		n += rt.Dropped
		if i >= len(layout.Tiers) {
			n += len(rt.Slots)
			continue
		}
		for idx := range rt.Slots {
			if idx >= layout.SlotsPerTier {
				n++
			}
		}
	}
	if missing := len(layout.Tiers) - len(raw.Tiers); missing > 0 {
		n += missing
	}
	if excess := raw.Count - MaxTiers; excess > 0 {
		n += excess
	}
	return n
}

// countFromHash parses the tier count stored in the root hash.
func countFromHash(hash map[string]string) (int, error) {
	count, err := strconv.Atoi(hash["count"])
	if err != nil {
		return 0, fmt.Errorf("invalid count field: %w", err)
	}
	if count < 0 {
		return 0, fmt.Errorf("invalid count field: %d", count)
	}
	return count, nil
}
