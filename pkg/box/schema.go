package box

import (
	"fmt"
	"strconv"
	"strings"
)

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by box name so that
// several boxes can coexist on a single Redis server.
//
// Key pattern: osechi:{box_name}:tiers[:{tier_index}]
// Channel pattern: osechi:{box_name}:box_events

// slotFieldPrefix prefixes the hash field holding one slot inside a tier hash.
const slotFieldPrefix = "slots/"

// TiersKey returns the root key of a box. Its presence means the box was seeded.
// Pattern: osechi:{box_name}:tiers
func TiersKey(boxName string) string {
	return fmt.Sprintf("osechi:%s:tiers", boxName)
}

// TierKey returns the Redis hash key holding one tier.
// Pattern: osechi:{box_name}:tiers:{tier_index}
func TierKey(boxName string, tier int) string {
	return fmt.Sprintf("osechi:%s:tiers:%d", boxName, tier)
}

// SlotField returns the hash field name for a slot inside its tier hash.
// Pattern: slots/{slot_index}
func SlotField(slot int) string {
	return slotFieldPrefix + strconv.Itoa(slot)
}

// ParseSlotField extracts the slot index from a tier hash field.
// Returns false for fields that are not slot fields or carry a bad index.
func ParseSlotField(field string) (int, bool) {
	rest, ok := strings.CutPrefix(field, slotFieldPrefix)
	if !ok {
		return 0, false
	}
	idx, err := strconv.Atoi(rest)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

// SlotPath returns the logical document path of a slot, used in change events.
// Pattern: osechi/tiers/{tier_index}/slots/{slot_index}
func SlotPath(tier, slot int) string {
	return fmt.Sprintf("osechi/tiers/%d/slots/%d", tier, slot)
}

// RootPath is the logical document path of the whole box.
const RootPath = "osechi/tiers"

// BoxEventsChannel returns the Pub/Sub channel carrying change events.
// Pattern: osechi:{box_name}:box_events
func BoxEventsChannel(boxName string) string {
	return fmt.Sprintf("osechi:%s:box_events", boxName)
}
