package box

import (
	"strings"
	"testing"
)

// TestTiersKey tests root key generation
func TestTiersKey(t *testing.T) {
	key := TiersKey("family")

	if key != "osechi:family:tiers" {
		t.Errorf("TiersKey() = %q, expected %q", key, "osechi:family:tiers")
	}
}

// TestTierKey tests tier key generation
func TestTierKey(t *testing.T) {
	key := TierKey("family", 2)

	expected := "osechi:family:tiers:2"
	if key != expected {
		t.Errorf("TierKey() = %q, expected %q", key, expected)
	}

	if !strings.HasPrefix(key, TiersKey("family")) {
		t.Error("tier key should be nested under the root key")
	}
}

func TestSlotField(t *testing.T) {
	if got := SlotField(7); got != "slots/7" {
		t.Errorf("SlotField() = %q, expected %q", got, "slots/7")
	}

	tests := []struct {
		field string
		idx   int
		ok    bool
	}{
		{"slots/0", 0, true},
		{"slots/8", 8, true},
		{"slots/12", 12, true},
		{"slots/-1", 0, false},
		{"slots/abc", 0, false},
		{"slots/", 0, false},
		{"name", 0, false},
		{"slot/1", 0, false},
	}

	for _, tt := range tests {
		idx, ok := ParseSlotField(tt.field)
		if ok != tt.ok || idx != tt.idx {
			t.Errorf("ParseSlotField(%q) = (%d, %v), expected (%d, %v)", tt.field, idx, ok, tt.idx, tt.ok)
		}
	}
}

func TestSlotPath(t *testing.T) {
	if got := SlotPath(1, 4); got != "osechi/tiers/1/slots/4" {
		t.Errorf("SlotPath() = %q", got)
	}
}

func TestBoxEventsChannel(t *testing.T) {
	channel := BoxEventsChannel("family")

	if channel != "osechi:family:box_events" {
		t.Errorf("BoxEventsChannel() = %q", channel)
	}
	if !strings.HasSuffix(channel, "_events") {
		t.Error("channel should end with '_events'")
	}
}
