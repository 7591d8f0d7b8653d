package box

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slotJSON(t *testing.T, s *Slot) string {
	t.Helper()
	data, err := SlotToJSON(s)
	require.NoError(t, err)
	return data
}

func TestSlotJSON(t *testing.T) {
	original := &Slot{
		ID:             uuid.New().String(),
		OwnerLabel:     "Bob",
		Title:          "Datemaki",
		Attribute:      AttributeYellow,
		Category:       "Sweet",
		Origin:         "Japan",
		Note:           "Scroll shape for scholarship",
		Owner:          OwnedBy("u1"),
		OwnerAvatarRef: "https://example.com/a.png",
	}

	decoded, err := SlotFromJSON(slotJSON(t, original))
	require.NoError(t, err)
	assert.Equal(t, original, decoded)

	empty, err := SlotFromJSON("null")
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = SlotFromJSON("{broken")
	assert.Error(t, err)
}

func TestHashToRawTier(t *testing.T) {
	s := validSlot()
	hash := map[string]string{
		"id":       "tier-1",
		"name":     "Starters",
		"slots/0":  slotJSON(t, s),
		"slots/3":  "null",
		"slots/4":  "{not json",
		"slots/xx": slotJSON(t, validSlot()),
		"stray":    "value",
	}

	raw := HashToRawTier(hash)
	assert.Equal(t, "tier-1", raw.ID)
	assert.Equal(t, "Starters", raw.Name)
	require.Len(t, raw.Slots, 1)
	assert.Equal(t, s.Title, raw.Slots[0].Title)
	assert.Equal(t, 3, raw.Dropped, "malformed slot, bad index and stray field are dropped")
}

// TestNormalize_MissingIndices covers a tier whose sparse slot map lacks
// indices 2 and 5: the normalized tier has all nine entries with those two empty.
func TestNormalize_MissingIndices(t *testing.T) {
	layout := DefaultLayout()

	slots := make(map[int]*Slot)
	for i := 0; i < 9; i++ {
		if i == 2 || i == 5 {
			continue
		}
		s := validSlot()
		s.Title = "dish-" + string(rune('a'+i))
		slots[i] = s
	}

	raw := &RawBox{
		Present: true,
		Count:   3,
		Tiers: []RawTier{
			{ID: "tier-1", Name: "One", Slots: slots},
			{ID: "tier-2", Name: "Two", Slots: map[int]*Slot{}},
			{ID: "tier-3", Name: "Three"},
		},
	}

	b := Normalize(raw, layout)
	require.Len(t, b.Tiers, 3)
	for _, tier := range b.Tiers {
		assert.Len(t, tier.Slots, 9)
	}

	first := b.Tiers[0]
	assert.Nil(t, first.Slots[2])
	assert.Nil(t, first.Slots[5])
	for i := 0; i < 9; i++ {
		if i == 2 || i == 5 {
			continue
		}
		require.NotNil(t, first.Slots[i], "index %d should be preserved", i)
		assert.Equal(t, slots[i].Title, first.Slots[i].Title)
	}
	assert.Equal(t, 7, b.Filled())
	assert.Equal(t, 0, Repairs(raw, layout))
}

func TestNormalize_ShapeRepairs(t *testing.T) {
	layout := Layout{Tiers: []TierSpec{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}}, SlotsPerTier: 3}

	t.Run("nil raw yields empty layout", func(t *testing.T) {
		b := Normalize(nil, layout)
		assert.Equal(t, layout.Empty(), b)
	})

	t.Run("missing tier falls back to layout", func(t *testing.T) {
		raw := &RawBox{Present: true, Count: 1, Tiers: []RawTier{{ID: "a", Name: "Renamed"}}}
		b := Normalize(raw, layout)
		require.Len(t, b.Tiers, 2)
		assert.Equal(t, "Renamed", b.Tiers[0].Name)
		assert.Equal(t, "b", b.Tiers[1].ID)
		assert.Len(t, b.Tiers[1].Slots, 3)
		assert.Equal(t, 1, Repairs(raw, layout))
	})

	t.Run("slots beyond length are discarded", func(t *testing.T) {
		raw := &RawBox{Present: true, Count: 2, Tiers: []RawTier{
			{ID: "a", Slots: map[int]*Slot{0: validSlot(), 7: validSlot()}},
			{ID: "b", Slots: map[int]*Slot{}},
		}}
		b := Normalize(raw, layout)
		assert.Len(t, b.Tiers[0].Slots, 3)
		assert.Equal(t, 1, b.Filled())
		assert.Equal(t, 1, Repairs(raw, layout))
	})

	t.Run("extra tiers are ignored", func(t *testing.T) {
		raw := &RawBox{Present: true, Count: 3, Tiers: []RawTier{
			{ID: "a"}, {ID: "b"}, {ID: "c", Slots: map[int]*Slot{0: validSlot()}},
		}}
		b := Normalize(raw, layout)
		assert.Len(t, b.Tiers, 2)
		assert.Equal(t, 0, b.Filled())
	})

	t.Run("count beyond the tier cap is a repair", func(t *testing.T) {
		raw := &RawBox{Present: true, Count: MaxTiers + 5, Tiers: make([]RawTier, MaxTiers)}
		assert.Equal(t, 5, Repairs(raw, layout))
	})
}
