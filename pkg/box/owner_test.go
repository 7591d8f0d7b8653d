package box

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnerStates(t *testing.T) {
	assert.True(t, UnsetOwner().IsZero())
	assert.True(t, UnsetOwner().IsCommunal())
	assert.True(t, AnonymousOwner().IsCommunal())
	assert.False(t, AnonymousOwner().IsZero())
	assert.False(t, OwnedBy("u1").IsCommunal())
	assert.Equal(t, "u1", OwnedBy("u1").ID())
	assert.Equal(t, AnonymousOwner(), OwnedBy(""), "empty id collapses to anonymous")
}

// TestOwnerWireForm checks how each owner state appears inside slot JSON.
func TestOwnerWireForm(t *testing.T) {
	t.Run("unset owner is omitted", func(t *testing.T) {
		data, err := json.Marshal(&Slot{ID: "x", Title: "t", OwnerLabel: "o", Attribute: AttributeRed})
		require.NoError(t, err)
		assert.NotContains(t, string(data), "owner_id")
	})

	t.Run("anonymous owner is null", func(t *testing.T) {
		data, err := json.Marshal(&Slot{ID: "x", Owner: AnonymousOwner()})
		require.NoError(t, err)
		assert.Contains(t, string(data), `"owner_id":null`)
	})

	t.Run("owned is the id string", func(t *testing.T) {
		data, err := json.Marshal(&Slot{ID: "x", Owner: OwnedBy("u1")})
		require.NoError(t, err)
		assert.Contains(t, string(data), `"owner_id":"u1"`)
	})
}

func TestOwnerDecode(t *testing.T) {
	tests := []struct {
		name string
		json string
		want Owner
	}{
		{"absent", `{"id":"x"}`, UnsetOwner()},
		{"null", `{"id":"x","owner_id":null}`, AnonymousOwner()},
		{"empty string", `{"id":"x","owner_id":""}`, AnonymousOwner()},
		{"id", `{"id":"x","owner_id":"u1"}`, OwnedBy("u1")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Slot
			require.NoError(t, json.Unmarshal([]byte(tt.json), &s))
			assert.Equal(t, tt.want, s.Owner)
		})
	}

	t.Run("rejects non-string owner", func(t *testing.T) {
		var s Slot
		err := json.Unmarshal([]byte(`{"id":"x","owner_id":42}`), &s)
		assert.Error(t, err)
	})
}
