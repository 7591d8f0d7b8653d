package box

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type ownerKind uint8

const (
	ownerUnset ownerKind = iota
	ownerAnonymous
	ownerOwned
)

// Owner records who created a slot. It has three states:
//
//   - Unset: the slot was written without any owner field (older or foreign writers)
//   - Anonymous: the slot was created by a guest
//   - Owned: the slot was created by an authenticated principal
//
// Unset and Anonymous slots are communal and may be released by anyone.
//
// On the wire an Unset owner is omitted, an Anonymous owner is JSON null and
// an Owned owner is the principal ID string. An empty string decodes as
// Anonymous.
type Owner struct {
	kind ownerKind
	id   string
}

// UnsetOwner returns the zero Owner.
func UnsetOwner() Owner { return Owner{} }

// AnonymousOwner returns the owner used for guest contributions.
func AnonymousOwner() Owner { return Owner{kind: ownerAnonymous} }

// OwnedBy returns an owner bound to a principal ID. An empty ID yields an
// anonymous owner.
func OwnedBy(id string) Owner {
	if id == "" {
		return AnonymousOwner()
	}
	return Owner{kind: ownerOwned, id: id}
}

// ID returns the owning principal ID, or "" for communal slots.
func (o Owner) ID() string { return o.id }

// IsCommunal reports whether anyone may release the slot.
func (o Owner) IsCommunal() bool { return o.kind != ownerOwned }

// IsZero reports whether the owner is Unset. Used by the omitzero tag.
func (o Owner) IsZero() bool { return o.kind == ownerUnset }

// String implements fmt.Stringer.
func (o Owner) String() string {
	switch o.kind {
	case ownerAnonymous:
		return "anonymous"
	case ownerOwned:
		return o.id
	default:
		return "unset"
	}
}

// MarshalJSON implements json.Marshaler.
func (o Owner) MarshalJSON() ([]byte, error) {
	if o.kind != ownerOwned {
		return []byte("null"), nil
	}
	return json.Marshal(o.id)
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Owner) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = AnonymousOwner()
		return nil
	}

	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("owner_id must be a string or null: %w", err)
	}

	*o = OwnedBy(id)
	return nil
}
