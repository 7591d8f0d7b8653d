// Package box provides the Go data model and Redis schema for the shared
// osechi potluck box.
//
// # Overview
//
// The box is the single piece of shared state that every participant reads
// and writes. It is an ordered list of tiers, each holding a fixed number of
// slots. A slot is either empty or holds one claimed dish. The shape of the
// box (tier count, slots per tier) is fixed when the box is first seeded and
// never changes afterwards.
//
// The store performs no validation of its own. Business rules (unique
// titles, the diversity cap, ownership on release) are enforced by callers
// before they write; see internal/arbiter.
//
// # Redis Schema
//
// All keys are namespaced by box name so several boxes can share one Redis:
//
//	osechi:{box}:tiers          hash { count }          root key, presence == seeded
//	osechi:{box}:tiers:{i}      hash { id, name, slots/{j} }
//	osechi:{box}:box_events     Pub/Sub channel for ChangeEvent JSON
//
// Empty slots are absent hash fields, so a tier is naturally a sparse map.
// Readers must normalize every tier back to the configured length; see
// Normalize.
//
// # Writes
//
// Writes are scoped to exactly one slot field (HSET or HDEL) and published in
// the same MULTI/EXEC. There are no version counters: two writers racing on
// the same slot resolve as last-writer-wins, while writers on different slots
// never touch each other's data.
//
// # Usage Example
//
//	client, err := box.NewClient(&redis.Options{Addr: "localhost:6379"}, "family-2026")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	layout := box.DefaultLayout()
//	if _, err := client.Seed(ctx, layout); err != nil {
//		log.Fatal(err)
//	}
//
//	raw, err := client.ReadBox(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	snapshot := box.Normalize(raw, layout)
package box
