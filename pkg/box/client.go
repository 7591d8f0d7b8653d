package box

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventOp names the kind of change a ChangeEvent describes.
type EventOp string

const (
	// EventOpSeed is published once, by the client that seeded the box
	EventOpSeed EventOp = "seed"

	// EventOpClaim is published after a slot field was written
	EventOpClaim EventOp = "claim"

	// EventOpRelease is published after a slot field was deleted
	EventOpRelease EventOp = "release"
)

// ChangeEvent is the Pub/Sub payload announcing that part of the box changed.
// Subscribers treat it as a hint and re-read the box; it carries no slot data.
type ChangeEvent struct {
	Op     EventOp `json:"op"`
	Path   string  `json:"path"`
	Tier   int     `json:"tier"`
	Slot   int     `json:"slot"`
	SlotID string  `json:"slot_id,omitempty"`
	AtMs   int64   `json:"at_ms"`
}

// Client provides box-scoped Redis operations.
// All keys and channels are automatically namespaced with the box name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb     *redis.Client
	boxName string
}

// NewClient creates a new store client for the named box.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - boxName: box identifier used to namespace keys (must not be empty)
//
// Returns an error if boxName is empty.
func NewClient(redisOpts *redis.Options, boxName string) (*Client, error) {
	if boxName == "" {
		return nil, fmt.Errorf("box name cannot be empty")
	}

	return &Client{
		rdb:     redis.NewClient(redisOpts),
		boxName: boxName,
	}, nil
}

// BoxName returns the namespace this client writes to.
func (c *Client) BoxName() string {
	return c.boxName
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// ReadBox reads the whole box as the store holds it.
// Returns a RawBox with Present=false if the box has never been seeded.
func (c *Client) ReadBox(ctx context.Context) (*RawBox, error) {
	rootHash, err := c.rdb.HGetAll(ctx, TiersKey(c.boxName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read box root from Redis: %w", err)
	}

	// HGetAll returns an empty map for a missing key
	if len(rootHash) == 0 {
		return &RawBox{Present: false}, nil
	}

	count, err := countFromHash(rootHash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize box root: %w", err)
	}

	// The root hash is writable by any client; never trust its count.
	n := min(count, MaxTiers)

	cmds := make([]*redis.MapStringStringCmd, n)
	_, err = c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i := 0; i < n; i++ {
			cmds[i] = pipe.HGetAll(ctx, TierKey(c.boxName, i))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read tiers from Redis: %w", err)
	}

	raw := &RawBox{Present: true, Count: count, Tiers: make([]RawTier, 0, n)}
	for i, cmd := range cmds {
		hash, err := cmd.Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read tier %d from Redis: %w", i, err)
		}
		raw.Tiers = append(raw.Tiers, HashToRawTier(hash))
	}

	return raw, nil
}

// Exists reports whether the box has been seeded.
func (c *Client) Exists(ctx context.Context) (bool, error) {
	n, err := c.rdb.Exists(ctx, TiersKey(c.boxName)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check box existence: %w", err)
	}
	return n > 0, nil
}

// Seed writes the default shape of the box if, and only if, the box has
// never been seeded. The root key is claimed with HSETNX so that of several
// clients seeding at once exactly one writes the tiers.
// Returns true if this call performed the seed.
func (c *Client) Seed(ctx context.Context, layout Layout) (bool, error) {
	if err := layout.Validate(); err != nil {
		return false, fmt.Errorf("invalid layout: %w", err)
	}

	won, err := c.rdb.HSetNX(ctx, TiersKey(c.boxName), "count", len(layout.Tiers)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim box root: %w", err)
	}
	if !won {
		return false, nil
	}

	event, err := json.Marshal(ChangeEvent{Op: EventOpSeed, Path: RootPath, Tier: -1, Slot: -1, AtMs: nowMs()})
	if err != nil {
		return false, fmt.Errorf("failed to marshal seed event: %w", err)
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, t := range layout.Tiers {
			pipe.HSet(ctx, TierKey(c.boxName, i), TierSpecToHash(t))
		}
		pipe.Publish(ctx, BoxEventsChannel(c.boxName), event)
		return nil
	})
	if err != nil {
		return true, fmt.Errorf("failed to write seed tiers: %w", err)
	}

	return true, nil
}

// WriteSlot stores a slot at exactly one (tier, slot) path and publishes a
// claim event in the same transaction. Whatever was at that path is replaced.
func (c *Client) WriteSlot(ctx context.Context, tier, slot int, s *Slot) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid slot: %w", err)
	}

	data, err := SlotToJSON(s)
	if err != nil {
		return fmt.Errorf("failed to serialize slot: %w", err)
	}

	event := ChangeEvent{Op: EventOpClaim, Path: SlotPath(tier, slot), Tier: tier, Slot: slot, SlotID: s.ID, AtMs: nowMs()}
	return c.applySlot(ctx, event, func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, TierKey(c.boxName, tier), SlotField(slot), data)
	})
}

// ClearSlot empties exactly one (tier, slot) path and publishes a release event.
// Clearing an already empty slot is not an error.
func (c *Client) ClearSlot(ctx context.Context, tier, slot int) error {
	event := ChangeEvent{Op: EventOpRelease, Path: SlotPath(tier, slot), Tier: tier, Slot: slot, AtMs: nowMs()}
	return c.applySlot(ctx, event, func(pipe redis.Pipeliner) {
		pipe.HDel(ctx, TierKey(c.boxName, tier), SlotField(slot))
	})
}

func (c *Client) applySlot(ctx context.Context, event ChangeEvent, write func(redis.Pipeliner)) error {
	if event.Tier < 0 || event.Slot < 0 {
		return fmt.Errorf("invalid slot path %s", event.Path)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Op, err)
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		write(pipe)
		pipe.Publish(ctx, BoxEventsChannel(c.boxName), payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %s to Redis: %w", event.Path, err)
	}

	return nil
}

// Subscription represents an active Pub/Sub subscription to box change events.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan ChangeEvent
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of change events.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan ChangeEvent {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors are non-fatal: the offending message is skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Subscribe subscribes to change events for this box.
// It returns only once Redis has confirmed the subscription, so any write
// issued after Subscribe returns is guaranteed to be delivered.
//
// Events are delivered on a buffered channel (size 16). Redis Pub/Sub is
// at-most-once: a slow or disconnected subscriber may miss events and
// should periodically re-read the box.
func (c *Client) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, BoxEventsChannel(c.boxName))

	// Wait for the subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to box events: %w", err)
	}

	eventsChan := make(chan ChangeEvent, 16)
	errorsChan := make(chan error, 16)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal box event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
