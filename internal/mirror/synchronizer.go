// Package mirror keeps a local, normalized copy of the shared box in step
// with the store.
//
// The Synchronizer subscribes to the box's change channel and, on every
// event (including echoes of this process's own writes) and on a periodic
// resync tick, re-reads the whole box and swaps the local snapshot
// wholesale. Readers never observe a partially applied update. The
// Synchronizer never writes slot data; its only write is the one-time seed
// of an empty store.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dyluth/osechi/internal/metrics"
	"github.com/dyluth/osechi/pkg/box"
	"github.com/rs/zerolog"
)

// Store is the subset of the box client the synchronizer needs.
type Store interface {
	ReadBox(ctx context.Context) (*box.RawBox, error)
	Seed(ctx context.Context, layout box.Layout) (bool, error)
	Subscribe(ctx context.Context) (*box.Subscription, error)
}

// Options tunes a Synchronizer. The zero value is usable.
type Options struct {
	// ResyncInterval is the period of full re-reads. Zero disables them.
	ResyncInterval time.Duration
	Logger         zerolog.Logger
	Metrics        *metrics.Metrics
}

// Synchronizer mirrors the box held in the store.
type Synchronizer struct {
	store   Store
	layout  box.Layout
	resync  time.Duration
	logger  zerolog.Logger
	metrics *metrics.Metrics

	snapshot atomic.Pointer[box.Box]
	loading  atomic.Bool

	errMu   sync.Mutex
	lastErr error
	errors  chan error

	watchMu  sync.Mutex
	watchers map[chan *box.Box]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a synchronizer for the given layout. Until the first read
// completes, Snapshot returns layout.Empty() and Loading reports true.
func New(store Store, layout box.Layout, opts Options) *Synchronizer {
	s := &Synchronizer{
		store:    store,
		layout:   layout,
		resync:   opts.ResyncInterval,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		errors:   make(chan error, 16),
		watchers: make(map[chan *box.Box]struct{}),
	}
	s.snapshot.Store(layout.Empty())
	s.loading.Store(true)
	return s
}

// Start subscribes to change events, performs the initial read and then
// keeps the snapshot current in the background until ctx is cancelled or
// Close is called. A failed initial read is reported, not returned; the
// subscription or resync will retry it.
func (s *Synchronizer) Start(ctx context.Context) error {
	sub, err := s.store.Subscribe(ctx)
	if err != nil {
		s.ReportError(&box.TransportError{Op: "subscribe", Path: box.RootPath, Err: err})
		return fmt.Errorf("failed to start synchronizer: %w", err)
	}

	s.logger.Info().Str("event", "subscribed").Msg("Subscribed to box events")
	s.refresh(ctx, "initial")

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(loopCtx, sub)

	return nil
}

// Close stops the background loop and waits for it to exit.
// Safe to call more than once, and before Start.
func (s *Synchronizer) Close() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	<-s.done
	return nil
}

// Snapshot returns the latest normalized box. The returned value is shared
// and must not be modified.
func (s *Synchronizer) Snapshot() *box.Box {
	return s.snapshot.Load()
}

// Layout returns the shape every snapshot conforms to.
func (s *Synchronizer) Layout() box.Layout {
	return s.layout
}

// Loading reports whether the first snapshot (or seed) is still outstanding.
func (s *Synchronizer) Loading() bool {
	return s.loading.Load()
}

// Err returns the most recent transport failure, or nil if the last read succeeded.
func (s *Synchronizer) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

// Errors returns the channel on which transport failures are published.
// Failures are dropped when nobody drains the channel.
func (s *Synchronizer) Errors() <-chan error {
	return s.errors
}

// ReportError records a transport failure. The arbitration engine uses it
// for writes that fail after a claim or release was accepted.
func (s *Synchronizer) ReportError(err error) {
	if err == nil {
		return
	}

	s.errMu.Lock()
	s.lastErr = err
	s.errMu.Unlock()

	op := "unknown"
	var te *box.TransportError
	if errors.As(err, &te) {
		op = te.Op
	}
	s.metrics.TransportFailure(op)
	s.logger.Warn().Err(err).Str("event", "transport_failure").Str("op", op).Msg("Store operation failed")

	select {
	case s.errors <- err:
	default:
	}
}

// Watch returns a channel that receives the current snapshot immediately and
// then every replacement. Slow receivers only ever see the latest snapshot.
// The channel is closed when ctx is done.
func (s *Synchronizer) Watch(ctx context.Context) <-chan *box.Box {
	ch := make(chan *box.Box, 1)

	// Registering and loading under one lock means a concurrent broadcast
	// either runs first, and its snapshot is the one loaded here, or runs
	// after and replaces it.
	s.watchMu.Lock()
	s.watchers[ch] = struct{}{}
	ch <- s.Snapshot()
	s.watchMu.Unlock()

	go func() {
		<-ctx.Done()
		s.watchMu.Lock()
		delete(s.watchers, ch)
		close(ch)
		s.watchMu.Unlock()
	}()

	return ch
}

func (s *Synchronizer) run(ctx context.Context, sub *box.Subscription) {
	defer close(s.done)
	defer sub.Close()

	var tick <-chan time.Time
	if s.resync > 0 {
		ticker := time.NewTicker(s.resync)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug().Str("event", "stopped").Msg("Synchronizer shutting down")
			return

		case event, ok := <-sub.Events():
			if !ok {
				s.logger.Warn().Str("event", "subscription_closed").Msg("Box event subscription closed")
				return
			}
			s.logger.Debug().
				Str("event", "change_received").
				Str("op", string(event.Op)).
				Str("path", event.Path).
				Msg("Box changed")

			coalesced := drain(sub.Events())
			if coalesced > 0 {
				s.logger.Debug().Str("event", "changes_coalesced").Int("count", coalesced).Msg("Coalesced queued events")
			}
			s.refresh(ctx, "event")

		case err, ok := <-sub.Errors():
			if !ok {
				return
			}
			// An unreadable event still means something changed.
			s.logger.Warn().Err(err).Str("event", "malformed_event").Msg("Subscription error")
			s.refresh(ctx, "event")

		case <-tick:
			s.refresh(ctx, "resync")
		}
	}
}

// refresh re-reads the box and replaces the snapshot. It is only called from
// Start and the run loop, so snapshots are applied in read order.
func (s *Synchronizer) refresh(ctx context.Context, trigger string) {
	raw, err := s.store.ReadBox(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.ReportError(&box.TransportError{Op: "read", Path: box.RootPath, Err: err})
		}
		return
	}
	s.clearErr()

	if !raw.Present {
		s.seed(ctx)
		return
	}

	snapshot := box.Normalize(raw, s.layout)
	repairs := box.Repairs(raw, s.layout)
	if repairs > 0 {
		s.logger.Warn().Str("event", "snapshot_repaired").Int("repairs", repairs).Msg("Normalized malformed box data")
	}

	s.snapshot.Store(snapshot)
	s.loading.Store(false)
	s.metrics.Refresh(trigger, snapshot.Filled(), repairs)
	s.logger.Debug().
		Str("event", "snapshot_applied").
		Str("trigger", trigger).
		Int("filled", snapshot.Filled()).
		Int("capacity", snapshot.Capacity()).
		Msg("Snapshot replaced")

	s.broadcast(snapshot)
}

// seed writes the default box when the store has none. The seeded contents
// arrive through the subscription like any other change.
func (s *Synchronizer) seed(ctx context.Context) {
	seeded, err := s.store.Seed(ctx, s.layout)
	if err != nil {
		if ctx.Err() == nil {
			s.ReportError(&box.TransportError{Op: "seed", Path: box.RootPath, Err: err})
		}
		return
	}

	s.loading.Store(false)
	if seeded {
		s.logger.Info().
			Str("event", "box_seeded").
			Int("tiers", len(s.layout.Tiers)).
			Int("slots_per_tier", s.layout.SlotsPerTier).
			Msg("Seeded empty box")
	}
}

func (s *Synchronizer) clearErr() {
	s.errMu.Lock()
	s.lastErr = nil
	s.errMu.Unlock()
}

func (s *Synchronizer) broadcast(b *box.Box) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	for ch := range s.watchers {
		// Replace any unread snapshot with the newer one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- b:
		default:
		}
	}
}

func drain(events <-chan box.ChangeEvent) int {
	n := 0
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}
