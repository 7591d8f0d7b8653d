// Package arbiter is the single choke-point for claim and release intents.
//
// Every check runs against the synchronizer's current snapshot, never a
// fresh read: two clients racing for the same empty slot can both pass and
// the store keeps whichever write lands last. Accepted intents are turned
// into writes scoped to exactly one slot path and dispatched in the
// background; Claim and Release return before the store acknowledges them.
package arbiter

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dyluth/osechi/internal/config"
	"github.com/dyluth/osechi/internal/identity"
	"github.com/dyluth/osechi/internal/metrics"
	"github.com/dyluth/osechi/pkg/box"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Mirror is the local view the engine validates against and reports
// asynchronous write failures to.
type Mirror interface {
	Snapshot() *box.Box
	ReportError(err error)
}

// Writer issues scoped writes to the store.
type Writer interface {
	WriteSlot(ctx context.Context, tier, slot int, s *box.Slot) error
	ClearSlot(ctx context.Context, tier, slot int) error
}

// Options tunes an Engine. The zero value is usable.
type Options struct {
	// WriteTimeout bounds each background write. Defaults to 5s.
	WriteTimeout time.Duration
	Logger       zerolog.Logger
	Metrics      *metrics.Metrics
}

// Engine validates intents and dispatches the resulting writes.
type Engine struct {
	mirror   Mirror
	writer   Writer
	identity identity.Source
	rules    config.RulesConfig
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	writes   *dispatcher

	// titleKeys holds the title message keys, longest first.
	titleKeys []string
}

// NewEngine creates an engine. rules must have been validated by the config
// package so that every limit and diversity parameter is set.
func NewEngine(mirror Mirror, writer Writer, source identity.Source, rules config.RulesConfig, opts Options) *Engine {
	timeout := opts.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	keys := make([]string, 0, len(rules.TitleMessages))
	for k := range rules.TitleMessages {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	if source == nil {
		source = identity.Guest
	}

	return &Engine{
		mirror:    mirror,
		writer:    writer,
		identity:  source,
		rules:     rules,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		writes:    newDispatcher(timeout),
		titleKeys: keys,
	}
}

// As returns an engine that acts on behalf of source. The returned engine
// shares its snapshot, store and write queue with e.
func (e *Engine) As(source identity.Source) *Engine {
	cp := *e
	cp.identity = source
	return &cp
}

// Wait blocks until every write dispatched so far has finished.
func (e *Engine) Wait() {
	e.writes.wait()
}

// Claim fills the slot at (tierIndex, slotIndex) with the payload.
// Out-of-range indices panic; validate them with box.Box.Contains first.
func (e *Engine) Claim(tierIndex, slotIndex int, payload Payload) Result {
	snapshot := e.mirror.Snapshot()
	result, slot := e.checkClaim(snapshot, tierIndex, slotIndex, payload)
	e.metrics.Claim(result.label())

	if !result.Success {
		e.logger.Info().
			Str("event", "claim_rejected").
			Int("tier", tierIndex).
			Int("slot", slotIndex).
			Str("reason", string(result.Reason)).
			Msg("Claim rejected")
		return result
	}

	path := box.SlotPath(tierIndex, slotIndex)
	e.logger.Info().
		Str("event", "claim_accepted").
		Str("path", path).
		Str("slot_id", slot.ID).
		Str("owner", slot.Owner.String()).
		Msg("Claim accepted")

	e.dispatch(path, func(ctx context.Context) error {
		return e.writer.WriteSlot(ctx, tierIndex, slotIndex, slot)
	})

	return result
}

func (e *Engine) checkClaim(snapshot *box.Box, tierIndex, slotIndex int, payload Payload) (Result, *box.Slot) {
	if existing := snapshot.SlotAt(tierIndex, slotIndex); existing != nil {
		return reject(ReasonSlotOccupied,
			fmt.Sprintf("%s is already bringing %s here. Pick an empty spot.", existing.OwnerLabel, existing.Title)), nil
	}

	p := payload.Sanitize(e.rules.Limits)

	if err := p.Attribute.Validate(); err != nil {
		return reject(ReasonInvalidAttribute, fmt.Sprintf("Unknown colour %q.", p.Attribute)), nil
	}

	if p.Title == "" || p.OwnerLabel == "" {
		return reject(ReasonMissingRequiredField, "Please enter both your name and a dish."), nil
	}

	if title := normalizeTitle(p.Title); e.isDuplicate(snapshot, title) {
		return reject(ReasonDuplicateTitle, e.duplicateMessage(title, p.Title)), nil
	}

	if e.exceedsDiversityCap(snapshot, p.Attribute) {
		return reject(ReasonDiversityCapExceeded, e.rules.Diversity.Message), nil
	}

	slot := &box.Slot{
		ID:         uuid.New().String(),
		OwnerLabel: p.OwnerLabel,
		Title:      p.Title,
		Attribute:  p.Attribute,
		Category:   p.Category,
		Origin:     p.Origin,
		Note:       p.Note,
		Owner:      box.AnonymousOwner(),
	}
	if principal := e.identity.Current(); principal != nil {
		slot.Owner = box.OwnedBy(principal.ID)
		slot.OwnerAvatarRef = principal.AvatarRef
	}

	return accepted(), slot
}

func (e *Engine) isDuplicate(snapshot *box.Box, title string) bool {
	duplicate := false
	snapshot.Each(func(_, _ int, s *box.Slot) {
		if normalizeTitle(s.Title) == title {
			duplicate = true
		}
	})
	return duplicate
}

// duplicateMessage prefers the longest configured title fragment contained
// in the title over the generic message.
func (e *Engine) duplicateMessage(normalized, display string) string {
	for _, key := range e.titleKeys {
		if strings.Contains(normalized, key) {
			return e.rules.TitleMessages[key]
		}
	}
	return fmt.Sprintf("⚠️ Someone is already bringing %s! Please choose something else.", display)
}

// exceedsDiversityCap counts the pending claim in both the total and the
// numerator. The cap only applies once the total passes the grace threshold.
func (e *Engine) exceedsDiversityCap(snapshot *box.Box, attr box.Attribute) bool {
	d := e.rules.Diversity
	if attr != d.Attribute {
		return false
	}

	total, matching := 1, 1
	snapshot.Each(func(_, _ int, s *box.Slot) {
		total++
		if s.Attribute == d.Attribute {
			matching++
		}
	})

	return total > *d.GraceThreshold && float64(matching)/float64(total) > d.MaxFraction
}

// Release empties the slot at (tierIndex, slotIndex). Releasing an empty
// slot succeeds without writing anything.
// Out-of-range indices panic; validate them with box.Box.Contains first.
func (e *Engine) Release(tierIndex, slotIndex int) Result {
	existing := e.mirror.Snapshot().SlotAt(tierIndex, slotIndex)
	if existing == nil {
		e.metrics.Release("noop")
		return accepted()
	}

	if !existing.Owner.IsCommunal() {
		principal := e.identity.Current()
		if principal == nil || principal.ID != existing.Owner.ID() {
			result := reject(ReasonNotOwner, fmt.Sprintf("Only %s can remove %s.", existing.OwnerLabel, existing.Title))
			e.metrics.Release(result.label())
			e.logger.Info().
				Str("event", "release_rejected").
				Int("tier", tierIndex).
				Int("slot", slotIndex).
				Str("reason", string(result.Reason)).
				Msg("Release rejected")
			return result
		}
	}

	path := box.SlotPath(tierIndex, slotIndex)
	e.metrics.Release("accepted")
	e.logger.Info().
		Str("event", "release_accepted").
		Str("path", path).
		Str("slot_id", existing.ID).
		Msg("Release accepted")

	e.dispatch(path, func(ctx context.Context) error {
		return e.writer.ClearSlot(ctx, tierIndex, slotIndex)
	})

	return accepted()
}

func (e *Engine) dispatch(path string, write func(ctx context.Context) error) {
	e.writes.submit(path, func(ctx context.Context) {
		if err := write(ctx); err != nil {
			e.mirror.ReportError(&box.TransportError{Op: "write", Path: path, Err: err})
		}
	})
}
