// Package textgen bridges the three text-generation requests to an
// OpenAI-compatible chat completion API. It holds no state of its own.
package textgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dyluth/osechi/internal/metrics"
	"github.com/dyluth/osechi/pkg/box"
	"github.com/rs/zerolog"
)

var (
	// ErrNotConfigured is returned when no completion backend is available
	ErrNotConfigured = errors.New("text generation is not configured: missing API key")

	// ErrInvalidRequest is returned when a required request field is empty
	ErrInvalidRequest = errors.New("invalid text generation request")

	// ErrBadResponse is returned when the model's answer cannot be used
	ErrBadResponse = errors.New("unusable text generation response")
)

// Request is one chat completion.
type Request struct {
	System string
	Prompt string
	JSON   bool // ask for a JSON object response
}

// Completer produces a completion for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// MeaningRequest asks for the symbolic meaning of a dish.
type MeaningRequest struct {
	Dish     string `json:"dish"`
	Origin   string `json:"origin,omitempty"`
	Category string `json:"category,omitempty"`
}

// RecipeRequest asks for a recipe.
type RecipeRequest struct {
	Dish   string `json:"dish"`
	Origin string `json:"origin,omitempty"`
}

// SuggestRequest asks for a dish that balances the box.
type SuggestRequest struct {
	CurrentDishes []string `json:"currentDishes"`
	UserOrigin    string   `json:"userOrigin,omitempty"`
	AvoidDish     string   `json:"avoidDish,omitempty"`
	TierContext   string   `json:"tierName,omitempty"`
}

// Suggestion is a proposed dish.
type Suggestion struct {
	Dish      string        `json:"dish"`
	Category  string        `json:"category"`
	Attribute box.Attribute `json:"attribute"`
	Origin    string        `json:"origin"`
	Reason    string        `json:"reason"`
	Meaning   string        `json:"meaning"`
}

// Service runs the three generation operations.
type Service struct {
	completer Completer
	timeout   time.Duration
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

// NewService creates a service. A nil completer makes every operation
// return ErrNotConfigured.
func NewService(completer Completer, timeout time.Duration, logger zerolog.Logger, m *metrics.Metrics) *Service {
	return &Service{completer: completer, timeout: timeout, logger: logger, metrics: m}
}

// GenerateMeaning returns a single short sentence.
func (s *Service) GenerateMeaning(ctx context.Context, r MeaningRequest) (string, error) {
	if strings.TrimSpace(r.Dish) == "" {
		return "", fmt.Errorf("%w: dish is required", ErrInvalidRequest)
	}

	text, err := s.complete(ctx, "generate-meaning", Request{System: meaningSystem, Prompt: meaningPrompt(r)})
	if err != nil {
		return "", err
	}

	return strings.Trim(strings.TrimSpace(text), `"“”`), nil
}

// GenerateRecipe returns a sectioned plain-text recipe.
func (s *Service) GenerateRecipe(ctx context.Context, r RecipeRequest) (string, error) {
	if strings.TrimSpace(r.Dish) == "" {
		return "", fmt.Errorf("%w: dish is required", ErrInvalidRequest)
	}

	text, err := s.complete(ctx, "generate-recipe", Request{System: recipeSystem, Prompt: recipePrompt(r)})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(text), nil
}

// SuggestDish returns one structured suggestion.
func (s *Service) SuggestDish(ctx context.Context, r SuggestRequest) (*Suggestion, error) {
	prompt, err := suggestPrompt(r)
	if err != nil {
		return nil, err
	}

	text, err := s.complete(ctx, "suggest-dish", Request{System: suggestSystem, Prompt: prompt, JSON: true})
	if err != nil {
		return nil, err
	}

	return parseSuggestion(text)
}

func (s *Service) complete(ctx context.Context, op string, req Request) (string, error) {
	if s.completer == nil {
		s.metrics.TextGen(op, "not_configured", 0)
		return "", ErrNotConfigured
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := s.completer.Complete(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		s.metrics.TextGen(op, "error", elapsed)
		s.logger.Error().Err(err).Str("event", "textgen_failed").Str("operation", op).Msg("Upstream completion failed")
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.TextGen(op, "ok", elapsed)
	s.logger.Debug().
		Str("event", "textgen_completed").
		Str("operation", op).
		Int64("latency_ms", elapsed.Milliseconds()).
		Msg("Completion received")
	return text, nil
}

// rawSuggestion accepts the model's "color" key as well as "attribute".
type rawSuggestion struct {
	Dish      string `json:"dish"`
	Category  string `json:"category"`
	Color     string `json:"color"`
	Attribute string `json:"attribute"`
	Origin    string `json:"origin"`
	Reason    string `json:"reason"`
	Meaning   string `json:"meaning"`
}

// parseSuggestion decodes a JSON answer, tolerating a surrounding Markdown
// code fence, and validates the attribute.
func parseSuggestion(text string) (*Suggestion, error) {
	var raw rawSuggestion
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	if strings.TrimSpace(raw.Dish) == "" {
		return nil, fmt.Errorf("%w: missing dish", ErrBadResponse)
	}

	name := raw.Attribute
	if name == "" {
		name = raw.Color
	}
	attr, ok := parseAttribute(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown color %q", ErrBadResponse, name)
	}

	return &Suggestion{
		Dish:      strings.TrimSpace(raw.Dish),
		Category:  strings.TrimSpace(raw.Category),
		Attribute: attr,
		Origin:    strings.TrimSpace(raw.Origin),
		Reason:    strings.TrimSpace(raw.Reason),
		Meaning:   strings.TrimSpace(raw.Meaning),
	}, nil
}

func parseAttribute(name string) (box.Attribute, bool) {
	name = strings.TrimSpace(name)
	for _, a := range box.Attributes() {
		if strings.EqualFold(name, string(a)) {
			return a, true
		}
	}
	return "", false
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	// Drop the info string, e.g. "json".
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
