package textgen

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dyluth/osechi/pkg/box"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompleter records the last request and returns a canned answer.
type fakeCompleter struct {
	answer string
	err    error
	last   Request
}

func (f *fakeCompleter) Complete(_ context.Context, req Request) (string, error) {
	f.last = req
	return f.answer, f.err
}

func newTestService(c Completer) *Service {
	return NewService(c, time.Second, zerolog.Nop(), nil)
}

func TestGenerateMeaning(t *testing.T) {
	fake := &fakeCompleter{answer: "  \"Shaped like coins, these bring a year of prosperity.\"\n"}
	svc := newTestService(fake)

	meaning, err := svc.GenerateMeaning(context.Background(), MeaningRequest{Dish: "Gyoza", Origin: "China"})
	require.NoError(t, err)
	assert.Equal(t, "Shaped like coins, these bring a year of prosperity.", meaning)

	assert.False(t, fake.last.JSON)
	assert.Contains(t, fake.last.Prompt, "Dish: Gyoza")
	assert.Contains(t, fake.last.Prompt, "Origin: China")
	assert.Contains(t, fake.last.Prompt, "Category: Unknown")
	assert.Contains(t, fake.last.Prompt, "max 20 words")
}

func TestGenerateRecipe(t *testing.T) {
	fake := &fakeCompleter{answer: "# 🛒 Shopping List\n- Eggs 200 JPY\n"}
	svc := newTestService(fake)

	recipe, err := svc.GenerateRecipe(context.Background(), RecipeRequest{Dish: "Datemaki"})
	require.NoError(t, err)
	assert.Equal(t, "# 🛒 Shopping List\n- Eggs 200 JPY", recipe)
	assert.Contains(t, fake.last.Prompt, "Datemaki (Traditional Style)")
	assert.Contains(t, fake.last.Prompt, "Secret Chef Tip")
}

func TestRequiredDish(t *testing.T) {
	svc := newTestService(&fakeCompleter{answer: "x"})

	_, err := svc.GenerateMeaning(context.Background(), MeaningRequest{Dish: "  "})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.GenerateRecipe(context.Background(), RecipeRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSuggestDish(t *testing.T) {
	fake := &fakeCompleter{answer: "```json\n{\"dish\": \"Kuri Kinton\", \"category\": \"Sweet\", \"color\": \"yellow\", \"origin\": \"Japan\", \"reason\": \"Balances the missing Yellow\", \"meaning\": \"Golden treasure for wealth\"}\n```"}
	svc := newTestService(fake)

	s, err := svc.SuggestDish(context.Background(), SuggestRequest{
		CurrentDishes: []string{"Ebi", "Potato Salad"},
		AvoidDish:     "Datemaki",
		TierContext:   "Tier 1: Celebration & Sweets",
	})
	require.NoError(t, err)
	assert.Equal(t, &Suggestion{
		Dish:      "Kuri Kinton",
		Category:  "Sweet",
		Attribute: box.AttributeYellow,
		Origin:    "Japan",
		Reason:    "Balances the missing Yellow",
		Meaning:   "Golden treasure for wealth",
	}, s)

	assert.True(t, fake.last.JSON)
	assert.Contains(t, fake.last.Prompt, `["Ebi","Potato Salad"]`)
	assert.Contains(t, fake.last.Prompt, `do NOT suggest "Datemaki"`)
	assert.Contains(t, fake.last.Prompt, `"Tier 1: Celebration & Sweets"`)
}

func TestParseSuggestion(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    box.Attribute
		wantErr string
	}{
		{"attribute key wins", `{"dish":"Ebi","attribute":"Red","color":"Brown"}`, box.AttributeRed, ""},
		{"plain json", `{"dish":"Nishime","color":"Brown"}`, box.AttributeBrown, ""},
		{"unfenced with spaces", "  \n{\"dish\":\"Tai\",\"color\":\" red \"}\n", box.AttributeRed, ""},
		{"bad json", "Sure! Here is a dish: Ebi", "", "unusable text generation response"},
		{"unknown color", `{"dish":"Ube","color":"Purple"}`, "", `unknown color "Purple"`},
		{"missing dish", `{"color":"Red"}`, "", "missing dish"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := parseSuggestion(tt.text)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrBadResponse)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Attribute)
		})
	}
}

func TestNotConfigured(t *testing.T) {
	svc := newTestService(nil)

	_, err := svc.GenerateMeaning(context.Background(), MeaningRequest{Dish: "Ebi"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = svc.SuggestDish(context.Background(), SuggestRequest{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestUpstreamFailure(t *testing.T) {
	upstream := errors.New("503 service unavailable")
	svc := newTestService(&fakeCompleter{err: upstream})

	_, err := svc.GenerateRecipe(context.Background(), RecipeRequest{Dish: "Ebi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream)
	assert.Contains(t, err.Error(), "generate-recipe")
}
