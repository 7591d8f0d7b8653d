package textgen

import (
	"encoding/json"
	"fmt"
)

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

const meaningSystem = "You are a traditional Japanese Osechi Master with a sense of humor."

func meaningPrompt(r MeaningRequest) string {
	return fmt.Sprintf(`Invent a traditional-sounding "meaning" (iware) for a dish in a New Year's box.

Dish: %s
Category: %s
Origin: %s

Rules:
1. Connect the dish's shape, color, or name to a positive outcome (Longevity, Wealth, Joy, etc.).
2. If the dish is non-traditional (e.g. Pizza), use playful logic to make it sound profound.
3. Keep it to ONE short sentence (max 20 words).
4. Do not include quotes.

Example (Pizza): The never-ending circle represents eternal harmony, and the melted cheese binds our relationships together.
Example (Gyoza): Shaped like ancient silver coins, eating these guarantees a year of financial prosperity.`,
		r.Dish, orDefault(r.Category, "Unknown"), orDefault(r.Origin, "Unknown"))
}

const recipeSystem = "You are a helpful home chef living in Meinohama, Fukuoka, Japan."

func recipePrompt(r RecipeRequest) string {
	return fmt.Sprintf(`Write a simple, easy-to-follow recipe for: %s (%s).

CONSTRAINTS:
1. Budget: total cost must be under 2000 JPY.
2. Availability: use ingredients found in standard Japanese supermarkets.
3. Stores: brand names only (Sunny, MaxValu, Gyomu, Donki, Kaldi, Jupiter). Do not mention locations.
4. Tone: direct. No intros.
5. Formatting: minimal Markdown. Use headers (#) for sections. Avoid bold inside sentences.

Structure:
# 🛒 Shopping List (Meinohama estimates)
- List key ingredients with prices.
- Mention store brands for deals.
- Total Estimated Cost: [Total] JPY.

# 🥣 Ingredients

# 👩‍🍳 Steps
1. Step 1
2. Step 2...

# 🤫 Secret Chef Tip
(One sentence)`,
		r.Dish, orDefault(r.Origin, "Traditional Style"))
}

const suggestSystem = "You are an expert Osechi potluck coordinator. You answer with a single JSON object."

func suggestPrompt(r SuggestRequest) (string, error) {
	dishes := r.CurrentDishes
	if dishes == nil {
		dishes = []string{}
	}
	current, err := json.Marshal(dishes)
	if err != nil {
		return "", fmt.Errorf("failed to encode current dishes: %w", err)
	}

	avoid := "nothing in particular"
	if r.AvoidDish != "" {
		avoid = fmt.Sprintf("%q", r.AvoidDish)
	}

	return fmt.Sprintf(`Here is the list of dishes currently in the box:
%s

Suggest ONE new dish.

Constraints:
1. TIER THEME: the user is filling %q.
   - Tier 1 ("Celebration & Sweets"): appetizers, sweet rolled omelets (Datemaki), chestnuts, or desserts.
   - Tier 2 ("Grills & Sea"): grilled fish, shrimp, roast beef, or main proteins.
   - Tier 3 ("Mountain & Roots"): simmered vegetables (Nishime), salads, or hearty sides.
2. OSECHI RULES: no soups or liquids; must taste good at room temperature; must fit a bento box.
3. User preference (origin/style): %q. If provided, the dish MUST match this origin. If empty, focus on balancing the box.
4. Avoid: do NOT suggest %s.
5. Balance: look for missing colors (Red, White, Yellow, Green, Brown) and flavors.
6. Variety: do not suggest something that already exists in the box.

Return strictly valid JSON with this format:
{
  "dish": "Dish Name",
  "category": "Taste Category",
  "color": "Red, White, Yellow, Green, or Brown",
  "origin": "Country/Region",
  "reason": "Why you chose this, shown to the user as a tip",
  "meaning": "Traditional-sounding symbolic meaning (iware)"
}`,
		string(current), orDefault(r.TierContext, "General"), r.UserOrigin, avoid), nil
}
