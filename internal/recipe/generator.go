package recipe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"meal-plan-worker/internal/llm"
	"meal-plan-worker/internal/nutrition"
	"meal-plan-worker/internal/plan"
)

// Generator implements plan.CandidateSource on top of the AI
// text-generation collaborator, using the nutrition-data lookup to fill
// in candidates that come back without a nutrient vector.
type Generator struct {
	textGen   llm.TextGenerator
	nutrition nutrition.Client
}

func NewGenerator(textGen llm.TextGenerator, nutritionClient nutrition.Client) *Generator {
	return &Generator{textGen: textGen, nutrition: nutritionClient}
}

// candidateDTO is the JSON shape the model is asked to produce.
type candidateDTO struct {
	Name        string  `json:"name"`
	Cuisine     string  `json:"cuisine"`
	Protein     string  `json:"primary_protein"`
	PrepMinutes int     `json:"prep_minutes"`
	CookMinutes int     `json:"cook_minutes"`
	Calories    float64 `json:"calories"`
	ProteinG    float64 `json:"protein_g"`
	CarbsG      float64 `json:"carbs_g"`
	FatG        float64 `json:"fat_g"`
	FiberG      float64 `json:"fiber_g"`
	Ingredients []struct {
		Name string  `json:"name"`
		Qty  float64 `json:"qty"`
		Unit string  `json:"unit"`
	} `json:"ingredients"`
}

func (g *Generator) Candidates(ctx context.Context, req plan.CandidateRequest) ([]plan.Meal, error) {
	prompt := buildPrompt(req)

	out, err := g.textGen.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("recipe: generate candidates: %w", err)
	}

	var dtos []candidateDTO
	if err := json.Unmarshal([]byte(stripFences(out)), &dtos); err != nil {
		return nil, fmt.Errorf("recipe: parse candidates JSON: %w", err)
	}

	meals := make([]plan.Meal, 0, len(dtos))
	for _, d := range dtos {
		m := plan.Meal{
			Name:        d.Name,
			Slot:        req.Slot,
			Cuisine:     d.Cuisine,
			Protein:     d.Protein,
			PrepMinutes: d.PrepMinutes,
			CookMinutes: d.CookMinutes,
			Nutrition: plan.Nutrition{
				Calories: d.Calories,
				Protein:  d.ProteinG,
				Carbs:    d.CarbsG,
				Fat:      d.FatG,
				Fiber:    d.FiberG,
			},
		}
		for _, ing := range d.Ingredients {
			m.Ingredients = append(m.Ingredients, plan.Ingredient{Name: ing.Name, Qty: ing.Qty, Unit: ing.Unit})
		}

		if m.Nutrition.Calories <= 0 {
			if err := g.fillNutrition(ctx, &m); err != nil {
				return nil, err
			}
		}
		meals = append(meals, m)
	}
	return meals, nil
}

// fillNutrition backfills a candidate's nutrient vector from the
// nutrition-data lookup when the model returned none.
func (g *Generator) fillNutrition(ctx context.Context, m *plan.Meal) error {
	foods, err := g.nutrition.Search(ctx, m.Name, 1)
	if err != nil {
		return fmt.Errorf("recipe: nutrition lookup %q: %w", m.Name, err)
	}
	if len(foods) == 0 {
		return nil
	}
	for _, n := range foods[0].NutritionPerServing {
		switch strings.ToLower(n.Name) {
		case "calories", "energy":
			m.Nutrition.Calories = n.Amount
		case "protein":
			m.Nutrition.Protein = n.Amount
		case "carbohydrates", "carbs":
			m.Nutrition.Carbs = n.Amount
		case "fat":
			m.Nutrition.Fat = n.Amount
		case "fiber":
			m.Nutrition.Fiber = n.Amount
		}
	}
	return nil
}

func buildPrompt(req plan.CandidateRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Suggest %d realistic %s meals.\n", req.MaxResults, req.Slot)
	fmt.Fprintf(&b, "Each meal should be close to %.0f kcal with roughly %.0fg protein, %.0fg carbs, %.0fg fat per serving.\n",
		req.Target.Calories, req.Target.Protein, req.Target.Carbs, req.Target.Fat)

	if len(req.Cuisines) > 0 {
		fmt.Fprintf(&b, "Preferred cuisines: %s. Vary cuisines across suggestions.\n", strings.Join(req.Cuisines, ", "))
	}
	if len(req.Exclusions) > 0 {
		fmt.Fprintf(&b, "Never include these ingredients: %s.\n", strings.Join(req.Exclusions, ", "))
	}
	if req.Boost != "" {
		macro := strings.TrimPrefix(req.Boost, "-")
		if strings.HasPrefix(req.Boost, "-") {
			fmt.Fprintf(&b, "Prefer meals lower in %s than the target.\n", macro)
		} else {
			fmt.Fprintf(&b, "Prefer meals higher in %s than the target.\n", macro)
		}
	}

	b.WriteString(`
Return strictly a JSON array with this shape and no other text:
[
  {
    "name": "Meal name",
    "cuisine": "italian",
    "primary_protein": "chicken",
    "prep_minutes": 10,
    "cook_minutes": 20,
    "calories": 550,
    "protein_g": 40,
    "carbs_g": 45,
    "fat_g": 20,
    "fiber_g": 6,
    "ingredients": [{"name": "chicken breast", "qty": 200, "unit": "g"}]
  }
]
`)
	return b.String()
}

// stripFences removes a markdown code fence if the model wrapped its
// JSON in one.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
