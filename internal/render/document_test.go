package render

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-plan-worker/internal/plan"
)

func sampleCompiledPlan() *plan.CompiledPlan {
	day := func(idx int) plan.CompiledDay {
		return plan.CompiledDay{
			Day: plan.Day{
				Index:          idx,
				TargetCalories: 2000,
				Meals: []plan.Meal{
					{Name: "oat bowl", Slot: "breakfast", Nutrition: plan.Nutrition{Calories: 500}},
					{Name: "chicken salad", Slot: "lunch", Nutrition: plan.Nutrition{Calories: 700}},
					{Name: "salmon rice", Slot: "dinner", Nutrition: plan.Nutrition{Calories: 800}},
				},
			},
			DayTotals: plan.Nutrition{Calories: 2000, Protein: 150, Carbs: 200, Fat: 67},
		}
	}
	return &plan.CompiledPlan{
		ID:   uuid.New(),
		Days: []plan.CompiledDay{day(1), day(2)},
		Grocery: []plan.GroceryItem{
			{Name: "chicken breast", Qty: 500, Unit: "g"},
			{Name: "olive oil", Qty: 45, Unit: "ml"},
		},
	}
}

func TestBuildDocument_Structure(t *testing.T) {
	p := sampleCompiledPlan()
	prof := plan.MetabolicProfile{GoalCalories: 2000, ProteinG: 150, CarbsG: 200, FatG: 67}
	report := &plan.QAReport{Verdict: plan.VerdictPass, Score: 100}

	markup, err := BuildDocument(p, prof, report)
	require.NoError(t, err)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)

	assert.Equal(t, 2, doc.Find(".day").Length())
	assert.Equal(t, 6, doc.Find(".meal").Length())
	assert.Equal(t, 2, doc.Find(".grocery-item").Length())

	assert.Contains(t, doc.Find(".verdict").Text(), "PASS")
	assert.Contains(t, doc.Find(".verdict").Text(), "100%")
	assert.Contains(t, doc.Find("table.summary").Text(), "2000 kcal")

	names := doc.Find(".meal .name").Map(func(_ int, s *goquery.Selection) string {
		return s.Text()
	})
	assert.Contains(t, names, "breakfast: oat bowl")
	assert.Contains(t, names, "dinner: salmon rice")

	grocery := doc.Find(".grocery").Text()
	assert.Contains(t, grocery, "chicken breast")
	assert.Contains(t, grocery, "45 ml")
}

func TestBuildDocument_EscapesMarkupInNames(t *testing.T) {
	p := sampleCompiledPlan()
	p.Days[0].Meals[0].Name = `<script>alert("x")</script>`
	prof := plan.MetabolicProfile{GoalCalories: 2000}
	report := &plan.QAReport{Verdict: plan.VerdictFail, Score: 50}

	markup, err := BuildDocument(p, prof, report)
	require.NoError(t, err)
	assert.NotContains(t, markup, "<script>alert")
}
