package render

import (
	"fmt"
	"html/template"
	"strings"

	"meal-plan-worker/internal/plan"
)

// BuildDocument produces the HTML markup submitted to the renderer:
// a summary header, the day grid, and the grocery section.
func BuildDocument(p *plan.CompiledPlan, prof plan.MetabolicProfile, report *plan.QAReport) (string, error) {
	var b strings.Builder
	err := documentTmpl.Execute(&b, documentData{
		Plan:    p,
		Profile: prof,
		Report:  report,
	})
	if err != nil {
		return "", fmt.Errorf("render: execute template: %w", err)
	}
	return b.String(), nil
}

type documentData struct {
	Plan    *plan.CompiledPlan
	Profile plan.MetabolicProfile
	Report  *plan.QAReport
}

var documentTmpl = template.Must(template.New("document").Funcs(template.FuncMap{
	"kcal": func(f float64) string { return fmt.Sprintf("%.0f", f) },
	"qty":  func(f float64) string { return fmt.Sprintf("%.0f", f) },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { font-family: -apple-system, Helvetica, Arial, sans-serif; margin: 24px; color: #222; }
  h1 { font-size: 22px; }
  h2 { font-size: 16px; margin-top: 20px; border-bottom: 1px solid #ddd; }
  table.summary td { padding: 2px 10px 2px 0; }
  .day { margin-top: 14px; page-break-inside: avoid; }
  .day h3 { font-size: 14px; margin: 4px 0; }
  .meal { margin: 2px 0 2px 12px; font-size: 12px; }
  .meal .macros { color: #666; }
  .grocery { columns: 2; font-size: 12px; }
  .grocery-item { margin: 1px 0; }
  .verdict { font-weight: bold; }
</style>
</head>
<body>
<h1>Meal Plan</h1>

<h2>Summary</h2>
<table class="summary">
  <tr><td>Daily calorie goal</td><td>{{kcal .Profile.GoalCalories}} kcal</td></tr>
  <tr><td>Protein target</td><td>{{kcal .Profile.ProteinG}} g</td></tr>
  <tr><td>Carbs target</td><td>{{kcal .Profile.CarbsG}} g</td></tr>
  <tr><td>Fat target</td><td>{{kcal .Profile.FatG}} g</td></tr>
  <tr><td>QA</td><td class="verdict">{{.Report.Verdict}} ({{.Report.Score}}%)</td></tr>
</table>

<h2>Days</h2>
{{range .Plan.Days}}
<div class="day">
  <h3>Day {{.Index}} — {{kcal .DayTotals.Calories}} kcal</h3>
  {{range .Meals}}
  <div class="meal">
    <span class="name">{{.Slot}}: {{.Name}}</span>
    <span class="macros">({{kcal .Nutrition.Calories}} kcal, P{{kcal .Nutrition.Protein}} C{{kcal .Nutrition.Carbs}} F{{kcal .Nutrition.Fat}})</span>
  </div>
  {{end}}
</div>
{{end}}

<h2>Grocery List</h2>
<div class="grocery">
  {{range .Plan.Grocery}}
  <div class="grocery-item">{{.Name}} — {{qty .Qty}} {{.Unit}}</div>
  {{end}}
</div>
</body>
</html>`))
