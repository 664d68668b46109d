package plan

import "github.com/google/uuid"

type UnitSystem string

const (
	UnitsMetric   UnitSystem = "metric"
	UnitsImperial UnitSystem = "imperial"
)

type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

type ActivityLevel string

const (
	ActivitySedentary  ActivityLevel = "sedentary"
	ActivityLight      ActivityLevel = "light"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityActive     ActivityLevel = "active"
	ActivityVeryActive ActivityLevel = "very_active"
)

type GoalType string

const (
	GoalLose     GoalType = "lose"
	GoalMaintain GoalType = "maintain"
	GoalGain     GoalType = "gain"
)

type MacroStyle string

const (
	StyleBalanced    MacroStyle = "balanced"
	StyleHighProtein MacroStyle = "high_protein"
	StyleLowCarb     MacroStyle = "low_carb"
	StyleKeto        MacroStyle = "keto"
)

// Intake is the normalized user input handed to the pipeline. After
// Normalize it is canonical metric (height cm, weight kg) and immutable
// for the lifetime of the job.
type Intake struct {
	Units    UnitSystem    `json:"units"`
	Sex      Sex           `json:"sex"`
	Age      int           `json:"age"`
	Height   float64       `json:"height"` // cm once normalized
	Weight   float64       `json:"weight"` // kg once normalized
	Activity ActivityLevel `json:"activity"`

	Goal          GoalType   `json:"goal"`
	RateKGPerWeek float64    `json:"rate_kg_per_week"`
	Style         MacroStyle `json:"style"`

	Days        int      `json:"days"`
	MealsPerDay int      `json:"meals_per_day"`
	Cuisines    []string `json:"cuisines,omitempty"`
	Exclusions  []string `json:"exclusions,omitempty"`
}

// MetabolicProfile holds the derived energy and macro targets. Pure
// function of Intake, recomputed rather than mutated.
type MetabolicProfile struct {
	BMR          float64 `json:"bmr"`
	TDEE         float64 `json:"tdee"`
	GoalCalories float64 `json:"goal_calories"`

	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

// Nutrition is a per-meal or aggregated nutrient vector.
type Nutrition struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
	Fiber    float64 `json:"fiber"`
}

func (n Nutrition) Add(o Nutrition) Nutrition {
	return Nutrition{
		Calories: n.Calories + o.Calories,
		Protein:  n.Protein + o.Protein,
		Carbs:    n.Carbs + o.Carbs,
		Fat:      n.Fat + o.Fat,
		Fiber:    n.Fiber + o.Fiber,
	}
}

type Ingredient struct {
	Name string  `json:"name"`
	Qty  float64 `json:"qty"`
	Unit string  `json:"unit"`
}

// Meal is one filled meal slot of a draft plan.
type Meal struct {
	Name        string       `json:"name"`
	Slot        string       `json:"slot"`
	Cuisine     string       `json:"cuisine"`
	Protein     string       `json:"protein"` // primary protein tag
	PrepMinutes int          `json:"prep_minutes"`
	CookMinutes int          `json:"cook_minutes"`
	Nutrition   Nutrition    `json:"nutrition"`
	Ingredients []Ingredient `json:"ingredients,omitempty"`
	Note        string       `json:"note,omitempty"`
}

type Day struct {
	Index          int     `json:"index"` // 1-based
	TargetCalories float64 `json:"target_calories"`
	Meals          []Meal  `json:"meals"`
}

func (d Day) Totals() Nutrition {
	var t Nutrition
	for _, m := range d.Meals {
		t = t.Add(m.Nutrition)
	}
	return t
}

// DraftPlan is the curated, not-yet-validated plan. Only the QA retry
// loop mutates it, and only by replacing individual meal slots.
type DraftPlan struct {
	ID   uuid.UUID `json:"id"`
	Days []Day     `json:"days"`

	// Curation audit trail: proteins used per day and cuisine slot counts.
	ProteinsByDay [][]string     `json:"proteins_by_day,omitempty"`
	CuisineCounts map[string]int `json:"cuisine_counts,omitempty"`
}

// CompiledDay is a plan day with its nutrition totals rolled up.
type CompiledDay struct {
	Day
	DayTotals Nutrition `json:"totals"`
}

type GroceryItem struct {
	Name string  `json:"name"`
	Qty  float64 `json:"qty"`
	Unit string  `json:"unit"`
}

// CompiledPlan is the finalized aggregation produced by the compiler.
type CompiledPlan struct {
	ID           uuid.UUID     `json:"id"`
	Days         []CompiledDay `json:"days"`
	WeeklyTotals Nutrition     `json:"weekly_totals"`
	Grocery      []GroceryItem `json:"grocery"`
}

type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
)

// DayDeviation records the signed percent deviation of one day from its
// calorie/macro targets.
type DayDeviation struct {
	Day             int     `json:"day"`
	CaloriesPct     float64 `json:"calories_pct"`
	ProteinPct      float64 `json:"protein_pct"`
	CarbsPct        float64 `json:"carbs_pct"`
	FatPct          float64 `json:"fat_pct"`
	WithinTolerance bool    `json:"within_tolerance"`
}

// QAReport is the tolerance-check verdict attached to a compiled plan.
type QAReport struct {
	Verdict Verdict        `json:"verdict"`
	Score   int            `json:"score"` // percent of days within tolerance, rounded down
	Days    []DayDeviation `json:"days"`
}
