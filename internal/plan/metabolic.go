package plan

import (
	"fmt"
	"math"
)

// Activity multipliers applied to basal expenditure (Mifflin-St Jeor).
var activityMultipliers = map[ActivityLevel]float64{
	ActivitySedentary:  1.2,
	ActivityLight:      1.375,
	ActivityModerate:   1.55,
	ActivityActive:     1.65,
	ActivityVeryActive: 1.725,
}

type macroSplit struct {
	protein float64
	carbs   float64
	fat     float64
}

// Fractions of goal calories per macro, summing to 1.
var macroSplits = map[MacroStyle]macroSplit{
	StyleBalanced:    {protein: 0.30, carbs: 0.40, fat: 0.30},
	StyleHighProtein: {protein: 0.40, carbs: 0.30, fat: 0.30},
	StyleLowCarb:     {protein: 0.35, carbs: 0.20, fat: 0.45},
	StyleKeto:        {protein: 0.25, carbs: 0.05, fat: 0.70},
}

const (
	kcalPerGramProtein = 4
	kcalPerGramCarbs   = 4
	kcalPerGramFat     = 9

	// One kg of body mass is roughly 7700 kcal; weekly rate spreads
	// over 7 days of adjustment.
	kcalPerKG = 7700
)

// ComputeProfile derives the metabolic profile from a normalized intake.
// Pure arithmetic: the same intake always yields the same profile.
func ComputeProfile(in Intake) (MetabolicProfile, error) {
	mult, ok := activityMultipliers[in.Activity]
	if !ok {
		return MetabolicProfile{}, fmt.Errorf("metabolic: unknown activity level %q", in.Activity)
	}
	split, ok := macroSplits[in.Style]
	if !ok {
		return MetabolicProfile{}, fmt.Errorf("metabolic: unknown macro style %q", in.Style)
	}

	bmr := basalExpenditure(in)
	tdee := math.Round(bmr * mult)

	adjust := in.RateKGPerWeek * kcalPerKG / 7
	var goal float64
	switch in.Goal {
	case GoalLose:
		goal = tdee - adjust
	case GoalGain:
		goal = tdee + adjust
	case GoalMaintain:
		goal = tdee
	default:
		return MetabolicProfile{}, fmt.Errorf("metabolic: unknown goal type %q", in.Goal)
	}
	goal = math.Round(goal)
	if goal < 1200 {
		// floor to keep the plan physically sensible
		goal = 1200
	}

	return MetabolicProfile{
		BMR:          math.Round(bmr),
		TDEE:         tdee,
		GoalCalories: goal,
		ProteinG:     math.Round(goal * split.protein / kcalPerGramProtein),
		CarbsG:       math.Round(goal * split.carbs / kcalPerGramCarbs),
		FatG:         math.Round(goal * split.fat / kcalPerGramFat),
	}, nil
}

// basalExpenditure computes BMR with the Mifflin-St Jeor equation
// (metric units: kg, cm).
func basalExpenditure(in Intake) float64 {
	bmr := 10*in.Weight + 6.25*in.Height - 5*float64(in.Age)
	if in.Sex == SexMale {
		return bmr + 5
	}
	return bmr - 161
}
