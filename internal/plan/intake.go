package plan

import (
	"fmt"
	"strings"
)

const (
	cmPerInch = 2.54
	kgPerLB   = 0.45359237
)

// Normalize converts a raw intake to the canonical metric unit system
// and fills preference defaults. It is idempotent: normalizing an
// already-normalized intake yields the same intake.
//
// Missing demographic fields (sex, age, height, weight) are a terminal
// condition; callers must not retry them.
func Normalize(in Intake) (Intake, error) {
	if in.Sex != SexMale && in.Sex != SexFemale {
		return Intake{}, fmt.Errorf("intake: missing or invalid sex %q", in.Sex)
	}
	if in.Age <= 0 {
		return Intake{}, fmt.Errorf("intake: missing age")
	}
	if in.Height <= 0 {
		return Intake{}, fmt.Errorf("intake: missing height")
	}
	if in.Weight <= 0 {
		return Intake{}, fmt.Errorf("intake: missing weight")
	}

	out := in

	switch in.Units {
	case UnitsMetric:
		// already canonical
	case UnitsImperial:
		out.Height = in.Height * cmPerInch
		out.Weight = in.Weight * kgPerLB
		out.Units = UnitsMetric
	case "":
		out.Units = UnitsMetric
	default:
		return Intake{}, fmt.Errorf("intake: unknown unit system %q", in.Units)
	}

	if out.Activity == "" {
		out.Activity = ActivityModerate
	}
	if _, ok := activityMultipliers[out.Activity]; !ok {
		return Intake{}, fmt.Errorf("intake: unknown activity level %q", out.Activity)
	}

	if out.Goal == "" {
		out.Goal = GoalMaintain
	}
	if out.Goal == GoalMaintain {
		out.RateKGPerWeek = 0
	}
	if out.Style == "" {
		out.Style = StyleBalanced
	}
	if _, ok := macroSplits[out.Style]; !ok {
		return Intake{}, fmt.Errorf("intake: unknown macro style %q", out.Style)
	}

	if out.Days <= 0 {
		out.Days = 7
	}
	if out.MealsPerDay <= 0 {
		out.MealsPerDay = 3
	}

	out.Cuisines = lowerAll(in.Cuisines)
	out.Exclusions = lowerAll(in.Exclusions)

	return out, nil
}

func lowerAll(ss []string) []string {
	if ss == nil {
		return nil
	}
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
