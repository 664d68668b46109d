package plan

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseIntake() Intake {
	return Intake{
		Units:       UnitsMetric,
		Sex:         SexMale,
		Age:         30,
		Height:      180,
		Weight:      80,
		Activity:    ActivityModerate,
		Goal:        GoalMaintain,
		Style:       StyleBalanced,
		Days:        7,
		MealsPerDay: 3,
	}
}

func TestComputeProfile_Deterministic(t *testing.T) {
	in := baseIntake()

	first, err := ComputeProfile(in)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := ComputeProfile(in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestComputeProfile_VeryActiveMultiplier(t *testing.T) {
	// Basal 1750 kcal at very_active (1.725) must give 3019 kcal.
	assert.Equal(t, 1.725, activityMultipliers[ActivityVeryActive])
	assert.Equal(t, float64(3019), math.Round(1750*activityMultipliers[ActivityVeryActive]))
}

func TestComputeProfile_GoalAdjustment(t *testing.T) {
	maintain := baseIntake()
	prof, err := ComputeProfile(maintain)
	require.NoError(t, err)
	assert.Equal(t, prof.TDEE, prof.GoalCalories)

	lose := baseIntake()
	lose.Goal = GoalLose
	lose.RateKGPerWeek = 0.5
	lp, err := ComputeProfile(lose)
	require.NoError(t, err)
	assert.Less(t, lp.GoalCalories, prof.GoalCalories)
	// 0.5 kg/week is 550 kcal/day
	assert.InDelta(t, prof.GoalCalories-550, lp.GoalCalories, 1)

	gain := baseIntake()
	gain.Goal = GoalGain
	gain.RateKGPerWeek = 0.25
	gp, err := ComputeProfile(gain)
	require.NoError(t, err)
	assert.Greater(t, gp.GoalCalories, prof.GoalCalories)
}

func TestComputeProfile_MacroSplitsSumToGoal(t *testing.T) {
	for style := range macroSplits {
		in := baseIntake()
		in.Style = style

		prof, err := ComputeProfile(in)
		require.NoError(t, err)

		kcal := prof.ProteinG*kcalPerGramProtein +
			prof.CarbsG*kcalPerGramCarbs +
			prof.FatG*kcalPerGramFat
		// gram rounding leaves a few kcal of slack
		assert.InDelta(t, prof.GoalCalories, kcal, 10, "style %s", style)
	}
}

func TestComputeProfile_FemaleBMRLower(t *testing.T) {
	m := baseIntake()
	f := baseIntake()
	f.Sex = SexFemale

	mp, err := ComputeProfile(m)
	require.NoError(t, err)
	fp, err := ComputeProfile(f)
	require.NoError(t, err)

	assert.Equal(t, float64(166), mp.BMR-fp.BMR)
}

func TestComputeProfile_CalorieFloor(t *testing.T) {
	in := baseIntake()
	in.Sex = SexFemale
	in.Weight = 45
	in.Height = 150
	in.Age = 60
	in.Activity = ActivitySedentary
	in.Goal = GoalLose
	in.RateKGPerWeek = 1

	prof, err := ComputeProfile(in)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, prof.GoalCalories, float64(1200))
}
