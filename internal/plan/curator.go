package plan

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

// CandidateRequest describes the meal a curator slot is looking for.
type CandidateRequest struct {
	Slot       string
	Target     Nutrition // the slot's share of the day target
	Cuisines   []string
	Exclusions []string
	// Boost names the macro the substitution should favor: "protein",
	// "carbs", "fat", "calories" prefixed with "-" to reduce. Empty for
	// normal curation.
	Boost      string
	MaxResults int
}

// CandidateSource produces candidate meals for a slot. Implementations
// call external recipe/nutrition services; failures are treated as
// recoverable by the pipeline.
type CandidateSource interface {
	Candidates(ctx context.Context, req CandidateRequest) ([]Meal, error)
}

// RepairHint steers one curation retry toward a day's deficient macro.
type RepairHint struct {
	Day   int    // 1-based day index
	Boost string // same grammar as CandidateRequest.Boost
}

// Default window sizes for the variety rules.
const nameRepeatWindow = 3

// Proteins exempt from the adjacent-day rule: generic plant and
// dairy proteins that realistic plans repeat freely.
var defaultExemptProteins = map[string]bool{
	"tofu":      true,
	"tempeh":    true,
	"beans":     true,
	"lentils":   true,
	"chickpeas": true,
	"yogurt":    true,
}

type Curator struct {
	source          CandidateSource
	cuisineMaxShare float64
	exempt          map[string]bool
}

func NewCurator(source CandidateSource, cuisineMaxShare float64) *Curator {
	if cuisineMaxShare <= 0 || cuisineMaxShare > 1 {
		cuisineMaxShare = 0.5
	}
	return &Curator{
		source:          source,
		cuisineMaxShare: cuisineMaxShare,
		exempt:          defaultExemptProteins,
	}
}

// varietyState tracks protein/name/cuisine usage per plan day. It is
// rebuilt per attempt; repairs replay the whole draft so a replacement
// slot is checked against both of its neighbor days, not just the
// days before it.
type varietyState struct {
	proteinsByDay [][]string // indexed by day-1
	namesByDay    [][]string
	cuisineCounts map[string]int
	totalSlots    int
}

func newVarietyState(days, totalSlots int) *varietyState {
	return &varietyState{
		proteinsByDay: make([][]string, days),
		namesByDay:    make([][]string, days),
		cuisineCounts: make(map[string]int),
		totalSlots:    totalSlots,
	}
}

func (v *varietyState) record(day int, m Meal) {
	i := day - 1
	v.proteinsByDay[i] = append(v.proteinsByDay[i], strings.ToLower(m.Protein))
	v.namesByDay[i] = append(v.namesByDay[i], strings.ToLower(m.Name))
	v.cuisineCounts[strings.ToLower(m.Cuisine)]++
}

// adjacentProteins returns the proteins used on the days on either
// side of the given day. During a fresh build the following day is
// still empty, so only the preceding day contributes.
func (v *varietyState) adjacentProteins(day int) map[string]bool {
	out := make(map[string]bool)
	for _, d := range [2]int{day - 1, day + 1} {
		if d < 1 || d > len(v.proteinsByDay) {
			continue
		}
		for _, p := range v.proteinsByDay[d-1] {
			out[p] = true
		}
	}
	return out
}

// nameUsedNear reports whether an identical meal name appears within
// window days of the given day, in either direction.
func (v *varietyState) nameUsedNear(day int, name string, window int) bool {
	name = strings.ToLower(name)
	lo, hi := day-window, day+window
	if lo < 1 {
		lo = 1
	}
	if hi > len(v.namesByDay) {
		hi = len(v.namesByDay)
	}
	for d := lo; d <= hi; d++ {
		for _, n := range v.namesByDay[d-1] {
			if n == name {
				return true
			}
		}
	}
	return false
}

func (v *varietyState) cuisineOverShare(cuisine string, maxShare float64) bool {
	if v.totalSlots == 0 {
		return false
	}
	next := v.cuisineCounts[strings.ToLower(cuisine)] + 1
	return float64(next)/float64(v.totalSlots) > maxShare
}

// Curate builds a draft plan for the intake. When prev and hints are
// given, it repairs the previous draft instead: only slots on hinted
// days are replaced, preserving already-validated structure. Variety
// state is replayed from the full draft under repair, so a mid-plan
// substitution is checked against the days after it as well as before.
func (c *Curator) Curate(ctx context.Context, in Intake, prof MetabolicProfile, prev *DraftPlan, hints []RepairHint) (*DraftPlan, error) {
	if prev != nil && len(hints) > 0 {
		return c.repair(ctx, in, prof, prev, hints)
	}
	return c.build(ctx, in, prof)
}

func (c *Curator) build(ctx context.Context, in Intake, prof MetabolicProfile) (*DraftPlan, error) {
	shares := slotShares(in.MealsPerDay)
	state := newVarietyState(in.Days, in.Days*in.MealsPerDay)

	draft := &DraftPlan{ID: uuid.New()}
	for d := 1; d <= in.Days; d++ {
		day := Day{Index: d, TargetCalories: prof.GoalCalories}
		for s := 0; s < in.MealsPerDay; s++ {
			meal, err := c.fillSlot(ctx, in, prof, state, d, slotName(s), shares[s], "")
			if err != nil {
				return nil, err
			}
			day.Meals = append(day.Meals, meal)
			state.record(d, meal)
		}
		draft.Days = append(draft.Days, day)
	}

	draft.ProteinsByDay = state.proteinsByDay
	draft.CuisineCounts = state.cuisineCounts
	return draft, nil
}

// repair replaces individual meal slots on the hinted days. The slot
// replaced is the one whose calories stray furthest from its share of
// the day target, steered by the hint's macro boost.
func (c *Curator) repair(ctx context.Context, in Intake, prof MetabolicProfile, prev *DraftPlan, hints []RepairHint) (*DraftPlan, error) {
	draft := clonePlan(prev)
	shares := slotShares(in.MealsPerDay)

	for _, h := range hints {
		if h.Day < 1 || h.Day > len(draft.Days) {
			continue
		}
		day := &draft.Days[h.Day-1]

		slot := worstSlot(*day, shares)
		if slot < 0 {
			continue
		}

		state := rebuildVarietyState(draft, h.Day, slot)
		meal, err := c.fillSlot(ctx, in, prof, state, h.Day, day.Meals[slot].Slot, shares[slot], h.Boost)
		if err != nil {
			return nil, err
		}
		day.Meals[slot] = meal
	}

	state := rebuildVarietyState(draft, 0, -1)
	draft.ProteinsByDay = state.proteinsByDay
	draft.CuisineCounts = state.cuisineCounts
	return draft, nil
}

// fillSlot runs the greedy selection for one slot: hard variety rules
// first, nutritional proximity second, then progressive relaxation.
// A slot is never left empty.
func (c *Curator) fillSlot(ctx context.Context, in Intake, prof MetabolicProfile, state *varietyState, day int, slot string, share float64, boost string) (Meal, error) {
	target := Nutrition{
		Calories: prof.GoalCalories * share,
		Protein:  prof.ProteinG * share,
		Carbs:    prof.CarbsG * share,
		Fat:      prof.FatG * share,
	}

	candidates, err := c.source.Candidates(ctx, CandidateRequest{
		Slot:       slot,
		Target:     target,
		Cuisines:   in.Cuisines,
		Exclusions: in.Exclusions,
		Boost:      boost,
		MaxResults: 8,
	})
	if err != nil {
		return Meal{}, fmt.Errorf("curator: fetch candidates for %s: %w", slot, err)
	}
	if len(candidates) == 0 {
		return Meal{}, fmt.Errorf("curator: no candidates for %s", slot)
	}

	usable := filterExclusions(candidates, in.Exclusions)
	if len(usable) == 0 {
		usable = candidates
	}

	adjacent := state.adjacentProteins(day)

	// Pass 1: all hard rules + proximity.
	for _, m := range usable {
		if c.violatesVariety(m, state, day, adjacent) {
			continue
		}
		if withinProximity(m.Nutrition, target) {
			return normalizeMeal(m, slot), nil
		}
	}

	// Pass 2: relax the protein-repeat rule, keep name/cuisine rules.
	for _, m := range usable {
		if state.nameUsedNear(day, m.Name, nameRepeatWindow) {
			continue
		}
		if withinProximity(m.Nutrition, target) {
			return normalizeMeal(m, slot), nil
		}
	}

	// Pass 3: never leave the slot empty; take the closest candidate.
	best := usable[0]
	bestDist := proximityDistance(usable[0].Nutrition, target)
	for _, m := range usable[1:] {
		if d := proximityDistance(m.Nutrition, target); d < bestDist {
			best, bestDist = m, d
		}
	}
	return normalizeMeal(best, slot), nil
}

func (c *Curator) violatesVariety(m Meal, state *varietyState, day int, adjacent map[string]bool) bool {
	protein := strings.ToLower(m.Protein)
	if adjacent[protein] && !c.exempt[protein] {
		return true
	}
	if state.nameUsedNear(day, m.Name, nameRepeatWindow) {
		return true
	}
	if state.cuisineOverShare(m.Cuisine, c.cuisineMaxShare) {
		return true
	}
	return false
}

// withinProximity accepts candidates close to the slot's share of the
// day target: calories within ±20% and average macro deviation within
// ±35%. Looser than the day-level QA bands so the greedy pass has room
// to combine slots into a passing day.
func withinProximity(n, target Nutrition) bool {
	if target.Calories > 0 && math.Abs(n.Calories-target.Calories)/target.Calories > 0.20 {
		return false
	}
	return macroDeviation(n, target) <= 0.35
}

// macroDeviation averages the relative deviation of protein, carbs and
// fat from their targets. Zero targets are skipped.
func macroDeviation(n, target Nutrition) float64 {
	pairs := [3][2]float64{
		{n.Protein, target.Protein},
		{n.Carbs, target.Carbs},
		{n.Fat, target.Fat},
	}

	var sum float64
	var k int
	for _, p := range pairs {
		if p[1] <= 0 {
			continue
		}
		sum += math.Abs(p[0]-p[1]) / p[1]
		k++
	}
	if k == 0 {
		return 0
	}
	return sum / float64(k)
}

// proximityDistance is the pass-3 ranking: relative calorie deviation
// plus average macro deviation.
func proximityDistance(n, target Nutrition) float64 {
	d := macroDeviation(n, target)
	if target.Calories > 0 {
		d += math.Abs(n.Calories-target.Calories) / target.Calories
	}
	return d
}

func filterExclusions(meals []Meal, exclusions []string) []Meal {
	if len(exclusions) == 0 {
		return meals
	}
	var out []Meal
	for _, m := range meals {
		if !containsExcluded(m, exclusions) {
			out = append(out, m)
		}
	}
	return out
}

func containsExcluded(m Meal, exclusions []string) bool {
	for _, ex := range exclusions {
		if ex == "" {
			continue
		}
		if strings.Contains(strings.ToLower(m.Name), ex) {
			return true
		}
		for _, ing := range m.Ingredients {
			if strings.Contains(strings.ToLower(ing.Name), ex) {
				return true
			}
		}
	}
	return false
}

func normalizeMeal(m Meal, slot string) Meal {
	m.Slot = slot
	m.Cuisine = strings.ToLower(m.Cuisine)
	m.Protein = strings.ToLower(m.Protein)
	return m
}

// worstSlot picks the slot whose calories deviate most from its share
// of the day target.
func worstSlot(day Day, shares []float64) int {
	worst, worstDev := -1, -1.0
	for i, m := range day.Meals {
		if i >= len(shares) {
			break
		}
		slotTarget := day.TargetCalories * shares[i]
		if slotTarget <= 0 {
			continue
		}
		dev := math.Abs(m.Nutrition.Calories-slotTarget) / slotTarget
		if dev > worstDev {
			worst, worstDev = i, dev
		}
	}
	return worst
}

// rebuildVarietyState replays the whole draft into a fresh variety
// state, excluding the slot under replacement so its successor is
// checked against every other slot of the plan. Pass skipDay 0 to
// replay everything.
func rebuildVarietyState(draft *DraftPlan, skipDay, skipSlot int) *varietyState {
	total := 0
	for _, d := range draft.Days {
		total += len(d.Meals)
	}
	state := newVarietyState(len(draft.Days), total)

	for _, d := range draft.Days {
		for i, m := range d.Meals {
			if d.Index == skipDay && i == skipSlot {
				continue
			}
			state.record(d.Index, m)
		}
	}
	return state
}

func clonePlan(p *DraftPlan) *DraftPlan {
	out := &DraftPlan{ID: p.ID, Days: make([]Day, len(p.Days))}
	for i, d := range p.Days {
		nd := d
		nd.Meals = make([]Meal, len(d.Meals))
		copy(nd.Meals, d.Meals)
		out.Days[i] = nd
	}
	return out
}

// slotShares splits the day's calorie budget across meal slots.
func slotShares(mealsPerDay int) []float64 {
	switch mealsPerDay {
	case 1:
		return []float64{1.0}
	case 2:
		return []float64{0.45, 0.55}
	case 3:
		return []float64{0.25, 0.35, 0.40}
	case 4:
		return []float64{0.25, 0.30, 0.35, 0.10}
	case 5:
		return []float64{0.20, 0.30, 0.30, 0.10, 0.10}
	default:
		shares := make([]float64, mealsPerDay)
		for i := range shares {
			shares[i] = 1.0 / float64(mealsPerDay)
		}
		return shares
	}
}

func slotName(i int) string {
	switch i {
	case 0:
		return "breakfast"
	case 1:
		return "lunch"
	case 2:
		return "dinner"
	default:
		return "snack"
	}
}
