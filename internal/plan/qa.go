package plan

import "math"

// Tolerance bands: a day passes when its calorie total is within ±10%
// of target and every macro within ±15%.
const (
	calorieTolerancePct = 10.0
	macroTolerancePct   = 15.0
)

// Validate checks every compiled day against the metabolic targets and
// produces the QA report. Score is the percentage of days within
// tolerance, rounded down; verdict is PASS at or above threshold.
func Validate(p *CompiledPlan, prof MetabolicProfile, threshold int) *QAReport {
	report := &QAReport{}

	within := 0
	for _, d := range p.Days {
		dev := DayDeviation{
			Day:         d.Index,
			CaloriesPct: deviationPct(d.DayTotals.Calories, d.TargetCalories),
			ProteinPct:  deviationPct(d.DayTotals.Protein, prof.ProteinG),
			CarbsPct:    deviationPct(d.DayTotals.Carbs, prof.CarbsG),
			FatPct:      deviationPct(d.DayTotals.Fat, prof.FatG),
		}
		dev.WithinTolerance = math.Abs(dev.CaloriesPct) <= calorieTolerancePct &&
			math.Abs(dev.ProteinPct) <= macroTolerancePct &&
			math.Abs(dev.CarbsPct) <= macroTolerancePct &&
			math.Abs(dev.FatPct) <= macroTolerancePct
		if dev.WithinTolerance {
			within++
		}
		report.Days = append(report.Days, dev)
	}

	if n := len(p.Days); n > 0 {
		report.Score = int(math.Floor(float64(within) / float64(n) * 100))
	}
	if report.Score >= threshold {
		report.Verdict = VerdictPass
	} else {
		report.Verdict = VerdictFail
	}
	return report
}

// deviationPct returns the signed percent deviation of actual from
// target. Zero target counts as no deviation.
func deviationPct(actual, target float64) float64 {
	if target <= 0 {
		return 0
	}
	return (actual - target) / target * 100
}

// RepairHints extracts corrective directives from a failing report: for
// each out-of-tolerance day, the dominant deviation becomes a boost for
// the next curation attempt.
func (r *QAReport) RepairHints() []RepairHint {
	var hints []RepairHint
	for _, d := range r.Days {
		if d.WithinTolerance {
			continue
		}
		hints = append(hints, RepairHint{Day: d.Day, Boost: dominantBoost(d)})
	}
	return hints
}

// dominantBoost names the macro with the largest relative overshoot of
// its tolerance band. A leading "-" means the substitution should
// reduce the macro.
func dominantBoost(d DayDeviation) string {
	type cand struct {
		name string
		pct  float64
		tol  float64
	}
	cands := []cand{
		{"calories", d.CaloriesPct, calorieTolerancePct},
		{"protein", d.ProteinPct, macroTolerancePct},
		{"carbs", d.CarbsPct, macroTolerancePct},
		{"fat", d.FatPct, macroTolerancePct},
	}

	best := cands[0]
	bestRatio := math.Abs(best.pct) / best.tol
	for _, c := range cands[1:] {
		if ratio := math.Abs(c.pct) / c.tol; ratio > bestRatio {
			best, bestRatio = c, ratio
		}
	}

	if best.pct > 0 {
		return "-" + best.name
	}
	return best.name
}
