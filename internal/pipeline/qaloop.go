package pipeline

import (
	"context"
	"fmt"
	"log"

	"meal-plan-worker/internal/config"
	"meal-plan-worker/internal/plan"
)

// QALoop wraps curation, compilation and validation in a bounded
// retry loop. A FAIL verdict is not an error: it drives the next
// curation attempt with corrective hints. Only source/compile failures
// and (under the fail policy) budget exhaustion escalate.
type QALoop struct {
	curator     *plan.Curator
	maxAttempts int
	threshold   int
	policy      config.ExhaustPolicy

	// compile is swappable in tests.
	compile func(*plan.DraftPlan, int) (*plan.CompiledPlan, error)
}

func NewQALoop(curator *plan.Curator, maxAttempts, threshold int, policy config.ExhaustPolicy) *QALoop {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &QALoop{
		curator:     curator,
		maxAttempts: maxAttempts,
		threshold:   threshold,
		policy:      policy,
		compile:     plan.Compile,
	}
}

// attempt is one curate→compile→validate round kept for the
// best-attempt accumulator.
type attempt struct {
	compiled *plan.CompiledPlan
	report   *plan.QAReport
}

// Run executes up to maxAttempts rounds and returns the first passing
// plan, or the best-scoring one under the accept-best policy. progress
// is invoked per completed stage per attempt.
func (l *QALoop) Run(ctx context.Context, in plan.Intake, prof plan.MetabolicProfile, progress func(stage int, name, msg string)) (*plan.CompiledPlan, *plan.QAReport, error) {
	var (
		best  *attempt
		draft *plan.DraftPlan
		hints []plan.RepairHint
	)

	for n := 1; n <= l.maxAttempts; n++ {
		attemptMsg := fmt.Sprintf("attempt %d/%d", n, l.maxAttempts)

		next, err := l.curator.Curate(ctx, in, prof, draft, hints)
		if err != nil {
			return nil, nil, Transient(StageRecipeCurator, err)
		}
		draft = next
		progress(3, StageRecipeCurator, attemptMsg)

		compiled, err := l.compile(draft, in.MealsPerDay)
		if err != nil {
			// Recoverable within the loop: discard the draft and
			// re-curate from scratch on the next round. On the final
			// round an already-scored attempt still wins under the
			// accept-best policy.
			log.Printf("[qa-loop] attempt=%d compile error=%v", n, err)
			draft, hints = nil, nil
			if n < l.maxAttempts {
				continue
			}
			if l.policy == config.PolicyAcceptBest && best != nil {
				break
			}
			return nil, nil, Transient(StagePlanCompiler, err)
		}
		progress(4, StagePlanCompiler, attemptMsg)

		report := plan.Validate(compiled, prof, l.threshold)
		progress(5, StageQAValidator, fmt.Sprintf("%s score=%d verdict=%s", attemptMsg, report.Score, report.Verdict))

		if best == nil || report.Score > best.report.Score {
			best = &attempt{compiled: compiled, report: report}
		}
		if report.Verdict == plan.VerdictPass {
			return compiled, report, nil
		}

		log.Printf("[qa-loop] attempt=%d score=%d verdict=%s days_flagged=%d",
			n, report.Score, report.Verdict, len(report.RepairHints()))
		hints = report.RepairHints()
	}

	// Budget exhausted with no pass.
	if l.policy == config.PolicyAcceptBest && best != nil {
		log.Printf("[qa-loop] budget exhausted, accepting best attempt score=%d", best.report.Score)
		return best.compiled, best.report, nil
	}
	return nil, nil, Transient(StageQAValidator,
		fmt.Errorf("qa retry budget exhausted after %d attempts", l.maxAttempts))
}
