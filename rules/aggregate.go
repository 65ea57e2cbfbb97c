package rules

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/liamcoop/gradcheck/catalog"
	"github.com/liamcoop/gradcheck/ledger"
)

// Aggregate runs every rule in order and ANDs the verdicts. No rule is skipped after a
// failure. An empty rule list is satisfied.
func Aggregate(rules []Rule, courses []catalog.CourseRecord, l ledger.Ledger) AggregateResult {
	agg := AggregateResult{
		Results:   make([]Result, 0, len(rules)),
		Satisfied: true,
	}
	for _, r := range rules {
		res := r.Evaluate(courses, l)
		agg.Results = append(agg.Results, res)
		agg.Satisfied = agg.Satisfied && res.Satisfied
	}
	return agg
}

// AggregateConcurrent evaluates the rules in parallel and returns the results in rule
// order. It fails only when ctx is cancelled.
func AggregateConcurrent(ctx context.Context, rules []Rule, courses []catalog.CourseRecord, l ledger.Ledger) (AggregateResult, error) {
	results := make([]Result, len(rules))

	g, ctx := errgroup.WithContext(ctx)
	for i, r := range rules {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = r.Evaluate(courses, l)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return AggregateResult{}, err
	}

	agg := AggregateResult{Results: results, Satisfied: true}
	for _, res := range results {
		agg.Satisfied = agg.Satisfied && res.Satisfied
	}
	return agg, nil
}
