// Package aggregate folds per-category test outcomes into category analyses
// and a run summary.
package aggregate

import (
	"sort"

	tberrors "github.com/jj-shen99/testbench/internal/errors"
	"github.com/jj-shen99/testbench/internal/model"
)

// Aggregate counts outcomes per category and sums them into a RunSummary.
// The result does not depend on category or outcome order. An outcome with
// an unknown status is malformed input and fails the whole aggregation.
func Aggregate(outcomes map[string][]model.TestOutcome) (model.RunSummary, map[string]model.CategoryAnalysis, error) {
	var summary model.RunSummary
	analyses := make(map[string]model.CategoryAnalysis, len(outcomes))

	for _, category := range sortedCategories(outcomes) {
		a := model.CategoryAnalysis{Category: category}
		for _, o := range outcomes[category] {
			if !o.Status.Valid() {
				return model.RunSummary{}, nil, &tberrors.Error{
					Kind:     tberrors.KindValidation,
					Category: category,
					Message:  "unit " + o.UnitRef + " has unknown status " + string(o.Status),
				}
			}
			a.Record(o)
		}
		analyses[category] = a
		summary.Add(a)
	}
	return summary, analyses, nil
}

// FailedOutcomes returns the non-passing outcomes of every category, keeping
// the input order within each category. Categories without failures are
// omitted.
func FailedOutcomes(outcomes map[string][]model.TestOutcome) map[string][]model.TestOutcome {
	failed := make(map[string][]model.TestOutcome)
	for category, list := range outcomes {
		for _, o := range list {
			if o.Status != model.StatusPass {
				failed[category] = append(failed[category], o)
			}
		}
	}
	return failed
}

func sortedCategories(outcomes map[string][]model.TestOutcome) []string {
	names := make([]string, 0, len(outcomes))
	for name := range outcomes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
