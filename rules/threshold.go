package rules

import (
	"fmt"

	"github.com/liamcoop/gradcheck/catalog"
	"github.com/liamcoop/gradcheck/ledger"
)

// aggregator reduces the counted courses of a threshold rule to a single number.
type aggregator func(counted []catalog.CourseRecord) int

func sumCredits(counted []catalog.CourseRecord) int {
	total := 0
	for _, c := range counted {
		total += c.Credits
	}
	return total
}

func countCourses(counted []catalog.CourseRecord) int {
	return len(counted)
}

type messages struct {
	satisfied   string
	unsatisfied string
}

var (
	creditMessages = messages{
		satisfied:   "%s: %d credits earned (required: %d)",
		unsatisfied: "%s: insufficient credits (current: %d, required: %d)",
	}
	countMessages = messages{
		satisfied:   "%s: %d courses completed (required: %d or more)",
		unsatisfied: "%s: insufficient courses (current: %d, required: %d or more)",
	}
)

func threshold(id, name, label string, p Predicate, minimum int, agg aggregator, msgs messages) Rule {
	if label == "" {
		label = name
	}
	return NewRule(id, name, func(courses []catalog.CourseRecord, l ledger.Ledger) Result {
		selected := Select(courses, p)
		counted, notCounted := Partition(selected, l)
		achieved := agg(counted)

		satisfied := achieved >= minimum
		format := msgs.unsatisfied
		if satisfied {
			format = msgs.satisfied
		}

		return Result{
			Satisfied: satisfied,
			Message:   fmt.Sprintf(format, label, achieved, minimum),
			Details: &Details{
				Total:           minimum,
				Completed:       achieved,
				CompletedItems:  counted,
				IncompleteItems: notCounted,
			},
		}
	})
}

// CreditThreshold returns a rule satisfied when the counted courses matching p carry
// at least minCredits credits.
func CreditThreshold(id, name, label string, p Predicate, minCredits int) Rule {
	return threshold(id, name, label, p, minCredits, sumCredits, creditMessages)
}

// CountThreshold returns a rule satisfied when at least minCount courses matching p
// are counted.
func CountThreshold(id, name, label string, p Predicate, minCount int) Rule {
	return threshold(id, name, label, p, minCount, countCourses, countMessages)
}
