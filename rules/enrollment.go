package rules

import (
	"fmt"
	"strings"

	"github.com/liamcoop/gradcheck/catalog"
	"github.com/liamcoop/gradcheck/ledger"
)

// DefaultEnrolledStatuses are the states that mean a student is enrolled in a course.
// Currently enrolled courses are recorded as planned enrollment by ledger.ParseStatus.
var DefaultEnrolledStatuses = []ledger.Status{ledger.CreditEarned, ledger.PlannedEnrollment}

// EnrollmentCount returns a rule that requires every named course to be enrolled and at
// least minCompleted of them to count toward a requirement. Names absent from the
// catalog fail the rule before enrollment is checked. A nil enrolled set means
// DefaultEnrolledStatuses.
func EnrollmentCount(id, name, label string, names []string, minCompleted int, enrolled []ledger.Status) Rule {
	if label == "" {
		label = name
	}
	if len(enrolled) == 0 {
		enrolled = DefaultEnrolledStatuses
	}
	isEnrolled := make(map[ledger.Status]bool, len(enrolled))
	for _, st := range enrolled {
		isEnrolled[st] = true
	}
	names = uniqueNames(names)

	return NewRule(id, name, func(courses []catalog.CourseRecord, l ledger.Ledger) Result {
		s := inspectSet(names, courses, l)
		completed := len(s.completed)

		if len(s.missing) > 0 {
			return missingResult(label, s, minCompleted, completed)
		}

		enrolledNames := make(map[string]bool, len(s.names))
		for _, c := range Select(courses, ByNames(s.names...)) {
			if isEnrolled[l.Get(c.Code)] {
				enrolledNames[c.Name] = true
			}
		}
		var notEnrolled []string
		for _, n := range s.names {
			if !enrolledNames[n] {
				notEnrolled = append(notEnrolled, n)
			}
		}

		switch {
		case len(notEnrolled) > 0:
			return Result{
				Satisfied: false,
				Message:   fmt.Sprintf("%s: not yet enrolled: %s", label, strings.Join(notEnrolled, ", ")),
				Details:   s.details(minCompleted, completed),
			}
		case completed < minCompleted:
			return Result{
				Satisfied: false,
				Message: fmt.Sprintf("%s: enrolled in all %d courses but only %d completed (required: %d or more)",
					label, len(s.names), completed, minCompleted),
				Details: s.details(minCompleted, completed),
			}
		default:
			return Result{
				Satisfied: true,
				Message: fmt.Sprintf("%s: enrolled in all %d courses, %d completed (required: %d or more)",
					label, len(s.names), completed, minCompleted),
				Details: s.details(minCompleted, completed),
			}
		}
	})
}
