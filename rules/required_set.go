package rules

import (
	"fmt"
	"strings"

	"github.com/liamcoop/gradcheck/catalog"
	"github.com/liamcoop/gradcheck/ledger"
)

// setStatus is the per-name view of a named course set over a catalog.
type setStatus struct {
	names      []string
	missing    []string
	completed  []string
	incomplete []string
	counted    []catalog.CourseRecord
	notCounted []catalog.CourseRecord
}

// inspectSet matches names against the catalog. A name is complete when any of its
// records counts toward a requirement.
func inspectSet(names []string, courses []catalog.CourseRecord, l ledger.Ledger) setStatus {
	s := setStatus{names: uniqueNames(names)}

	byName := make(map[string][]catalog.CourseRecord, len(s.names))
	for _, c := range Select(courses, ByNames(s.names...)) {
		byName[c.Name] = append(byName[c.Name], c)
	}

	s.counted = make([]catalog.CourseRecord, 0, len(byName))
	s.notCounted = make([]catalog.CourseRecord, 0, len(byName))
	for _, name := range s.names {
		records, present := byName[name]
		if !present {
			s.missing = append(s.missing, name)
			continue
		}
		counted, notCounted := Partition(records, l)
		s.counted = append(s.counted, counted...)
		s.notCounted = append(s.notCounted, notCounted...)
		if len(counted) > 0 {
			s.completed = append(s.completed, name)
		} else {
			s.incomplete = append(s.incomplete, name)
		}
	}
	return s
}

func (s setStatus) details(total, completed int) *Details {
	return &Details{
		Total:           total,
		Completed:       completed,
		CompletedItems:  s.counted,
		IncompleteItems: s.notCounted,
		MissingCourses:  s.missing,
	}
}

func missingResult(label string, s setStatus, total, completed int) Result {
	return Result{
		Satisfied: false,
		Message:   fmt.Sprintf("%s: not offered in the catalog: %s", label, strings.Join(s.missing, ", ")),
		Details:   s.details(total, completed),
	}
}

func evaluateSet(label string, names []string, courses []catalog.CourseRecord, l ledger.Ledger) Result {
	s := inspectSet(names, courses, l)
	total, completed := len(s.names), len(s.completed)

	if len(s.missing) > 0 {
		return missingResult(label, s, total, completed)
	}
	if len(s.incomplete) > 0 {
		return Result{
			Satisfied: false,
			Message: fmt.Sprintf("%s: %d of %d required courses completed (incomplete: %s)",
				label, completed, total, strings.Join(s.incomplete, ", ")),
			Details: s.details(total, completed),
		}
	}
	return Result{
		Satisfied: true,
		Message:   fmt.Sprintf("%s: all %d required courses completed", label, total),
		Details:   s.details(total, completed),
	}
}

// RequiredSet returns a rule satisfied when every named course is in the catalog and
// counts toward a requirement. Names absent from the catalog fail the rule and are
// reported separately from incomplete courses.
func RequiredSet(id, name, label string, names []string) Rule {
	if label == "" {
		label = name
	}
	names = uniqueNames(names)
	return NewRule(id, name, func(courses []catalog.CourseRecord, l ledger.Ledger) Result {
		return evaluateSet(label, names, courses, l)
	})
}

// SelectedSet returns a rule satisfied when every catalog record matching p counts
// toward a requirement. Records are checked one by one, so two selected records that
// share a name must both count. An empty selection is satisfied.
func SelectedSet(id, name, label string, p Predicate) Rule {
	if label == "" {
		label = name
	}
	return NewRule(id, name, func(courses []catalog.CourseRecord, l ledger.Ledger) Result {
		counted, notCounted := Partition(Select(courses, p), l)
		total, completed := len(counted)+len(notCounted), len(counted)
		details := &Details{
			Total:           total,
			Completed:       completed,
			CompletedItems:  counted,
			IncompleteItems: notCounted,
		}

		if len(notCounted) > 0 {
			incomplete := make([]string, 0, len(notCounted))
			for _, c := range notCounted {
				incomplete = append(incomplete, fmt.Sprintf("%s (%s)", c.Name, c.Code))
			}
			return Result{
				Satisfied: false,
				Message: fmt.Sprintf("%s: %d of %d required courses completed (incomplete: %s)",
					label, completed, total, strings.Join(incomplete, ", ")),
				Details: details,
			}
		}
		return Result{
			Satisfied: true,
			Message:   fmt.Sprintf("%s: all %d required courses completed", label, total),
			Details:   details,
		}
	})
}
