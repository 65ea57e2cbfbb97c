package rules

import (
	"github.com/liamcoop/gradcheck/catalog"
	"github.com/liamcoop/gradcheck/ledger"
)

// CountsTowardRequirement reports whether the course is credit-earned or planned.
func CountsTowardRequirement(course catalog.CourseRecord, l ledger.Ledger) bool {
	return l.Get(course.Code).Counts()
}

// FilterCounted returns the courses that count toward a requirement, in input order.
func FilterCounted(courses []catalog.CourseRecord, l ledger.Ledger) []catalog.CourseRecord {
	counted, _ := Partition(courses, l)
	return counted
}

// FilterNotCounted returns the courses that do not count yet, in input order.
func FilterNotCounted(courses []catalog.CourseRecord, l ledger.Ledger) []catalog.CourseRecord {
	_, rest := Partition(courses, l)
	return rest
}

// Partition splits courses into counted and not-counted subsets. Every input course
// lands in exactly one of them.
func Partition(courses []catalog.CourseRecord, l ledger.Ledger) (counted, notCounted []catalog.CourseRecord) {
	counted = make([]catalog.CourseRecord, 0, len(courses))
	notCounted = make([]catalog.CourseRecord, 0, len(courses))
	for _, c := range courses {
		if CountsTowardRequirement(c, l) {
			counted = append(counted, c)
		} else {
			notCounted = append(notCounted, c)
		}
	}
	return counted, notCounted
}

// Predicate selects courses.
type Predicate func(catalog.CourseRecord) bool

// Select returns the courses matching p, in input order. A nil predicate matches all.
func Select(courses []catalog.CourseRecord, p Predicate) []catalog.CourseRecord {
	out := make([]catalog.CourseRecord, 0, len(courses))
	for _, c := range courses {
		if p == nil || p(c) {
			out = append(out, c)
		}
	}
	return out
}

func ByProgram(program string) Predicate {
	return func(c catalog.CourseRecord) bool { return c.Program == program }
}

func ByCategory1(category string) Predicate {
	return func(c catalog.CourseRecord) bool { return c.Category1 == category }
}

func ByCategory2(category string) Predicate {
	return func(c catalog.CourseRecord) bool { return c.Category2 == category }
}

func BySubjectKind(kind string) Predicate {
	return func(c catalog.CourseRecord) bool { return c.SubjectKind == kind }
}

func ByDepartment(department string) Predicate {
	return func(c catalog.CourseRecord) bool { return c.Department == department }
}

// MandatoryEnrollment matches courses flagged 必履修.
func MandatoryEnrollment() Predicate {
	return func(c catalog.CourseRecord) bool { return c.IsMandatoryEnrollment() }
}

// ByNames matches courses whose name is in names.
func ByNames(names ...string) Predicate {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return func(c catalog.CourseRecord) bool {
		_, ok := set[c.Name]
		return ok
	}
}

// All matches when every predicate matches. No predicates match everything.
func All(ps ...Predicate) Predicate {
	return func(c catalog.CourseRecord) bool {
		for _, p := range ps {
			if !p(c) {
				return false
			}
		}
		return true
	}
}

// Any matches when at least one predicate matches.
func Any(ps ...Predicate) Predicate {
	return func(c catalog.CourseRecord) bool {
		for _, p := range ps {
			if p(c) {
				return true
			}
		}
		return false
	}
}

func Not(p Predicate) Predicate {
	return func(c catalog.CourseRecord) bool { return !p(c) }
}

// uniqueNames drops empty and repeated names, keeping first occurrences.
func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
