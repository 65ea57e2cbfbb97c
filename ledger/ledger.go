package ledger

import (
	"github.com/liamcoop/gradcheck/catalog"
)

// Ledger maps course codes to statuses. A code missing from the map is NotTaken.
type Ledger map[string]Status

// Get returns the status recorded for code.
func (l Ledger) Get(code string) Status {
	if st, ok := l[code]; ok {
		return st
	}
	return NotTaken
}

// Counts reports whether the course counts toward a requirement.
func (l Ledger) Counts(course catalog.CourseRecord) bool {
	return l.Get(course.Code).Counts()
}

// Normalize returns a copy holding an entry for every catalog course. Codes that are
// not in the catalog are kept.
func (l Ledger) Normalize(courses []catalog.CourseRecord) Ledger {
	out := make(Ledger, len(courses))
	for code, st := range l {
		out[code] = st
	}
	for _, c := range courses {
		if _, ok := out[c.Code]; !ok {
			out[c.Code] = NotTaken
		}
	}
	return out
}

// Clone returns a shallow copy.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for code, st := range l {
		out[code] = st
	}
	return out
}

// Tally counts the courses in each state, treating absent codes as NotTaken.
func (l Ledger) Tally(courses []catalog.CourseRecord) map[Status]int {
	tally := make(map[Status]int, len(Statuses))
	for _, c := range courses {
		tally[l.Get(c.Code)]++
	}
	return tally
}
