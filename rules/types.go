package rules

import (
	"github.com/liamcoop/gradcheck/catalog"
	"github.com/liamcoop/gradcheck/ledger"
)

// EvalFunc evaluates a requirement over a catalog and a status ledger. It must not
// modify its inputs.
type EvalFunc func(courses []catalog.CourseRecord, l ledger.Ledger) Result

// Rule is a compiled graduation requirement.
type Rule struct {
	ID   string
	Name string
	eval EvalFunc
}

// NewRule wraps an evaluation function. The returned Result always carries the rule's
// ID and Name.
func NewRule(id, name string, eval EvalFunc) Rule {
	return Rule{ID: id, Name: name, eval: eval}
}

// Evaluate runs the rule.
func (r Rule) Evaluate(courses []catalog.CourseRecord, l ledger.Ledger) Result {
	res := r.eval(courses, l)
	res.ID = r.ID
	res.Name = r.Name
	return res
}

// Scoped restricts the catalog seen by r to the courses matching p.
func Scoped(r Rule, p Predicate) Rule {
	return NewRule(r.ID, r.Name, func(courses []catalog.CourseRecord, l ledger.Ledger) Result {
		return r.eval(Select(courses, p), l)
	})
}

// Result is the verdict of one rule.
type Result struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Satisfied bool     `json:"satisfied"`
	Message   string   `json:"message"`
	Details   *Details `json:"details,omitempty"`
}

// Details holds the quantities behind a Result. Total is the required amount and
// Completed the achieved amount, both in the rule's unit (credits, courses).
type Details struct {
	Total           int                    `json:"total"`
	Completed       int                    `json:"completed"`
	CompletedItems  []catalog.CourseRecord `json:"completedItems"`
	IncompleteItems []catalog.CourseRecord `json:"incompleteItems"`
	MissingCourses  []string               `json:"missingCourses,omitempty"`
}

// AggregateResult is the ordered list of results and their conjunction.
type AggregateResult struct {
	Results   []Result `json:"results"`
	Satisfied bool     `json:"satisfied"`
}

// Passed returns the number of satisfied results.
func (a AggregateResult) Passed() int {
	n := 0
	for _, r := range a.Results {
		if r.Satisfied {
			n++
		}
	}
	return n
}

// Failed returns the unsatisfied results in order.
func (a AggregateResult) Failed() []Result {
	var out []Result
	for _, r := range a.Results {
		if !r.Satisfied {
			out = append(out, r)
		}
	}
	return out
}
