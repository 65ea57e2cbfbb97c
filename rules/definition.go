package rules

import (
	"errors"
	"fmt"
	"time"

	"github.com/liamcoop/gradcheck/ledger"
)

// Kind selects the evaluator a Definition compiles into.
type Kind string

const (
	KindCredits         Kind = "credits"
	KindCount           Kind = "count"
	KindRequiredSet     Kind = "required-set"
	KindSelectedSet     Kind = "selected-set"
	KindEnrollmentCount Kind = "enrollment-count"
)

// Kinds lists the supported kinds.
var Kinds = []Kind{KindCredits, KindCount, KindRequiredSet, KindSelectedSet, KindEnrollmentCount}

var (
	// ErrInvalidDefinition is wrapped by every Compile error.
	ErrInvalidDefinition = errors.New("invalid rule definition")
	ErrRuleNotFound      = errors.New("rule not found")
	ErrRuleExists        = errors.New("rule already exists")
)

// Definition is the stored, declarative form of a rule.
type Definition struct {
	ID        string          `json:"id" yaml:"id"`
	Name      string          `json:"name" yaml:"name"`
	Kind      Kind            `json:"kind" yaml:"kind"`
	Label     string          `json:"label,omitempty" yaml:"label,omitempty"`
	Selector  string          `json:"selector,omitempty" yaml:"selector,omitempty"`
	Courses   []string        `json:"courses,omitempty" yaml:"courses,omitempty"`
	Minimum   int             `json:"minimum" yaml:"minimum"`
	Enrolled  []ledger.Status `json:"enrolled,omitempty" yaml:"enrolled,omitempty"`
	Active    bool            `json:"active" yaml:"active"`
	Position  int             `json:"position" yaml:"position"`
	CreatedAt time.Time       `json:"createdAt" yaml:"-"`
	UpdatedAt time.Time       `json:"updatedAt" yaml:"-"`
}

func invalid(def *Definition, format string, args ...any) error {
	return fmt.Errorf("%w %q: %s", ErrInvalidDefinition, def.ID, fmt.Sprintf(format, args...))
}

// Compile validates def and builds its evaluator. For the threshold kinds the selector
// and the course list are combined with AND. For the set kinds a selector narrows the
// catalog the set is matched against.
func Compile(def *Definition) (Rule, error) {
	if def.ID == "" {
		return Rule{}, fmt.Errorf("%w: id is required", ErrInvalidDefinition)
	}
	if def.Name == "" {
		return Rule{}, invalid(def, "name is required")
	}
	if def.Minimum < 0 {
		return Rule{}, invalid(def, "minimum must not be negative, got %d", def.Minimum)
	}
	for _, st := range def.Enrolled {
		if !st.Valid() {
			return Rule{}, invalid(def, "unknown enrolled status %q", st)
		}
	}

	var selector Predicate
	if def.Selector != "" {
		p, err := CompileSelector(def.Selector)
		if err != nil {
			return Rule{}, invalid(def, "selector: %v", err)
		}
		selector = p
	}
	courses := uniqueNames(def.Courses)

	switch def.Kind {
	case KindCredits, KindCount:
		var ps []Predicate
		if selector != nil {
			ps = append(ps, selector)
		}
		if len(courses) > 0 {
			ps = append(ps, ByNames(courses...))
		}
		if len(ps) == 0 {
			return Rule{}, invalid(def, "%s rule needs a selector or a course list", def.Kind)
		}
		if def.Kind == KindCredits {
			return CreditThreshold(def.ID, def.Name, def.Label, All(ps...), def.Minimum), nil
		}
		return CountThreshold(def.ID, def.Name, def.Label, All(ps...), def.Minimum), nil

	case KindRequiredSet:
		if len(courses) == 0 {
			return Rule{}, invalid(def, "required-set rule needs a course list")
		}
		return scope(RequiredSet(def.ID, def.Name, def.Label, courses), selector), nil

	case KindSelectedSet:
		if selector == nil {
			return Rule{}, invalid(def, "selected-set rule needs a selector")
		}
		return SelectedSet(def.ID, def.Name, def.Label, selector), nil

	case KindEnrollmentCount:
		if len(courses) == 0 {
			return Rule{}, invalid(def, "enrollment-count rule needs a course list")
		}
		if def.Minimum > len(courses) {
			return Rule{}, invalid(def, "minimum %d exceeds the %d listed courses", def.Minimum, len(courses))
		}
		r := EnrollmentCount(def.ID, def.Name, def.Label, courses, def.Minimum, def.Enrolled)
		return scope(r, selector), nil

	default:
		return Rule{}, invalid(def, "unknown kind %q", def.Kind)
	}
}

func scope(r Rule, p Predicate) Rule {
	if p == nil {
		return r
	}
	return Scoped(r, p)
}

// CompileAll compiles definitions in order, stopping at the first error.
func CompileAll(defs []*Definition) ([]Rule, error) {
	out := make([]Rule, 0, len(defs))
	for _, def := range defs {
		r, err := Compile(def)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
