package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/liamcoop/gradcheck/catalog"
)

// selectorCostLimit bounds the work a single selector evaluation may do.
const selectorCostLimit = 1000000

var selectorEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("course", cel.MapType(cel.StringType, cel.DynType)),
	)
})

// CompileSelector compiles a CEL expression over the variable "course" into a
// Predicate. Course fields use snake_case names (program, category1, subject_kind,
// credits, ...); credits is an int. A course matches only when the expression
// evaluates to true; errors and non-boolean values do not match.
func CompileSelector(expression string) (Predicate, error) {
	env, err := selectorEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}

	prog, err := env.Program(ast, cel.CostLimit(selectorCostLimit))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}

	return func(c catalog.CourseRecord) bool {
		out, _, err := prog.Eval(map[string]any{"course": courseFacts(c)})
		if err != nil {
			return false
		}
		matched, ok := out.Value().(bool)
		return ok && matched
	}, nil
}

func courseFacts(c catalog.CourseRecord) map[string]any {
	return map[string]any{
		"program":                c.Program,
		"category1":              c.Category1,
		"category2":              c.Category2,
		"name":                   c.Name,
		"code":                   c.Code,
		"credit_type":            c.CreditType,
		"credits":                int64(c.Credits),
		"department":             c.Department,
		"year":                   c.Year,
		"term":                   c.Term,
		"instructor":             c.Instructor,
		"enrollment_requirement": c.EnrollmentRequirement,
		"subject_kind":           c.SubjectKind,
	}
}
