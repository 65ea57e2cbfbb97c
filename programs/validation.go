package programs

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/liamcoop/gradcheck/rules"
)

// MaxRules bounds the number of rules in one program.
const MaxRules = 200

var ErrProgramNotFound = errors.New("program not found")

// DocumentSchema is the JSON Schema every program document must satisfy.
const DocumentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "name", "rules"],
  "additionalProperties": false,
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "rules": {"type": "array", "items": {"$ref": "#/definitions/rule"}}
  },
  "definitions": {
    "rule": {
      "type": "object",
      "required": ["id", "name", "kind"],
      "additionalProperties": false,
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "name": {"type": "string", "minLength": 1},
        "kind": {"enum": ["credits", "count", "required-set", "selected-set", "enrollment-count"]},
        "label": {"type": "string"},
        "selector": {"type": "string"},
        "courses": {"type": "array", "items": {"type": "string", "minLength": 1}},
        "minimum": {"type": "integer", "minimum": 0},
        "enrolled": {"type": "array", "items": {"type": "string", "minLength": 1}},
        "active": {"type": "boolean"}
      }
    }
  }
}`

var documentSchema = gojsonschema.NewStringLoader(DocumentSchema)

// ValidationError lists every problem found in a program document.
type ValidationError struct {
	Errors []FieldError
}

// FieldError is a single problem at a field path such as rules.2.minimum.
type FieldError struct {
	Field   string
	Message string
	Err     error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("program validation failed:")
	for i, err := range ve.Errors {
		fmt.Fprintf(&sb, "\n  %d. %s: %s", i+1, err.Field, err.Message)
	}
	return sb.String()
}

// Unwrap exposes the underlying causes, such as rules.ErrInvalidDefinition.
func (ve *ValidationError) Unwrap() []error {
	var errs []error
	for _, fe := range ve.Errors {
		if fe.Err != nil {
			errs = append(errs, fe.Err)
		}
	}
	return errs
}

func (ve *ValidationError) add(field, format string, args ...any) {
	ve.Errors = append(ve.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (ve *ValidationError) err() error {
	if len(ve.Errors) == 0 {
		return nil
	}
	return ve
}

// validateStructure checks a decoded YAML tree against DocumentSchema.
func validateStructure(raw any) error {
	result, err := gojsonschema.Validate(documentSchema, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return fmt.Errorf("failed to validate program document: %w", err)
	}
	if result.Valid() {
		return nil
	}

	ve := &ValidationError{}
	for _, re := range result.Errors() {
		ve.add(re.Field(), "%s", re.Description())
	}
	return ve
}

// ValidateDocument checks identifiers, rule count, duplicate rule IDs and that every
// rule compiles.
func ValidateDocument(doc *Document) error {
	ve := &ValidationError{}

	if err := ValidateIdentifier(doc.ID); err != nil {
		ve.add("id", "%v", err)
	}
	if strings.TrimSpace(doc.Name) == "" {
		ve.add("name", "name is required")
	}
	if len(doc.Rules) > MaxRules {
		ve.add("rules", "program contains %d rules, maximum allowed is %d", len(doc.Rules), MaxRules)
	}

	seen := make(map[string]int, len(doc.Rules))
	for i, def := range doc.Definitions() {
		field := fmt.Sprintf("rules.%d", i)
		if err := ValidateIdentifier(def.ID); err != nil {
			ve.add(field+".id", "%v", err)
			continue
		}
		if j, dup := seen[def.ID]; dup {
			ve.add(field+".id", "duplicate rule id %q (also rules.%d)", def.ID, j)
			continue
		}
		seen[def.ID] = i

		if _, err := rules.Compile(def); err != nil {
			ve.Errors = append(ve.Errors, FieldError{Field: field, Message: err.Error(), Err: err})
		}
	}

	return ve.err()
}

var identifierPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ValidateIdentifier checks a program or rule ID: 1 to 64 lowercase letters, digits,
// hyphens or underscores.
func ValidateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > 64 {
		return fmt.Errorf("identifier length %d exceeds maximum of 64 characters", len(name))
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("identifier %q must match pattern %s", name, identifierPattern)
	}
	return nil
}
