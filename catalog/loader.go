package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type loadOptions struct {
	source          string
	allowDuplicates bool
}

// Option configures Load.
type Option func(*loadOptions)

// WithSource names the input in row errors.
func WithSource(name string) Option {
	return func(o *loadOptions) { o.source = name }
}

// WithAllowDuplicates disables the duplicate course code check.
func WithAllowDuplicates() Option {
	return func(o *loadOptions) { o.allowDuplicates = true }
}

// ParseCredits parses a credit value as a positive base-10 integer.
// Leading digits followed by garbage ("2単位") are rejected.
func ParseCredits(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, errors.New("credit value is empty")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("credit value %q is not an integer", raw)
	}
	if n <= 0 {
		return 0, fmt.Errorf("credit value %d must be positive", n)
	}
	return n, nil
}

// Load reads a syllabus file. The first record is a header and is discarded; every
// other record must have exactly len(Columns) fields. Loading stops at the first
// invalid row.
func Load(r io.Reader, opts ...Option) ([]CourseRecord, error) {
	o := loadOptions{source: "-"}
	for _, opt := range opts {
		opt(&o)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	var courses []CourseRecord
	seen := make(map[string]int)
	header := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				line = parseErr.Line
			}
			return nil, &RowError{Source: o.source, Line: line, Err: err}
		}
		if header {
			header = false
			continue
		}
		line, _ := reader.FieldPos(0)
		if len(record) != len(Columns) {
			return nil, &RowError{
				Source: o.source,
				Line:   line,
				Err:    fmt.Errorf("expected %d fields, got %d", len(Columns), len(record)),
			}
		}

		course, err := parseRecord(record)
		if err != nil {
			var rowErr *RowError
			if errors.As(err, &rowErr) {
				rowErr.Source, rowErr.Line = o.source, line
				return nil, rowErr
			}
			return nil, &RowError{Source: o.source, Line: line, Err: err}
		}

		if !o.allowDuplicates {
			if first, dup := seen[course.Code]; dup {
				return nil, &RowError{
					Source: o.source,
					Line:   line,
					Field:  "科目番号",
					Err:    fmt.Errorf("%w %s (first seen on line %d)", ErrDuplicateCode, course.Code, first),
				}
			}
			seen[course.Code] = line
		}
		courses = append(courses, course)
	}

	return courses, nil
}

// LoadFiles loads and concatenates syllabus files in argument order. Duplicate codes
// are checked across files as well unless WithAllowDuplicates is given. WithSource is
// set per file.
func LoadFiles(paths []string, opts ...Option) ([]CourseRecord, error) {
	o := loadOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	var all []CourseRecord
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open catalog file: %w", err)
		}
		courses, err := Load(f, append(opts[:len(opts):len(opts)], WithSource(path))...)
		f.Close()
		if err != nil {
			return nil, err
		}
		all = append(all, courses...)
	}

	if !o.allowDuplicates {
		if err := CheckUnique(all); err != nil {
			return nil, err
		}
	}
	return all, nil
}

// CheckUnique returns an error wrapping ErrDuplicateCode if two courses share a code.
func CheckUnique(courses []CourseRecord) error {
	seen := make(map[string]struct{}, len(courses))
	for _, c := range courses {
		if _, dup := seen[c.Code]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateCode, c.Code)
		}
		seen[c.Code] = struct{}{}
	}
	return nil
}

func parseRecord(record []string) (CourseRecord, error) {
	field := func(i int) string { return strings.TrimSpace(record[i]) }

	credits, err := ParseCredits(record[6])
	if err != nil {
		return CourseRecord{}, &RowError{Field: Columns[6], Err: err}
	}

	course := CourseRecord{
		Program:               field(0),
		Category1:             field(1),
		Category2:             field(2),
		Name:                  field(3),
		Code:                  field(4),
		CreditType:            field(5),
		Credits:               credits,
		Department:            field(7),
		Year:                  field(8),
		Term:                  field(9),
		Instructor:            field(10),
		EnrollmentRequirement: field(11),
		SubjectKind:           field(12),
	}

	if err := Validate(course); err != nil {
		return CourseRecord{}, err
	}
	return course, nil
}

// Validate checks the required fields of a course record.
func Validate(course CourseRecord) error {
	if err := validate.Struct(course); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &RowError{Field: verrs[0].Field(), Err: fmt.Errorf("failed %q validation", verrs[0].Tag())}
		}
		return err
	}
	return nil
}
