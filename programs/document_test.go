package programs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/liamcoop/gradcheck/catalog"
	"github.com/liamcoop/gradcheck/ledger"
	"github.com/liamcoop/gradcheck/rules"
)

const sampleYAML = `
id: sample
name: Sample program
rules:
  - id: general
    name: General credits
    kind: credits
    selector: course.subject_kind == "一般科目"
    minimum: 4
  - id: retired
    name: Retired rule
    kind: count
    selector: "true"
    minimum: 1
    active: false
  - id: core
    name: Core courses
    kind: enrollment-count
    courses: [歴史学, 技術史]
    minimum: 1
    enrolled: [単位取得済み, 履修中]
`

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("ParseDocument() failed: %v", err)
	}

	defs := doc.Definitions()
	if len(defs) != 3 {
		t.Fatalf("Definitions() = %d, want 3", len(defs))
	}
	for i, def := range defs {
		if def.Position != i+1 {
			t.Errorf("%s: Position = %d, want %d", def.ID, def.Position, i+1)
		}
	}
	if !defs[0].Active || defs[1].Active || !defs[2].Active {
		t.Errorf("Active flags = %v %v %v, want true false true", defs[0].Active, defs[1].Active, defs[2].Active)
	}

	enrolled := defs[2].Enrolled
	if len(enrolled) != 2 || enrolled[0] != ledger.CreditEarned || enrolled[1] != ledger.PlannedEnrollment {
		t.Errorf("Enrolled = %v, want labels normalized to canonical statuses", enrolled)
	}
}

func TestParseDocument_StructuralErrors(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{
			name:  "missing rules",
			yaml:  "id: p\nname: P\n",
			field: "(root)",
		},
		{
			name:  "unknown kind",
			yaml:  "id: p\nname: P\nrules:\n  - {id: r, name: R, kind: average}\n",
			field: "rules.0.kind",
		},
		{
			name:  "negative minimum",
			yaml:  "id: p\nname: P\nrules:\n  - {id: r, name: R, kind: count, selector: 'true', minimum: -1}\n",
			field: "rules.0.minimum",
		},
		{
			name:  "unknown property",
			yaml:  "id: p\nname: P\nrules:\n  - {id: r, name: R, kind: count, selector: 'true', threshold: 3}\n",
			field: "rules.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDocument([]byte(tt.yaml))
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("ParseDocument() = %v, want *ValidationError", err)
			}
			found := false
			for _, fe := range ve.Errors {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("Fields = %v, want %s", fieldsOf(err), tt.field)
			}
		})
	}
}

func TestParseDocument_InvalidYAML(t *testing.T) {
	_, err := ParseDocument([]byte("id: [unclosed"))
	if err == nil {
		t.Fatal("Expected an error")
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		t.Error("A YAML syntax error should not be reported as a validation error")
	}
}

func TestParseDocument_UnknownEnrolledStatus(t *testing.T) {
	yaml := "id: p\nname: P\nrules:\n  - {id: r, name: R, kind: enrollment-count, courses: [A], enrolled: [graduated]}\n"
	if _, err := ParseDocument([]byte(yaml)); err == nil {
		t.Error("Expected an error for an unknown status")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if doc.ID != "sample" {
		t.Errorf("ID = %q, want sample", doc.ID)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestDefaults(t *testing.T) {
	docs, err := Defaults()
	if err != nil {
		t.Fatalf("Defaults() failed: %v", err)
	}

	want := map[string]int{"advanced-course": 6, "information-science": 1, "jabee": 13}
	if len(docs) != len(want) {
		t.Fatalf("Defaults() = %d documents, want %d", len(docs), len(want))
	}
	for i, doc := range docs {
		if i > 0 && docs[i-1].ID >= doc.ID {
			t.Errorf("Defaults() not ordered by ID: %s before %s", docs[i-1].ID, doc.ID)
		}
		if n, ok := want[doc.ID]; !ok || len(doc.Rules) != n {
			t.Errorf("%s: %d rules, want %d", doc.ID, len(doc.Rules), n)
		}
		if _, err := rules.CompileAll(doc.Definitions()); err != nil {
			t.Errorf("%s: %v", doc.ID, err)
		}
	}

	docs[0].Rules = nil
	again, _ := Defaults()
	if len(again[0].Rules) == 0 {
		t.Error("Defaults() should return fresh copies")
	}
}

func TestDefault(t *testing.T) {
	doc, err := Default("jabee")
	if err != nil {
		t.Fatalf("Default() failed: %v", err)
	}
	if doc.ID != "jabee" {
		t.Errorf("ID = %q", doc.ID)
	}

	if _, err := Default("unknown"); !errors.Is(err, ErrProgramNotFound) {
		t.Errorf("Default(unknown) = %v, want ErrProgramNotFound", err)
	}
}

func informationScienceCatalog(t *testing.T) []catalog.CourseRecord {
	t.Helper()
	doc, err := Default("information-science")
	if err != nil {
		t.Fatal(err)
	}
	var courses []catalog.CourseRecord
	for i, name := range doc.Rules[0].Courses {
		courses = append(courses, catalog.CourseRecord{
			Program: catalog.ProgramMain, Name: name, Code: "IS" + string(rune('A'+i)), Credits: 2,
		})
	}
	return courses
}

func TestDefaults_InformationScienceEvaluation(t *testing.T) {
	courses := informationScienceCatalog(t)
	l := ledger.Ledger{}
	for _, c := range courses {
		l[c.Code] = ledger.CreditEarned
	}

	doc, _ := Default("information-science")
	rs, err := rules.CompileAll(doc.Definitions())
	if err != nil {
		t.Fatal(err)
	}

	agg := rules.Aggregate(rs, courses, l)
	if !agg.Satisfied {
		t.Errorf("All 19 courses earned should satisfy the program: %+v", agg.Results)
	}
	if agg.Results[0].Details.Completed != 19 {
		t.Errorf("Completed = %d, want 19", agg.Results[0].Details.Completed)
	}

	agg = rules.Aggregate(rs, courses[1:], l)
	if agg.Satisfied {
		t.Error("A required course missing from the catalog should fail the program")
	}
	if !strings.Contains(agg.Results[0].Message, courses[0].Name) {
		t.Errorf("Message %q should name the missing course", agg.Results[0].Message)
	}
}
