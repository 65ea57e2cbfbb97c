package rules

import (
	"testing"

	"github.com/liamcoop/gradcheck/catalog"
	"github.com/liamcoop/gradcheck/ledger"
)

func TestCreditThresholdScenario(t *testing.T) {
	courses := sampleCatalog()
	l := ledger.Ledger{"G1": ledger.CreditEarned, "G2": ledger.CreditEarned, "G3": ledger.NotTaken}

	rule := CreditThreshold("general-credits", "General credits", "General", ByCategory1("一般"), 5)
	res := rule.Evaluate(courses, l)

	if !res.Satisfied {
		t.Errorf("Satisfied = false, want true (message %q)", res.Message)
	}
	if res.ID != "general-credits" || res.Name != "General credits" {
		t.Errorf("Result identity = (%q, %q), want rule ID and name", res.ID, res.Name)
	}
	if res.Details == nil {
		t.Fatal("Details should be set")
	}
	if res.Details.Completed != 5 {
		t.Errorf("Completed = %d, want 5", res.Details.Completed)
	}
	if res.Details.Total != 5 {
		t.Errorf("Total = %d, want 5", res.Details.Total)
	}
	if len(res.Details.CompletedItems) != 2 {
		t.Errorf("len(CompletedItems) = %d, want 2", len(res.Details.CompletedItems))
	}
	if len(res.Details.IncompleteItems) != 1 {
		t.Errorf("len(IncompleteItems) = %d, want 1", len(res.Details.IncompleteItems))
	}
	if res.Message != "General: 5 credits earned (required: 5)" {
		t.Errorf("Message = %q", res.Message)
	}
}

func TestCreditThresholdShortfallMessage(t *testing.T) {
	courses := sampleCatalog()
	l := ledger.Ledger{"G1": ledger.CreditEarned}

	res := CreditThreshold("r", "General credits", "", ByCategory1("一般"), 8).Evaluate(courses, l)
	if res.Satisfied {
		t.Fatal("Satisfied = true, want false")
	}
	want := "General credits: insufficient credits (current: 2, required: 8)"
	if res.Message != want {
		t.Errorf("Message = %q, want %q", res.Message, want)
	}
}

func TestCreditThresholdEmptySelection(t *testing.T) {
	testCases := []struct {
		name    string
		minimum int
		want    bool
	}{
		{"zero minimum", 0, true},
		{"positive minimum", 1, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rule := CreditThreshold("r", "Rule", "", ByCategory1("none"), tc.minimum)
			for _, courses := range [][]catalog.CourseRecord{nil, sampleCatalog()} {
				res := rule.Evaluate(courses, nil)
				if res.Satisfied != tc.want {
					t.Errorf("Satisfied = %v, want %v", res.Satisfied, tc.want)
				}
				if res.Details.Completed != 0 {
					t.Errorf("Completed = %d, want 0", res.Details.Completed)
				}
			}
		})
	}
}

func TestCreditThresholdMonotonic(t *testing.T) {
	courses := sampleCatalog()

	for _, l := range allLedgers(codesOf(courses)) {
		prev := true
		for minimum := 0; minimum <= 10; minimum++ {
			res := CreditThreshold("r", "Rule", "", nil, minimum).Evaluate(courses, l)
			if res.Satisfied && !prev {
				t.Fatalf("Raising the minimum to %d flipped the verdict to satisfied for ledger %v", minimum, l)
			}
			prev = res.Satisfied
		}
	}
}

func TestCountThreshold(t *testing.T) {
	courses := []catalog.CourseRecord{
		withKind(course("H1", "歴史学", 2), "人文"),
		withKind(course("H2", "技術史", 2), "人文"),
		withKind(course("H3", "哲学", 1), "人文"),
		withKind(course("E1", "総合英語Ⅰ", 2), "英語"),
	}
	l := ledger.Ledger{
		"H1": ledger.CreditEarned,
		"H2": ledger.PlannedEnrollment,
		"H3": ledger.PlannedEnrollmentExpectedFail,
		"E1": ledger.CreditEarned,
	}

	testCases := []struct {
		minimum int
		want    bool
		message string
	}{
		{2, true, "Humanities: 2 courses completed (required: 2 or more)"},
		{3, false, "Humanities: insufficient courses (current: 2, required: 3 or more)"},
	}

	for _, tc := range testCases {
		res := CountThreshold("humanities", "Humanities courses", "Humanities", BySubjectKind("人文"), tc.minimum).Evaluate(courses, l)
		if res.Satisfied != tc.want {
			t.Errorf("minimum %d: Satisfied = %v, want %v", tc.minimum, res.Satisfied, tc.want)
		}
		if res.Message != tc.message {
			t.Errorf("minimum %d: Message = %q, want %q", tc.minimum, res.Message, tc.message)
		}
		if res.Details.Completed != 2 || len(res.Details.IncompleteItems) != 1 {
			t.Errorf("minimum %d: Details = %+v", tc.minimum, res.Details)
		}
	}
}

// Changing a course between failed-no-credit and not-taken must never change a verdict
// or a completed count.
func TestNonCountingStatusesAreEquivalent(t *testing.T) {
	courses := append(sampleCatalog(), mandatory(course("R1", "卒業研究", 8)))
	rulesUnderTest := []Rule{
		CreditThreshold("credits", "Credits", "", nil, 6),
		CountThreshold("count", "Count", "", nil, 2),
		RequiredSet("required", "Required", "", []string{"歴史学", "技術史", "卒業研究"}),
		SelectedSet("mandatory", "Mandatory", "", MandatoryEnrollment()),
		EnrollmentCount("enroll", "Enroll", "", []string{"歴史学", "技術史", "技術者倫理"}, 2, nil),
	}

	for _, l := range allLedgers(codesOf(courses)) {
		for code, st := range l {
			if st != ledger.FailedNoCredit && st != ledger.NotTaken {
				continue
			}
			swapped := l.Clone()
			if st == ledger.FailedNoCredit {
				swapped[code] = ledger.NotTaken
			} else {
				swapped[code] = ledger.FailedNoCredit
			}

			for _, r := range rulesUnderTest {
				a, b := r.Evaluate(courses, l), r.Evaluate(courses, swapped)
				if a.Satisfied != b.Satisfied || a.Details.Completed != b.Details.Completed {
					t.Fatalf("%s changed when %s moved from %s to %s", r.ID, code, st, swapped[code])
				}
			}
		}
	}
}

func TestThresholdDoesNotModifyInputs(t *testing.T) {
	courses := sampleCatalog()
	l := ledger.Ledger{"G1": ledger.CreditEarned}

	CreditThreshold("r", "Rule", "", nil, 3).Evaluate(courses, l)

	if len(l) != 1 {
		t.Errorf("Ledger was modified: %v", l)
	}
	if len(courses) != 3 || courses[0].Code != "G1" {
		t.Errorf("Catalog was modified: %v", courses)
	}
}
