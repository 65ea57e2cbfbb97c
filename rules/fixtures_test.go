package rules

import (
	"github.com/liamcoop/gradcheck/catalog"
	"github.com/liamcoop/gradcheck/ledger"
)

func course(code, name string, credits int) catalog.CourseRecord {
	return catalog.CourseRecord{
		Program:     catalog.ProgramAdvanced,
		Category1:   "一般",
		Category2:   "選択",
		Name:        name,
		Code:        code,
		Credits:     credits,
		SubjectKind: "一般科目",
	}
}

func withKind(c catalog.CourseRecord, kind string) catalog.CourseRecord {
	c.SubjectKind = kind
	return c
}

func mandatory(c catalog.CourseRecord) catalog.CourseRecord {
	c.EnrollmentRequirement = catalog.EnrollmentMandatory
	return c
}

// sampleCatalog has three general courses worth 2, 3 and 4 credits.
func sampleCatalog() []catalog.CourseRecord {
	return []catalog.CourseRecord{
		course("G1", "歴史学", 2),
		course("G2", "技術史", 3),
		course("G3", "技術者倫理", 4),
	}
}

// allLedgers enumerates every assignment of the five states to codes.
func allLedgers(codes []string) []ledger.Ledger {
	out := []ledger.Ledger{{}}
	for _, code := range codes {
		var next []ledger.Ledger
		for _, l := range out {
			for _, st := range ledger.Statuses {
				cp := l.Clone()
				cp[code] = st
				next = append(next, cp)
			}
		}
		out = next
	}
	return out
}

func codesOf(courses []catalog.CourseRecord) []string {
	return catalog.Codes(courses)
}
