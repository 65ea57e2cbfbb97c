// Package catalog loads syllabus course records from tabular files.
package catalog

// Values of CourseRecord.Program found in the syllabus data.
const (
	ProgramMain     = "本科"
	ProgramAdvanced = "専攻科"
)

// EnrollmentMandatory marks a course every student of the department must enroll in.
const EnrollmentMandatory = "必履修"

// Columns is the fixed column order of a syllabus file.
var Columns = []string{
	"本科または専攻科",
	"科目区分1",
	"科目区分2",
	"授業科目",
	"科目番号",
	"単位種別",
	"単位数",
	"学科",
	"学年",
	"学期",
	"担当教員",
	"履修上の区分",
	"科における科目種",
}

// CourseRecord is a single syllabus row. Records are treated as immutable once loaded.
type CourseRecord struct {
	Program               string `json:"program" yaml:"program" validate:"required"`
	Category1             string `json:"category1" yaml:"category1"`
	Category2             string `json:"category2" yaml:"category2"`
	Name                  string `json:"name" yaml:"name" validate:"required"`
	Code                  string `json:"code" yaml:"code" validate:"required"`
	CreditType            string `json:"creditType" yaml:"credit_type"`
	Credits               int    `json:"credits" yaml:"credits" validate:"gt=0"`
	Department            string `json:"department" yaml:"department"`
	Year                  string `json:"year" yaml:"year"`
	Term                  string `json:"term" yaml:"term"`
	Instructor            string `json:"instructor" yaml:"instructor"`
	EnrollmentRequirement string `json:"enrollmentRequirement" yaml:"enrollment_requirement"`
	SubjectKind           string `json:"subjectKind" yaml:"subject_kind"`
}

// IsMandatoryEnrollment reports whether the course carries the mandatory-enrollment flag.
func (c CourseRecord) IsMandatoryEnrollment() bool {
	return c.EnrollmentRequirement == EnrollmentMandatory
}

// Codes returns the course codes of courses in input order.
func Codes(courses []CourseRecord) []string {
	codes := make([]string, 0, len(courses))
	for _, c := range courses {
		codes = append(codes, c.Code)
	}
	return codes
}

// Filter is a course-level condition used for catalog listings.
type Filter struct {
	Program     string
	Category1   string
	Category2   string
	SubjectKind string
	Department  string
}

// Apply returns the courses matching every non-empty field of the filter, keeping input order.
func (f Filter) Apply(courses []CourseRecord) []CourseRecord {
	out := make([]CourseRecord, 0, len(courses))
	for _, c := range courses {
		if f.Program != "" && c.Program != f.Program {
			continue
		}
		if f.Category1 != "" && c.Category1 != f.Category1 {
			continue
		}
		if f.Category2 != "" && c.Category2 != f.Category2 {
			continue
		}
		if f.SubjectKind != "" && c.SubjectKind != f.SubjectKind {
			continue
		}
		if f.Department != "" && c.Department != f.Department {
			continue
		}
		out = append(out, c)
	}
	return out
}
