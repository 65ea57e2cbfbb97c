package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "本科または専攻科,科目区分1,科目区分2,授業科目,科目番号,単位種別,単位数,学科,学年,学期,担当教員,履修上の区分,科における科目種\n"

func TestLoad_DropsHeaderAndParsesRows(t *testing.T) {
	data := header +
		"専攻科,一般,選択,技術者倫理,J001,学修単位,2,専攻共通,1,前期,教員A,区分なし,一般科目\n" +
		"専攻科,専門,必修,特別研究Ⅰ,J002,学修単位, 4 ,情報科学専攻,1,通年,教員B,必履修,専門科目\n"

	courses, err := Load(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, courses, 2)

	assert.Equal(t, "技術者倫理", courses[0].Name)
	assert.Equal(t, "J001", courses[0].Code)
	assert.Equal(t, 2, courses[0].Credits)
	assert.Equal(t, ProgramAdvanced, courses[0].Program)
	assert.Equal(t, "一般科目", courses[0].SubjectKind)

	assert.Equal(t, 4, courses[1].Credits)
	assert.True(t, courses[1].IsMandatoryEnrollment())
	assert.False(t, courses[0].IsMandatoryEnrollment())
}

func TestLoad_EmptyInput(t *testing.T) {
	courses, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, courses)

	courses, err = Load(strings.NewReader(header))
	require.NoError(t, err)
	assert.Empty(t, courses)
}

func TestLoad_RejectsMalformedCredits(t *testing.T) {
	tests := []struct {
		name    string
		credits string
		errMsg  string
	}{
		{name: "non-numeric", credits: "two", errMsg: "not an integer"},
		{name: "leading digits", credits: "2単位", errMsg: "not an integer"},
		{name: "empty", credits: "", errMsg: "empty"},
		{name: "zero", credits: "0", errMsg: "positive"},
		{name: "negative", credits: "-1", errMsg: "positive"},
		{name: "fraction", credits: "1.5", errMsg: "not an integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := header +
				"専攻科,一般,選択,技術者倫理,J001,学修単位,2,専攻共通,1,前期,教員A,区分なし,一般科目\n" +
				"専攻科,一般,選択,歴史学,J002,学修単位," + tt.credits + ",専攻共通,1,前期,教員A,区分なし,一般科目\n"

			_, err := Load(strings.NewReader(data), WithSource("syllabus_j.csv"))
			require.Error(t, err)

			var rowErr *RowError
			require.True(t, errors.As(err, &rowErr))
			assert.Equal(t, "syllabus_j.csv", rowErr.Source)
			assert.Equal(t, 3, rowErr.Line)
			assert.Equal(t, "単位数", rowErr.Field)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoad_RejectsWrongFieldCount(t *testing.T) {
	data := header + "専攻科,一般,選択,技術者倫理,J001\n"

	_, err := Load(strings.NewReader(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 13 fields")
}

func TestLoad_RejectsMissingRequiredFields(t *testing.T) {
	data := header + "専攻科,一般,選択,技術者倫理,,学修単位,2,専攻共通,1,前期,教員A,区分なし,一般科目\n"

	_, err := Load(strings.NewReader(data))
	require.Error(t, err)

	var rowErr *RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, "Code", rowErr.Field)
}

func TestLoad_DuplicateCodes(t *testing.T) {
	data := header +
		"専攻科,一般,選択,技術者倫理,J001,学修単位,2,専攻共通,1,前期,教員A,区分なし,一般科目\n" +
		"専攻科,一般,選択,歴史学,J001,学修単位,2,専攻共通,1,前期,教員A,区分なし,一般科目\n"

	_, err := Load(strings.NewReader(data))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateCode))

	courses, err := Load(strings.NewReader(data), WithAllowDuplicates())
	require.NoError(t, err)
	assert.Len(t, courses, 2)
}

func TestLoadFiles_ConcatenatesInOrder(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "syllabus_i4.csv")
	second := filepath.Join(dir, "syllabus_j.csv")

	require.NoError(t, os.WriteFile(first, []byte(header+
		"本科,専門,必修,プログラミング入門,I001,履修単位,2,情報工学科,4,前期,教員A,必履修,専門科目\n"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte(header+
		"専攻科,一般,選択,技術者倫理,J001,学修単位,2,専攻共通,1,前期,教員B,区分なし,一般科目\n"), 0o644))

	courses, err := LoadFiles([]string{first, second})
	require.NoError(t, err)
	assert.Equal(t, []string{"I001", "J001"}, Codes(courses))
}

func TestLoadFiles_DuplicateAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	row := "専攻科,一般,選択,技術者倫理,J001,学修単位,2,専攻共通,1,前期,教員B,区分なし,一般科目\n"
	first := filepath.Join(dir, "a.csv")
	second := filepath.Join(dir, "b.csv")
	require.NoError(t, os.WriteFile(first, []byte(header+row), 0o644))
	require.NoError(t, os.WriteFile(second, []byte(header+row), 0o644))

	_, err := LoadFiles([]string{first, second})
	assert.True(t, errors.Is(err, ErrDuplicateCode))

	courses, err := LoadFiles([]string{first, second}, WithAllowDuplicates())
	require.NoError(t, err)
	assert.Equal(t, []string{"J001", "J001"}, Codes(courses))
}

func TestLoadFiles_RowErrorsNameTheFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.csv")
	require.NoError(t, os.WriteFile(path, []byte(header+
		"専攻科,一般,選択,技術者倫理,J001,学修単位,二,専攻共通,1,前期,教員B,区分なし,一般科目\n"), 0o644))

	_, err := LoadFiles([]string{path}, WithSource("ignored"))
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, path, rowErr.Source)
}

func TestLoadFiles_MissingFile(t *testing.T) {
	_, err := LoadFiles([]string{filepath.Join(t.TempDir(), "missing.csv")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open catalog file")
}

func TestFilter_Apply(t *testing.T) {
	courses := []CourseRecord{
		{Code: "A", Program: ProgramAdvanced, Category1: "一般", SubjectKind: "一般科目"},
		{Code: "B", Program: ProgramAdvanced, Category1: "専門", SubjectKind: "専門科目"},
		{Code: "C", Program: ProgramMain, Category1: "専門", SubjectKind: "専門科目"},
	}

	assert.Equal(t, []string{"A", "B", "C"}, Codes(Filter{}.Apply(courses)))
	assert.Equal(t, []string{"A", "B"}, Codes(Filter{Program: ProgramAdvanced}.Apply(courses)))
	assert.Equal(t, []string{"B"}, Codes(Filter{Program: ProgramAdvanced, Category1: "専門"}.Apply(courses)))
	assert.Empty(t, Filter{SubjectKind: "none"}.Apply(courses))
}
