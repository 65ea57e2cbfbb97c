// Package ledger holds per-student course completion statuses.
package ledger

import (
	"fmt"
	"strings"
)

// Status is the completion state of a single course.
type Status string

const (
	NotTaken                      Status = "not-taken"
	CreditEarned                  Status = "credit-earned"
	FailedNoCredit                Status = "failed-no-credit"
	PlannedEnrollment             Status = "planned-enrollment"
	PlannedEnrollmentExpectedFail Status = "planned-enrollment-expected-fail"
)

// Statuses lists the canonical states in display order.
var Statuses = []Status{
	NotTaken,
	CreditEarned,
	FailedNoCredit,
	PlannedEnrollment,
	PlannedEnrollmentExpectedFail,
}

// labels maps accepted spellings onto canonical states. "currently enrolled" has no
// state of its own and is recorded as planned enrollment.
var labels = map[string]Status{
	"not-taken":                        NotTaken,
	"credit-earned":                    CreditEarned,
	"failed-no-credit":                 FailedNoCredit,
	"planned-enrollment":               PlannedEnrollment,
	"planned-enrollment-expected-fail": PlannedEnrollmentExpectedFail,
	"currently-enrolled":               PlannedEnrollment,

	"未履修":     NotTaken,
	"単位取得済み":  CreditEarned,
	"単位なし（F）": FailedNoCredit,
	"単位なし(F)": FailedNoCredit,
	"履修予定":    PlannedEnrollment,
	"履修かつF予定": PlannedEnrollmentExpectedFail,
	"履修中":     PlannedEnrollment,
}

// ParseStatus accepts a canonical name or one of the legacy Japanese labels.
// An empty string is NotTaken.
func ParseStatus(s string) (Status, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NotTaken, nil
	}
	if st, ok := labels[s]; ok {
		return st, nil
	}
	if st, ok := labels[strings.ToLower(s)]; ok {
		return st, nil
	}
	return "", fmt.Errorf("unknown course status %q", s)
}

// Valid reports whether s is one of the five canonical states.
func (s Status) Valid() bool {
	switch s {
	case NotTaken, CreditEarned, FailedNoCredit, PlannedEnrollment, PlannedEnrollmentExpectedFail:
		return true
	}
	return false
}

// Counts reports whether a course in this state counts toward a requirement.
func (s Status) Counts() bool {
	return s == CreditEarned || s == PlannedEnrollment
}

// Label returns the Japanese label shown by the registration sheet.
func (s Status) Label() string {
	switch s {
	case CreditEarned:
		return "単位取得済み"
	case FailedNoCredit:
		return "単位なし（F）"
	case PlannedEnrollment:
		return "履修予定"
	case PlannedEnrollmentExpectedFail:
		return "履修かつF予定"
	default:
		return "未履修"
	}
}

// UnmarshalText lets statuses be decoded from JSON and YAML with ParseStatus.
func (s *Status) UnmarshalText(text []byte) error {
	st, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}
