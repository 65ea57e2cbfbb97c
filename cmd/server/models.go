package main

import (
	"fmt"
	"time"

	"github.com/liamcoop/gradcheck/catalog"
	"github.com/liamcoop/gradcheck/ledger"
	"github.com/liamcoop/gradcheck/rules"
)

// API request and response models

// RuleRequest is the body of rule create and update requests. On update, a missing
// active or position keeps the stored value.
type RuleRequest struct {
	ID       string     `json:"id,omitempty" example:"general-credits" validate:"omitempty,max=64"`
	Name     string     `json:"name" example:"General subject credits" validate:"required"`
	Kind     rules.Kind `json:"kind" example:"credits" validate:"required,oneof=credits count required-set selected-set enrollment-count"`
	Label    string     `json:"label,omitempty" example:"General subjects"`
	Selector string     `json:"selector,omitempty" example:"course.subject_kind == \"一般科目\""`
	Courses  []string   `json:"courses,omitempty" validate:"omitempty,dive,required"`
	Minimum  int        `json:"minimum" example:"6" validate:"min=0"`
	Enrolled []string   `json:"enrolled,omitempty" validate:"omitempty,dive,required"`
	Active   *bool      `json:"active,omitempty" example:"true"`
	Position *int       `json:"position,omitempty" validate:"omitempty,min=0"`
}

func (req RuleRequest) definition(id string) (*rules.Definition, error) {
	def := &rules.Definition{
		ID:       id,
		Name:     req.Name,
		Kind:     req.Kind,
		Label:    req.Label,
		Selector: req.Selector,
		Courses:  req.Courses,
		Minimum:  req.Minimum,
		Active:   true,
	}
	for _, raw := range req.Enrolled {
		st, err := ledger.ParseStatus(raw)
		if err != nil {
			return nil, fmt.Errorf("enrolled: %w", err)
		}
		def.Enrolled = append(def.Enrolled, st)
	}
	if req.Active != nil {
		def.Active = *req.Active
	}
	if req.Position != nil {
		def.Position = *req.Position
	}
	return def, nil
}

// RulesListResponse is the response for listing the rules of a program.
type RulesListResponse struct {
	Program string              `json:"program"`
	Rules   []*rules.Definition `json:"rules"`
}

// ProgramResponse describes a registered program.
type ProgramResponse struct {
	ID          string `json:"id" example:"jabee"`
	Name        string `json:"name" example:"JABEE accredited program"`
	Description string `json:"description,omitempty"`
	Rules       int    `json:"rules" example:"13"`
}

// ProgramsListResponse is the response for listing programs.
type ProgramsListResponse struct {
	Programs []ProgramResponse `json:"programs"`
}

// CatalogResponse is the response for catalog queries.
type CatalogResponse struct {
	Count   int                    `json:"count"`
	Courses []catalog.CourseRecord `json:"courses"`
}

// StudentResponse is returned when a student is created.
type StudentResponse struct {
	ID string `json:"id" example:"123e4567-e89b-12d3-a456-426614174000"`
}

// StatusesResponse is a student's ledger with per-status counts over the catalog and
// the registration sheet label of every status.
type StatusesResponse struct {
	StudentID string                   `json:"studentId"`
	Statuses  ledger.Ledger            `json:"statuses"`
	Tally     map[ledger.Status]int    `json:"tally"`
	Labels    map[ledger.Status]string `json:"labels"`
}

func statusLabels() map[ledger.Status]string {
	labels := make(map[ledger.Status]string, len(ledger.Statuses))
	for _, st := range ledger.Statuses {
		labels[st] = st.Label()
	}
	return labels
}

// SetStatusRequest is the body of a status update. English names and the legacy
// Japanese labels are accepted.
type SetStatusRequest struct {
	Status string `json:"status" example:"credit-earned" validate:"required"`
}

// EvaluateRequest evaluates a program against an inline ledger without storing it.
type EvaluateRequest struct {
	Program  string            `json:"program" example:"jabee" validate:"required"`
	Statuses map[string]string `json:"statuses" validate:"required"`
	Rules    []string          `json:"rules,omitempty" example:"english,humanities"`
}

// EvaluationResponse is the aggregate verdict of a program.
type EvaluationResponse struct {
	Program        string         `json:"program"`
	Satisfied      bool           `json:"satisfied"`
	Passed         int            `json:"passed"`
	Total          int            `json:"total"`
	Results        []rules.Result `json:"results"`
	EvaluationTime string         `json:"evaluationTime" example:"1.2ms"`
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error   string   `json:"error" example:"program not found"`
	Details string   `json:"details,omitempty"`
	Fields  []string `json:"fields,omitempty"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status         string `json:"status" example:"healthy"`
	ProgramsLoaded int    `json:"programsLoaded"`
	CatalogCourses int    `json:"catalogCourses"`
	Storage        string `json:"storage" example:"postgres"`
	Error          string `json:"error,omitempty"`
	CheckedAt      string `json:"checkedAt"`
}

func newHealthResponse(status, storage string, programs, courses int) HealthResponse {
	return HealthResponse{
		Status:         status,
		ProgramsLoaded: programs,
		CatalogCourses: courses,
		Storage:        storage,
		CheckedAt:      time.Now().UTC().Format(time.RFC3339),
	}
}
