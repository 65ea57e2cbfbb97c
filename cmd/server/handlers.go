package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/liamcoop/gradcheck/catalog"
	"github.com/liamcoop/gradcheck/internal/logger"
	"github.com/liamcoop/gradcheck/internal/metrics"
	"github.com/liamcoop/gradcheck/ledger"
	"github.com/liamcoop/gradcheck/programs"
	"github.com/liamcoop/gradcheck/rules"
)

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	storage := "memory"
	if s.db != nil {
		storage = "postgres"
	}
	resp := newHealthResponse("healthy", storage, len(s.manager.ListPrograms()), len(s.courses))

	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			resp.Status = "unhealthy"
			resp.Error = err.Error()
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// Catalog handler. status filters by the student's recorded status and needs
// studentId.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	courses := catalog.Filter{
		Program:     q.Get("program"),
		Category1:   q.Get("category1"),
		SubjectKind: q.Get("subjectKind"),
	}.Apply(s.courses)

	if raw := q.Get("status"); raw != "" {
		studentID := q.Get("studentId")
		if studentID == "" {
			respondError(w, http.StatusBadRequest, "studentId is required with status", nil)
			return
		}
		status, err := ledger.ParseStatus(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid status", err)
			return
		}
		l, err := s.statuses.Load(studentID)
		if err != nil {
			respondError(w, statusFor(err), "failed to load statuses", err)
			return
		}

		filtered := make([]catalog.CourseRecord, 0, len(courses))
		for _, c := range courses {
			if l.Get(c.Code) == status {
				filtered = append(filtered, c)
			}
		}
		courses = filtered
	}

	respondJSON(w, http.StatusOK, CatalogResponse{Count: len(courses), Courses: courses})
}

func programResponse(p *programs.Program) ProgramResponse {
	resp := ProgramResponse{ID: p.ID, Name: p.Name, Description: p.Description}
	if defs, err := p.Engine.Definitions(); err == nil {
		resp.Rules = len(defs)
	}
	return resp
}

// List programs handler
func (s *Server) handleListPrograms(w http.ResponseWriter, r *http.Request) {
	list := s.manager.ListPrograms()
	resp := ProgramsListResponse{Programs: make([]ProgramResponse, 0, len(list))}
	for _, p := range list {
		resp.Programs = append(resp.Programs, programResponse(p))
	}
	respondJSON(w, http.StatusOK, resp)
}

// Get program handler
func (s *Server) handleGetProgram(w http.ResponseWriter, r *http.Request) {
	p, err := s.manager.Program(chi.URLParam(r, "programId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "program not found", err)
		return
	}
	respondJSON(w, http.StatusOK, programResponse(p))
}

// Replace program handler. The body is a program document in JSON or YAML; the new
// rule set replaces the old one atomically.
func (s *Server) handleReplaceProgram(w http.ResponseWriter, r *http.Request) {
	programID := chi.URLParam(r, "programId")

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	doc, err := programs.ParseDocument(body)
	if err != nil {
		logger.InvalidInput("program", err)
		respondError(w, http.StatusBadRequest, "invalid program document", err)
		return
	}

	if err := s.manager.ReplaceRules(programID, doc); err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError && doc.ID != programID {
			status = http.StatusBadRequest
		}
		respondError(w, status, "failed to replace program rules", err)
		return
	}

	p, err := s.manager.Program(programID)
	if err != nil {
		respondError(w, http.StatusNotFound, "program not found", err)
		return
	}
	respondJSON(w, http.StatusOK, programResponse(p))
}

func (s *Server) engine(w http.ResponseWriter, r *http.Request) (*rules.Engine, bool) {
	engine, err := s.manager.GetEngine(chi.URLParam(r, "programId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "program not found", err)
		return nil, false
	}
	return engine, true
}

// Create rule handler
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}

	var req RuleRequest
	if err := s.decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule", err)
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	if err := programs.ValidateIdentifier(id); err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule id", err)
		return
	}

	def, err := req.definition(id)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule", err)
		return
	}
	if req.Position == nil {
		existing, err := engine.Definitions()
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to list rules", err)
			return
		}
		def.Position = len(existing) + 1
	}

	if err := engine.AddRule(def); err != nil {
		logger.InvalidInput("rule", err)
		respondError(w, statusFor(err), "failed to add rule", err)
		return
	}

	respondJSON(w, http.StatusCreated, def)
}

// List rules handler
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}

	defs, err := engine.Definitions()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rules", err)
		return
	}
	if defs == nil {
		defs = []*rules.Definition{}
	}
	respondJSON(w, http.StatusOK, RulesListResponse{Program: chi.URLParam(r, "programId"), Rules: defs})
}

// Get rule handler
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}

	def, err := engine.Definition(chi.URLParam(r, "ruleId"))
	if err != nil {
		respondError(w, statusFor(err), "rule not found", err)
		return
	}
	respondJSON(w, http.StatusOK, def)
}

// Update rule handler
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}
	ruleID := chi.URLParam(r, "ruleId")

	var req RuleRequest
	if err := s.decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule", err)
		return
	}

	existing, err := engine.Definition(ruleID)
	if err != nil {
		respondError(w, statusFor(err), "rule not found", err)
		return
	}

	def, err := req.definition(ruleID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule", err)
		return
	}
	if req.Active == nil {
		def.Active = existing.Active
	}
	if req.Position == nil {
		def.Position = existing.Position
	}

	if err := engine.UpdateRule(def); err != nil {
		logger.InvalidInput("rule", err)
		respondError(w, statusFor(err), "failed to update rule", err)
		return
	}

	respondJSON(w, http.StatusOK, def)
}

// Delete rule handler
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}

	if err := engine.DeleteRule(chi.URLParam(r, "ruleId")); err != nil {
		respondError(w, statusFor(err), "failed to delete rule", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Create student handler
func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	id, err := s.statuses.CreateStudent()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create student", err)
		return
	}
	respondJSON(w, http.StatusCreated, StudentResponse{ID: id})
}

// Get statuses handler
func (s *Server) handleGetStatuses(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")

	l, err := s.statuses.Load(studentID)
	if err != nil {
		respondError(w, statusFor(err), "failed to load statuses", err)
		return
	}

	respondJSON(w, http.StatusOK, StatusesResponse{
		StudentID: studentID,
		Statuses:  l,
		Tally:     l.Tally(s.courses),
		Labels:    statusLabels(),
	})
}

// Set status handler. Codes must exist in the catalog when one is loaded.
func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")
	code := chi.URLParam(r, "courseCode")

	var req SetStatusRequest
	if err := s.decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err)
		return
	}
	status, err := ledger.ParseStatus(req.Status)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid status", err)
		return
	}
	if len(s.codes) > 0 {
		if _, ok := s.codes[code]; !ok {
			respondError(w, http.StatusNotFound, "course not found", nil)
			return
		}
	}

	if err := s.statuses.SetStatus(studentID, code, status); err != nil {
		respondError(w, statusFor(err), "failed to set status", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"studentId": studentID,
		"code":      code,
		"status":    string(status),
	})
}

// Student evaluation handler
func (s *Server) handleStudentEvaluation(w http.ResponseWriter, r *http.Request) {
	programID := r.URL.Query().Get("program")
	if programID == "" {
		respondError(w, http.StatusBadRequest, "program is required", nil)
		return
	}

	l, err := s.statuses.Load(chi.URLParam(r, "studentId"))
	if err != nil {
		respondError(w, statusFor(err), "failed to load statuses", err)
		return
	}

	resp, err := s.evaluate(r.Context(), programID, l, nil)
	if err != nil {
		respondError(w, statusFor(err), "evaluation failed", err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Stateless evaluation handler
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := s.decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err)
		return
	}

	l := make(ledger.Ledger, len(req.Statuses))
	for code, raw := range req.Statuses {
		st, err := ledger.ParseStatus(raw)
		if err != nil {
			logger.InvalidInput("ledger", err)
			respondError(w, http.StatusBadRequest, "invalid status for course "+code, err)
			return
		}
		l[code] = st
	}

	resp, err := s.evaluate(r.Context(), req.Program, l, req.Rules)
	if err != nil {
		respondError(w, statusFor(err), "evaluation failed", err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// evaluate runs the program's active rules, or only ruleIDs when given. Unknown rule
// IDs are skipped.
func (s *Server) evaluate(ctx context.Context, programID string, l ledger.Ledger, ruleIDs []string) (EvaluationResponse, error) {
	engine, err := s.manager.GetEngine(programID)
	if err != nil {
		return EvaluationResponse{}, err
	}

	start := time.Now()
	var agg rules.AggregateResult
	if len(ruleIDs) > 0 {
		agg.Satisfied = true
		for _, id := range ruleIDs {
			res, err := engine.Evaluate(id, s.courses, l)
			if errors.Is(err, rules.ErrRuleNotFound) {
				logger.Warn("skipping unknown rule", "program", programID, "rule", id)
				continue
			}
			if err != nil {
				return EvaluationResponse{}, err
			}
			agg.Results = append(agg.Results, res)
			agg.Satisfied = agg.Satisfied && res.Satisfied
		}
	} else {
		agg, err = engine.EvaluateAllConcurrent(ctx, s.courses, l)
		if err != nil {
			return EvaluationResponse{}, err
		}
	}
	took := time.Since(start)

	passed := agg.Passed()
	logger.Evaluated(programID, passed, len(agg.Results), agg.Satisfied)
	metrics.ObserveEvaluation(programID, agg.Satisfied, passed, len(agg.Results)-passed, took)

	results := agg.Results
	if results == nil {
		results = []rules.Result{}
	}
	return EvaluationResponse{
		Program:        programID,
		Satisfied:      agg.Satisfied,
		Passed:         passed,
		Total:          len(results),
		Results:        results,
		EvaluationTime: took.String(),
	}, nil
}
