package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/liamcoop/gradcheck/catalog"
	"github.com/liamcoop/gradcheck/internal/logger"
	"github.com/liamcoop/gradcheck/internal/metrics"
	"github.com/liamcoop/gradcheck/ledger"
	"github.com/liamcoop/gradcheck/migrations"
	"github.com/liamcoop/gradcheck/programs"
	"github.com/liamcoop/gradcheck/rules"

	_ "github.com/lib/pq"
)

type Server struct {
	db       *sql.DB
	manager  *programs.Manager
	statuses ledger.Store
	courses  []catalog.CourseRecord
	codes    map[string]struct{}
	validate *validator.Validate
	router   *chi.Mux
}

// NewServer connects the configured storage, loads the catalog and registers the
// programs. Without a database URL everything is kept in memory.
func NewServer(cfg Config) (*Server, error) {
	var courses []catalog.CourseRecord
	if len(cfg.CatalogFiles) > 0 {
		var opts []catalog.Option
		if cfg.AllowDuplicateCodes {
			opts = append(opts, catalog.WithAllowDuplicates())
		}
		var err error
		courses, err = catalog.LoadFiles(cfg.CatalogFiles, opts...)
		if err != nil {
			logger.InvalidInput("catalog", err)
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		logger.Info("loaded catalog", "files", len(cfg.CatalogFiles), "courses", len(courses))
	}

	var (
		db       *sql.DB
		statuses ledger.Store
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		if cfg.Migrate {
			if err := migrations.Up(db); err != nil {
				return nil, err
			}
		}
		statuses = ledger.NewPostgresStore(db)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory storage")
		statuses = ledger.NewInMemoryStore()
	}

	manager := programs.NewManager(db, programs.WithCacheConfig(rules.CacheConfig{TTL: cfg.CacheTTL}))
	if db != nil {
		if err := manager.LoadAll(); err != nil {
			return nil, fmt.Errorf("failed to load programs: %w", err)
		}
	}

	docs, err := programDocuments(cfg)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if _, err := manager.Program(doc.ID); err == nil {
			continue
		}
		if _, err := manager.Seed(doc); err != nil {
			return nil, fmt.Errorf("failed to register program %s: %w", doc.ID, err)
		}
	}

	return newServer(db, manager, statuses, courses), nil
}

func programDocuments(cfg Config) ([]*programs.Document, error) {
	var docs []*programs.Document
	if cfg.SeedDefaults {
		defaults, err := programs.Defaults()
		if err != nil {
			return nil, fmt.Errorf("failed to load default programs: %w", err)
		}
		docs = append(docs, defaults...)
	}
	for _, name := range cfg.ProgramFiles {
		doc, err := programs.LoadFile(name)
		if err != nil {
			logger.InvalidInput("program", err)
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func newServer(db *sql.DB, manager *programs.Manager, statuses ledger.Store, courses []catalog.CourseRecord) *Server {
	codes := make(map[string]struct{}, len(courses))
	for _, code := range catalog.Codes(courses) {
		codes[code] = struct{}{}
	}

	s := &Server{
		db:       db,
		manager:  manager,
		statuses: statuses,
		courses:  courses,
		codes:    codes,
		validate: validator.New(),
	}
	s.setupRoutes()

	metrics.SetCatalogSize(len(courses))
	metrics.SetProgramsLoaded(len(manager.ListPrograms()))
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Get("/api/v1/catalog", s.handleCatalog)
	r.Post("/api/v1/evaluate", s.handleEvaluate)

	r.Route("/api/v1/programs", func(r chi.Router) {
		r.Get("/", s.handleListPrograms)

		r.Route("/{programId}", func(r chi.Router) {
			r.Get("/", s.handleGetProgram)
			r.Put("/", s.handleReplaceProgram)

			r.Post("/rules", s.handleCreateRule)
			r.Get("/rules", s.handleListRules)
			r.Get("/rules/{ruleId}", s.handleGetRule)
			r.Put("/rules/{ruleId}", s.handleUpdateRule)
			r.Delete("/rules/{ruleId}", s.handleDeleteRule)
		})
	})

	r.Route("/api/v1/students", func(r chi.Router) {
		r.Post("/", s.handleCreateStudent)

		r.Route("/{studentId}", func(r chi.Router) {
			r.Get("/statuses", s.handleGetStatuses)
			r.Put("/statuses/{courseCode}", s.handleSetStatus)
			r.Get("/evaluation", s.handleStudentEvaluation)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"requestId", middleware.GetReqID(r.Context()),
		)
	})
}

// decode reads a JSON body into v and validates it.
func (s *Server) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := s.validate.Struct(v); err != nil {
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
		response.Fields = errorFields(err)
	}

	switch {
	case status >= 500:
		logger.HTTP5xx()
		logger.Error(message, "status", status, "error", err)
	case status >= 400:
		logger.HTTP4xx(status)
	}
	respondJSON(w, status, response)
}

func errorFields(err error) []string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
		return fields
	}

	var ve *programs.ValidationError
	if errors.As(err, &ve) {
		fields := make([]string, 0, len(ve.Errors))
		for _, fe := range ve.Errors {
			fields = append(fields, fe.Error())
		}
		return fields
	}
	return nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var ve *programs.ValidationError
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, programs.ErrProgramNotFound),
		errors.Is(err, rules.ErrRuleNotFound),
		errors.Is(err, ledger.ErrStudentNotFound):
		return http.StatusNotFound
	case errors.Is(err, rules.ErrRuleExists):
		return http.StatusConflict
	case errors.Is(err, rules.ErrInvalidDefinition),
		errors.As(err, &ve),
		errors.As(err, &verrs):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
