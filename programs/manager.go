// Package programs holds the registry of requirement programs. Each program owns an
// ordered rule set and a rules.Engine over it. Programs come from YAML documents and
// live either in memory or in PostgreSQL.
package programs

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/lib/pq"

	"github.com/liamcoop/gradcheck/internal/logger"
	"github.com/liamcoop/gradcheck/rules"
)

// Program is a registered program and the engine evaluating its rules. A Program value
// is never modified; ReplaceRules swaps in a new one.
type Program struct {
	ID          string
	Name        string
	Description string
	Engine      *rules.Engine
}

// Manager manages the engines of all programs.
type Manager struct {
	programs map[string]*Program
	db       *sql.DB
	cache    rules.CacheConfig
	mu       sync.RWMutex
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithCacheConfig sets the definitions cache used by every program engine.
func WithCacheConfig(cfg rules.CacheConfig) ManagerOption {
	return func(m *Manager) { m.cache = cfg }
}

// NewManager creates a manager. With a nil db every program is kept in memory.
func NewManager(db *sql.DB, opts ...ManagerOption) *Manager {
	m := &Manager{
		programs: make(map[string]*Program),
		db:       db,
		cache:    rules.DefaultCacheConfig(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) newEngine(store rules.RuleStore) (*rules.Engine, error) {
	return rules.NewEngine(store, rules.WithCache(rules.NewInMemoryRulesCache(m.cache)))
}

func (m *Manager) install(p *Program) {
	m.mu.Lock()
	m.programs[p.ID] = p
	m.mu.Unlock()
}

// Register validates doc and installs it as an in-memory program. Registering an ID
// that is already present is an error.
func (m *Manager) Register(doc *Document) error {
	if err := ValidateDocument(doc); err != nil {
		return err
	}

	p, err := m.inMemoryProgram(doc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if _, exists := m.programs[doc.ID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("program %s already registered", doc.ID)
	}
	m.programs[doc.ID] = p
	m.mu.Unlock()

	logger.Info("registered program", "program", doc.ID, "rules", len(doc.Rules))
	return nil
}

func (m *Manager) inMemoryProgram(doc *Document) (*Program, error) {
	store := rules.NewInMemoryRuleStore()
	for _, def := range doc.Definitions() {
		if err := store.Add(def); err != nil {
			return nil, err
		}
	}

	engine, err := m.newEngine(store)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine for program %s: %w", doc.ID, err)
	}

	return &Program{ID: doc.ID, Name: doc.Name, Description: doc.Description, Engine: engine}, nil
}

func (m *Manager) postgresProgram(id, name, description string) (*Program, error) {
	engine, err := m.newEngine(rules.NewPostgresRuleStore(m.db, id))
	if err != nil {
		return nil, fmt.Errorf("failed to create engine for program %s: %w", id, err)
	}
	return &Program{ID: id, Name: name, Description: description, Engine: engine}, nil
}

// LoadAll loads every program stored in the database and initializes its engine.
func (m *Manager) LoadAll() error {
	if m.db == nil {
		return errors.New("no database configured")
	}

	rows, err := m.db.Query(`SELECT id, name, description FROM programs ORDER BY id`)
	if err != nil {
		return fmt.Errorf("failed to fetch programs: %w", err)
	}
	defer rows.Close()

	type row struct{ id, name, description string }
	var found []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.name, &r.description); err != nil {
			return fmt.Errorf("failed to scan program row: %w", err)
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating program rows: %w", err)
	}

	for _, r := range found {
		p, err := m.postgresProgram(r.id, r.name, r.description)
		if err != nil {
			return fmt.Errorf("failed to initialize program %s: %w", r.id, err)
		}
		m.install(p)
	}

	logger.Info("loaded programs", "count", len(found))
	return nil
}

// Seed stores doc in the database unless a program with the same ID already exists,
// then loads it. It reports whether doc was written.
func (m *Manager) Seed(doc *Document) (bool, error) {
	if m.db == nil {
		return false, m.Register(doc)
	}
	if err := ValidateDocument(doc); err != nil {
		return false, err
	}

	tx, err := m.db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO programs (id, name, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, doc.ID, doc.Name, doc.Description)
	if err != nil {
		return false, fmt.Errorf("failed to insert program: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if inserted > 0 {
		store := rules.NewPostgresRuleStore(tx, doc.ID)
		for _, def := range doc.Definitions() {
			if err := store.Add(def); err != nil {
				return false, err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit program: %w", err)
	}

	var name, description string
	if err := m.db.QueryRow(`SELECT name, description FROM programs WHERE id = $1`, doc.ID).Scan(&name, &description); err != nil {
		return false, fmt.Errorf("failed to read program: %w", err)
	}
	p, err := m.postgresProgram(doc.ID, name, description)
	if err != nil {
		return false, err
	}
	m.install(p)

	if inserted > 0 {
		logger.Info("seeded program", "program", doc.ID, "rules", len(doc.Rules))
	}
	return inserted > 0, nil
}

// GetEngine retrieves the engine of a program.
func (m *Manager) GetEngine(programID string) (*rules.Engine, error) {
	p, err := m.Program(programID)
	if err != nil {
		return nil, err
	}
	return p.Engine, nil
}

// Program retrieves a registered program.
func (m *Manager) Program(programID string) (*Program, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, exists := m.programs[programID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrProgramNotFound, programID)
	}
	return p, nil
}

// ReplaceRules replaces the rule set of a program with the rules of doc. The new
// engine is built before it is swapped in, so concurrent evaluations see either the
// old rule set or the new one. Rules whose IDs survive keep their creation time.
func (m *Manager) ReplaceRules(programID string, doc *Document) error {
	if doc.ID == "" {
		doc.ID = programID
	}
	if doc.ID != programID {
		return fmt.Errorf("document id %q does not match program %q", doc.ID, programID)
	}
	if err := ValidateDocument(doc); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.programs[programID]; !exists {
		return fmt.Errorf("%w: %s", ErrProgramNotFound, programID)
	}

	var (
		p   *Program
		err error
	)
	if m.db == nil {
		p, err = m.inMemoryProgram(doc)
	} else {
		if err = m.storeRules(doc); err != nil {
			return err
		}
		p, err = m.postgresProgram(doc.ID, doc.Name, doc.Description)
	}
	if err != nil {
		return err
	}

	m.programs[programID] = p
	logger.Info("replaced program rules", "program", programID, "rules", len(doc.Rules))
	return nil
}

func (m *Manager) storeRules(doc *Document) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		UPDATE programs SET name = $1, description = $2, updated_at = NOW()
		WHERE id = $3
	`, doc.Name, doc.Description, doc.ID); err != nil {
		return fmt.Errorf("failed to update program: %w", err)
	}

	defs := doc.Definitions()
	ids := make([]string, 0, len(defs))
	for _, def := range defs {
		ids = append(ids, def.ID)
	}
	if _, err := tx.Exec(`
		DELETE FROM rule_definitions
		WHERE program_id = $1 AND NOT (id = ANY($2))
	`, doc.ID, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to remove old rules: %w", err)
	}

	store := rules.NewPostgresRuleStore(tx, doc.ID)
	for _, def := range defs {
		_, err := store.Get(def.ID)
		switch {
		case err == nil:
			err = store.Update(def)
		case errors.Is(err, rules.ErrRuleNotFound):
			err = store.Add(def)
		}
		if err != nil {
			return fmt.Errorf("failed to store rule %s: %w", def.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rules: %w", err)
	}
	return nil
}

// ListPrograms returns the registered programs ordered by ID.
func (m *Manager) ListPrograms() []*Program {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Program, 0, len(m.programs))
	for _, p := range m.programs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DeleteProgram removes a program, and its stored rules when backed by a database.
func (m *Manager) DeleteProgram(programID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.programs[programID]; !exists {
		return fmt.Errorf("%w: %s", ErrProgramNotFound, programID)
	}

	if m.db != nil {
		if _, err := m.db.Exec(`DELETE FROM programs WHERE id = $1`, programID); err != nil {
			return fmt.Errorf("failed to delete program: %w", err)
		}
	}

	delete(m.programs, programID)
	logger.Info("deleted program", "program", programID)
	return nil
}
