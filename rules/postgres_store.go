package rules

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/liamcoop/gradcheck/ledger"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// PostgresRuleStore implements RuleStore backed by PostgreSQL, scoped to one program.
type PostgresRuleStore struct {
	db        DBTX
	programID string
}

// NewPostgresRuleStore creates a PostgreSQL-backed RuleStore for a specific program.
// The program row must exist.
func NewPostgresRuleStore(db DBTX, programID string) *PostgresRuleStore {
	return &PostgresRuleStore{
		db:        db,
		programID: programID,
	}
}

const definitionColumns = `id, name, kind, label, selector, courses, minimum, enrolled, active, position, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (*Definition, error) {
	var (
		def      Definition
		kind     string
		courses  pq.StringArray
		enrolled pq.StringArray
	)
	if err := row.Scan(&def.ID, &def.Name, &kind, &def.Label, &def.Selector, &courses,
		&def.Minimum, &enrolled, &def.Active, &def.Position, &def.CreatedAt, &def.UpdatedAt); err != nil {
		return nil, err
	}
	def.Kind = Kind(kind)
	if len(courses) > 0 {
		def.Courses = []string(courses)
	}
	for _, st := range enrolled {
		def.Enrolled = append(def.Enrolled, ledger.Status(st))
	}
	return &def, nil
}

func enrolledArray(statuses []ledger.Status) pq.StringArray {
	out := make(pq.StringArray, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, string(st))
	}
	return out
}

func coursesArray(courses []string) pq.StringArray {
	if courses == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(courses)
}

// Add inserts a new definition.
func (s *PostgresRuleStore) Add(def *Definition) error {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM rule_definitions WHERE id = $1 AND program_id = $2)
	`, def.ID, s.programID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check rule existence: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrRuleExists, def.ID)
	}

	now := time.Now()
	def.CreatedAt = now
	def.UpdatedAt = now

	_, err = s.db.Exec(`
		INSERT INTO rule_definitions
			(id, program_id, name, kind, label, selector, courses, minimum, enrolled, active, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, def.ID, s.programID, def.Name, string(def.Kind), def.Label, def.Selector,
		coursesArray(def.Courses), def.Minimum, enrolledArray(def.Enrolled), def.Active,
		def.Position, def.CreatedAt, def.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}

	return nil
}

// Get retrieves a definition by ID.
func (s *PostgresRuleStore) Get(id string) (*Definition, error) {
	row := s.db.QueryRow(`
		SELECT ` + definitionColumns + `
		FROM rule_definitions
		WHERE id = $1 AND program_id = $2
	`, id, s.programID)

	def, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return def, nil
}

func (s *PostgresRuleStore) List() ([]*Definition, error) {
	return s.query(`
		SELECT ` + definitionColumns + `
		FROM rule_definitions
		WHERE program_id = $1
		ORDER BY position ASC, id ASC
	`)
}

func (s *PostgresRuleStore) ListActive() ([]*Definition, error) {
	return s.query(`
		SELECT ` + definitionColumns + `
		FROM rule_definitions
		WHERE program_id = $1 AND active = true
		ORDER BY position ASC, id ASC
	`)
}

func (s *PostgresRuleStore) query(q string) ([]*Definition, error) {
	rows, err := s.db.Query(q, s.programID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var defs []*Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return defs, nil
}

// Update modifies an existing definition, keeping its CreatedAt.
func (s *PostgresRuleStore) Update(def *Definition) error {
	existing, err := s.Get(def.ID)
	if err != nil {
		return err
	}

	def.CreatedAt = existing.CreatedAt
	def.UpdatedAt = time.Now()

	result, err := s.db.Exec(`
		UPDATE rule_definitions
		SET name = $1, kind = $2, label = $3, selector = $4, courses = $5, minimum = $6,
			enrolled = $7, active = $8, position = $9, updated_at = $10
		WHERE id = $11 AND program_id = $12
	`, def.Name, string(def.Kind), def.Label, def.Selector, coursesArray(def.Courses),
		def.Minimum, enrolledArray(def.Enrolled), def.Active, def.Position, def.UpdatedAt,
		def.ID, s.programID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, def.ID)
	}

	return nil
}

// Delete removes a definition.
func (s *PostgresRuleStore) Delete(id string) error {
	result, err := s.db.Exec(`
		DELETE FROM rule_definitions
		WHERE id = $1 AND program_id = $2
	`, id, s.programID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}

	return nil
}
