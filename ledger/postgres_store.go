package ledger

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PostgresStore implements Store on the students and course_statuses tables.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed ledger store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateStudent() (string, error) {
	id := uuid.NewString()
	if _, err := s.db.Exec(`INSERT INTO students (id) VALUES ($1)`, id); err != nil {
		return "", fmt.Errorf("failed to insert student: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) exists(studentID string) error {
	if _, err := uuid.Parse(studentID); err != nil {
		return fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
	}

	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM students WHERE id = $1)
	`, studentID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check student existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
	}
	return nil
}

func (s *PostgresStore) Load(studentID string) (Ledger, error) {
	if err := s.exists(studentID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT course_code, status
		FROM course_statuses
		WHERE student_id = $1
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load statuses: %w", err)
	}
	defer rows.Close()

	l := make(Ledger)
	for rows.Next() {
		var code, raw string
		if err := rows.Scan(&code, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}
		st, err := ParseStatus(raw)
		if err != nil {
			return nil, fmt.Errorf("course %s: %w", code, err)
		}
		l[code] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating statuses: %w", err)
	}

	return l, nil
}

func (s *PostgresStore) SetStatus(studentID, code string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	if err := s.exists(studentID); err != nil {
		return err
	}

	_, err := s.db.Exec(`
		INSERT INTO course_statuses (student_id, course_code, status, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (student_id, course_code)
		DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
	`, studentID, code, string(status))
	if err != nil {
		return fmt.Errorf("failed to upsert status: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(studentID, code string) error {
	if err := s.exists(studentID); err != nil {
		return err
	}

	_, err := s.db.Exec(`
		DELETE FROM course_statuses
		WHERE student_id = $1 AND course_code = $2
	`, studentID, code)
	if err != nil {
		return fmt.Errorf("failed to delete status: %w", err)
	}
	return nil
}
