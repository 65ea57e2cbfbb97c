package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrStudentNotFound is returned for an unknown student ID.
var ErrStudentNotFound = errors.New("student not found")

// Store persists the status ledger of each student.
type Store interface {
	// CreateStudent registers a new student with an empty ledger and returns its ID
	CreateStudent() (string, error)

	// Load returns a copy of the student's ledger
	Load(studentID string) (Ledger, error)

	// SetStatus records the status of one course
	SetStatus(studentID, code string, status Status) error

	// Delete forgets the status of one course, returning it to NotTaken
	Delete(studentID, code string) error
}

// InMemoryStore implements Store with a map guarded by an RWMutex.
type InMemoryStore struct {
	ledgers map[string]Ledger
	mu      sync.RWMutex
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		ledgers: make(map[string]Ledger),
	}
}

func (s *InMemoryStore) CreateStudent() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.ledgers[id] = make(Ledger)
	return id, nil
}

func (s *InMemoryStore) Load(studentID string) (Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.ledgers[studentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
	}
	return l.Clone(), nil
}

func (s *InMemoryStore) SetStatus(studentID, code string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.ledgers[studentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
	}
	l[code] = status
	return nil
}

func (s *InMemoryStore) Delete(studentID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.ledgers[studentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
	}
	delete(l, code)
	return nil
}
