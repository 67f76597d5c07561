package role

import (
	"context"
	"sync"
)

// InMemoryRepository implements Repository in memory for tests and demos.
type InMemoryRepository struct {
	mu          sync.RWMutex
	roles       []Role
	assignments map[int64]map[int64]bool // accountID -> roleID set
	accounts    map[int64]bool
	nextRoleID  int64
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		assignments: make(map[int64]map[int64]bool),
		accounts:    make(map[int64]bool),
		nextRoleID:  1,
	}
}

// AddAccount registers an account ID so AccountExists reports it.
func (r *InMemoryRepository) AddAccount(accountID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[accountID] = true
}

// RemoveAccount drops an account and its assignments.
func (r *InMemoryRepository) RemoveAccount(accountID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, accountID)
	delete(r.assignments, accountID)
}

func (r *InMemoryRepository) FindRoles(ctx context.Context) ([]Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Role, len(r.roles))
	copy(out, r.roles)
	return out, nil
}

func (r *InMemoryRepository) FindRoleByName(ctx context.Context, name string) (Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, role := range r.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return Role{}, ErrRoleMissing
}

func (r *InMemoryRepository) FindRoleNamesByAccount(ctx context.Context, accountID int64) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for _, role := range r.roles {
		if r.assignments[accountID][role.ID] {
			names = append(names, role.Name)
		}
	}
	return names, nil
}

func (r *InMemoryRepository) AccountExists(ctx context.Context, accountID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.accounts[accountID], nil
}

func (r *InMemoryRepository) CreateAssignment(ctx context.Context, accountID, roleID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.assignments[accountID] == nil {
		r.assignments[accountID] = make(map[int64]bool)
	}
	if r.assignments[accountID][roleID] {
		return ErrDuplicateAssignment
	}
	r.assignments[accountID][roleID] = true
	return nil
}

func (r *InMemoryRepository) DeleteAssignment(ctx context.Context, accountID, roleID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.assignments[accountID][roleID] {
		return ErrAssignmentMissing
	}
	delete(r.assignments[accountID], roleID)
	return nil
}

func (r *InMemoryRepository) EnsureRole(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, role := range r.roles {
		if role.Name == name {
			return nil
		}
	}
	r.roles = append(r.roles, Role{ID: r.nextRoleID, Name: name})
	r.nextRoleID++
	return nil
}
