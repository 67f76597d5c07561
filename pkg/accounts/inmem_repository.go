package accounts

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository implements Repository in memory for tests and demos.
type InMemoryRepository struct {
	mu       sync.RWMutex
	accounts map[int64]Account
	roles    map[int64][]string

	// onDelete mirrors the cascade behavior of the SQL schema so a
	// wired session or role store can be cleaned up in tests.
	onDelete []func(accountID int64)
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		accounts: make(map[int64]Account),
		roles:    make(map[int64][]string),
	}
}

// AddAccount stores an account directly, for tests.
func (r *InMemoryRepository) AddAccount(account Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ID] = account
}

// SetRoles records the role names reported for an account.
func (r *InMemoryRepository) SetRoles(accountID int64, roles []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[accountID] = roles
}

// OnDelete registers a hook run when an account is deleted.
func (r *InMemoryRepository) OnDelete(fn func(accountID int64)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDelete = append(r.onDelete, fn)
}

func (r *InMemoryRepository) FindByID(ctx context.Context, id int64) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrAccountMissing
	}
	return account, nil
}

func (r *InMemoryRepository) FindAccounts(ctx context.Context) ([]Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	accounts := make([]Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (r *InMemoryRepository) FindAccountsWithRoles(ctx context.Context) ([]AccountWithRoles, error) {
	accounts, err := r.FindAccounts(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]AccountWithRoles, 0, len(accounts))
	for _, account := range accounts {
		roles := r.roles[account.ID]
		if roles == nil {
			roles = []string{}
		}
		out = append(out, AccountWithRoles{Account: account, Roles: roles})
	}
	return out, nil
}

func (r *InMemoryRepository) Update(ctx context.Context, id int64, params UpdateParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return ErrAccountMissing
	}
	if params.Username != nil {
		for otherID, other := range r.accounts {
			if otherID != id && other.Username == *params.Username {
				return ErrDuplicateUsername
			}
		}
		account.Username = *params.Username
	}
	if params.Email != nil && *params.Email != "" {
		account.Email = *params.Email
	}
	if params.IsActive != nil {
		account.IsActive = *params.IsActive
	}
	r.accounts[id] = account
	return nil
}

func (r *InMemoryRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return ErrAccountMissing
	}
	account.PasswordHash = passwordHash
	r.accounts[id] = account
	return nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	if _, ok := r.accounts[id]; !ok {
		r.mu.Unlock()
		return ErrAccountMissing
	}
	delete(r.accounts, id)
	delete(r.roles, id)
	hooks := make([]func(int64), len(r.onDelete))
	copy(hooks, r.onDelete)
	r.mu.Unlock()

	for _, fn := range hooks {
		fn(id)
	}
	return nil
}
