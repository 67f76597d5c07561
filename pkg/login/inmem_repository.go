package login

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryLoginRepository implements LoginRepository using in-memory
// storage. It is used by tests and local demos.
type InMemoryLoginRepository struct {
	mu          sync.RWMutex
	nextID      int64
	nextTokenID int64
	accounts    map[int64]Credentials
	byUsername  map[string]int64
	resetTokens map[int64]ResetToken
}

// NewInMemoryLoginRepository creates a new in-memory login repository
func NewInMemoryLoginRepository() *InMemoryLoginRepository {
	return &InMemoryLoginRepository{
		nextID:      1,
		nextTokenID: 1,
		accounts:    make(map[int64]Credentials),
		byUsername:  make(map[string]int64),
		resetTokens: make(map[int64]ResetToken),
	}
}

// FindByUsername finds an account by exact username
func (r *InMemoryLoginRepository) FindByUsername(ctx context.Context, username string) (Credentials, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return Credentials{}, ErrAccountNotFound
	}
	return r.accounts[id], nil
}

// FindByEmail finds an account by email
func (r *InMemoryLoginRepository) FindByEmail(ctx context.Context, email string) (Credentials, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if email == "" {
		return Credentials{}, ErrAccountNotFound
	}
	for _, creds := range r.accounts {
		if creds.Email == email {
			return creds, nil
		}
	}
	return Credentials{}, ErrAccountNotFound
}

// CreateAccount inserts a new account
func (r *InMemoryLoginRepository) CreateAccount(ctx context.Context, arg CreateAccountParams) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUsername[arg.Username]; exists {
		return 0, ErrDuplicateUsername
	}

	id := r.nextID
	r.nextID++
	r.accounts[id] = Credentials{
		AccountID:    id,
		Username:     arg.Username,
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	r.byUsername[arg.Username] = id
	return id, nil
}

// SetActive flips the active flag; test helper mirroring the admin path
func (r *InMemoryLoginRepository) SetActive(accountID int64, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if creds, ok := r.accounts[accountID]; ok {
		creds.IsActive = active
		r.accounts[accountID] = creds
	}
}

// DeleteLiveResetTokens removes unused, unexpired tokens for the account
func (r *InMemoryLoginRepository) DeleteLiveResetTokens(ctx context.Context, accountID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for id, entry := range r.resetTokens {
		if entry.AccountID == accountID && !entry.IsUsed && entry.ExpiresAt.After(now) {
			delete(r.resetTokens, id)
		}
	}
	return nil
}

// CreateResetToken inserts a new reset token
func (r *InMemoryLoginRepository) CreateResetToken(ctx context.Context, arg CreateResetTokenParams) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextTokenID
	r.nextTokenID++
	r.resetTokens[id] = ResetToken{
		ID:        id,
		AccountID: arg.AccountID,
		Token:     arg.Token,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: arg.ExpiresAt,
		IsUsed:    false,
	}
	return id, nil
}

// FindResetToken loads the newest token matching the account+token pair
func (r *InMemoryLoginRepository) FindResetToken(ctx context.Context, accountID int64, token string) (ResetToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []ResetToken
	for _, entry := range r.resetTokens {
		if entry.AccountID == accountID && entry.Token == token {
			matches = append(matches, entry)
		}
	}
	if len(matches) == 0 {
		return ResetToken{}, ErrResetTokenNotFound
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches[0], nil
}

// RedeemResetToken updates the password hash and marks the token used
func (r *InMemoryLoginRepository) RedeemResetToken(ctx context.Context, tokenID int64, accountID int64, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	creds, ok := r.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	entry, ok := r.resetTokens[tokenID]
	if !ok || entry.IsUsed {
		return ErrResetTokenNotFound
	}

	creds.PasswordHash = passwordHash
	r.accounts[accountID] = creds
	entry.IsUsed = true
	r.resetTokens[tokenID] = entry
	return nil
}

// LiveResetTokenCount counts unused, unexpired tokens for the account
func (r *InMemoryLoginRepository) LiveResetTokenCount(accountID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now().UTC()
	count := 0
	for _, entry := range r.resetTokens {
		if entry.AccountID == accountID && !entry.IsUsed && entry.ExpiresAt.After(now) {
			count++
		}
	}
	return count
}
