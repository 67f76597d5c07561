package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestService(t *testing.T) (*Service, *InMemoryRepository, *fakeClock) {
	t.Helper()
	repo := NewInMemoryRepository()
	clock := &fakeClock{t: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
	svc := NewService(repo, WithClock(clock.Now))
	return svc, repo, clock
}

func TestCreateSession(t *testing.T) {
	svc, _, clock := newTestService(t)

	session, err := svc.Create(context.Background(), 7)
	require.NoError(t, err)

	assert.Len(t, session.ID, 64)
	assert.Equal(t, int64(7), session.AccountID)
	assert.Equal(t, clock.Now().Add(DefaultIdleTimeout), session.ExpiresAt)
}

func TestSessionIDsAreUnique(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, 1)
	require.NoError(t, err)
	b, err := svc.Create(ctx, 1)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestGetValidSlidesExpiry(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	session, err := svc.Create(ctx, 1)
	require.NoError(t, err)

	clock.Advance(20 * time.Minute)
	refreshed, err := svc.GetValid(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(DefaultIdleTimeout), refreshed.ExpiresAt)

	// Another 20 minutes of activity keeps the session alive past the
	// original window.
	clock.Advance(20 * time.Minute)
	_, err = svc.GetValid(ctx, session.ID)
	assert.NoError(t, err)
}

func TestGetValidExpired(t *testing.T) {
	svc, repo, clock := newTestService(t)
	ctx := context.Background()

	session, err := svc.Create(ctx, 1)
	require.NoError(t, err)

	clock.Advance(DefaultIdleTimeout + time.Second)
	_, err = svc.GetValid(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 0, repo.Count())
}

func TestGetValidUnknownID(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.GetValid(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestRevoke(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.Create(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, session.ID))
	_, err = svc.GetValid(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionExpired)

	// Revoking again stays quiet
	assert.NoError(t, svc.Revoke(ctx, session.ID))
}

func TestRevokeAllForAccount(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, 1)
	require.NoError(t, err)
	second, err := svc.Create(ctx, 1)
	require.NoError(t, err)
	other, err := svc.Create(ctx, 2)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAllForAccount(ctx, 1))

	_, err = svc.GetValid(ctx, first.ID)
	assert.ErrorIs(t, err, ErrSessionExpired)
	_, err = svc.GetValid(ctx, second.ID)
	assert.ErrorIs(t, err, ErrSessionExpired)
	_, err = svc.GetValid(ctx, other.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, repo.Count())
}

func TestPurgeExpired(t *testing.T) {
	svc, repo, clock := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, 1)
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	fresh, err := svc.Create(ctx, 2)
	require.NoError(t, err)

	clock.Advance(25 * time.Minute)
	n, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = svc.GetValid(ctx, fresh.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, repo.Count())
}
