package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felle787/LocalRadar2/internal/domain"
)

func TestAccountRepo_CreateAndGet(t *testing.T) {
	repo := NewAccountRepo(setupTestDB(t))
	ctx := t.Context()

	created, err := repo.Create(ctx, "owner@bar.com", "hash")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "owner@bar.com", created.Email)
	assert.False(t, created.CreatedAt.IsZero())

	byEmail, err := repo.GetByEmail(ctx, "owner@bar.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "owner@bar.com", byID.Email)
}

func TestAccountRepo_EmailIsCaseInsensitive(t *testing.T) {
	repo := NewAccountRepo(setupTestDB(t))
	ctx := t.Context()

	_, err := repo.Create(ctx, "Alice@Example.com", "hash")
	require.NoError(t, err)

	_, err = repo.Create(ctx, "alice@example.com", "other")
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	found, err := repo.GetByEmail(ctx, "ALICE@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, "hash", found.PasswordHash)
}

func TestAccountRepo_NotFound(t *testing.T) {
	repo := NewAccountRepo(setupTestDB(t))

	_, err := repo.GetByEmail(t.Context(), "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = repo.GetByID(t.Context(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}
