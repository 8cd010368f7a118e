package accounts

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/ucenter-gateway/internal/common"
	"github.com/dmitrijs2005/ucenter-gateway/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	a, err := r.Create(ctx, &models.Account{Username: "alice", Email: "alice@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.UID)

	_, err = r.Create(ctx, &models.Account{Username: "alice", Email: "other@example.com"})
	require.ErrorIs(t, err, ErrUsernameTaken)
	_, err = r.Create(ctx, &models.Account{Username: "bob", Email: "alice@example.com"})
	require.ErrorIs(t, err, ErrEmailTaken)

	b, err := r.Create(ctx, &models.Account{Username: "bob", Email: "bob@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), b.UID)
	assert.Equal(t, 2, r.Len())

	require.NoError(t, r.Update(ctx, 2, models.AccountChanges{Fields: map[string]any{"phone": "139", "is_member": 1}}))
	got, err := r.GetByProfileField(ctx, "phone", "139")
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Username)
	assert.Equal(t, 1, got.Profile.IsMember)

	email := "bob@example.com"
	require.ErrorIs(t, r.Update(ctx, 1, models.AccountChanges{Email: &email}), ErrEmailTaken)

	_, err = r.GetByUsername(ctx, "carol")
	require.ErrorIs(t, err, common.ErrorNotFound)
	_, err = r.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)

	got.Username = "mutated"
	again, err := r.GetByUID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "bob", again.Username, "lookups return copies")
}

var (
	_ Repository = (*MemoryRepository)(nil)
	_ Repository = (*PostgresRepository)(nil)
)
