package repositories_test

import (
	"context"
	"testing"

	"exchange/internal/models"
	"exchange/internal/repositories"
	"exchange/internal/repositories/repotest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_CreateAndLookup(t *testing.T) {
	db := repotest.NewDB(t)
	repo := repositories.NewUserRepository(db)
	ctx := context.Background()

	code := "PARTNER1"
	user := &models.User{
		Username:        "alice",
		PasswordHash:    "hash",
		Balance:         decimal.RequireFromString("100.50"),
		BalanceCurrency: "EUR",
		IsContractor:    true,
		ReferralCode:    &code,
	}
	require.NoError(t, repo.Create(ctx, user))
	require.NotZero(t, user.ID)

	byName, err := repo.GetByUsername(ctx, " alice ")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)
	assert.True(t, byName.Balance.Equal(decimal.RequireFromString("100.50")))
	assert.True(t, byName.IsContractor.Bool())
	assert.False(t, byName.IsAdmin.Bool())

	byCode, err := repo.GetByReferralCode(ctx, "PARTNER1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byCode.ID)

	require.NoError(t, repo.RecordLogin(ctx, user.ID, "10.0.0.5"))
	reloaded, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", reloaded.LastLoginIP)
	assert.NotNil(t, reloaded.LastLoginAt)
}

func TestUserRepository_NotFoundAndDuplicate(t *testing.T) {
	db := repotest.NewDB(t)
	repo := repositories.NewUserRepository(db)
	ctx := context.Background()

	_, err := repo.GetByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, repositories.ErrUserNotFound)

	_, err = repo.GetByID(ctx, 999)
	assert.ErrorIs(t, err, repositories.ErrUserNotFound)

	require.NoError(t, repo.Create(ctx, &models.User{Username: "bob", PasswordHash: "x", BalanceCurrency: "EUR"}))
	err = repo.Create(ctx, &models.User{Username: "bob", PasswordHash: "y", BalanceCurrency: "EUR"})
	assert.ErrorIs(t, err, repositories.ErrUsernameTaken)
}

func TestUserRepository_NormalizesLegacyBooleanRows(t *testing.T) {
	db := repotest.NewDB(t)
	repo := repositories.NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Exec(
		"INSERT INTO users (username, password_hash, balance, balance_currency, is_admin, is_employee, is_contractor, two_factor_enabled, two_factor_verified) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		"legacy", "hash", "0", "EUR", "t", "true", 0, "1", "f",
	).Error)

	user, err := repo.GetByUsername(ctx, "legacy")
	require.NoError(t, err)
	assert.True(t, user.IsAdmin.Bool())
	assert.True(t, user.IsEmployee.Bool())
	assert.False(t, user.IsContractor.Bool())
	assert.True(t, user.TwoFactorEnabled.Bool())
	assert.False(t, user.TwoFactorVerified.Bool())
}
