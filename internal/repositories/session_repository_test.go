package repositories_test

import (
	"context"
	"testing"
	"time"

	"exchange/internal/models"
	"exchange/internal/repositories"
	"exchange/internal/repositories/repotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRepository_Lifecycle(t *testing.T) {
	db := repotest.NewDB(t)
	repo := repositories.NewSessionRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	live := &models.Session{ID: "live", UserID: 1, IPAddress: "1.2.3.4", ExpiresAt: now.Add(time.Hour),
		Metadata: models.JSON{"browser": "firefox"}}
	stale := &models.Session{ID: "stale", UserID: 1, IPAddress: "1.2.3.4", ExpiresAt: now.Add(-time.Hour)}
	require.NoError(t, repo.Create(ctx, live))
	require.NoError(t, repo.Create(ctx, stale))

	got, err := repo.Get(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, "firefox", got.Metadata["browser"])

	removed, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = repo.Get(ctx, "stale")
	assert.ErrorIs(t, err, repositories.ErrSessionNotFound)

	require.NoError(t, repo.Delete(ctx, "live"))
	assert.ErrorIs(t, repo.Delete(ctx, "live"), repositories.ErrSessionNotFound)
}
