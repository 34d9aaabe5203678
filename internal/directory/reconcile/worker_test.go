package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/warrantydesk/warrantydesk/internal/clock"
	"github.com/warrantydesk/warrantydesk/internal/directory/domain"
	"github.com/warrantydesk/warrantydesk/internal/directory/repository"
)

func TestRunOnceFlipsStatusAroundCutoff(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&domain.Actor{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	repo := repository.Provide()

	seed := func(addr string, lastLogin *time.Time, active bool) snowflake.ID {
		actor := domain.Actor{
			ID:           node.Generate(),
			Role:         domain.RoleClient,
			Name:         addr,
			Email:        addr,
			LastLogin:    lastLogin,
			ActiveStatus: active,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		require.NoError(t, repo.Insert(context.Background(), gdb, &actor))
		return actor.ID
	}

	stale := now.AddDate(0, 0, -40)
	fresh := now.AddDate(0, 0, -5)

	staleID := seed("stale@example.com", &stale, true)
	freshID := seed("fresh@example.com", &fresh, false)
	neverID := seed("never@example.com", nil, true)

	worker := NewWorker(Params{
		DB:    gdb,
		Log:   zap.NewNop(),
		Clock: fake,
		Repo:  repo,
	})

	require.NoError(t, worker.RunOnce(context.Background()))

	status := func(id snowflake.ID) bool {
		actor, err := repo.FindByID(context.Background(), gdb, id)
		require.NoError(t, err)
		require.NotNil(t, actor)
		return actor.ActiveStatus
	}

	assert.False(t, status(staleID))
	assert.True(t, status(freshID))
	assert.False(t, status(neverID))

	// Flipped rows are stamped with the worker's clock, not wall time.
	flipped, err := repo.FindByID(context.Background(), gdb, staleID)
	require.NoError(t, err)
	require.NotNil(t, flipped)
	assert.True(t, flipped.UpdatedAt.Equal(now))

	// Second run is a no-op.
	require.NoError(t, worker.RunOnce(context.Background()))
	assert.False(t, status(staleID))
	assert.True(t, status(freshID))
}
