package repo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hectic-downloader/server/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func awaiting() model.ConversationState {
	return model.ConversationState{
		AwaitingSelection: true,
		PendingResults: []model.SearchResult{
			{ID: "a1", Title: "first"},
			{ID: "b2", Title: "second"},
		},
		TransientMessageIDs: []int{10, 11},
	}
}

func stateRepos(t *testing.T) map[string]model.StateRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return map[string]model.StateRepository{
		"memory": NewMemoryStateRepository(time.Hour, nil),
		"redis":  NewRedisStateRepository(rdb, "test", time.Hour),
	}
}

func TestStateRepository_SetGetClear(t *testing.T) {
	for name, repo := range stateRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := repo.Get(ctx, 5)
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, repo.Set(ctx, 5, awaiting()))
			got, ok, err := repo.Get(ctx, 5)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, awaiting(), got)

			// other chats are unaffected
			_, ok, err = repo.Get(ctx, 6)
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, repo.Clear(ctx, 5))
			_, ok, err = repo.Get(ctx, 5)
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, repo.Clear(ctx, 5))
		})
	}
}

func TestStateRepository_SetReplacesWholesale(t *testing.T) {
	for name, repo := range stateRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Set(ctx, 1, awaiting()))
			require.NoError(t, repo.Set(ctx, 1, model.ConversationState{TransientMessageIDs: []int{99}}))

			got, ok, err := repo.Get(ctx, 1)
			require.NoError(t, err)
			require.True(t, ok)
			require.False(t, got.AwaitingSelection)
			require.Empty(t, got.PendingResults)
			require.Equal(t, []int{99}, got.TransientMessageIDs)
		})
	}
}

func TestMemoryStateRepository_Expires(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	repo := NewMemoryStateRepository(30*time.Minute, clk.Now)

	require.NoError(t, repo.Set(ctx, 3, awaiting()))
	clk.Advance(31 * time.Minute)
	_, ok, err := repo.Get(ctx, 3)
	require.NoError(t, err)
	require.False(t, ok)
}
