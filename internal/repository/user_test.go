package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rocketscienceinc/tictactoe-tcp/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-tcp/internal/entity"
	"github.com/rocketscienceinc/tictactoe-tcp/internal/repository/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (context.Context, UserRepository) {
	t.Helper()

	ctx := context.Background()

	st, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, st.Close())
	})

	require.NoError(t, st.Init(ctx))

	return ctx, NewUserRepository(st.Connection)
}

func TestUserRepository_Save(t *testing.T) {
	ctx, userRepo := newTestRepo(t)

	// Given: a user with a hashed password
	user := &entity.User{Username: "alice", PasswordHash: "hash"}

	// When: Save is called
	err := userRepo.Save(ctx, user)

	// Then: no error should be returned
	require.NoError(t, err)

	// When: saving the same username again
	err = userRepo.Save(ctx, user)

	// Then: the primary key rejects the duplicate
	require.Error(t, err)
}

func TestUserRepository_Find(t *testing.T) {
	t.Run("Find_Success", func(t *testing.T) {
		ctx, userRepo := newTestRepo(t)

		// Given: a saved user
		user := &entity.User{Username: "alice", PasswordHash: "hash"}
		require.NoError(t, userRepo.Save(ctx, user))

		// When: Find is called with the existing username
		found, err := userRepo.Find(ctx, "alice")

		// Then: the stored record comes back intact
		require.NoError(t, err)
		assert.Equal(t, user, found)
	})

	t.Run("Find_NotFound", func(t *testing.T) {
		ctx, userRepo := newTestRepo(t)

		// When: Find is called with an unknown username
		found, err := userRepo.Find(ctx, "nobody")

		// Then: ErrUserNotFound should be returned
		require.ErrorIs(t, err, apperror.ErrUserNotFound)
		assert.Nil(t, found)
	})
}
