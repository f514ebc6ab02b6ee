package directory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfchess/identity/svc/directory"
)

// testDirectory exercises the Directory contract against any implementation.
func testDirectory(t *testing.T, newDir func(t *testing.T) directory.Directory) {
	t.Run("create and lookup", func(t *testing.T) {
		d := newDir(t)
		ctx := context.Background()

		u, err := d.CreateUser(ctx, "a@example.com", "Tiger Pawn 123", nil, map[string]any{})
		require.NoError(t, err)
		assert.NotZero(t, u.ID)
		assert.Nil(t, u.PictureURL)
		assert.NotNil(t, u.Metadata)
		assert.False(t, u.CreatedAt.IsZero())

		byID, err := d.GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "a@example.com", byID.Email)

		byEmail, err := d.GetUserByEmail(ctx, "a@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)

		byName, err := d.GetUserByUsername(ctx, "Tiger Pawn 123")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byName.ID)
	})

	t.Run("not found", func(t *testing.T) {
		d := newDir(t)
		ctx := context.Background()

		_, err := d.GetUserByID(ctx, 424242)
		require.ErrorIs(t, err, directory.ErrUserNotFound)
		_, err = d.GetUserByEmail(ctx, "nobody@example.com")
		require.ErrorIs(t, err, directory.ErrUserNotFound)
		_, err = d.GetUserByUsername(ctx, "Nobody")
		require.ErrorIs(t, err, directory.ErrUserNotFound)
		_, err = d.UpdateUser(ctx, 424242, "Someone", nil)
		require.ErrorIs(t, err, directory.ErrUserNotFound)
	})

	t.Run("unique email and username", func(t *testing.T) {
		d := newDir(t)
		ctx := context.Background()

		_, err := d.CreateUser(ctx, "a@example.com", "Crane Rook 100", nil, nil)
		require.NoError(t, err)

		_, err = d.CreateUser(ctx, "a@example.com", "Crane Rook 101", nil, nil)
		require.ErrorIs(t, err, directory.ErrEmailTaken)

		_, err = d.CreateUser(ctx, "b@example.com", "Crane Rook 100", nil, nil)
		require.ErrorIs(t, err, directory.ErrUsernameTaken)
	})

	t.Run("update", func(t *testing.T) {
		d := newDir(t)
		ctx := context.Background()

		a, err := d.CreateUser(ctx, "a@example.com", "Snake King 500", nil, nil)
		require.NoError(t, err)
		b, err := d.CreateUser(ctx, "b@example.com", "Snake King 501", nil, nil)
		require.NoError(t, err)

		pic := "https://cdn.example/profile-pics/x"
		updated, err := d.UpdateUser(ctx, a.ID, "Grandmaster", &pic)
		require.NoError(t, err)
		assert.Equal(t, "Grandmaster", updated.Username)
		require.NotNil(t, updated.PictureURL)
		assert.Equal(t, pic, *updated.PictureURL)

		_, err = d.UpdateUser(ctx, b.ID, "Grandmaster", nil)
		require.ErrorIs(t, err, directory.ErrUsernameTaken)

		// old name is free again
		_, err = d.UpdateUser(ctx, b.ID, "Snake King 500", nil)
		require.NoError(t, err)

		// keeping one's own name is not a conflict
		_, err = d.UpdateUser(ctx, a.ID, "Grandmaster", &pic)
		require.NoError(t, err)

		exists, err := directory.UsernameExists(ctx, d, "Snake King 501")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("get users by id", func(t *testing.T) {
		d := newDir(t)
		ctx := context.Background()

		a, err := d.CreateUser(ctx, "a@example.com", "Dragon Queen 777", nil, nil)
		require.NoError(t, err)
		b, err := d.CreateUser(ctx, "b@example.com", "Dragon Queen 778", nil, nil)
		require.NoError(t, err)

		users, err := d.GetUsersByID(ctx, []int64{a.ID, b.ID, 999999})
		require.NoError(t, err)
		assert.Len(t, users, 2)
		assert.Equal(t, "Dragon Queen 777", users[a.ID].Username)

		empty, err := d.GetUsersByID(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("concurrent create with same email", func(t *testing.T) {
		d := newDir(t)
		ctx := context.Background()

		const workers = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
			taken   int
		)
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := d.CreateUser(ctx, "race@example.com", "Leopard Bishop "+string(rune('a'+i)), nil, nil)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					created++
				case errors.Is(err, directory.ErrEmailTaken):
					taken++
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, created)
		assert.Equal(t, workers-1, taken)
	})
}

func TestMemoryDirectory(t *testing.T) {
	t.Parallel()
	testDirectory(t, func(*testing.T) directory.Directory {
		return directory.NewMemoryDirectory()
	})
}

func TestMemoryDirectory_ReturnsCopies(t *testing.T) {
	t.Parallel()
	d := directory.NewMemoryDirectory()
	ctx := context.Background()

	u, err := d.CreateUser(ctx, "a@example.com", "Tiger Knight 321", nil, map[string]any{"k": "v"})
	require.NoError(t, err)
	u.Username = "mutated"
	u.Metadata["k"] = "changed"

	got, err := d.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tiger Knight 321", got.Username)
	assert.Equal(t, "v", got.Metadata["k"])
}

func TestViews(t *testing.T) {
	t.Parallel()
	pic := "https://cdn.example/p"
	u := &directory.User{ID: 5, Email: "a@example.com", Username: "Crane King 111", PictureURL: &pic}

	pub := u.Public()
	assert.Equal(t, int64(5), pub.UserID)
	assert.Equal(t, "Crane King 111", pub.Username)

	self := u.Self()
	assert.Equal(t, "a@example.com", self.Email)
	assert.Equal(t, pub, self.PublicView)

	views := directory.PublicViews(map[int64]*directory.User{5: u})
	assert.Equal(t, pub, views[5])
}
