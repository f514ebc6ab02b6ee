package account_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfchess/identity/pkg/auth"
	"github.com/kfchess/identity/pkg/randomname"
	"github.com/kfchess/identity/svc/account"
	"github.com/kfchess/identity/svc/directory"
)

var usernamePattern = regexp.MustCompile(`^(Tiger|Leopard|Crane|Snake|Dragon) (Pawn|Knight|Bishop|Rook|Queen|King) [1-9][0-9]{2}$`)

type countingMetrics struct {
	logins      atomic.Int64
	provisioned atomic.Int64
	collisions  atomic.Int64
	uploads     atomic.Int64
}

func (m *countingMetrics) LoginCompleted(string)      { m.logins.Add(1) }
func (m *countingMetrics) UserProvisioned()           { m.provisioned.Add(1) }
func (m *countingMetrics) UsernameCollision()         { m.collisions.Add(1) }
func (m *countingMetrics) AvatarUploaded(string, int) { m.uploads.Add(1) }

// sequence returns an IntN source replaying values, then zeros.
func sequence(values ...int) func(int) int {
	var mu sync.Mutex
	return func(n int) int {
		mu.Lock()
		defer mu.Unlock()
		if len(values) == 0 {
			return 0
		}
		v := values[0]
		values = values[1:]
		return v % n
	}
}

func identity(email string) auth.ExternalIdentity {
	return auth.ExternalIdentity{Subject: "sub-" + email, Email: email, EmailVerified: true}
}

func TestResolveOrProvision_ExistingUser(t *testing.T) {
	t.Parallel()
	dir := directory.NewMemoryDirectory()
	existing, err := dir.CreateUser(context.Background(), "a@example.com", "Crane King 123", nil, nil)
	require.NoError(t, err)

	m := &countingMetrics{}
	r := account.NewResolver(dir, account.WithMetrics(m))
	u, created, err := r.ResolveOrProvision(context.Background(), identity("a@example.com"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID, u.ID)
	assert.Zero(t, m.provisioned.Load())
}

func TestResolveOrProvision_FirstLogin(t *testing.T) {
	t.Parallel()
	dir := directory.NewMemoryDirectory()
	m := &countingMetrics{}
	r := account.NewResolver(dir, account.WithMetrics(m))

	u, created, err := r.ResolveOrProvision(context.Background(), identity("new@example.com"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "new@example.com", u.Email)
	assert.Regexp(t, usernamePattern, u.Username)
	assert.Nil(t, u.PictureURL)
	assert.Empty(t, u.Metadata)
	assert.Equal(t, int64(1), m.provisioned.Load())

	again, created, err := r.ResolveOrProvision(context.Background(), identity("new@example.com"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u.ID, again.ID)
}

func TestResolveOrProvision_SkipsTakenUsernames(t *testing.T) {
	t.Parallel()
	dir := directory.NewMemoryDirectory()
	_, err := dir.CreateUser(context.Background(), "old@example.com", "Tiger Pawn 100", nil, nil)
	require.NoError(t, err)

	m := &countingMetrics{}
	gen := randomname.New(randomname.WithIntN(sequence(0, 0, 0, 1, 0, 0)))
	r := account.NewResolver(dir, account.WithNameGenerator(gen), account.WithMetrics(m))

	u, created, err := r.ResolveOrProvision(context.Background(), identity("new@example.com"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Leopard Pawn 100", u.Username)
	assert.Equal(t, int64(1), m.collisions.Load())
}

func TestResolveOrProvision_Exhausted(t *testing.T) {
	t.Parallel()
	dir := directory.NewMemoryDirectory()
	_, err := dir.CreateUser(context.Background(), "old@example.com", "Tiger Pawn 100", nil, nil)
	require.NoError(t, err)

	gen := randomname.New(
		randomname.WithIntN(func(int) int { return 0 }),
		randomname.WithMaxAttempts(5),
	)
	r := account.NewResolver(dir, account.WithNameGenerator(gen))

	_, _, err = r.ResolveOrProvision(context.Background(), identity("new@example.com"))
	require.ErrorIs(t, err, account.ErrUsernameGenerationExhausted)

	_, err = dir.GetUserByEmail(context.Background(), "new@example.com")
	require.ErrorIs(t, err, directory.ErrUserNotFound)
}

func TestResolveOrProvision_MissingEmail(t *testing.T) {
	t.Parallel()
	r := account.NewResolver(directory.NewMemoryDirectory())
	_, _, err := r.ResolveOrProvision(context.Background(), auth.ExternalIdentity{Subject: "x"})
	require.ErrorIs(t, err, auth.ErrMissingEmail)
}

// racingDirectory lets another login win the insert right before ours.
type racingDirectory struct {
	*directory.MemoryDirectory
	once sync.Once
}

func (d *racingDirectory) CreateUser(ctx context.Context, email, username string, pic *string, meta map[string]any) (*directory.User, error) {
	d.once.Do(func() {
		_, _ = d.MemoryDirectory.CreateUser(ctx, email, "Dragon Rook 999", nil, nil)
	})
	return d.MemoryDirectory.CreateUser(ctx, email, username, pic, meta)
}

func TestResolveOrProvision_LostCreateRace(t *testing.T) {
	t.Parallel()
	dir := &racingDirectory{MemoryDirectory: directory.NewMemoryDirectory()}
	r := account.NewResolver(dir)

	u, created, err := r.ResolveOrProvision(context.Background(), identity("race@example.com"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Dragon Rook 999", u.Username)
}

// stealingDirectory takes the candidate username just before the insert.
type stealingDirectory struct {
	*directory.MemoryDirectory
	steals int
}

func (d *stealingDirectory) CreateUser(ctx context.Context, email, username string, pic *string, meta map[string]any) (*directory.User, error) {
	if d.steals > 0 {
		d.steals--
		_, _ = d.MemoryDirectory.CreateUser(ctx, "thief-"+username+"@example.com", username, nil, nil)
	}
	return d.MemoryDirectory.CreateUser(ctx, email, username, pic, meta)
}

func TestResolveOrProvision_UsernameTakenAtCreate(t *testing.T) {
	t.Parallel()

	t.Run("retries with a new name", func(t *testing.T) {
		t.Parallel()
		dir := &stealingDirectory{MemoryDirectory: directory.NewMemoryDirectory(), steals: 2}
		m := &countingMetrics{}
		r := account.NewResolver(dir, account.WithMetrics(m))

		u, created, err := r.ResolveOrProvision(context.Background(), identity("a@example.com"))
		require.NoError(t, err)
		assert.True(t, created)
		assert.Regexp(t, usernamePattern, u.Username)
		assert.GreaterOrEqual(t, m.collisions.Load(), int64(2))
	})

	t.Run("bounded", func(t *testing.T) {
		t.Parallel()
		dir := &stealingDirectory{MemoryDirectory: directory.NewMemoryDirectory(), steals: 100}
		r := account.NewResolver(dir, account.WithCreateAttempts(3))

		_, _, err := r.ResolveOrProvision(context.Background(), identity("a@example.com"))
		require.ErrorIs(t, err, account.ErrUsernameGenerationExhausted)
	})
}

type failingDirectory struct {
	*directory.MemoryDirectory
	err error
}

func (d *failingDirectory) GetUserByUsername(context.Context, string) (*directory.User, error) {
	return nil, d.err
}

func TestResolveOrProvision_DirectoryError(t *testing.T) {
	t.Parallel()
	boom := errors.New("connection reset")
	dir := &failingDirectory{MemoryDirectory: directory.NewMemoryDirectory(), err: boom}
	r := account.NewResolver(dir)

	_, _, err := r.ResolveOrProvision(context.Background(), identity("a@example.com"))
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, account.ErrUsernameGenerationExhausted)
}

func TestResolveOrProvision_ConcurrentFirstLogin(t *testing.T) {
	t.Parallel()
	dir := directory.NewMemoryDirectory()
	m := &countingMetrics{}
	r := account.NewResolver(dir, account.WithMetrics(m))

	const workers = 16
	var (
		wg      sync.WaitGroup
		created atomic.Int64
		ids     sync.Map
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, c, err := r.ResolveOrProvision(context.Background(), identity("same@example.com"))
			if !assert.NoError(t, err) {
				return
			}
			if c {
				created.Add(1)
			}
			ids.Store(i, u.ID)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), created.Load())
	assert.Equal(t, int64(1), m.provisioned.Load())

	var first int64
	ids.Range(func(_, v any) bool {
		id := v.(int64)
		if first == 0 {
			first = id
		}
		assert.Equal(t, first, id)
		return true
	})
}
