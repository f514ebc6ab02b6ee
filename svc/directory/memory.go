package directory

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MemoryDirectory is an in-process Directory for tests and local development.
type MemoryDirectory struct {
	mu         sync.RWMutex
	nextID     int64
	byID       map[int64]*User
	byEmail    map[string]int64
	byUsername map[string]int64
}

var _ Directory = (*MemoryDirectory)(nil)

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		byID:       make(map[int64]*User),
		byEmail:    make(map[string]int64),
		byUsername: make(map[string]int64),
	}
}

func (d *MemoryDirectory) CreateUser(ctx context.Context, email, username string, pictureURL *string, metadata map[string]any) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.byEmail[email]; ok {
		return nil, ErrEmailTaken
	}
	if _, ok := d.byUsername[username]; ok {
		return nil, ErrUsernameTaken
	}

	d.nextID++
	u := &User{
		ID:         d.nextID,
		Email:      email,
		Username:   username,
		PictureURL: pictureURL,
		Metadata:   maps.Clone(metadata),
		CreatedAt:  time.Now().UTC(),
	}
	u = u.clone()
	d.byID[u.ID] = u
	d.byEmail[email] = u.ID
	d.byUsername[username] = u.ID
	return u.clone(), nil
}

func (d *MemoryDirectory) GetUserByID(ctx context.Context, id int64) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u.clone(), nil
}

func (d *MemoryDirectory) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	return d.byID[id].clone(), nil
}

func (d *MemoryDirectory) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byUsername[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return d.byID[id].clone(), nil
}

func (d *MemoryDirectory) GetUsersByID(ctx context.Context, ids []int64) (map[int64]*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[int64]*User, len(ids))
	for _, id := range ids {
		if u, ok := d.byID[id]; ok {
			out[id] = u.clone()
		}
	}
	return out, nil
}

func (d *MemoryDirectory) UpdateUser(ctx context.Context, id int64, username string, pictureURL *string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	if owner, taken := d.byUsername[username]; taken && owner != id {
		return nil, ErrUsernameTaken
	}

	delete(d.byUsername, u.Username)
	d.byUsername[username] = id
	u.Username = username
	if pictureURL != nil {
		p := *pictureURL
		u.PictureURL = &p
	} else {
		u.PictureURL = nil
	}
	return u.clone(), nil
}
