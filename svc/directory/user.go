package directory

import (
	"maps"
	"time"
)

// User is a registered player.
type User struct {
	ID         int64
	Email      string
	Username   string
	PictureURL *string
	Metadata   map[string]any
	CreatedAt  time.Time
}

// PublicView is what any client may see about a user.
type PublicView struct {
	UserID     int64     `json:"userId"`
	Username   string    `json:"username"`
	PictureURL *string   `json:"pictureUrl"`
	JoinTime   time.Time `json:"joinTime"`
}

// SelfView is the public view plus the owner's email.
type SelfView struct {
	PublicView
	Email string `json:"email"`
}

func (u *User) Public() PublicView {
	return PublicView{
		UserID:     u.ID,
		Username:   u.Username,
		PictureURL: u.PictureURL,
		JoinTime:   u.CreatedAt,
	}
}

func (u *User) Self() SelfView {
	return SelfView{PublicView: u.Public(), Email: u.Email}
}

// PublicViews converts a user map into its public form.
func PublicViews(users map[int64]*User) map[int64]PublicView {
	out := make(map[int64]PublicView, len(users))
	for id, u := range users {
		out[id] = u.Public()
	}
	return out
}

func (u *User) clone() *User {
	c := *u
	if u.PictureURL != nil {
		p := *u.PictureURL
		c.PictureURL = &p
	}
	c.Metadata = maps.Clone(u.Metadata)
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	return &c
}
