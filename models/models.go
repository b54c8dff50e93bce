package models

import (
	"time"

	"gorm.io/gorm"
)

// Uid is the internal numeric identifier for a registered user.
type Uid uint

// ModerationState is the review status of a piece of user-submitted content.
// Every item starts out pending; the moderation pipeline moves it to exactly
// one terminal state and never back.
type ModerationState string

const (
	StatePending  ModerationState = "pending"
	StateApproved ModerationState = "approved"
	StateRejected ModerationState = "rejected"
)

// Terminal reports whether the state is a final moderation outcome.
func (s ModerationState) Terminal() bool {
	return s == StateApproved || s == StateRejected
}

// ContentKind distinguishes the two moderated content types, which share the
// same state machine.
type ContentKind string

const (
	KindPost    ContentKind = "post"
	KindComment ContentKind = "comment"
)

type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"-"`
	Name      string    `json:"name"`
	Email     string    `gorm:"uniqueIndex" json:"email"`
	// scrypt hash, never serialized
	Password string `json:"-"`
}

func (u *User) Uid() Uid {
	return Uid(u.ID)
}

// Incident is a map incident that posts can attach to.
type Incident struct {
	gorm.Model
	Reporter    Uid     `gorm:"index" json:"reporter"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// QueryKind is how a user query was captured.
type QueryKind string

const (
	QueryText  QueryKind = "text"
	QueryVoice QueryKind = "voice"
)

// Query is a user question together with the answer it received, kept as a
// per-user history. Queries are not moderated and are only ever visible to
// their author.
type Query struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Author    Uid       `gorm:"index" json:"author"`
	Kind      QueryKind `json:"kind"`
	Content   string    `json:"content"`
	Response  string    `json:"response"`
}

// Post is a user submission about an incident. At least one of Body or
// MediaURL is always set.
type Post struct {
	ID        uint            `gorm:"primarykey" json:"id"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Author    Uid             `gorm:"index" json:"author"`
	Incident  *uint           `gorm:"index" json:"incident,omitempty"`
	Body      *string         `json:"body,omitempty"`
	MediaURL  *string         `json:"mediaUrl,omitempty"`
	State     ModerationState `gorm:"index;default:pending" json:"state"`
}

// Comment is a reply on a post, or a one-level reply on a top-level comment.
// Post is always set; Parent is set only for replies.
type Comment struct {
	ID        uint            `gorm:"primarykey" json:"id"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Author    Uid             `gorm:"index" json:"author"`
	Post      uint            `gorm:"index" json:"post"`
	Parent    *uint           `gorm:"index" json:"parent,omitempty"`
	Body      string          `json:"body"`
	State     ModerationState `gorm:"index;default:pending" json:"state"`
}
