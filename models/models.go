package models

// User is the identity a bearer token resolves to. TeamId is empty for
// users without a team affiliation (judges, organizers); those connections
// stay unscoped and receive no team broadcasts.
type User struct {
	Id       string
	Name     string
	Email    string
	TeamId   string
	TeamRole string
	Created  int64
}

// Team carries the durable per-team counters maintained by the counter
// batcher.
type Team struct {
	Id          string
	Name        string
	StickyCount int
	Created     int64
}

type Idea struct {
	Id          string `json:"id"`
	TeamId      string `json:"teamId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Hearts      int    `json:"hearts"`
	Fires       int    `json:"fires"`
	Stars       int    `json:"stars"`
	Votes       int    `json:"votes"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
}

// IdeaUpdates is a partial update; nil fields are left untouched.
type IdeaUpdates struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
}

// StickyNote is keyed by a client-generated noteId that is unique across
// the whole system, not just per team. The key stays stable across
// reconnects, which is what makes sticky create/update an idempotent
// upsert.
type StickyNote struct {
	NoteId    string  `json:"id"`
	TeamId    string  `json:"teamId"`
	Text      string  `json:"text"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Color     string  `json:"color"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	CreatedAt int64   `json:"createdAt"`
	UpdatedAt int64   `json:"updatedAt"`
}

// StickyNoteUpdate is the client-submitted partial sticky state. Only the
// id is mandatory; everything else is merged over the persisted note.
type StickyNoteUpdate struct {
	Id     string   `json:"id"`
	Text   *string  `json:"text,omitempty"`
	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
	Color  *string  `json:"color,omitempty"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
}

type ReactionType string

const (
	ReactionFire  ReactionType = "fire"
	ReactionHeart ReactionType = "heart"
	ReactionStar  ReactionType = "star"
	ReactionVote  ReactionType = "vote"
)
