package poll

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Poll is a user-created question with at least two options
type Poll struct {
	ID                 uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Title              string     `json:"title" gorm:"not null"`
	Description        *string    `json:"description" gorm:"type:text"`
	UserID             uuid.UUID  `json:"user_id" gorm:"type:uuid;not null"`
	IsPublic           bool       `json:"is_public" gorm:"not null"`
	AllowMultipleVotes bool       `json:"allow_multiple_votes" gorm:"not null"`
	CreatedAt          time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt          time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	ExpiresAt          *time.Time `json:"expires_at"`
}

// TableName overrides the table name used by GORM
func (Poll) TableName() string {
	return "polls"
}

// BeforeCreate sets a UUID before creating the record
func (p *Poll) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// IsOwnedBy checks if the given user owns this poll
func (p *Poll) IsOwnedBy(userID uuid.UUID) bool {
	return p.UserID == userID
}

// IsExpired reports whether the poll has an expiry that lies before now
func (p *Poll) IsExpired(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

// PollOption is one selectable choice of a poll. Options never change after creation.
type PollOption struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	PollID    uuid.UUID `json:"poll_id" gorm:"type:uuid;not null"`
	Text      string    `json:"text" gorm:"not null"`
	Position  int       `json:"position" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Poll *Poll `json:"-" gorm:"foreignKey:PollID;constraint:OnDelete:CASCADE"`
}

func (PollOption) TableName() string {
	return "poll_options"
}

func (o *PollOption) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// Vote is a single ballot. UserID is nil for anonymous voters, in which case
// IPAddress may hold the visitor proxy.
//
// UniqueVoter is only set when the poll allows a single vote per user; the
// (poll_id, unique_voter) unique index makes the store reject duplicates.
type Vote struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	PollID      uuid.UUID  `json:"poll_id" gorm:"type:uuid;not null;uniqueIndex:idx_votes_poll_unique_voter,priority:1"`
	OptionID    uuid.UUID  `json:"option_id" gorm:"type:uuid;not null"`
	UserID      *uuid.UUID `json:"user_id" gorm:"type:uuid"`
	IPAddress   *string    `json:"ip_address"`
	UniqueVoter *string    `json:"-" gorm:"uniqueIndex:idx_votes_poll_unique_voter,priority:2"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`

	Poll   *Poll       `json:"-" gorm:"foreignKey:PollID;constraint:OnDelete:CASCADE"`
	Option *PollOption `json:"-" gorm:"foreignKey:OptionID;constraint:OnDelete:CASCADE"`
}

func (Vote) TableName() string {
	return "votes"
}

func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// PollWithOptions is a poll together with its options in creation order
type PollWithOptions struct {
	Poll
	Options []PollOption `json:"options"`
}

// PollWithOptionsAndResults extends PollWithOptions with live vote tallies
type PollWithOptionsAndResults struct {
	PollWithOptions
	Results    []PollResult `json:"results"`
	TotalVotes int64        `json:"total_votes"`
}

// PollSummary is the list view of a poll
type PollSummary struct {
	Poll
	VotesCount int64 `json:"votes_count"`
}

// CreateInput carries everything needed to persist a new poll
type CreateInput struct {
	Title              string
	Description        *string
	Options            []string
	IsPublic           bool
	AllowMultipleVotes bool
	ExpiresAt          *time.Time
}

// NewPoll builds a poll owned by ownerID from a validated input
func NewPoll(input CreateInput, ownerID uuid.UUID) *Poll {
	return &Poll{
		ID:                 uuid.New(),
		Title:              input.Title,
		Description:        input.Description,
		UserID:             ownerID,
		IsPublic:           input.IsPublic,
		AllowMultipleVotes: input.AllowMultipleVotes,
		ExpiresAt:          input.ExpiresAt,
	}
}

// NewOptions builds the option rows for a poll, keeping the given order
func NewOptions(pollID uuid.UUID, texts []string) []PollOption {
	options := make([]PollOption, 0, len(texts))
	for i, text := range texts {
		options = append(options, PollOption{
			ID:       uuid.New(),
			PollID:   pollID,
			Text:     text,
			Position: i,
		})
	}
	return options
}

// HasOption checks if the option id belongs to this poll's options
func (p *PollWithOptions) HasOption(optionID uuid.UUID) bool {
	for _, o := range p.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// AllModels returns the models managed by the schema migrations
func AllModels() []any {
	return []any{
		&Poll{},
		&PollOption{},
		&Vote{},
	}
}
