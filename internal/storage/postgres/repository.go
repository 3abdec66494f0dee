package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/gravadigital/polls-api/internal/domain/account"
	"github.com/gravadigital/polls-api/internal/domain/poll"
)

// PollRepository define los métodos para interactuar con las encuestas en la DB.
type PollRepository interface {
	// CreatePoll stores the poll and its options. The poll is removed again
	// when the options cannot be stored.
	CreatePoll(ctx context.Context, input poll.CreateInput, ownerID uuid.UUID) (*poll.Poll, error)
	GetByID(ctx context.Context, pollID uuid.UUID) (*poll.Poll, error)
	GetPollWithOptions(ctx context.Context, pollID uuid.UUID) (*poll.PollWithOptions, error)
	GetPollWithOptionsAndResults(ctx context.Context, pollID uuid.UUID) (*poll.PollWithOptionsAndResults, error)
	GetUserPolls(ctx context.Context, userID uuid.UUID) ([]poll.PollSummary, error)
	GetPublicPolls(ctx context.Context, params ListParams) ([]poll.PollSummary, error)
	// DeletePoll removes a poll owned by ownerID together with its options and votes
	DeletePoll(ctx context.Context, pollID, ownerID uuid.UUID) error
}

// VoteRepository define los métodos para interactuar con los votos
type VoteRepository interface {
	Create(ctx context.Context, vote *poll.Vote) error
	CountByOption(ctx context.Context, pollID uuid.UUID) (map[uuid.UUID]int64, error)
	HasVoted(ctx context.Context, pollID, userID uuid.UUID) (bool, error)
}

// UserRepository define los métodos para interactuar con los usuarios en la DB.
type UserRepository interface {
	Create(ctx context.Context, user *account.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*account.User, error)
	GetByEmail(ctx context.Context, email string) (*account.User, error)
}

// RepositoryContainer groups the repositories sharing one connection
type RepositoryContainer interface {
	Polls() PollRepository
	Votes() VoteRepository
	Users() UserRepository
	Health(ctx context.Context) error
	Close() error
}

// ListParams pages through public polls
type ListParams struct {
	Limit  int
	Offset int
	// HideExpired drops polls whose expiry has passed
	HideExpired bool
}
