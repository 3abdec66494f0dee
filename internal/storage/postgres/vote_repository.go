package postgres

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gravadigital/polls-api/internal/domain/poll"
	"github.com/gravadigital/polls-api/internal/logger"
)

// PostgresVoteRepository implements VoteRepository using GORM
type PostgresVoteRepository struct {
	db  *gorm.DB
	log *log.Logger
}

// NewPostgresVoteRepository creates a new PostgreSQL vote repository
func NewPostgresVoteRepository(db *gorm.DB) *PostgresVoteRepository {
	return &PostgresVoteRepository{
		db:  db,
		log: logger.Repository("vote"),
	}
}

// Create inserts a ballot. A second ballot with the same unique voter on the
// same poll is rejected by idx_votes_poll_unique_voter and reported as
// AlreadyVoted.
func (r *PostgresVoteRepository) Create(ctx context.Context, vote *poll.Vote) error {
	r.log.Debug("creating new vote", "poll_id", vote.PollID, "option_id", vote.OptionID, "authenticated", vote.UserID != nil)

	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(vote).Error; err != nil {
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			r.log.Info("duplicate vote rejected", "poll_id", vote.PollID, "user_id", vote.UserID)
			return poll.NewError(poll.CodeAlreadyVoted, "you have already voted on this poll", err)
		case errors.Is(err, gorm.ErrForeignKeyViolated):
			r.log.Info("vote references a missing poll or option", "poll_id", vote.PollID, "option_id", vote.OptionID)
			return poll.NewError(poll.CodePollNotFound, "poll not found", err)
		}
		r.log.Error("failed to create vote", "error", err, "poll_id", vote.PollID)
		return poll.Backend("failed to record vote", err)
	}

	r.log.Info("vote created successfully", "vote_id", vote.ID, "poll_id", vote.PollID, "option_id", vote.OptionID)
	return nil
}

// CountByOption returns the number of votes per option of a poll. Options
// without votes are absent from the map.
func (r *PostgresVoteRepository) CountByOption(ctx context.Context, pollID uuid.UUID) (map[uuid.UUID]int64, error) {
	r.log.Debug("counting votes by option", "poll_id", pollID)

	counts, err := countVotesByOption(r.db.WithContext(ctx), pollID)
	if err != nil {
		r.log.Error("failed to count votes", "poll_id", pollID, "error", err)
		return nil, poll.Backend("failed to count votes", err)
	}
	return counts, nil
}

func (r *PostgresVoteRepository) HasVoted(ctx context.Context, pollID, userID uuid.UUID) (bool, error) {
	r.log.Debug("checking if user has voted", "poll_id", pollID, "user_id", userID)

	var found []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&poll.Vote{}).
		Where("poll_id = ? AND user_id = ?", pollID, userID).
		Limit(1).
		Pluck("id", &found).Error
	if err != nil {
		r.log.Error("failed to check vote status", "poll_id", pollID, "user_id", userID, "error", err)
		return false, poll.Backend("failed to check vote status", err)
	}

	return len(found) > 0, nil
}
