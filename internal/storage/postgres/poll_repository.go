package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gravadigital/polls-api/internal/domain/poll"
	"github.com/gravadigital/polls-api/internal/logger"
)

// PostgresPollRepository implements PollRepository using GORM
type PostgresPollRepository struct {
	db  *gorm.DB
	log *log.Logger
	now func() time.Time
}

// NewPostgresPollRepository creates a new PostgreSQL poll repository
func NewPostgresPollRepository(db *gorm.DB) *PostgresPollRepository {
	return &PostgresPollRepository{
		db:  db,
		log: logger.Repository("poll"),
		now: time.Now,
	}
}

func (r *PostgresPollRepository) CreatePoll(ctx context.Context, input poll.CreateInput, ownerID uuid.UUID) (*poll.Poll, error) {
	p := poll.NewPoll(input, ownerID)
	r.log.Debug("creating poll", "poll_id", p.ID, "user_id", ownerID, "options", len(input.Options))

	db := r.db.WithContext(ctx)

	if err := db.Omit(clause.Associations).Create(p).Error; err != nil {
		r.log.Error("failed to create poll", "error", err, "user_id", ownerID)
		return nil, poll.Backend("failed to create poll", err)
	}

	options := poll.NewOptions(p.ID, input.Options)
	if err := db.Omit(clause.Associations).Create(&options).Error; err != nil {
		r.log.Error("failed to create poll options, removing poll", "error", err, "poll_id", p.ID)

		// the request context may already be gone; the cleanup must still run
		if delErr := r.db.WithContext(context.WithoutCancel(ctx)).Delete(&poll.Poll{}, "id = ?", p.ID).Error; delErr != nil {
			r.log.Error("failed to remove partially created poll", "error", delErr, "poll_id", p.ID)
			return nil, poll.Backend("failed to create poll options", errors.Join(err, delErr))
		}
		return nil, poll.Backend("failed to create poll options", err)
	}

	r.log.Info("poll created successfully", "poll_id", p.ID, "user_id", ownerID, "options", len(options))
	return p, nil
}

func (r *PostgresPollRepository) GetByID(ctx context.Context, pollID uuid.UUID) (*poll.Poll, error) {
	r.log.Debug("retrieving poll by ID", "poll_id", pollID)

	var p poll.Poll
	if err := r.db.WithContext(ctx).First(&p, "id = ?", pollID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Debug("poll not found", "poll_id", pollID)
			return nil, poll.NewError(poll.CodeNotFound, "poll not found", nil)
		}
		r.log.Error("failed to retrieve poll", "poll_id", pollID, "error", err)
		return nil, poll.Backend("failed to retrieve poll", err)
	}

	return &p, nil
}

func (r *PostgresPollRepository) GetPollWithOptions(ctx context.Context, pollID uuid.UUID) (*poll.PollWithOptions, error) {
	p, err := r.GetByID(ctx, pollID)
	if err != nil {
		return nil, err
	}

	var options []poll.PollOption
	err = r.db.WithContext(ctx).
		Where("poll_id = ?", pollID).
		Order("position ASC").
		Find(&options).Error
	if err != nil {
		r.log.Error("failed to retrieve poll options", "poll_id", pollID, "error", err)
		return nil, poll.Backend("failed to retrieve poll options", err)
	}

	r.log.Debug("poll retrieved successfully", "poll_id", pollID, "options", len(options))
	return &poll.PollWithOptions{Poll: *p, Options: options}, nil
}

func (r *PostgresPollRepository) GetPollWithOptionsAndResults(ctx context.Context, pollID uuid.UUID) (*poll.PollWithOptionsAndResults, error) {
	pw, err := r.GetPollWithOptions(ctx, pollID)
	if err != nil {
		return nil, err
	}

	counts, err := countVotesByOption(r.db.WithContext(ctx), pollID)
	if err != nil {
		r.log.Error("failed to count votes", "poll_id", pollID, "error", err)
		return nil, poll.Backend("failed to count votes", err)
	}

	results := poll.Aggregate(&pw.Poll, pw.Options, counts)
	return &poll.PollWithOptionsAndResults{
		PollWithOptions: *pw,
		Results:         results,
		TotalVotes:      poll.TotalVotes(results),
	}, nil
}

// summaries selects polls with their vote count, newest first
func (r *PostgresPollRepository) summaries(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&poll.Poll{}).
		Select("polls.*, COUNT(votes.id) AS votes_count").
		Joins("LEFT JOIN votes ON votes.poll_id = polls.id").
		Group("polls.id").
		Order("polls.created_at DESC").
		Order("polls.id")
}

func (r *PostgresPollRepository) GetUserPolls(ctx context.Context, userID uuid.UUID) ([]poll.PollSummary, error) {
	r.log.Debug("retrieving polls by owner", "user_id", userID)

	polls := []poll.PollSummary{}
	if err := r.summaries(ctx).Where("polls.user_id = ?", userID).Scan(&polls).Error; err != nil {
		r.log.Error("failed to retrieve user polls", "user_id", userID, "error", err)
		return nil, poll.Backend("failed to retrieve user polls", err)
	}

	r.log.Debug("user polls retrieved successfully", "user_id", userID, "count", len(polls))
	return polls, nil
}

func (r *PostgresPollRepository) GetPublicPolls(ctx context.Context, params ListParams) ([]poll.PollSummary, error) {
	r.log.Debug("retrieving public polls", "limit", params.Limit, "offset", params.Offset, "hide_expired", params.HideExpired)

	if params.Offset < 0 {
		params.Offset = 0
	}

	query := r.summaries(ctx).Where("polls.is_public = ?", true)
	if params.HideExpired {
		query = query.Where("polls.expires_at IS NULL OR polls.expires_at > ?", r.now().UTC())
	}
	if params.Limit > 0 {
		query = query.Limit(params.Limit)
	}

	polls := []poll.PollSummary{}
	if err := query.Offset(params.Offset).Scan(&polls).Error; err != nil {
		r.log.Error("failed to retrieve public polls", "error", err)
		return nil, poll.Backend("failed to retrieve public polls", err)
	}

	r.log.Debug("public polls retrieved successfully", "count", len(polls))
	return polls, nil
}

func (r *PostgresPollRepository) DeletePoll(ctx context.Context, pollID, ownerID uuid.UUID) error {
	r.log.Debug("deleting poll", "poll_id", pollID, "user_id", ownerID)

	p, err := r.GetByID(ctx, pollID)
	if err != nil {
		return err
	}

	if !p.IsOwnedBy(ownerID) {
		r.log.Warn("refusing to delete poll of another user", "poll_id", pollID, "user_id", ownerID, "owner_id", p.UserID)
		return poll.NewError(poll.CodeUnauthorized, "only the owner can delete this poll", nil)
	}

	// options and votes go with the poll through ON DELETE CASCADE
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", pollID, ownerID).Delete(&poll.Poll{})
	if result.Error != nil {
		r.log.Error("failed to delete poll", "poll_id", pollID, "error", result.Error)
		return poll.Backend("failed to delete poll", result.Error)
	}
	if result.RowsAffected == 0 {
		r.log.Debug("poll vanished before delete", "poll_id", pollID)
		return poll.NewError(poll.CodeNotFound, "poll not found", nil)
	}

	r.log.Info("poll deleted successfully", "poll_id", pollID, "user_id", ownerID)
	return nil
}

type optionCount struct {
	OptionID  uuid.UUID
	VoteCount int64
}

func countVotesByOption(db *gorm.DB, pollID uuid.UUID) (map[uuid.UUID]int64, error) {
	var rows []optionCount
	err := db.Model(&poll.Vote{}).
		Select("option_id, COUNT(*) AS vote_count").
		Where("poll_id = ?", pollID).
		Group("option_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		counts[row.OptionID] = row.VoteCount
	}
	return counts, nil
}
