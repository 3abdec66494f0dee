package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/gravadigital/polls-api/internal/archive"
	"github.com/gravadigital/polls-api/internal/domain/poll"
	"github.com/gravadigital/polls-api/internal/identity"
	"github.com/gravadigital/polls-api/internal/logger"
	"github.com/gravadigital/polls-api/internal/response"
	"github.com/gravadigital/polls-api/internal/storage/postgres"
	"github.com/gravadigital/polls-api/internal/validation"
)

// PollServiceConfig tunes listings and expiry handling
type PollServiceConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	EnforceExpiry   bool
}

// PollService maneja el ciclo de vida de las encuestas
type PollService struct {
	polls     postgres.PollRepository
	votes     postgres.VoteRepository
	engine    *VoteEngine
	archiver  archive.Archiver
	validator validation.PollValidation
	cfg       PollServiceConfig
	now       func() time.Time
	log       *log.Logger
}

// NewPollService crea una nueva instancia del servicio de encuestas
func NewPollService(polls postgres.PollRepository, votes postgres.VoteRepository, archiver archive.Archiver, cfg PollServiceConfig) *PollService {
	if archiver == nil {
		archiver = archive.Noop{}
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 10
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}

	return &PollService{
		polls:     polls,
		votes:     votes,
		engine:    NewVoteEngine(polls, votes, cfg.EnforceExpiry),
		archiver:  archiver,
		validator: validation.PollValidation{},
		cfg:       cfg,
		now:       time.Now,
		log:       logger.Service("poll"),
	}
}

// CreatePollRequest representa una solicitud para crear una encuesta.
// Nil settings fall back to a public, single-vote poll.
type CreatePollRequest struct {
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Options            []string   `json:"options"`
	IsPublic           *bool      `json:"is_public"`
	AllowMultipleVotes *bool      `json:"allow_multiple_votes"`
	ExpiresAt          *time.Time `json:"expires_at"`
}

// PollView is a poll as shown to one viewer
type PollView struct {
	*poll.PollWithOptionsAndResults
	HasVoted bool `json:"has_voted"`
}

// CreatePoll validates the request and stores the poll with its options
func (s *PollService) CreatePoll(ctx context.Context, req CreatePollRequest, requester identity.Identity) (response.Navigation, error) {
	ownerID, ok := requester.UserID()
	if !ok {
		return response.Navigation{}, poll.NewError(poll.CodeUnauthenticated, "you must be logged in to create a poll", nil)
	}

	title := strings.TrimSpace(req.Title)
	if err := s.validator.ValidateTitle(title); err != nil {
		return response.Navigation{}, poll.Validation(err.Error())
	}

	options, err := s.validator.NormalizeOptions(req.Options)
	if err != nil {
		return response.Navigation{}, poll.Validation(err.Error())
	}

	input := poll.CreateInput{
		Title:    title,
		Options:  options,
		IsPublic: true,
	}
	if d := strings.TrimSpace(req.Description); d != "" {
		if err := s.validator.ValidateDescription(d); err != nil {
			return response.Navigation{}, poll.Validation(err.Error())
		}
		input.Description = &d
	}
	if req.IsPublic != nil {
		input.IsPublic = *req.IsPublic
	}
	if req.AllowMultipleVotes != nil {
		input.AllowMultipleVotes = *req.AllowMultipleVotes
	}
	if req.ExpiresAt != nil {
		if !req.ExpiresAt.After(s.now()) {
			return response.Navigation{}, poll.Validation("expires_at must be in the future")
		}
		expiresAt := req.ExpiresAt.UTC()
		input.ExpiresAt = &expiresAt
	}

	created, err := s.polls.CreatePoll(ctx, input, ownerID)
	if err != nil {
		return response.Navigation{}, poll.NewError(poll.CodeCreationFailed, "failed to create poll", err)
	}

	s.log.Info("Poll created", "poll_id", created.ID, "user_id", ownerID, "options", len(options))
	return response.Navigation{RedirectTo: "/polls", PollID: created.ID.String()}, nil
}

// Vote casts a ballot for the requester and sends them to the results
func (s *PollService) Vote(ctx context.Context, pollID, optionID string, requester identity.Identity) (response.Navigation, error) {
	pid, err := validation.ValidateUUID(pollID, "poll_id")
	if err != nil {
		return response.Navigation{}, poll.Validation(err.Error())
	}
	oid, err := validation.ValidateUUID(optionID, "option_id")
	if err != nil {
		return response.Navigation{}, poll.Validation(err.Error())
	}

	if err := s.engine.CastVote(ctx, pid, oid, requester); err != nil {
		return response.Navigation{}, err
	}

	return response.Navigation{
		RedirectTo: fmt.Sprintf("/polls/%s/results", pid),
		PollID:     pid.String(),
	}, nil
}

// GetPoll returns the poll with its options in creation order and the live
// tally. HasVoted is only known for authenticated viewers.
func (s *PollService) GetPoll(ctx context.Context, pollID string, viewer identity.Identity) (*PollView, error) {
	pid, err := validation.ValidateUUID(pollID, "poll_id")
	if err != nil {
		return nil, poll.Validation(err.Error())
	}

	pw, err := s.polls.GetPollWithOptionsAndResults(ctx, pid)
	if err != nil {
		return nil, err
	}

	view := &PollView{PollWithOptionsAndResults: pw}
	if userID, ok := viewer.UserID(); ok {
		voted, err := s.votes.HasVoted(ctx, pid, userID)
		if err != nil {
			return nil, err
		}
		view.HasVoted = voted
	}
	return view, nil
}

// GetResults returns the tally ordered by descending vote count
func (s *PollService) GetResults(ctx context.Context, pollID string) (*poll.PollWithOptionsAndResults, error) {
	pid, err := validation.ValidateUUID(pollID, "poll_id")
	if err != nil {
		return nil, poll.Validation(err.Error())
	}

	pw, err := s.polls.GetPollWithOptionsAndResults(ctx, pid)
	if err != nil {
		return nil, err
	}

	pw.Results = poll.SortByVotes(pw.Results)
	return pw, nil
}

// DeletePoll removes a poll owned by the requester. When an archive is
// configured the final results are stored first; archive failures are logged
// and never block the delete.
func (s *PollService) DeletePoll(ctx context.Context, pollID string, requester identity.Identity) (response.Navigation, error) {
	userID, ok := requester.UserID()
	if !ok {
		return response.Navigation{}, poll.NewError(poll.CodeUnauthenticated, "you must be logged in to delete a poll", nil)
	}

	pid, err := validation.ValidateUUID(pollID, "poll_id")
	if err != nil {
		return response.Navigation{}, poll.Validation(err.Error())
	}

	if _, isNoop := s.archiver.(archive.Noop); !isNoop {
		s.archiveBeforeDelete(ctx, pid, userID)
	}

	if err := s.polls.DeletePoll(ctx, pid, userID); err != nil {
		switch {
		case errors.Is(err, poll.ErrNotFound), errors.Is(err, poll.ErrUnauthorized):
			return response.Navigation{}, err
		default:
			return response.Navigation{}, poll.NewError(poll.CodeDeletionFailed, "failed to delete poll", err)
		}
	}

	s.log.Info("Poll deleted", "poll_id", pid, "user_id", userID)
	return response.Navigation{RedirectTo: "/dashboard"}, nil
}

func (s *PollService) archiveBeforeDelete(ctx context.Context, pollID, userID uuid.UUID) {
	pw, err := s.polls.GetPollWithOptionsAndResults(ctx, pollID)
	if err != nil || !pw.IsOwnedBy(userID) {
		// the delete reports these cases
		return
	}

	if err := s.archiver.ArchiveResults(ctx, pw); err != nil {
		s.log.Warn("Could not archive results, deleting anyway", "poll_id", pollID, "error", err)
	}
}

// ListPublicPolls pages through public polls, newest first. A non-positive
// limit means the default page size; limits above the maximum are clamped.
func (s *PollService) ListPublicPolls(ctx context.Context, limit, offset int) ([]poll.PollSummary, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultPageSize
	}
	if limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}
	if offset < 0 {
		return nil, poll.Validation("offset must not be negative")
	}

	return s.polls.GetPublicPolls(ctx, postgres.ListParams{
		Limit:       limit,
		Offset:      offset,
		HideExpired: s.cfg.EnforceExpiry,
	})
}

// ListUserPolls returns the requester's own polls, newest first
func (s *PollService) ListUserPolls(ctx context.Context, requester identity.Identity) ([]poll.PollSummary, error) {
	userID, ok := requester.UserID()
	if !ok {
		return nil, poll.NewError(poll.CodeUnauthenticated, "you must be logged in to see your polls", nil)
	}

	return s.polls.GetUserPolls(ctx, userID)
}
