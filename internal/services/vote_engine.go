package services

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/gravadigital/polls-api/internal/domain/poll"
	"github.com/gravadigital/polls-api/internal/identity"
	"github.com/gravadigital/polls-api/internal/logger"
	"github.com/gravadigital/polls-api/internal/storage/postgres"
)

// VoteEngine checks that a ballot may be cast and records it
type VoteEngine struct {
	polls         postgres.PollRepository
	votes         postgres.VoteRepository
	enforceExpiry bool
	now           func() time.Time
	log           *log.Logger
}

// NewVoteEngine crea el motor de votación. With enforceExpiry set, polls past
// their expiry stop accepting votes.
func NewVoteEngine(polls postgres.PollRepository, votes postgres.VoteRepository, enforceExpiry bool) *VoteEngine {
	return &VoteEngine{
		polls:         polls,
		votes:         votes,
		enforceExpiry: enforceExpiry,
		now:           time.Now,
		log:           logger.Service("vote_engine"),
	}
}

// CastVote records one ballot for optionID on pollID.
//
// When the poll allows a single vote and the voter is authenticated, the vote
// carries a unique voter key and the store rejects a second one with
// AlreadyVoted. Anonymous voters are not deduplicated.
func (e *VoteEngine) CastVote(ctx context.Context, pollID, optionID uuid.UUID, voter identity.Identity) error {
	pw, err := e.polls.GetPollWithOptions(ctx, pollID)
	if err != nil {
		if errors.Is(err, poll.ErrNotFound) {
			return poll.NewError(poll.CodePollNotFound, "poll not found", nil)
		}
		return err
	}

	if !pw.HasOption(optionID) {
		return poll.NewError(poll.CodeNotFound, "option does not belong to this poll", nil)
	}

	if e.enforceExpiry && pw.IsExpired(e.now()) {
		return poll.NewError(poll.CodePollExpired, "this poll is closed", nil)
	}

	vote := &poll.Vote{PollID: pollID, OptionID: optionID}
	switch voter.Kind() {
	case identity.KindAuthenticated:
		userID, _ := voter.UserID()
		vote.UserID = &userID
		if !pw.AllowMultipleVotes {
			key := userID.String()
			vote.UniqueVoter = &key
		}
	case identity.KindAnonymous:
		proxy, _ := voter.Proxy()
		vote.IPAddress = &proxy
	case identity.KindUnknown:
	}

	if err := e.votes.Create(ctx, vote); err != nil {
		return err
	}

	e.log.Debug("vote recorded", "poll_id", pollID, "option_id", optionID, "voter", voter.Kind())
	return nil
}
