package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gravadigital/polls-api/internal/domain/poll"
	"github.com/gravadigital/polls-api/internal/identity"
	"github.com/gravadigital/polls-api/internal/storage/postgres"
	"github.com/gravadigital/polls-api/internal/storage/storagetest"
)

type fixture struct {
	db      *gorm.DB
	repos   *postgres.Container
	service *PollService
}

func newFixture(t *testing.T, cfg PollServiceConfig) *fixture {
	t.Helper()

	db := storagetest.NewDB(t)
	repos := postgres.NewContainerWithDB(db)
	return &fixture{
		db:      db,
		repos:   repos,
		service: NewPollService(repos.Polls(), repos.Votes(), nil, cfg),
	}
}

func (f *fixture) create(t *testing.T, owner identity.Identity, req CreatePollRequest) *poll.PollWithOptions {
	t.Helper()

	nav, err := f.service.CreatePoll(context.Background(), req, owner)
	require.NoError(t, err)

	pw, err := f.repos.Polls().GetPollWithOptions(context.Background(), uuid.MustParse(nav.PollID))
	require.NoError(t, err)
	return pw
}

func boolPtr(b bool) *bool { return &b }

func TestCreatePollValidation(t *testing.T) {
	f := newFixture(t, PollServiceConfig{})
	owner := identity.Authenticated(uuid.New())
	ctx := context.Background()

	tests := []struct {
		name      string
		requester identity.Identity
		req       CreatePollRequest
		code      poll.Code
		message   string
	}{
		{
			name:      "anonymous requester",
			requester: identity.Anonymous("proxy"),
			req:       CreatePollRequest{Title: "Q", Options: []string{"a", "b"}},
			code:      poll.CodeUnauthenticated,
		},
		{
			name:      "unknown requester",
			requester: identity.Unknown(),
			req:       CreatePollRequest{Title: "Q", Options: []string{"a", "b"}},
			code:      poll.CodeUnauthenticated,
		},
		{
			name:      "blank title",
			requester: owner,
			req:       CreatePollRequest{Title: "   ", Options: []string{"a", "b"}},
			code:      poll.CodeValidation,
			message:   "title required",
		},
		{
			name:      "one real option",
			requester: owner,
			req:       CreatePollRequest{Title: "Q", Options: []string{"a", "  ", ""}},
			code:      poll.CodeValidation,
			message:   "at least two options required",
		},
		{
			name:      "expiry in the past",
			requester: owner,
			req: CreatePollRequest{Title: "Q", Options: []string{"a", "b"}, ExpiresAt: func() *time.Time {
				past := time.Now().Add(-time.Hour)
				return &past
			}()},
			code: poll.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.CreatePoll(ctx, tt.req, tt.requester)

			require.Error(t, err)
			assert.Equal(t, tt.code, poll.CodeOf(err))
			if tt.message != "" {
				assert.Equal(t, tt.message, err.Error())
			}
		})
	}

	var polls int64
	require.NoError(t, f.db.Model(&poll.Poll{}).Count(&polls).Error)
	assert.Zero(t, polls, "rejected requests must not persist anything")
}

func TestCreatePollDefaultsAndNormalization(t *testing.T) {
	f := newFixture(t, PollServiceConfig{})
	ownerID := uuid.New()

	nav, err := f.service.CreatePoll(context.Background(), CreatePollRequest{
		Title:       "  Best color?  ",
		Description: "   ",
		Options:     []string{" Red ", "", "Blue"},
	}, identity.Authenticated(ownerID))
	require.NoError(t, err)
	assert.Equal(t, "/polls", nav.RedirectTo)

	pw, err := f.repos.Polls().GetPollWithOptions(context.Background(), uuid.MustParse(nav.PollID))
	require.NoError(t, err)

	assert.Equal(t, "Best color?", pw.Title)
	assert.Nil(t, pw.Description)
	assert.Equal(t, ownerID, pw.UserID)
	assert.True(t, pw.IsPublic)
	assert.False(t, pw.AllowMultipleVotes)
	require.Len(t, pw.Options, 2)
	assert.Equal(t, "Red", pw.Options[0].Text)
	assert.Equal(t, "Blue", pw.Options[1].Text)
}

type failingPolls struct {
	postgres.PollRepository
}

func (failingPolls) CreatePoll(context.Context, poll.CreateInput, uuid.UUID) (*poll.Poll, error) {
	return nil, poll.Backend("failed to create poll options", errors.New("disk full"))
}

func TestCreatePollReportsCreationFailed(t *testing.T) {
	f := newFixture(t, PollServiceConfig{})
	service := NewPollService(failingPolls{f.repos.Polls()}, f.repos.Votes(), nil, PollServiceConfig{})

	_, err := service.CreatePoll(context.Background(), CreatePollRequest{Title: "Q", Options: []string{"a", "b"}}, identity.Authenticated(uuid.New()))

	assert.ErrorIs(t, err, poll.ErrCreationFailed)
	assert.ErrorContains(t, err, "disk full")
}

func TestVoteRejectsBadInput(t *testing.T) {
	f := newFixture(t, PollServiceConfig{})
	ctx := context.Background()
	voter := identity.Anonymous("proxy")

	_, err := f.service.Vote(ctx, "", uuid.NewString(), voter)
	assert.ErrorIs(t, err, poll.ErrValidation)

	_, err = f.service.Vote(ctx, uuid.NewString(), "not-a-uuid", voter)
	assert.ErrorIs(t, err, poll.ErrValidation)

	_, err = f.service.Vote(ctx, uuid.NewString(), uuid.NewString(), voter)
	assert.ErrorIs(t, err, poll.ErrPollNotFound)

	a := f.create(t, identity.Authenticated(uuid.New()), CreatePollRequest{Title: "A", Options: []string{"x", "y"}})
	b := f.create(t, identity.Authenticated(uuid.New()), CreatePollRequest{Title: "B", Options: []string{"x", "y"}})

	_, err = f.service.Vote(ctx, a.ID.String(), b.Options[0].ID.String(), voter)
	assert.ErrorIs(t, err, poll.ErrNotFound)
}

func TestVoteNavigatesToResults(t *testing.T) {
	f := newFixture(t, PollServiceConfig{})
	pw := f.create(t, identity.Authenticated(uuid.New()), CreatePollRequest{Title: "Q", Options: []string{"x", "y"}})

	nav, err := f.service.Vote(context.Background(), pw.ID.String(), pw.Options[0].ID.String(), identity.Unknown())

	require.NoError(t, err)
	assert.Equal(t, "/polls/"+pw.ID.String()+"/results", nav.RedirectTo)
}

func TestMultiVotePollsAcceptRepeatedVotes(t *testing.T) {
	f := newFixture(t, PollServiceConfig{})
	ctx := context.Background()
	pw := f.create(t, identity.Authenticated(uuid.New()), CreatePollRequest{
		Title:              "Pick any",
		Options:            []string{"x", "y"},
		AllowMultipleVotes: boolPtr(true),
	})
	voter := identity.Authenticated(uuid.New())

	for _, option := range pw.Options {
		_, err := f.service.Vote(ctx, pw.ID.String(), option.ID.String(), voter)
		require.NoError(t, err)
	}

	view, err := f.service.GetPoll(ctx, pw.ID.String(), voter)
	require.NoError(t, err)
	assert.Equal(t, int64(2), view.TotalVotes)
	assert.True(t, view.HasVoted)
}

func TestExpiredPollsRejectVotesWhenEnforced(t *testing.T) {
	f := newFixture(t, PollServiceConfig{EnforceExpiry: true})
	ctx := context.Background()
	expiresAt := time.Now().Add(time.Hour)
	pw := f.create(t, identity.Authenticated(uuid.New()), CreatePollRequest{
		Title:     "Soon closed",
		Options:   []string{"x", "y"},
		ExpiresAt: &expiresAt,
	})

	_, err := f.service.Vote(ctx, pw.ID.String(), pw.Options[0].ID.String(), identity.Anonymous("p"))
	require.NoError(t, err)

	f.service.engine.now = func() time.Time { return expiresAt.Add(time.Minute) }
	_, err = f.service.Vote(ctx, pw.ID.String(), pw.Options[0].ID.String(), identity.Anonymous("p"))
	assert.ErrorIs(t, err, poll.ErrPollExpired)
}

func TestGetResultsSortsByVotes(t *testing.T) {
	f := newFixture(t, PollServiceConfig{})
	ctx := context.Background()
	pw := f.create(t, identity.Authenticated(uuid.New()), CreatePollRequest{Title: "Q", Options: []string{"x", "y", "z"}})

	for _, option := range []int{2, 2, 0} {
		_, err := f.service.Vote(ctx, pw.ID.String(), pw.Options[option].ID.String(), identity.Anonymous("p"))
		require.NoError(t, err)
	}

	results, err := f.service.GetResults(ctx, pw.ID.String())
	require.NoError(t, err)

	require.Len(t, results.Results, 3)
	assert.Equal(t, "z", results.Results[0].OptionText)
	assert.Equal(t, 67, results.Results[0].Percentage)
	assert.Equal(t, "x", results.Results[1].OptionText)
	assert.Equal(t, "y", results.Results[2].OptionText)
	assert.Zero(t, results.Results[2].Percentage)
}

func TestDeletePollGates(t *testing.T) {
	f := newFixture(t, PollServiceConfig{})
	ctx := context.Background()
	owner := identity.Authenticated(uuid.New())
	pw := f.create(t, owner, CreatePollRequest{Title: "Q", Options: []string{"x", "y"}})
	_, err := f.service.Vote(ctx, pw.ID.String(), pw.Options[0].ID.String(), identity.Anonymous("p"))
	require.NoError(t, err)

	_, err = f.service.DeletePoll(ctx, pw.ID.String(), identity.Anonymous("p"))
	assert.ErrorIs(t, err, poll.ErrUnauthenticated)

	_, err = f.service.DeletePoll(ctx, "nope", owner)
	assert.ErrorIs(t, err, poll.ErrValidation)

	_, err = f.service.DeletePoll(ctx, pw.ID.String(), identity.Authenticated(uuid.New()))
	assert.ErrorIs(t, err, poll.ErrUnauthorized)

	view, err := f.service.GetPoll(ctx, pw.ID.String(), identity.Unknown())
	require.NoError(t, err, "a refused delete leaves the poll untouched")
	assert.Len(t, view.Options, 2)
	assert.Equal(t, int64(1), view.TotalVotes)

	nav, err := f.service.DeletePoll(ctx, pw.ID.String(), owner)
	require.NoError(t, err)
	assert.Equal(t, "/dashboard", nav.RedirectTo)

	_, err = f.service.DeletePoll(ctx, pw.ID.String(), owner)
	assert.ErrorIs(t, err, poll.ErrNotFound)
}

type recordingArchiver struct {
	archived []uuid.UUID
	err      error
}

func (r *recordingArchiver) ArchiveResults(_ context.Context, results *poll.PollWithOptionsAndResults) error {
	r.archived = append(r.archived, results.ID)
	return r.err
}

func TestDeletePollArchivesResults(t *testing.T) {
	f := newFixture(t, PollServiceConfig{})
	ctx := context.Background()
	archiver := &recordingArchiver{err: errors.New("bucket unavailable")}
	service := NewPollService(f.repos.Polls(), f.repos.Votes(), archiver, PollServiceConfig{})
	owner := identity.Authenticated(uuid.New())
	pw := f.create(t, owner, CreatePollRequest{Title: "Q", Options: []string{"x", "y"}})

	_, err := service.DeletePoll(ctx, pw.ID.String(), identity.Authenticated(uuid.New()))
	assert.ErrorIs(t, err, poll.ErrUnauthorized)
	assert.Empty(t, archiver.archived, "other users' polls are never archived")

	_, err = service.DeletePoll(ctx, pw.ID.String(), owner)
	require.NoError(t, err, "archive failures do not block the delete")
	assert.Equal(t, []uuid.UUID{pw.ID}, archiver.archived)
}

func TestListings(t *testing.T) {
	f := newFixture(t, PollServiceConfig{DefaultPageSize: 2, MaxPageSize: 3})
	ctx := context.Background()
	owner := identity.Authenticated(uuid.New())

	for _, title := range []string{"a", "b", "c", "d"} {
		f.create(t, owner, CreatePollRequest{Title: title, Options: []string{"x", "y"}})
	}
	f.create(t, owner, CreatePollRequest{Title: "hidden", Options: []string{"x", "y"}, IsPublic: boolPtr(false)})

	page, err := f.service.ListPublicPolls(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	page, err = f.service.ListPublicPolls(ctx, 50, 0)
	require.NoError(t, err)
	assert.Len(t, page, 3)

	_, err = f.service.ListPublicPolls(ctx, 10, -1)
	assert.ErrorIs(t, err, poll.ErrValidation)

	mine, err := f.service.ListUserPolls(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, mine, 5)

	_, err = f.service.ListUserPolls(ctx, identity.Anonymous("p"))
	assert.ErrorIs(t, err, poll.ErrUnauthenticated)
}

// Walks a poll through create, anonymous and authenticated votes, a rejected
// repeat vote and deletion by its owner.
func TestPollLifecycle(t *testing.T) {
	f := newFixture(t, PollServiceConfig{})
	ctx := context.Background()
	u1 := identity.Authenticated(uuid.New())
	u2 := identity.Authenticated(uuid.New())
	visitor := identity.Anonymous("visitor-proxy")

	nav, err := f.service.CreatePoll(ctx, CreatePollRequest{Title: "Best color?", Options: []string{"Red", "Blue"}}, u1)
	require.NoError(t, err)
	pollID := nav.PollID

	view, err := f.service.GetPoll(ctx, pollID, u1)
	require.NoError(t, err)
	require.Len(t, view.Options, 2)
	assert.Zero(t, view.TotalVotes)
	red, blue := view.Options[0], view.Options[1]
	assert.Equal(t, "Red", red.Text)
	assert.Equal(t, "Blue", blue.Text)

	_, err = f.service.Vote(ctx, pollID, red.ID.String(), visitor)
	require.NoError(t, err)

	view, err = f.service.GetPoll(ctx, pollID, visitor)
	require.NoError(t, err)
	assert.Equal(t, int64(1), view.Results[0].VoteCount)
	assert.Equal(t, 100, view.Results[0].Percentage)
	assert.Zero(t, view.Results[1].VoteCount)
	assert.Zero(t, view.Results[1].Percentage)

	_, err = f.service.Vote(ctx, pollID, blue.ID.String(), u2)
	require.NoError(t, err)
	_, err = f.service.Vote(ctx, pollID, red.ID.String(), u2)
	assert.ErrorIs(t, err, poll.ErrAlreadyVoted)

	view, err = f.service.GetPoll(ctx, pollID, u2)
	require.NoError(t, err)
	assert.True(t, view.HasVoted)
	assert.Equal(t, int64(1), view.Results[0].VoteCount)
	assert.Equal(t, int64(1), view.Results[1].VoteCount)
	assert.Equal(t, 50, view.Results[0].Percentage)
	assert.Equal(t, 50, view.Results[1].Percentage)

	// anonymous ballots are never deduplicated
	_, err = f.service.Vote(ctx, pollID, red.ID.String(), visitor)
	require.NoError(t, err)

	_, err = f.service.DeletePoll(ctx, pollID, u1)
	require.NoError(t, err)

	_, err = f.service.GetPoll(ctx, pollID, u1)
	assert.ErrorIs(t, err, poll.ErrNotFound)
}
