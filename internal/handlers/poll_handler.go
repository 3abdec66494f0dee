package handlers

import (
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/gravadigital/polls-api/internal/domain/poll"
	"github.com/gravadigital/polls-api/internal/identity"
	"github.com/gravadigital/polls-api/internal/logger"
	"github.com/gravadigital/polls-api/internal/response"
	"github.com/gravadigital/polls-api/internal/services"
)

const optionFieldPrefix = "option-"

type PollHandler struct {
	polls    *services.PollService
	identity *identity.Resolver
	log      *log.Logger
}

func NewPollHandler(polls *services.PollService, resolver *identity.Resolver) *PollHandler {
	return &PollHandler{
		polls:    polls,
		identity: resolver,
		log:      logger.Handler("poll"),
	}
}

// ListPolls handles GET /polls
func (h *PollHandler) ListPolls(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		response.ErrorResponseWithCode(c, http.StatusBadRequest, string(poll.CodeValidation), "limit must be a number")
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		response.ErrorResponseWithCode(c, http.StatusBadRequest, string(poll.CodeValidation), "offset must be a number")
		return
	}

	polls, err := h.polls.ListPublicPolls(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}

	response.SuccessResponse(c, http.StatusOK, "", polls)
}

// CreatePoll handles POST /polls. Browsers post a form with option-1 ..
// option-N fields; JSON clients send an options array.
func (h *PollHandler) CreatePoll(c *gin.Context) {
	var req services.CreatePollRequest

	if c.ContentType() == gin.MIMEJSON {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ErrorResponseWithCode(c, http.StatusBadRequest, string(poll.CodeValidation), "Invalid request payload")
			return
		}
	} else {
		var err error
		if req, err = createRequestFromForm(c); err != nil {
			response.ErrorResponseWithCode(c, http.StatusBadRequest, string(poll.CodeValidation), err.Error())
			return
		}
	}

	nav, err := h.polls.CreatePoll(c.Request.Context(), req, h.identity.Session(c))
	if err != nil {
		writeError(c, err)
		return
	}

	h.log.Debug("poll created", "poll_id", nav.PollID)
	response.Navigate(c, "Poll created successfully", nav)
}

// GetPoll handles GET /polls/:id
func (h *PollHandler) GetPoll(c *gin.Context) {
	view, err := h.polls.GetPoll(c.Request.Context(), c.Param("id"), h.identity.Session(c))
	if err != nil {
		writeError(c, err)
		return
	}

	response.SuccessResponse(c, http.StatusOK, "", view)
}

// GetResults handles GET /polls/:id/results
func (h *PollHandler) GetResults(c *gin.Context) {
	results, err := h.polls.GetResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	response.SuccessResponse(c, http.StatusOK, "", results)
}

type voteRequest struct {
	OptionID string `json:"option_id" form:"option_id"`
}

// Vote handles POST /polls/:id/vote. Anonymous voters get the visitor cookie.
func (h *PollHandler) Vote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBind(&req); err != nil {
		response.ErrorResponseWithCode(c, http.StatusBadRequest, string(poll.CodeValidation), "Invalid request payload")
		return
	}

	voter := h.identity.Resolve(c)
	nav, err := h.polls.Vote(c.Request.Context(), c.Param("id"), req.OptionID, voter)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Navigate(c, "Vote recorded", nav)
}

// DeletePoll handles POST /polls/:id/delete
func (h *PollHandler) DeletePoll(c *gin.Context) {
	nav, err := h.polls.DeletePoll(c.Request.Context(), c.Param("id"), h.identity.Session(c))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Navigate(c, "Poll deleted successfully", nav)
}

// Dashboard handles GET /dashboard
func (h *PollHandler) Dashboard(c *gin.Context) {
	polls, err := h.polls.ListUserPolls(c.Request.Context(), h.identity.Session(c))
	if err != nil {
		writeError(c, err)
		return
	}

	response.SuccessResponse(c, http.StatusOK, "", polls)
}

func createRequestFromForm(c *gin.Context) (services.CreatePollRequest, error) {
	// PostForm fills c.Request.PostForm for urlencoded and multipart bodies
	req := services.CreatePollRequest{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Options:     optionsFromForm(c.Request.PostForm),
	}

	if v, ok := c.GetPostForm("is_public"); ok {
		b, err := parseFormBool(v)
		if err != nil {
			return req, errInvalidField("is_public")
		}
		req.IsPublic = &b
	}
	if v, ok := c.GetPostForm("allow_multiple_votes"); ok {
		b, err := parseFormBool(v)
		if err != nil {
			return req, errInvalidField("allow_multiple_votes")
		}
		req.AllowMultipleVotes = &b
	}
	if v := strings.TrimSpace(c.PostForm("expires_at")); v != "" {
		t, err := parseFormTime(v)
		if err != nil {
			return req, errInvalidField("expires_at")
		}
		req.ExpiresAt = &t
	}

	return req, nil
}

// optionsFromForm returns the option-N values ordered by N. Keys whose suffix
// is not a positive number are ignored.
func optionsFromForm(form url.Values) []string {
	type numbered struct {
		n    int
		text string
	}

	var fields []numbered
	for key, values := range form {
		suffix, ok := strings.CutPrefix(key, optionFieldPrefix)
		if !ok || len(values) == 0 {
			continue
		}
		n, err := strconv.Atoi(suffix)
		if err != nil || n < 1 {
			continue
		}
		fields = append(fields, numbered{n: n, text: values[0]})
	}

	sort.Slice(fields, func(i, j int) bool { return fields[i].n < fields[j].n })

	options := make([]string, 0, len(fields))
	for _, f := range fields {
		options = append(options, f.text)
	}
	return options
}

// parseFormBool accepts checkbox values as well as strconv booleans
func parseFormBool(v string) (bool, error) {
	if strings.EqualFold(v, "on") {
		return true, nil
	}
	return strconv.ParseBool(v)
}

// parseFormTime accepts RFC 3339 and the value of an HTML datetime-local input (UTC)
func parseFormTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04", v)
}

func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

type invalidFieldError string

func (e invalidFieldError) Error() string {
	return "invalid value for " + string(e)
}

func errInvalidField(field string) error {
	return invalidFieldError(field)
}
