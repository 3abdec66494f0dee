package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravadigital/polls-api/internal/archive"
	"github.com/gravadigital/polls-api/internal/config"
	"github.com/gravadigital/polls-api/internal/middleware/events"
	"github.com/gravadigital/polls-api/internal/storage/postgres"
	"github.com/gravadigital/polls-api/internal/storage/storagetest"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Environment = "test"
	cfg.Server.GinMode = gin.TestMode
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.SessionCookie = "session"
	cfg.Auth.SessionTTL = time.Hour
	cfg.Auth.LoginRatePerMinute = 60
	cfg.Auth.LoginBurst = 2
	cfg.Visitor.CookieName = "visitor_ip"
	cfg.Visitor.MaxAge = time.Hour
	cfg.Visitor.HashSalt = "salt"
	cfg.CORS.AllowOrigins = "http://localhost:3000"
	return cfg
}

func newTestServer(t *testing.T) (*Server, *postgres.Container) {
	t.Helper()

	repos := postgres.NewContainerWithDB(storagetest.NewDB(t))
	srv, err := New(testConfig(), repos, archive.Noop{})
	require.NoError(t, err)
	return srv, repos
}

func serve(srv *Server, req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req
}

func cookieNamed(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestNewRejectsEmptySecret(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWTSecret = ""

	_, err := New(cfg, postgres.NewContainerWithDB(storagetest.NewDB(t)), archive.Noop{})
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	srv, repos := newTestServer(t)

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
	assert.NotEmpty(t, w.Header().Get(events.RequestIDHeader))

	w = serve(srv, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.NoError(t, repos.Close())

	w = serve(srv, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/polls", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := serve(srv, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRegisterLoginLogout(t *testing.T) {
	srv, _ := newTestServer(t)

	w := serve(srv, jsonRequest(http.MethodPost, "/auth/register",
		`{"name":"Ada","email":"Ada@Example.com","password":"correct horse"}`))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NotNil(t, cookieNamed(w, "session"))
	assert.NotContains(t, w.Body.String(), "correct horse")

	w = serve(srv, jsonRequest(http.MethodPost, "/auth/register",
		`{"name":"Ada","email":"ada@example.com","password":"correct horse"}`))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = serve(srv, jsonRequest(http.MethodPost, "/auth/register", `{"name":"Ada","email":"nope","password":"correct horse"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(srv, jsonRequest(http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"wrong password"}`))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(srv, jsonRequest(http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"correct horse"}`))
	require.Equal(t, http.StatusOK, w.Code)
	session := cookieNamed(w, "session")
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	w = serve(srv, httptest.NewRequest(http.MethodPost, "/auth/logout", nil), session)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/polls", w.Header().Get("Location"))
	cleared := cookieNamed(w, "session")
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
}

func TestLoginIsRateLimited(t *testing.T) {
	srv, _ := newTestServer(t)

	var last int
	for i := 0; i < 5; i++ {
		w := serve(srv, jsonRequest(http.MethodPost, "/auth/login", `{"email":"x@example.com","password":"whatever1"}`))
		last = w.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

// TestPollLifecycle walks a poll from creation through voting to deletion
// the way a browser does, following redirects by hand.
func TestPollLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	w := serve(srv, jsonRequest(http.MethodPost, "/auth/register",
		`{"name":"Owner","email":"owner@example.com","password":"owner password"}`))
	require.Equal(t, http.StatusCreated, w.Code)
	session := cookieNamed(w, "session")

	form := url.Values{"title": {"Lunch?"}, "option-1": {"Pizza"}, "option-2": {"Sushi"}}
	req := httptest.NewRequest(http.MethodPost, "/polls", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = serve(srv, req, session)
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())

	w = serve(srv, httptest.NewRequest(http.MethodGet, "/polls", nil))
	var list struct {
		Data []struct {
			ID         string `json:"id"`
			VotesCount int64  `json:"votes_count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	pollID := list.Data[0].ID

	w = serve(srv, httptest.NewRequest(http.MethodGet, "/polls/"+pollID, nil), session)
	var view struct {
		Data struct {
			Options []struct {
				ID   string `json:"id"`
				Text string `json:"text"`
			} `json:"options"`
			HasVoted bool `json:"has_voted"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.Len(t, view.Data.Options, 2)
	assert.False(t, view.Data.HasVoted)
	sushi := view.Data.Options[1].ID

	for _, voter := range []*http.Cookie{session, nil} {
		req := httptest.NewRequest(http.MethodPost, "/polls/"+pollID+"/vote",
			strings.NewReader(url.Values{"option_id": {sushi}}.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		var cookies []*http.Cookie
		if voter != nil {
			cookies = append(cookies, voter)
		}
		w = serve(srv, req, cookies...)
		require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
		assert.Equal(t, "/polls/"+pollID+"/results", w.Header().Get("Location"))
	}

	w = serve(srv, httptest.NewRequest(http.MethodGet, "/polls/"+pollID+"/results", nil))
	var results struct {
		Data struct {
			TotalVotes int64 `json:"total_votes"`
			Results    []struct {
				OptionText string `json:"option_text"`
				Percentage int    `json:"percentage"`
			} `json:"results"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	assert.Equal(t, int64(2), results.Data.TotalVotes)
	assert.Equal(t, "Sushi", results.Data.Results[0].OptionText)
	assert.Equal(t, 100, results.Data.Results[0].Percentage)

	w = serve(srv, httptest.NewRequest(http.MethodPost, "/polls/"+pollID+"/delete", nil), session)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	w = serve(srv, httptest.NewRequest(http.MethodGet, "/polls/"+pollID+"/results", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
