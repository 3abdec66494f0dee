package identity

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravadigital/polls-api/internal/config"
)

type fakeSessions map[string]uuid.UUID

func (f fakeSessions) UserIDFromToken(token string) (uuid.UUID, error) {
	if id, ok := f[token]; ok {
		return id, nil
	}
	return uuid.Nil, errors.New("bad token")
}

func testConfig(env string) *config.Config {
	cfg := &config.Config{}
	cfg.Server.Environment = env
	cfg.Auth.SessionCookie = "session"
	cfg.Visitor.CookieName = "visitor_ip"
	cfg.Visitor.MaxAge = 30 * 24 * time.Hour
	cfg.Visitor.HashSalt = "salt"
	return cfg
}

func newContext(req *http.Request) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return c, w
}

func TestVariants(t *testing.T) {
	id := uuid.New()

	auth := Authenticated(id)
	got, ok := auth.UserID()
	assert.True(t, ok)
	assert.Equal(t, id, got)
	_, ok = auth.Proxy()
	assert.False(t, ok)

	anon := Anonymous("abc")
	proxy, ok := anon.Proxy()
	assert.True(t, ok)
	assert.Equal(t, "abc", proxy)
	assert.False(t, anon.IsAuthenticated())

	assert.Equal(t, KindUnknown, Authenticated(uuid.Nil).Kind())
	assert.Equal(t, KindUnknown, Anonymous("").Kind())
	assert.Equal(t, "unknown", Identity{}.Kind().String())
}

func TestResolvePrefersSession(t *testing.T) {
	userID := uuid.New()
	r := NewResolver(testConfig("development"), fakeSessions{"tok": userID})

	req := httptest.NewRequest(http.MethodPost, "/polls/x/vote", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "tok"})
	c, w := newContext(req)

	id := r.Resolve(c)

	got, ok := id.UserID()
	require.True(t, ok)
	assert.Equal(t, userID, got)
	assert.Empty(t, w.Result().Cookies())
}

func TestResolveReusesVisitorCookie(t *testing.T) {
	r := NewResolver(testConfig("development"), fakeSessions{})

	req := httptest.NewRequest(http.MethodPost, "/polls/x/vote", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "expired"})
	req.AddCookie(&http.Cookie{Name: "visitor_ip", Value: "known-proxy"})
	c, w := newContext(req)

	id := r.Resolve(c)

	proxy, ok := id.Proxy()
	require.True(t, ok)
	assert.Equal(t, "known-proxy", proxy)
	assert.Empty(t, w.Result().Cookies())
}

func TestResolveIssuesVisitorCookie(t *testing.T) {
	r := NewResolver(testConfig("production"), fakeSessions{})

	req := httptest.NewRequest(http.MethodPost, "/polls/x/vote", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	c, w := newContext(req)

	id := r.Resolve(c)

	proxy, ok := id.Proxy()
	require.True(t, ok)
	assert.NotContains(t, proxy, "203.0.113.9")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, "visitor_ip", cookie.Name)
	assert.Equal(t, proxy, cookie.Value)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 30*24*60*60, cookie.MaxAge)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)

	// same address, same proxy
	req2 := httptest.NewRequest(http.MethodPost, "/polls/x/vote", nil)
	req2.RemoteAddr = "203.0.113.9:6666"
	c2, _ := newContext(req2)
	again, _ := r.Resolve(c2).Proxy()
	assert.Equal(t, proxy, again)
}

func TestResolveCookieNotSecureOutsideProduction(t *testing.T) {
	r := NewResolver(testConfig("development"), fakeSessions{})

	req := httptest.NewRequest(http.MethodPost, "/polls/x/vote", nil)
	c, w := newContext(req)
	r.Resolve(c)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.False(t, cookies[0].Secure)
}

func TestSessionDoesNotWriteCookies(t *testing.T) {
	r := NewResolver(testConfig("development"), fakeSessions{})

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	c, w := newContext(req)

	assert.Equal(t, KindUnknown, r.Session(c).Kind())
	assert.Empty(t, w.Result().Cookies())
}
