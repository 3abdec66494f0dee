package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gravadigital/polls-api/internal/config"
	"github.com/gravadigital/polls-api/internal/logger"
)

const maxProxyLength = 128

// SessionVerifier extracts the user id from a session token
type SessionVerifier interface {
	UserIDFromToken(token string) (uuid.UUID, error)
}

// Resolver maps a request to an Identity
type Resolver struct {
	sessions      SessionVerifier
	sessionCookie string
	visitorCookie string
	visitorMaxAge time.Duration
	secure        bool
	salt          []byte
	log           *log.Logger
}

func NewResolver(cfg *config.Config, sessions SessionVerifier) *Resolver {
	return &Resolver{
		sessions:      sessions,
		sessionCookie: cfg.Auth.SessionCookie,
		visitorCookie: cfg.Visitor.CookieName,
		visitorMaxAge: cfg.Visitor.MaxAge,
		secure:        cfg.IsProduction(),
		salt:          []byte(cfg.Visitor.HashSalt),
		log:           logger.Service("identity"),
	}
}

// Session returns the authenticated identity of the request, or Unknown.
// It never writes cookies.
func (r *Resolver) Session(c *gin.Context) Identity {
	token, err := c.Cookie(r.sessionCookie)
	if err != nil || token == "" {
		return Unknown()
	}

	userID, err := r.sessions.UserIDFromToken(token)
	if err != nil {
		r.log.Debug("ignoring invalid session cookie", "error", err)
		return Unknown()
	}
	return Authenticated(userID)
}

// Resolve returns the session identity when present. Otherwise it falls back
// to the visitor cookie, creating it from the client address on first contact.
func (r *Resolver) Resolve(c *gin.Context) Identity {
	if id := r.Session(c); id.IsAuthenticated() {
		return id
	}

	if proxy, err := c.Cookie(r.visitorCookie); err == nil && proxy != "" && len(proxy) <= maxProxyLength {
		return Anonymous(proxy)
	}

	addr := c.ClientIP()
	if addr == "" {
		return Unknown()
	}

	proxy := r.proxyFor(addr)
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(r.visitorCookie, proxy, int(r.visitorMaxAge.Seconds()), "/", "", r.secure, true)

	r.log.Debug("issued visitor cookie", "cookie", r.visitorCookie)
	return Anonymous(proxy)
}

// proxyFor derives a stable, non-reversible visitor proxy from an address
func (r *Resolver) proxyFor(addr string) string {
	h := hmac.New(sha256.New, r.salt)
	h.Write([]byte(addr))
	return hex.EncodeToString(h.Sum(nil)[:16])
}
