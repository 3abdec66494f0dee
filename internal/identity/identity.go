// Package identity determines who is acting on a request: an authenticated
// user, an anonymous visitor identified by an address proxy, or nobody known.
package identity

import "github.com/google/uuid"

// Kind tags the variant held by an Identity
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthenticated
	KindAnonymous
)

func (k Kind) String() string {
	switch k {
	case KindAuthenticated:
		return "authenticated"
	case KindAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Identity is either Authenticated(userID), Anonymous(proxy) or Unknown.
// The zero value is Unknown.
type Identity struct {
	kind   Kind
	userID uuid.UUID
	proxy  string
}

func Unknown() Identity {
	return Identity{}
}

func Authenticated(userID uuid.UUID) Identity {
	if userID == uuid.Nil {
		return Unknown()
	}
	return Identity{kind: KindAuthenticated, userID: userID}
}

func Anonymous(proxy string) Identity {
	if proxy == "" {
		return Unknown()
	}
	return Identity{kind: KindAnonymous, proxy: proxy}
}

func (i Identity) Kind() Kind {
	return i.kind
}

// UserID returns the user id of an authenticated identity
func (i Identity) UserID() (uuid.UUID, bool) {
	return i.userID, i.kind == KindAuthenticated
}

// Proxy returns the visitor address proxy of an anonymous identity
func (i Identity) Proxy() (string, bool) {
	return i.proxy, i.kind == KindAnonymous
}

func (i Identity) IsAuthenticated() bool {
	return i.kind == KindAuthenticated
}
