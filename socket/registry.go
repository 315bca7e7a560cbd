package socket

import (
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/epassport-desk/support-api/models"
)

// Session is the authenticated identity attached to one live connection.
// Users are bound to their browser session identifier; admins prove their
// identity with a JWT from the REST login endpoint.
type Session struct {
	ConnID        string
	Authenticated bool
	Role          string
	SessionID     string
	AdminEmail    string
}

// Registry maps live connection ids to their identities. Entries live
// exactly as long as the underlying connection; nothing here is persisted.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	jwtSecret []byte
}

// NewRegistry creates an empty session registry. jwtSecret verifies admin
// tokens on the authenticate event.
func NewRegistry(jwtSecret []byte) *Registry {
	return &Registry{
		sessions:  make(map[string]*Session),
		jwtSecret: jwtSecret,
	}
}

// Register adds an unauthenticated entry for a freshly accepted connection.
func (r *Registry) Register(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[connID] = &Session{ConnID: connID}
}

// Authenticate binds a role and identity to the connection. Re-authenticating
// overwrites the previous identity; a connection legitimately authenticates
// exactly once, so last write wins.
func (r *Registry) Authenticate(connID string, p AuthenticatePayload) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return nil, ErrNotAuthenticated
	}

	switch p.Role {
	case models.RoleUser:
		if p.SessionID == "" {
			return nil, ErrAuthFailed
		}
		s.Role = models.RoleUser
		s.SessionID = p.SessionID
		s.AdminEmail = ""
	case models.RoleAdmin:
		email, err := r.verifyAdminToken(p.Token)
		if err != nil {
			return nil, ErrAuthFailed
		}
		s.Role = models.RoleAdmin
		s.SessionID = ""
		s.AdminEmail = email
	default:
		return nil, ErrAuthFailed
	}
	s.Authenticated = true

	out := *s
	return &out, nil
}

// Lookup returns a copy of the connection's session, if registered.
func (r *Registry) Lookup(connID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Unregister removes the connection's entry. Room memberships are cleaned up
// separately by the hub on disconnect.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, connID)
}

// Len reports the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) verifyAdminToken(token string) (string, error) {
	if token == "" {
		return "", ErrAuthFailed
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrAuthFailed
		}
		return r.jwtSecret, nil
	})
	if err != nil {
		return "", err
	}
	if role, _ := claims["role"].(string); role != models.RoleAdmin {
		return "", ErrAuthFailed
	}
	email, _ := claims["sub"].(string)
	return email, nil
}
