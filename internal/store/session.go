package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthEvent names a session change.
type AuthEvent string

const (
	EventInitialSession AuthEvent = "INITIAL_SESSION"
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
)

// User is the authenticated principal of a session.
type User struct {
	ID       uuid.UUID      `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// Session is an authenticated session.
type Session struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`

	id string
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// SessionListener receives session changes. session is nil after sign-out.
type SessionListener func(ctx context.Context, event AuthEvent, session *Session)

type listener struct {
	id uint64
	fn SessionListener
}

// AuthUser is a credential record.
type AuthUser struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"`
	Metadata     map[string]any `gorm:"type:jsonb;serializer:json" json:"user_metadata"`
	LastSignInAt *time.Time     `json:"last_sign_in_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TableName specifies the table name for AuthUser
func (AuthUser) TableName() string {
	return "auth_users"
}

// BeforeCreate assigns the id and normalises the email
func (u *AuthUser) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Email = NormalizeEmail(u.Email)
	return nil
}

// NormalizeEmail lower-cases and trims an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func sessionKey(id string) string {
	return "auth:session:" + id
}

// SignUp creates credentials and signs the handle in.
func (h *Handle) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Session, error) {
	const op = "sign_up"
	db := h.client.db
	if db == nil {
		return nil, offline(op)
	}

	email = NormalizeEmail(email)
	if email == "" {
		return nil, Errorf(op, "Email is required")
	}

	var existing int64
	if err := db.WithContext(ctx).Model(&AuthUser{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, wrap(op, err)
	}
	if existing > 0 {
		return nil, Errorf(op, "User already registered")
	}

	hash, err := h.client.passwords.HashPassword(password)
	if err != nil {
		return nil, Errorf(op, "%s", capitalize(err.Error()))
	}

	now := time.Now().UTC()
	u := &AuthUser{Email: email, PasswordHash: hash, Metadata: metadata, LastSignInAt: &now}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, wrap(op, err)
	}

	s, err := h.client.issue(ctx, u)
	if err != nil {
		return nil, wrap(op, err)
	}
	h.replace(ctx, EventSignedIn, s)
	return s.clone(), nil
}

// SignIn checks credentials and signs the handle in.
func (h *Handle) SignIn(ctx context.Context, email, password string) (*Session, error) {
	const op = "sign_in"
	db := h.client.db
	if db == nil {
		return nil, offline(op)
	}

	var u AuthUser
	res := db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).Limit(1).Find(&u)
	if res.Error != nil {
		return nil, wrap(op, res.Error)
	}
	if res.RowsAffected == 0 || h.client.passwords.VerifyPassword(password, u.PasswordHash) != nil {
		return nil, Errorf(op, "Invalid login credentials")
	}

	now := time.Now().UTC()
	if err := db.WithContext(ctx).Model(&u).Update("last_sign_in_at", now).Error; err != nil {
		h.client.log.WithError(err).Warn("failed to record sign-in time")
	}

	s, err := h.client.issue(ctx, &u)
	if err != nil {
		return nil, wrap(op, err)
	}
	h.replace(ctx, EventSignedIn, s)
	return s.clone(), nil
}

// SignOut revokes the current session. Signing out without a session is a no-op.
func (h *Handle) SignOut(ctx context.Context) error {
	h.mu.Lock()
	s := h.session
	h.session = nil
	h.mu.Unlock()

	if s == nil {
		return nil
	}

	h.client.revoke(ctx, s)
	h.notify(ctx, EventSignedOut, nil)
	return nil
}

// CurrentSession returns the live session, or nil. A session that expired
// or was revoked elsewhere is dropped and reported as a sign-out.
func (h *Handle) CurrentSession(ctx context.Context) (*Session, error) {
	h.mu.RLock()
	s := h.session
	h.mu.RUnlock()

	if s == nil {
		return nil, nil
	}

	if h.client.alive(ctx, s) {
		return s.clone(), nil
	}

	h.mu.Lock()
	dropped := h.session == s
	if dropped {
		h.session = nil
	}
	h.mu.Unlock()

	if dropped {
		h.notify(ctx, EventSignedOut, nil)
	}
	return nil, nil
}

// OnSessionChange subscribes fn to session changes. fn is called right away
// with INITIAL_SESSION and the current session. The returned func unsubscribes.
func (h *Handle) OnSessionChange(ctx context.Context, fn SessionListener) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.listeners = append(h.listeners, listener{id: id, fn: fn})
	h.mu.Unlock()

	current, _ := h.CurrentSession(ctx)
	fn(ctx, EventInitialSession, current)

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, l := range h.listeners {
			if l.id == id {
				h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
				return
			}
		}
	}
}

func (h *Handle) replace(ctx context.Context, event AuthEvent, s *Session) {
	h.mu.Lock()
	old := h.session
	h.session = s
	h.mu.Unlock()

	if old != nil {
		h.client.revoke(ctx, old)
	}
	h.notify(ctx, event, s.clone())
}

func (h *Handle) notify(ctx context.Context, event AuthEvent, s *Session) {
	h.mu.RLock()
	ls := make([]listener, len(h.listeners))
	copy(ls, h.listeners)
	h.mu.RUnlock()

	for _, l := range ls {
		l.fn(ctx, event, s)
	}
}

func (c *Client) issue(ctx context.Context, u *AuthUser) (*Session, error) {
	token, claims, err := c.tokens.GenerateAccessToken(u.ID, u.Email)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		ttl := time.Until(claims.ExpiresAt.Time)
		if err := c.cache.Redis.Set(ctx, sessionKey(claims.SessionID()), u.ID.String(), ttl).Err(); err != nil {
			return nil, fmt.Errorf("failed to store session: %w", err)
		}
	}

	return &Session{
		AccessToken: token,
		ExpiresAt:   claims.ExpiresAt.Time,
		User:        User{ID: u.ID, Email: u.Email, Metadata: u.Metadata},
		id:          claims.SessionID(),
	}, nil
}

func (c *Client) restore(ctx context.Context, token string) (*Session, error) {
	claims, err := c.tokens.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}
	s := &Session{
		AccessToken: token,
		ExpiresAt:   claims.ExpiresAt.Time,
		User:        User{ID: claims.UserID, Email: claims.Email},
		id:          claims.SessionID(),
	}
	if !c.alive(ctx, s) {
		return nil, fmt.Errorf("session %s has been revoked", s.id)
	}
	return s, nil
}

func (c *Client) alive(ctx context.Context, s *Session) bool {
	if !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt) {
		return false
	}
	if c.cache == nil {
		return true
	}
	ok, err := c.cache.Exists(ctx, sessionKey(s.id))
	if err != nil {
		c.log.WithError(err).Warn("session lookup failed, trusting token")
		return true
	}
	return ok
}

func (c *Client) revoke(ctx context.Context, s *Session) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Del(ctx, sessionKey(s.id)); err != nil {
		c.log.WithError(err).Warn("failed to revoke session")
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
