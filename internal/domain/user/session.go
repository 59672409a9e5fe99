// internal/domain/user/session.go
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kg-components/storefront/internal/pkg/notify"
	"github.com/kg-components/storefront/internal/store"
	"github.com/sirupsen/logrus"
)

// ErrValidation is returned for input rejected before reaching the store
var ErrValidation = errors.New("validation failed")

var validate = validator.New()

// IdentityListener is told about sign-in and sign-out. identity is nil when signed out.
type IdentityListener func(ctx context.Context, identity *Identity)

// SessionState is a snapshot of the session cache
type SessionState struct {
	Identity  *Identity `json:"identity,omitempty"`
	Error     string    `json:"error,omitempty"`
	IsLoading bool      `json:"is_loading"`
}

// Session caches the signed-in identity of one storefront and keeps it in
// step with the store handle's session.
type Session struct {
	auth     Auth
	profiles ProfileRepository
	notifier notify.Notifier
	log      logrus.FieldLogger

	mu          sync.RWMutex
	identity    *Identity
	err         string
	loading     int
	unsubscribe func()

	lmu       sync.Mutex
	listeners []IdentityListener
}

// NewSession creates a signed-out session cache
func NewSession(auth Auth, profiles ProfileRepository, notifier notify.Notifier, log logrus.FieldLogger) *Session {
	return &Session{
		auth:     auth,
		profiles: profiles,
		notifier: notifier,
		log:      log.WithField("component", "session"),
	}
}

// Initialize subscribes to session changes and loads the current identity.
// Calling it twice is a no-op.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.mu.Unlock()
		return nil
	}
	s.loading++
	s.mu.Unlock()

	// the subscription reports the current session as INITIAL_SESSION
	unsubscribe := s.auth.OnSessionChange(ctx, s.onSessionChange)

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.loading--
	s.mu.Unlock()
	return nil
}

// Dispose drops the session subscription
func (s *Session) Dispose() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// OnIdentityChange registers fn for identity changes
func (s *Session) OnIdentityChange(fn IdentityListener) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// State returns a snapshot
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionState{Identity: s.identity, Error: s.err, IsLoading: s.loading > 0}
}

// Identity returns the signed-in identity, or nil
func (s *Session) Identity() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// UserID returns the signed-in user id
func (s *Session) UserID() (uuid.UUID, bool) {
	id := s.Identity()
	if id == nil {
		return uuid.Nil, false
	}
	return id.ID(), true
}

// IsAdmin returns the admin flag cached at sign-in
func (s *Session) IsAdmin() bool {
	id := s.Identity()
	return id != nil && id.IsAdmin
}

// SignIn authenticates with email and password
func (s *Session) SignIn(ctx context.Context, email, password string) error {
	if err := validateCredentials(email, password); err != nil {
		s.fail("Sign in failed", err)
		return err
	}

	s.begin()
	defer s.end()

	if _, err := s.auth.SignIn(ctx, email, password); err != nil {
		s.fail("Sign in failed", err)
		return err
	}

	s.notifier.Notify(notify.Success("Signed in successfully", "Welcome back to KG Components!"))
	return nil
}

// SignUp creates an account, signs it in and creates its profile
func (s *Session) SignUp(ctx context.Context, email, password, fullName string) error {
	if err := validateCredentials(email, password); err != nil {
		s.fail("Sign up failed", err)
		return err
	}
	fullName = strings.TrimSpace(fullName)

	s.begin()
	defer s.end()

	sess, err := s.auth.SignUp(ctx, email, password, map[string]any{"full_name": fullName})
	if err != nil {
		s.fail("Sign up failed", err)
		return err
	}

	profile := &Profile{ID: sess.User.ID, Email: sess.User.Email, FullName: fullName}
	if err := s.profiles.Create(ctx, profile); err != nil {
		s.fail("Sign up failed", err)
		return err
	}
	s.setProfile(ctx, sess.User, profile)

	s.notifier.Notify(notify.Success("Account created", "Welcome to KG Components!"))
	return nil
}

// SignOut ends the session
func (s *Session) SignOut(ctx context.Context) error {
	s.begin()
	defer s.end()

	if err := s.auth.SignOut(ctx); err != nil {
		s.fail("Sign out failed", err)
		return err
	}
	s.notifier.Notify(notify.Success("Signed out successfully", ""))
	return nil
}

// UpdateProfile applies a partial update to the signed-in user's profile
// and returns the refreshed row.
func (s *Session) UpdateProfile(ctx context.Context, update ProfileUpdate) (*Profile, error) {
	id := s.Identity()
	if id == nil {
		return nil, store.ErrNotAuthenticated
	}
	if err := validate.Struct(update); err != nil {
		err = fmt.Errorf("%w: phone must be at most 20 characters", ErrValidation)
		s.fail("Update failed", err)
		return nil, err
	}

	s.begin()
	defer s.end()

	if err := s.profiles.Update(ctx, id.ID(), update.values()); err != nil {
		s.fail("Update failed", err)
		return nil, err
	}
	profile, err := s.profiles.Get(ctx, id.ID())
	if err != nil {
		s.fail("Update failed", err)
		return nil, err
	}

	s.mu.Lock()
	if s.identity != nil && s.identity.ID() == profile.ID {
		next := *s.identity
		next.Profile = profile
		s.identity = &next
	}
	s.mu.Unlock()

	s.notifier.Notify(notify.Success("Profile updated", "Your profile has been updated successfully"))
	return profile, nil
}

func (s *Session) onSessionChange(ctx context.Context, event store.AuthEvent, sess *store.Session) {
	if event == store.EventSignedOut || sess == nil {
		s.mu.Lock()
		had := s.identity != nil
		s.identity = nil
		s.mu.Unlock()
		if had {
			s.emit(ctx, nil)
		}
		return
	}

	if current := s.Identity(); current != nil && current.ID() == sess.User.ID {
		return
	}

	profile, err := s.profiles.Get(ctx, sess.User.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.WithError(err).WithField("user_id", sess.User.ID).Warn("failed to load profile")
	}
	s.setProfile(ctx, sess.User, profile)
}

func (s *Session) setProfile(ctx context.Context, u store.User, profile *Profile) {
	next := &Identity{User: u, Profile: profile, IsAdmin: profile != nil && profile.IsAdmin}

	s.mu.Lock()
	changed := s.identity == nil || s.identity.ID() != u.ID
	s.identity = next
	s.mu.Unlock()

	if changed {
		s.emit(ctx, next)
	}
}

func (s *Session) emit(ctx context.Context, identity *Identity) {
	s.lmu.Lock()
	ls := append([]IdentityListener(nil), s.listeners...)
	s.lmu.Unlock()

	for _, fn := range ls {
		fn(ctx, identity)
	}
}

func (s *Session) begin() {
	s.mu.Lock()
	s.loading++
	s.err = ""
	s.mu.Unlock()
}

func (s *Session) end() {
	s.mu.Lock()
	s.loading--
	s.mu.Unlock()
}

func (s *Session) fail(title string, err error) {
	s.mu.Lock()
	s.err = err.Error()
	s.mu.Unlock()
	s.notifier.Notify(notify.Failure(title, err.Error()))
}

type credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

func validateCredentials(email, password string) error {
	err := validate.Struct(credentials{Email: strings.TrimSpace(email), Password: password})
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch f := verrs[0]; {
		case f.Field() == "Email" && f.Tag() == "email":
			return fmt.Errorf("%w: please enter a valid email address", ErrValidation)
		case f.Field() == "Email":
			return fmt.Errorf("%w: email is required", ErrValidation)
		default:
			return fmt.Errorf("%w: password is required", ErrValidation)
		}
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}
