// internal/store/session.go
package store

import (
	"context"
	"encoding/json"

	"github.com/Corphon/ScriptBreakdown/internal/auth"
	apperrors "github.com/Corphon/ScriptBreakdown/internal/errors"
	"github.com/Corphon/ScriptBreakdown/internal/models"
	"github.com/Corphon/ScriptBreakdown/internal/remote"
	"github.com/Corphon/ScriptBreakdown/internal/storage"
)

// restoreSession loads the persisted session. Token, user and the
// logged-in flag must all be present; an expired JWT counts as absent.
func (s *Store) restoreSession() {
	token, hasToken := s.state.Get(storage.KeyAccessToken)
	userData, hasUser := s.state.Get(storage.KeyUserData)
	flag, _ := s.state.Get(storage.KeyIsLoggedIn)

	var session models.Session
	switch {
	case !hasToken || token == "" || !hasUser || flag != "true":
	case auth.Expired(token, s.now()):
		s.logger.Info("persisted session expired", nil)
		s.forget(storage.KeyAccessToken, storage.KeyUserData, storage.KeyIsLoggedIn)
	default:
		var user models.User
		if err := json.Unmarshal([]byte(userData), &user); err != nil {
			s.logger.Warn("invalid persisted user", map[string]interface{}{"error": err})
			break
		}
		session = models.Session{Token: token, User: &user, LoggedIn: true}
	}

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()
}

// Session returns a copy of the current session
func (s *Store) Session() models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.session
	if out.User != nil {
		u := *out.User
		out.User = &u
	}
	return out
}

// Token returns the bearer token, "" when logged out
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Token
}

func (s *Store) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.LoggedIn
}

// User returns the logged-in user, or nil
func (s *Store) User() *models.User {
	return s.Session().User
}

// SetUser replaces the session user and persists it
func (s *Store) SetUser(u *models.User) {
	if u == nil {
		return
	}
	c := *u
	s.mu.Lock()
	s.session.User = &c
	s.mu.Unlock()

	if data, err := json.Marshal(c); err == nil {
		s.persist(storage.KeyUserData, string(data))
	}
}

// Login authenticates with the remote service. On failure the previous
// session is kept and the error slot is set.
func (s *Store) Login(ctx context.Context, email, password string) bool {
	done := s.begin()
	defer done()

	resp, err := s.client.Login(ctx, email, password)
	if err != nil {
		s.fail("login", err)
		return false
	}
	return s.establish("login", resp)
}

// Register creates an account and logs in with it
func (s *Store) Register(ctx context.Context, req models.RegisterRequest) bool {
	done := s.begin()
	defer done()

	resp, err := s.client.Register(ctx, req)
	if err != nil {
		s.fail("register", err)
		return false
	}
	return s.establish("register", resp)
}

func (s *Store) establish(op string, resp *models.AuthResponse) bool {
	if resp == nil || resp.AccessToken == "" || resp.User == nil {
		s.fail(op, apperrors.NewProcessingError("Invalid response from authentication service", nil))
		return false
	}

	user := *resp.User
	userData, err := json.Marshal(user)
	if err != nil {
		s.fail(op, apperrors.NewProcessingError("Invalid user in authentication response", err))
		return false
	}

	s.mu.Lock()
	s.session = models.Session{Token: resp.AccessToken, User: &user, LoggedIn: true}
	s.mu.Unlock()

	s.persist(storage.KeyAccessToken, resp.AccessToken)
	s.persist(storage.KeyUserData, string(userData))
	s.persist(storage.KeyIsLoggedIn, "true")

	s.logger.Info("logged in", map[string]interface{}{"user_id": user.ID})
	s.publish(EventLoggedIn, "", "", user.Email)
	return true
}

// Profile refreshes the session user from the remote service
func (s *Store) Profile(ctx context.Context) *models.User {
	done := s.begin()
	defer done()

	u, err := s.client.Profile(ctx)
	if err != nil {
		s.fail("profile", err)
		return nil
	}
	s.SetUser(u)
	return s.User()
}

// Logout tells the remote service when a token exists, then resets.
// The remote call is best effort; calling Logout twice is harmless.
func (s *Store) Logout(ctx context.Context) {
	if s.Token() != "" {
		if err := s.client.Logout(ctx); err != nil {
			s.logger.Debug("remote logout failed", map[string]interface{}{"error": err})
		}
	}
	s.Reset()
}

// Reset clears the session and every piece of dependent state, removes
// the persisted keys and publishes EventLoggedOut.
func (s *Store) Reset() {
	s.clear()
	s.publish(EventLoggedOut, "", "", "")
}

// expire is Reset for a session the remote service rejected
func (s *Store) expire() {
	wasLoggedIn := s.IsLoggedIn()
	s.clear()
	s.logger.Warn("session invalidated by remote service", map[string]interface{}{
		"was_logged_in": wasLoggedIn,
	})
	s.publish(EventSessionExpired, "", "", remote.MsgAuthRequired)
}

func (s *Store) clear() {
	s.resetMemory()
	s.forget(storage.SessionKeys...)
}

// resetMemory drops the session and dependent state without touching
// durable state
func (s *Store) resetMemory() {
	s.mu.Lock()
	s.session = models.Session{}
	s.projects = nil
	s.current = nil
	s.selectedID = ""
	s.selectedTitle = ""
	s.scripts = nil
	s.currentScript = nil
	s.currentAnalysis = nil
	s.lastAnalysis = nil
	s.pagination = models.DefaultPagination()
	s.searchTerm = ""
	s.statusFilter = ""
	s.mu.Unlock()
}
