// internal/mockapi/auth.go
package mockapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Corphon/ScriptBreakdown/internal/auth"
	"github.com/Corphon/ScriptBreakdown/internal/models"
)

const (
	ctxUserKey  = "mock_user"
	ctxTokenKey = "mock_token"

	minPasswordLength = 6
)

var errEmailTaken = errors.New("email already registered")

// AddUser registers a user directly, bypassing the HTTP layer
func (s *Server) AddUser(req models.RegisterRequest) (*models.User, error) {
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalizeEmail(req.Email)
	if _, exists := s.users[key]; exists {
		return nil, errEmailTaken
	}
	now := s.timestamp()
	rec := &userRecord{
		user: models.User{
			ID:        uuid.New().String(),
			Email:     strings.TrimSpace(req.Email),
			Username:  req.Username,
			FullName:  req.FullName,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		},
		passwordHash: hash,
	}
	s.users[key] = rec
	u := rec.user
	return &u, nil
}

// Users returns the number of registered users
func (s *Server) Users() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func (s *Server) register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	switch {
	case !strings.Contains(req.Email, "@"):
		detail(c, http.StatusUnprocessableEntity, "A valid email is required")
		return
	case len(req.Password) < minPasswordLength:
		detail(c, http.StatusUnprocessableEntity, "Password must be at least 6 characters")
		return
	}
	if req.Username == "" {
		req.Username = strings.SplitN(req.Email, "@", 2)[0]
	}

	user, err := s.AddUser(req)
	if err == errEmailTaken {
		detail(c, http.StatusBadRequest, "Email already registered")
		return
	}
	if err != nil {
		detail(c, http.StatusInternalServerError, "Registration failed")
		return
	}
	s.issue(c, http.StatusCreated, user)
}

func (s *Server) login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}

	s.mu.RLock()
	rec, ok := s.users[normalizeEmail(req.Email)]
	var user models.User
	var hash string
	if ok {
		user, hash = rec.user, rec.passwordHash
	}
	s.mu.RUnlock()

	// 400, not 401: a failed login is not an expired session
	if !ok || !auth.CheckPassword(hash, req.Password) {
		detail(c, http.StatusBadRequest, "Incorrect email or password")
		return
	}
	if !user.IsActive {
		detail(c, http.StatusBadRequest, "Inactive user")
		return
	}
	s.issue(c, http.StatusOK, &user)
}

func (s *Server) issue(c *gin.Context, status int, user *models.User) {
	token, _, err := auth.GenerateToken(user.ID, user.Email, s.tokens)
	if err != nil {
		detail(c, http.StatusInternalServerError, "Could not issue token")
		return
	}
	s.logger.Info("mock session issued", map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
	})
	c.JSON(status, models.AuthResponse{
		Success:     true,
		User:        user,
		AccessToken: token,
		TokenType:   "bearer",
	})
}

func (s *Server) logout(c *gin.Context) {
	token := c.GetString(ctxTokenKey)
	s.mu.Lock()
	s.revoked[token] = struct{}{}
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Successfully logged out"})
}

func (s *Server) profile(c *gin.Context) {
	user, _ := c.Get(ctxUserKey)
	c.JSON(http.StatusOK, user)
}

// authenticate resolves the bearer token. When required is false a
// missing token is allowed through; an invalid one is still rejected.
func (s *Server) authenticate(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if header == "" || token == "" {
			if required {
				detail(c, http.StatusUnauthorized, "Not authenticated")
				return
			}
			c.Next()
			return
		}

		user, ok := s.userForToken(token)
		if !ok {
			detail(c, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		c.Set(ctxUserKey, user)
		c.Set(ctxTokenKey, token)
		c.Next()
	}
}

func (s *Server) userForToken(token string) (models.User, bool) {
	claims, err := auth.ParseToken(token, s.tokens)
	if err != nil {
		return models.User{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, revoked := s.revoked[token]; revoked {
		return models.User{}, false
	}
	rec, ok := s.users[normalizeEmail(claims.Email)]
	if !ok || rec.user.ID != claims.UserID {
		return models.User{}, false
	}
	return rec.user, true
}

// ownerID returns the caller's user id, or "" for anonymous requests
func ownerID(c *gin.Context) string {
	if v, ok := c.Get(ctxUserKey); ok {
		if u, ok := v.(models.User); ok {
			return u.ID
		}
	}
	return ""
}
