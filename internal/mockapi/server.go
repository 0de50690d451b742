// internal/mockapi/server.go
package mockapi

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/ScriptBreakdown/internal/auth"
	"github.com/Corphon/ScriptBreakdown/internal/models"
	"github.com/Corphon/ScriptBreakdown/internal/utils"
)

const (
	serviceName    = "script-analysis-api"
	serviceVersion = "2.1.0"

	defaultListLimit = 100
	maxListLimit     = 1000
	maxUploadBytes   = 32 << 20
)

// Options configures the mock service
type Options struct {
	// Secret signs issued tokens; a random key is generated when empty
	Secret []byte
	// TokenTTL defaults to 24h
	TokenTTL time.Duration
	// RequireAuth makes the project endpoints reject requests without a
	// valid bearer token
	RequireAuth bool
	Logger      *utils.Logger
	Now         func() time.Time
}

type userRecord struct {
	user         models.User
	passwordHash string
}

type scriptRecord struct {
	script   models.Script
	analysis models.AnalysisData
	seq      int
}

type projectRecord struct {
	project models.Project
	seq     int
}

// Server is an in-memory stand-in for the remote script analysis service
type Server struct {
	tokens      *auth.TokenConfig
	requireAuth bool
	logger      *utils.Logger
	now         func() time.Time

	mu       sync.RWMutex
	users    map[string]*userRecord // by lower-cased email
	revoked  map[string]struct{}
	scripts  map[string]*scriptRecord
	projects map[string]*projectRecord
	seq      int
}

// New creates an empty mock service
func New(opts Options) *Server {
	secret := opts.Secret
	if len(secret) == 0 {
		key, err := auth.GenerateSecureKey(32)
		if err != nil {
			key = []byte("script-breakdown-mock")
		}
		secret = key
	}
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.GetLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Server{
		tokens:      &auth.TokenConfig{Secret: secret, Expiration: ttl},
		requireAuth: opts.RequireAuth,
		logger:      logger,
		now:         now,
		users:       make(map[string]*userRecord),
		revoked:     make(map[string]struct{}),
		scripts:     make(map[string]*scriptRecord),
		projects:    make(map[string]*projectRecord),
	}
}

// Handler returns the gin engine serving every endpoint
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = maxUploadBytes

	r.GET("/", s.root)
	r.GET("/health", s.health)

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", s.login)
		authGroup.POST("/register", s.register)
		authGroup.POST("/logout", s.authenticate(true), s.logout)
		authGroup.GET("/profile", s.authenticate(true), s.profile)
	}

	projects := r.Group("/projects", s.authenticate(s.requireAuth))
	{
		projects.GET("", s.listProjects)
		projects.POST("", s.createProject)
		projects.PUT("/:id", s.updateProject)
		projects.DELETE("/:id", s.deleteProject)
		projects.GET("/:id/analysis", s.projectAnalysis)
	}
	r.POST("/create-project-with-script", s.authenticate(s.requireAuth), s.createProjectWithScript)

	r.POST("/analyze-script", s.analyzeScript)
	r.POST("/save-analysis", s.saveAnalysis)
	r.GET("/analyzed-scripts", s.listScripts)
	r.GET("/analyzed-scripts/:id", s.getScript)
	r.DELETE("/analyzed-scripts/:id", s.deleteScript)
	r.POST("/provide-feedback/:id", s.provideFeedback)
	r.GET("/scripts-awaiting-feedback", s.awaitingFeedback)
	r.POST("/chat/:id", s.chat)

	return r
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Script Analysis API is running",
		"status":  "healthy",
		"version": serviceVersion,
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthCheck{
		Status:    "healthy",
		Service:   serviceName,
		Timestamp: s.timestamp(),
		Database:  "connected",
		Version:   serviceVersion,
	})
}

// detail writes the error body shape the client understands
func detail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": message})
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// nextSeq must be called with mu held
func (s *Server) nextSeq() int {
	s.seq++
	return s.seq
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
