// internal/api/router.go
package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/ScriptBreakdown/internal/config"
	"github.com/Corphon/ScriptBreakdown/internal/di"
	"github.com/Corphon/ScriptBreakdown/internal/store"
	"github.com/Corphon/ScriptBreakdown/internal/utils"
)

// SetupRouter builds the router from the registered services
func SetupRouter() (*gin.Engine, error) {
	container := di.GetContainer()

	s, err := di.Resolve[*store.Store](container, di.ServiceStore)
	if err != nil {
		return nil, fmt.Errorf("store not initialized: %w", err)
	}
	metrics, err := di.Resolve[*utils.APIMetrics](container, di.ServiceMetrics)
	if err != nil {
		return nil, fmt.Errorf("metrics not initialized: %w", err)
	}
	logger, err := di.Resolve[*utils.Logger](container, di.ServiceLogger)
	if err != nil {
		return nil, fmt.Errorf("logger not initialized: %w", err)
	}

	cfg := config.GetCurrentConfig()
	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	return NewRouter(NewHandler(s, metrics, logger, cfg.AllowedOrigins...)), nil
}

// NewRouter builds the engine around a handler
func NewRouter(handler *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(CORS(handler.Origins))
	r.Use(RequestMetrics(handler.Metrics))
	r.Use(RequireSession(handler.Store))

	limiter := NewRateLimiter()

	r.GET("/health", handler.Health)

	// session events
	r.GET("/ws/session", handler.SessionWebSocket)

	// ===============================
	// API
	// ===============================
	api := r.Group("/api")
	{
		api.GET("/health", handler.Health)
		api.GET("/stats", handler.Stats)
		api.GET("/state", handler.State)
		api.DELETE("/state/error", handler.ClearError)

		// ===============================
		// session
		// ===============================
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", handler.Login)
			authGroup.POST("/register", handler.Register)
			authGroup.POST("/logout", handler.Logout)
			authGroup.GET("/session", handler.Session)
			authGroup.GET("/profile", handler.Profile)
		}

		// ===============================
		// settings
		// ===============================
		api.GET("/settings", handler.GetSettings)
		api.PUT("/settings", handler.SaveSettings)

		// ===============================
		// projects
		// ===============================
		api.GET("/selection", handler.Selection)
		api.PUT("/selection", handler.Select)

		projects := api.Group("/projects")
		{
			projects.GET("", handler.ListProjects)
			projects.POST("", handler.CreateProject)
			projects.POST("/upload", UploadRateLimit(limiter), handler.CreateProjectWithScript)
			projects.POST("/batch-delete", handler.DeleteProjects)

			project := projects.Group("/:id", RequireProject(handler.Store))
			{
				project.GET("", handler.GetProject)
				project.PUT("/status", handler.UpdateProjectStatus)
				project.GET("/budget", handler.ProjectBudget)
				project.PUT("/budget/:category", handler.UpdateBudgetCategory)
			}

			// remote-only projects may not be listed locally yet
			projects.PUT("/:id", handler.UpdateProject)
			projects.DELETE("/:id", handler.DeleteProject)
			projects.GET("/:id/analysis", handler.ProjectAnalysis)
		}

		// ===============================
		// scripts
		// ===============================
		scripts := api.Group("/scripts")
		{
			scripts.GET("", handler.ListScripts)
			scripts.POST("/load-more", handler.LoadMoreScripts)
			scripts.DELETE("/filters", handler.ClearFilters)
			scripts.GET("/awaiting-feedback", handler.ScriptsAwaitingFeedback)
			scripts.GET("/statistics", handler.ScriptStatistics)
			scripts.POST("/batch-delete", handler.DeleteScripts)

			scripts.POST("/analyze", UploadRateLimit(limiter), handler.AnalyzeScript)
			scripts.POST("/save", handler.SaveAnalysis)
			scripts.POST("/upload", UploadRateLimit(limiter), handler.UploadScript)

			scripts.GET("/current", handler.CurrentScript)
			scripts.POST("/current/refresh", handler.RefreshCurrentScript)
			scripts.DELETE("/current", handler.ClearCurrentScript)

			scripts.GET("/:id", handler.GetScript)
			scripts.DELETE("/:id", handler.DeleteScript)
			scripts.GET("/:id/analysis", handler.ScriptAnalysis)
			scripts.POST("/:id/feedback", handler.ProvideFeedback)
			scripts.POST("/:id/chat", ChatRateLimit(limiter), handler.Chat)
		}
	}

	return r
}
