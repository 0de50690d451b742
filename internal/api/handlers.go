// internal/api/handlers.go
package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/ScriptBreakdown/internal/config"
	"github.com/Corphon/ScriptBreakdown/internal/models"
	"github.com/Corphon/ScriptBreakdown/internal/store"
	"github.com/Corphon/ScriptBreakdown/internal/utils"
)

// maxScriptBytes is the largest script the remote service accepts
const maxScriptBytes = 50 << 20

// Handler serves the companion API over one store
type Handler struct {
	Store    *store.Store      // session and project state
	Metrics  *utils.APIMetrics // request metrics
	Logger   *utils.Logger     // request logging
	Stream   *SessionStream    // /ws/session event stream
	Response *ResponseHelper   // envelope writer
	Origins  []string          // browser origins allowed by CORS
	started  time.Time
}

// NewHandler creates the handler set over one store. origins lists the
// browser origins allowed to call the API and open the session stream;
// none means DefaultAllowedOrigins.
func NewHandler(s *store.Store, metrics *utils.APIMetrics, logger *utils.Logger, origins ...string) *Handler {
	if metrics == nil {
		metrics = utils.NewAPIMetrics()
	}
	if logger == nil {
		logger = utils.GetLogger()
	}
	origins = normalizeOrigins(origins)
	return &Handler{
		Store:    s,
		Metrics:  metrics,
		Logger:   logger,
		Stream:   NewSessionStream(s, logger, metrics.Collector(), origins),
		Response: NewResponseHelper(),
		Origins:  origins,
		started:  time.Now(),
	}
}

// fail reports the store's last error for an operation that returned false
func (h *Handler) fail(c *gin.Context, err error) {
	h.Response.StoreFailure(c, err, h.Store.LastError())
}

// queryInt reads a non-negative integer query parameter
func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}

// scriptFile reads the multipart "file" field. The returned close func
// must be called once the upload is done.
func (h *Handler) scriptFile(c *gin.Context) (models.ScriptFile, func(), bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorFileInvalid, "No file provided")
		return models.ScriptFile{}, nil, false
	}
	if fh.Size == 0 {
		h.Response.Error(c, http.StatusBadRequest, ErrorFileInvalid, "File is empty")
		return models.ScriptFile{}, nil, false
	}
	if fh.Size > maxScriptBytes {
		h.Response.Error(c, http.StatusRequestEntityTooLarge, ErrorFileInvalid,
			fmt.Sprintf("File too large. Maximum size is %dMB", maxScriptBytes>>20))
		return models.ScriptFile{}, nil, false
	}

	f, err := fh.Open()
	if err != nil {
		h.Response.InternalError(c, "Failed to read uploaded file")
		return models.ScriptFile{}, nil, false
	}
	return models.ScriptFile{Name: filepath.Base(fh.Filename), Content: f}, func() { f.Close() }, true
}

// ========================================
// session
// ========================================

// Login signs in against the remote service
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		h.Response.BadRequest(c, "Email and password are required")
		return
	}

	if !h.Store.Login(c.Request.Context(), req.Email, req.Password) {
		h.Response.Error(c, http.StatusBadRequest, ErrorLoginFailed, h.Store.LastError())
		return
	}
	h.Response.Success(c, h.Store.Session(), "Logged in")
}

// Register creates a remote account
func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		h.Response.BadRequest(c, "Email and password are required")
		return
	}

	if !h.Store.Register(c.Request.Context(), req) {
		h.Response.Error(c, http.StatusBadRequest, ErrorLoginFailed, h.Store.LastError())
		return
	}
	h.Response.Created(c, h.Store.Session(), "Registered")
}

// Logout always succeeds locally, whatever the remote says
func (h *Handler) Logout(c *gin.Context) {
	h.Store.Logout(c.Request.Context())
	h.Response.Success(c, h.Store.Session(), "Logged out")
}

// Session returns the current session without the token
func (h *Handler) Session(c *gin.Context) {
	h.Response.Success(c, h.Store.Session())
}

// Profile refreshes the user from the remote service
func (h *Handler) Profile(c *gin.Context) {
	u := h.Store.Profile(c.Request.Context())
	if u == nil {
		h.fail(c, nil)
		return
	}
	h.Response.Success(c, u)
}

// ========================================
// state and settings
// ========================================

// Health reports the local server; ?remote=true also checks the remote service
func (h *Handler) Health(c *gin.Context) {
	data := gin.H{
		"status":         "healthy",
		"uptime_seconds": int(time.Since(h.started).Seconds()),
		"logged_in":      h.Store.IsLoggedIn(),
	}

	if c.Query("remote") == "true" {
		hc := h.Store.CheckHealth(c.Request.Context())
		if hc == nil {
			h.fail(c, nil)
			return
		}
		data["remote"] = hc
	}
	h.Response.Success(c, data)
}

// State exposes the loading flag and the error slot
func (h *Handler) State(c *gin.Context) {
	id, title := h.Store.SelectedProject()
	userID, _ := GetUserFromContext(c)
	h.Response.Success(c, gin.H{
		"user_id":        userID,
		"loading":        h.Store.Loading(),
		"last_error":     h.Store.LastError(),
		"logged_in":      h.Store.IsLoggedIn(),
		"project_id":     id,
		"project_title":  title,
		"search_term":    h.searchTerm(),
		"script_count":   len(h.Store.Scripts()),
		"project_count":  len(h.Store.Projects()),
		"event_channels": h.Store.Events().Subscribers(),
	})
}

func (h *Handler) searchTerm() string {
	term, _ := h.Store.Filters()
	return term
}

// ClearError empties the error slot
func (h *Handler) ClearError(c *gin.Context) {
	h.Store.ClearError()
	h.Response.Success(c, nil, "Error cleared")
}

// Stats returns the request metrics
func (h *Handler) Stats(c *gin.Context) {
	h.Response.Success(c, h.Metrics.Collector().GetMetrics())
}

// GetSettings returns the user-editable configuration
func (h *Handler) GetSettings(c *gin.Context) {
	cfg := config.GetCurrentConfig()
	h.Response.Success(c, gin.H{
		"api_base_url":    cfg.APIBaseURL,
		"currency_prefix": cfg.CurrencyPrefix,
		"storage_driver":  cfg.StorageDriver,
		"debug_mode":      cfg.DebugMode,
		"port":            cfg.Port,
	})
}

// SaveSettings persists a new remote URL; it takes effect on restart
func (h *Handler) SaveSettings(c *gin.Context) {
	var req struct {
		APIBaseURL string `json:"api_base_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}

	url := strings.TrimSpace(req.APIBaseURL)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		h.Response.Error(c, http.StatusBadRequest, ErrorValidationFailed, "api_base_url must be an http(s) URL")
		return
	}
	if err := config.UpdateAPIURL(url); err != nil {
		h.Response.InternalError(c, "Failed to save settings", err.Error())
		return
	}

	h.Logger.Info("remote service url updated", map[string]interface{}{"url": url})
	h.Response.Success(c, gin.H{"api_base_url": url, "restart_required": true}, "Settings saved")
}

// SessionWebSocket streams session events
func (h *Handler) SessionWebSocket(c *gin.Context) {
	h.Stream.Serve(c)
}
