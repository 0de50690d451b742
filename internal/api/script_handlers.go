// internal/api/script_handlers.go
package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/ScriptBreakdown/internal/models"
	"github.com/Corphon/ScriptBreakdown/internal/store"
)

// scriptList is the list view shared by the list endpoints
func (h *Handler) scriptList() gin.H {
	search, status := h.Store.Filters()
	return gin.H{
		"scripts":       h.Store.Scripts(),
		"pagination":    h.Store.Pagination(),
		"search_term":   search,
		"status_filter": status,
		"statistics":    h.Store.Statistics(),
	}
}

// ListScripts fetches one page of scripts. search and status, when
// present, replace the store's filters.
func (h *Handler) ListScripts(c *gin.Context) {
	_, hasSearch := c.GetQuery("search")
	_, hasStatus := c.GetQuery("status")
	if hasSearch || hasStatus {
		search, status := h.Store.Filters()
		if hasSearch {
			search = strings.TrimSpace(c.Query("search"))
		}
		if hasStatus {
			status = c.Query("status")
		}
		h.Store.SetFilters(search, status)
	}

	q := store.ScriptQuery{
		Page:           queryInt(c, "page", 0),
		Limit:          queryInt(c, "limit", store.DefaultLimit),
		OrderBy:        c.Query("order_by"),
		OrderDirection: c.Query("order_direction"),
	}
	if !h.Store.FetchScripts(c.Request.Context(), q) {
		h.fail(c, nil)
		return
	}
	h.Response.Success(c, h.scriptList())
}

// LoadMoreScripts fetches the next page when there is one
func (h *Handler) LoadMoreScripts(c *gin.Context) {
	if !h.Store.Pagination().HasMore {
		h.Response.Success(c, h.scriptList(), "No more scripts")
		return
	}
	if !h.Store.LoadMore(c.Request.Context()) {
		h.fail(c, nil)
		return
	}
	h.Response.Success(c, h.scriptList())
}

// ClearFilters drops search, status filter and pagination
func (h *Handler) ClearFilters(c *gin.Context) {
	h.Store.ClearSearch()
	h.Store.ResetPagination()
	h.Response.Success(c, nil, "Filters cleared")
}

// ScriptsAwaitingFeedback lists scripts waiting for a human review
func (h *Handler) ScriptsAwaitingFeedback(c *gin.Context) {
	page := queryInt(c, "page", 0)
	limit := queryInt(c, "limit", store.DefaultLimit)
	if !h.Store.ScriptsAwaitingFeedback(c.Request.Context(), page, limit) {
		h.fail(c, nil)
		return
	}
	h.Response.Success(c, h.scriptList())
}

// ScriptStatistics summarizes the listed scripts
func (h *Handler) ScriptStatistics(c *gin.Context) {
	h.Response.Success(c, h.Store.Statistics())
}

// GetScript loads a script and makes it current
func (h *Handler) GetScript(c *gin.Context) {
	if !h.Store.FetchScript(c.Request.Context(), c.Param("id")) {
		h.fail(c, nil)
		return
	}
	h.CurrentScript(c)
}

// CurrentScript returns the current script and its analysis
func (h *Handler) CurrentScript(c *gin.Context) {
	sc, analysis := h.Store.CurrentScript()
	h.Response.Success(c, gin.H{
		"script":   sc,
		"analysis": analysis,
	})
}

// RefreshCurrentScript reloads the current script
func (h *Handler) RefreshCurrentScript(c *gin.Context) {
	if sc, _ := h.Store.CurrentScript(); sc == nil {
		h.Response.NotFound(c, "Script", "no current script")
		return
	}
	if !h.Store.RefreshCurrentScript(c.Request.Context()) {
		h.fail(c, nil)
		return
	}
	h.CurrentScript(c)
}

// ClearCurrentScript forgets the current script
func (h *Handler) ClearCurrentScript(c *gin.Context) {
	h.Store.ClearCurrentScript()
	h.Response.Success(c, nil, "Current script cleared")
}

// DeleteScript deletes one script
func (h *Handler) DeleteScript(c *gin.Context) {
	if !h.Store.DeleteScript(c.Request.Context(), c.Param("id")) {
		h.fail(c, nil)
		return
	}
	h.Response.Success(c, h.scriptList(), "Script deleted")
}

// DeleteScripts deletes several scripts and reports each one
func (h *Handler) DeleteScripts(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		h.Response.BadRequest(c, "ids is required")
		return
	}
	h.Response.Success(c, h.Store.DeleteScripts(c.Request.Context(), req.IDs))
}

// ========================================
// analysis
// ========================================

// AnalyzeScript uploads a script for analysis without saving it
func (h *Handler) AnalyzeScript(c *gin.Context) {
	file, closeFile, ok := h.scriptFile(c)
	if !ok {
		return
	}
	defer closeFile()

	res := h.Store.AnalyzeScript(c.Request.Context(), file)
	if res == nil {
		h.fail(c, nil)
		return
	}
	h.Response.Success(c, res, res.Message)
}

// SaveAnalysis saves the posted analysis result, or the last one
func (h *Handler) SaveAnalysis(c *gin.Context) {
	var result *models.AnalysisResult
	if c.Request.ContentLength > 0 {
		result = &models.AnalysisResult{}
		if err := c.ShouldBindJSON(result); err != nil {
			h.Response.BadRequest(c, "Invalid analysis result", err.Error())
			return
		}
	} else {
		result = h.Store.LastAnalysis()
	}
	if result == nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorValidationFailed, "No analysis to save")
		return
	}

	saved := h.Store.SaveAnalysis(c.Request.Context(), result)
	if saved == nil {
		h.fail(c, nil)
		return
	}
	h.Response.Created(c, saved, saved.Message)
}

// UploadScript analyzes and saves a script, then selects its project
func (h *Handler) UploadScript(c *gin.Context) {
	file, closeFile, ok := h.scriptFile(c)
	if !ok {
		return
	}
	defer closeFile()

	saved := h.Store.AnalyzeAndSave(c.Request.Context(), file)
	if saved == nil || !saved.Success {
		h.fail(c, nil)
		return
	}
	h.Response.Created(c, gin.H{
		"saved":   saved,
		"project": h.Store.CurrentProject(),
	}, "Script analyzed and saved")
}

// ScriptAnalysis returns the standardized analysis of a script
func (h *Handler) ScriptAnalysis(c *gin.Context) {
	analysis := h.Store.ScriptAnalysisData(c.Request.Context(), c.Param("id"))
	if analysis == nil {
		if h.Store.LastError() != "" {
			h.fail(c, nil)
			return
		}
		h.Response.NotFound(c, "Analysis", "the analysis has no scene list")
		return
	}
	h.Response.Success(c, analysis)
}

// ProvideFeedback submits a review of a script
func (h *Handler) ProvideFeedback(c *gin.Context) {
	var req models.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}

	resp := h.Store.ProvideFeedback(c.Request.Context(), c.Param("id"), req.FeedbackText, req.Approved, req.RequestReanalysis)
	if resp == nil {
		h.fail(c, nil)
		return
	}
	h.Response.Success(c, resp, resp.Message)
}

// Chat asks the assistant about a script
func (h *Handler) Chat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		h.Response.BadRequest(c, "Message is required")
		return
	}

	reply, ok := h.Store.ChatWithScript(c.Request.Context(), c.Param("id"), req.Message)
	if !ok {
		h.fail(c, nil)
		return
	}
	h.Response.Success(c, gin.H{"response": reply})
}
