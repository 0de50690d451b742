// internal/api/project_handlers.go
package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/ScriptBreakdown/internal/budget"
	"github.com/Corphon/ScriptBreakdown/internal/models"
)

type batchRequest struct {
	IDs []string `json:"ids"`
}

// ListProjects refreshes the directory and returns it with the selection
func (h *Handler) ListProjects(c *gin.Context) {
	if c.Query("cached") != "true" {
		h.Store.FetchProjects(c.Request.Context())
	}
	if !h.Store.IsLoggedIn() && h.Store.LastError() != "" {
		// the refresh ended the session
		h.fail(c, nil)
		return
	}

	id, title := h.Store.SelectedProject()
	h.Response.Success(c, gin.H{
		"projects":       h.Store.Projects(),
		"selected_id":    id,
		"selected_title": title,
	})
}

// GetProject returns one listed project
func (h *Handler) GetProject(c *gin.Context) {
	p := h.Store.Project(c.Param("id"))
	if p == nil {
		h.Response.NotFound(c, "Project")
		return
	}
	h.Response.Success(c, p)
}

// CreateProject creates a remote project
func (h *Handler) CreateProject(c *gin.Context) {
	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		h.Response.Error(c, http.StatusBadRequest, ErrorValidationFailed, "Title is required")
		return
	}

	p, err := h.Store.CreateProject(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Response.Created(c, p, "Project created")
}

// CreateProjectWithScript creates a project from an uploaded script
func (h *Handler) CreateProjectWithScript(c *gin.Context) {
	file, closeFile, ok := h.scriptFile(c)
	if !ok {
		return
	}
	defer closeFile()

	res, err := h.Store.CreateProjectWithScript(c.Request.Context(), c.PostForm("title"), c.PostForm("description"), file)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !res.Success {
		h.Response.Error(c, http.StatusBadGateway, ErrorRemoteFailed, res.Message)
		return
	}
	h.Response.Created(c, res, "Project created")
}

// UpdateProject sends a partial update
func (h *Handler) UpdateProject(c *gin.Context) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil || len(fields) == 0 {
		h.Response.BadRequest(c, "No fields to update")
		return
	}

	id := c.Param("id")
	if !h.Store.UpdateProject(c.Request.Context(), id, fields) {
		h.fail(c, nil)
		return
	}
	h.Response.Success(c, h.Store.Project(id), "Project updated")
}

// UpdateProjectStatus changes a project status locally
func (h *Handler) UpdateProjectStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Status) == "" {
		h.Response.BadRequest(c, "Status is required")
		return
	}

	id := c.Param("id")
	if !h.Store.UpdateProjectStatus(id, req.Status) {
		h.Response.NotFound(c, "Project")
		return
	}
	h.Response.Success(c, h.Store.Project(id), "Status updated")
}

// DeleteProject deletes a project
func (h *Handler) DeleteProject(c *gin.Context) {
	if !h.Store.DeleteProject(c.Request.Context(), c.Param("id")) {
		h.fail(c, nil)
		return
	}
	h.Response.Success(c, nil, "Project deleted")
}

// DeleteProjects deletes several projects and reports each one
func (h *Handler) DeleteProjects(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		h.Response.BadRequest(c, "ids is required")
		return
	}
	h.Response.Success(c, h.Store.DeleteProjects(c.Request.Context(), req.IDs))
}

// ProjectAnalysis returns the remote analysis of a project
func (h *Handler) ProjectAnalysis(c *gin.Context) {
	data := h.Store.GetProjectAnalysis(c.Request.Context(), c.Param("id"))
	if data == nil {
		h.fail(c, nil)
		return
	}
	h.Response.Success(c, data)
}

// ========================================
// selection
// ========================================

// Selection returns the selected project
func (h *Handler) Selection(c *gin.Context) {
	id, title := h.Store.SelectedProject()
	h.Response.Success(c, gin.H{
		"project_id":    id,
		"project_title": title,
		"project":       h.Store.CurrentProject(),
	})
}

// Select selects a project by id or title
func (h *Handler) Select(c *gin.Context) {
	var req struct {
		Project string `json:"project"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Project == "" {
		h.Response.BadRequest(c, "project is required")
		return
	}

	if !h.Store.SetSelectedProject(req.Project) {
		id, _ := h.Store.SelectedProject()
		if id == req.Project {
			// remembered until the project list can resolve it
			h.Response.Accepted(c, gin.H{"project_id": id, "deferred": true}, "Selection deferred")
			return
		}
		h.Response.NotFound(c, "Project")
		return
	}
	h.Selection(c)
}

// ========================================
// budget
// ========================================

// ProjectBudget returns the seven budget categories of a project
func (h *Handler) ProjectBudget(c *gin.Context) {
	categories, b, err := h.Store.BudgetCategories(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Response.Success(c, gin.H{
		"categories": categories,
		"breakdown":  b,
		"total":      budget.FormatAmountWith(h.Store.Currency(), b.Total),
	})
}

// UpdateBudgetCategory edits one category of a demo-style budget
func (h *Handler) UpdateBudgetCategory(c *gin.Context) {
	category := c.Param("category")
	if !budget.IsCategory(category) {
		h.Response.Error(c, http.StatusBadRequest, ErrorUnknownCategory, "Unknown budget category: "+category)
		return
	}

	var req struct {
		Amount *float64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount == nil {
		h.Response.BadRequest(c, "amount is required")
		return
	}

	id := c.Param("id")
	h.Store.ClearError()
	if !h.Store.UpdateBudgetCategory(id, category, *req.Amount) {
		if h.Store.LastError() != "" {
			h.fail(c, nil)
			return
		}
		h.Response.Error(c, http.StatusConflict, ErrorValidationFailed, "This project's budget is derived from its script and cannot be edited")
		return
	}
	h.ProjectBudget(c)
}
