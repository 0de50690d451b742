// internal/mockapi/projects.go
package mockapi

import (
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Corphon/ScriptBreakdown/internal/models"
)

const msgProjectNotFound = "Project not found"

// Projects returns the number of stored projects
func (s *Server) Projects() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.projects)
}

// visibleLocked reports whether the caller may see the project
func visibleLocked(rec *projectRecord, owner string) bool {
	return rec.project.UserID == "" || rec.project.UserID == owner
}

func (s *Server) listProjects(c *gin.Context) {
	owner := ownerID(c)
	s.mu.RLock()
	recs := make([]*projectRecord, 0, len(s.projects))
	for _, r := range s.projects {
		if visibleLocked(r, owner) {
			recs = append(recs, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool { return recs[i].seq > recs[j].seq })
	out := make([]models.Project, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.project)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": out})
}

// newProjectLocked must be called with mu held
func (s *Server) newProjectLocked(owner, title, description string, days int) *projectRecord {
	now := s.timestamp()
	rec := &projectRecord{
		project: models.Project{
			ID:                    uuid.New().String(),
			Title:                 title,
			Description:           description,
			Status:                models.StatusActive,
			UserID:                owner,
			EstimatedDurationDays: days,
			CreatedAt:             now,
			UpdatedAt:             now,
		},
		seq: s.nextSeq(),
	}
	s.projects[rec.project.ID] = rec
	return rec
}

func (s *Server) createProject(c *gin.Context) {
	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		detail(c, http.StatusUnprocessableEntity, "Title is required")
		return
	}

	s.mu.Lock()
	rec := s.newProjectLocked(ownerID(c), title, req.Description, req.EstimatedDurationDays)
	p := rec.project
	s.mu.Unlock()

	c.JSON(http.StatusCreated, gin.H{"success": true, "project": p})
}

func (s *Server) updateProject(c *gin.Context) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		detail(c, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}

	s.mu.Lock()
	rec, ok := s.projects[c.Param("id")]
	if !ok || !visibleLocked(rec, ownerID(c)) {
		s.mu.Unlock()
		detail(c, http.StatusNotFound, msgProjectNotFound)
		return
	}
	p := &rec.project
	for k, v := range fields {
		switch k {
		case "title":
			if t, ok := v.(string); ok && strings.TrimSpace(t) != "" {
				p.Title = strings.TrimSpace(t)
			}
		case "description":
			if d, ok := v.(string); ok {
				p.Description = d
			}
		case "status":
			if st, ok := v.(string); ok && st != "" {
				p.Status = st
			}
		case "estimated_duration_days":
			if n, ok := v.(float64); ok {
				p.EstimatedDurationDays = int(n)
			}
		case "budget_total":
			if n, ok := v.(float64); ok {
				p.BudgetTotal = models.Float64(n)
			}
		}
	}
	p.UpdatedAt = s.timestamp()
	updated := *p
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"success": true, "project": updated})
}

func (s *Server) deleteProject(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	rec, ok := s.projects[id]
	if ok && visibleLocked(rec, ownerID(c)) {
		delete(s.projects, id)
	} else {
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		detail(c, http.StatusNotFound, msgProjectNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Project deleted successfully"})
}

func (s *Server) projectAnalysis(c *gin.Context) {
	s.mu.RLock()
	rec, ok := s.projects[c.Param("id")]
	visible := ok && visibleLocked(rec, ownerID(c))
	var script *scriptRecord
	if visible {
		script = s.scripts[rec.project.ScriptID]
	}
	var d models.ScriptDetail
	if script != nil {
		d = models.ScriptDetail{Script: script.script, AnalysisData: script.analysis}
	}
	s.mu.RUnlock()

	switch {
	case !visible:
		detail(c, http.StatusNotFound, msgProjectNotFound)
	case script == nil:
		detail(c, http.StatusNotFound, "No analysis available for this project")
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "data": d})
	}
}

func (s *Server) createProjectWithScript(c *gin.Context) {
	name, size, ok := readUpload(c)
	if !ok {
		return
	}
	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		title = strings.TrimSuffix(name, path.Ext(name))
	}
	analysis := cannedAnalysis(name, size)

	s.mu.Lock()
	script := s.saveLocked(name, name, size, analysis, 0.8, 2)
	rec := s.newProjectLocked(ownerID(c), title, c.PostForm("description"), 30)
	rec.project.ScriptID = script.script.ID
	rec.project.ScriptFilename = name
	rec.project.ScriptsCount = 1
	rec.project.BudgetTotal = models.Float64(script.script.EstimatedBudget)
	p := rec.project
	s.mu.Unlock()

	c.JSON(http.StatusCreated, models.CreateProjectResult{
		Success:      true,
		Message:      "Project created and script analyzed successfully",
		Project:      &p,
		AnalysisData: &analysis,
	})
}
