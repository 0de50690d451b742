// internal/mockapi/scripts.go
package mockapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Corphon/ScriptBreakdown/internal/models"
)

// AddScript stores an analyzed script as if it had been uploaded and saved
func (s *Server) AddScript(filename string, size int64, status string) models.Script {
	if status == "" {
		status = models.ScriptStatusCompleted
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.saveLocked(filename, filename, size, cannedAnalysis(filename, size), 0.8, 2)
	rec.script.Status = status
	return rec.script
}

// SetScriptStatus overrides the status of a stored script
func (s *Server) SetScriptStatus(id, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.scripts[id]
	if !ok {
		return false
	}
	rec.script.Status = status
	rec.script.UpdatedAt = s.timestamp()
	return true
}

// Script returns a stored script by id
func (s *Server) Script(id string) (models.Script, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.scripts[id]
	if !ok {
		return models.Script{}, false
	}
	return rec.script, true
}

// saveLocked must be called with mu held
func (s *Server) saveLocked(filename, original string, size int64, a models.AnalysisData, seconds float64, calls int) *scriptRecord {
	now := s.timestamp()
	rec := &scriptRecord{
		script: models.Script{
			ID:                    uuid.New().String(),
			Filename:              filename,
			OriginalFilename:      original,
			FileSizeBytes:         size,
			Status:                models.ScriptStatusCompleted,
			ProcessingTimeSeconds: seconds,
			APICallsUsed:          calls,
			CreatedAt:             now,
			UpdatedAt:             now,
		},
		analysis: a,
		seq:      s.nextSeq(),
	}
	summarize(&rec.script, a)
	s.scripts[rec.script.ID] = rec
	return rec
}

// readUpload reads the multipart "file" field
func readUpload(c *gin.Context) (string, int64, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, "A script file is required")
		return "", 0, false
	}
	f, err := fh.Open()
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, "Script file could not be read")
		return "", 0, false
	}
	defer f.Close()
	n, err := io.Copy(io.Discard, f)
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, "Script file could not be read")
		return "", 0, false
	}
	if n == 0 {
		detail(c, http.StatusUnprocessableEntity, "Script validation failed: file is empty")
		return "", 0, false
	}
	return fh.Filename, n, true
}

func (s *Server) analyzeScript(c *gin.Context) {
	start := time.Now()
	name, size, ok := readUpload(c)
	if !ok {
		return
	}

	analysis := cannedAnalysis(name, size)
	seconds := float64(time.Since(start).Milliseconds()) / 1000
	raw := mustJSON(analysis)
	c.JSON(http.StatusOK, models.AnalysisResult{
		Success:      true,
		Message:      "Script analysis completed successfully",
		Data:         &analysis,
		AnalysisData: &analysis,
		Metadata: models.AnalysisMetadata{
			Filename:              name,
			OriginalFilename:      name,
			FileSizeBytes:         size,
			ProcessingTimeSeconds: seconds,
			Timestamp:             s.timestamp(),
			APICallsUsed:          2,
		},
		OptimizationInfo: models.OptimizationInfo{ActualCallsUsed: 2, ExpectedCalls: 2},
		SaveRequest: models.SaveRequest{
			Filename:              name,
			OriginalFilename:      name,
			FileSizeBytes:         size,
			AnalysisData:          raw,
			ProcessingTimeSeconds: seconds,
			APICallsUsed:          2,
		},
	})
}

func (s *Server) saveAnalysis(c *gin.Context) {
	var req models.SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	if req.Filename == "" {
		detail(c, http.StatusUnprocessableEntity, "filename is required")
		return
	}
	var analysis models.AnalysisData
	if len(req.AnalysisData) == 0 || string(req.AnalysisData) == "null" ||
		json.Unmarshal(req.AnalysisData, &analysis) != nil {
		detail(c, http.StatusUnprocessableEntity, "analysis_data must be an object")
		return
	}
	original := req.OriginalFilename
	if original == "" {
		original = req.Filename
	}

	s.mu.Lock()
	rec := s.saveLocked(req.Filename, original, req.FileSizeBytes, analysis, req.ProcessingTimeSeconds, req.APICallsUsed)
	script := rec.script
	s.mu.Unlock()

	s.logger.Info("mock analysis saved", map[string]interface{}{
		"script_id": script.ID,
		"filename":  script.Filename,
	})
	c.JSON(http.StatusCreated, models.SaveResponse{
		Success:    true,
		Message:    "Analysis saved to database successfully",
		DatabaseID: script.ID,
		SavedAt:    script.CreatedAt,
		Metadata: mustJSON(map[string]any{
			"filename":         script.Filename,
			"status":           script.Status,
			"total_scenes":     script.TotalScenes,
			"estimated_budget": script.EstimatedBudget,
			"budget_category":  script.BudgetCategory,
		}),
	})
}

// listParams parses skip/limit with the bounds of the service
func listParams(c *gin.Context) (skip, limit int, ok bool) {
	skip, err := strconv.Atoi(c.DefaultQuery("skip", "0"))
	if err != nil || skip < 0 {
		detail(c, http.StatusUnprocessableEntity, "skip must be a non-negative integer")
		return 0, 0, false
	}
	limit, err = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit < 1 || limit > maxListLimit {
		detail(c, http.StatusUnprocessableEntity, fmt.Sprintf("limit must be between 1 and %d", maxListLimit))
		return 0, 0, false
	}
	return skip, limit, true
}

func (s *Server) listScripts(c *gin.Context) {
	skip, limit, ok := listParams(c)
	if !ok {
		return
	}
	search := strings.ToLower(c.Query("search"))
	status := c.Query("status_filter")

	page, total := s.page(func(r *scriptRecord) bool {
		if search != "" {
			return strings.Contains(strings.ToLower(r.script.Filename), search) ||
				strings.Contains(strings.ToLower(r.script.OriginalFilename), search)
		}
		return status == "" || r.script.Status == status
	}, c.DefaultQuery("order_by", "created_at"), c.DefaultQuery("order_direction", "desc"), skip, limit)

	c.JSON(http.StatusOK, models.ScriptListResponse{
		Success:    true,
		Data:       page,
		Pagination: pagination(total, skip, limit, len(page)),
		SearchTerm: c.Query("search"),
	})
}

func (s *Server) awaitingFeedback(c *gin.Context) {
	skip, limit, ok := listParams(c)
	if !ok {
		return
	}
	page, total := s.page(func(r *scriptRecord) bool {
		return r.script.Status == models.ScriptStatusAwaitingFeedback
	}, "created_at", "desc", skip, limit)

	c.JSON(http.StatusOK, models.ScriptListResponse{
		Success:    true,
		Data:       page,
		Pagination: pagination(total, skip, limit, len(page)),
	})
}

func pagination(total, skip, limit, returned int) models.Pagination {
	return models.Pagination{
		Total:    total,
		Skip:     skip,
		Limit:    limit,
		Returned: returned,
		HasMore:  skip+returned < total,
	}
}

// page filters, orders and slices the stored scripts
func (s *Server) page(keep func(*scriptRecord) bool, orderBy, direction string, skip, limit int) ([]models.Script, int) {
	s.mu.RLock()
	matched := make([]*scriptRecord, 0, len(s.scripts))
	for _, r := range s.scripts {
		if keep(r) {
			matched = append(matched, r)
		}
	}
	s.mu.RUnlock()

	less := orderFunc(orderBy)
	desc := !strings.EqualFold(direction, "asc")
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if desc {
			a, b = b, a
		}
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		return a.seq < b.seq
	})

	total := len(matched)
	if skip >= total {
		return []models.Script{}, total
	}
	end := skip + limit
	if end > total {
		end = total
	}
	out := make([]models.Script, 0, end-skip)
	for _, r := range matched[skip:end] {
		out = append(out, r.script)
	}
	return out, total
}

func orderFunc(orderBy string) func(a, b *scriptRecord) bool {
	switch orderBy {
	case "filename":
		return func(a, b *scriptRecord) bool { return a.script.Filename < b.script.Filename }
	case "estimated_budget":
		return func(a, b *scriptRecord) bool { return a.script.EstimatedBudget < b.script.EstimatedBudget }
	case "file_size_bytes":
		return func(a, b *scriptRecord) bool { return a.script.FileSizeBytes < b.script.FileSizeBytes }
	case "status":
		return func(a, b *scriptRecord) bool { return a.script.Status < b.script.Status }
	default:
		return func(a, b *scriptRecord) bool { return a.seq < b.seq }
	}
}

func (s *Server) getScript(c *gin.Context) {
	s.mu.RLock()
	rec, ok := s.scripts[c.Param("id")]
	var d models.ScriptDetail
	if ok {
		d = models.ScriptDetail{Script: rec.script, AnalysisData: rec.analysis}
	}
	s.mu.RUnlock()

	if !ok {
		detail(c, http.StatusNotFound, "Analyzed script not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    d,
		"message": "Script retrieved successfully",
	})
}

func (s *Server) deleteScript(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	_, ok := s.scripts[id]
	delete(s.scripts, id)
	s.mu.Unlock()

	if !ok {
		detail(c, http.StatusNotFound, "Analyzed script not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Analyzed script %s deleted successfully", id),
	})
}

func (s *Server) provideFeedback(c *gin.Context) {
	var req models.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	id := c.Param("id")

	s.mu.Lock()
	rec, ok := s.scripts[id]
	if !ok {
		s.mu.Unlock()
		detail(c, http.StatusNotFound, "Script not found")
		return
	}
	resp := models.FeedbackResponse{
		Success:           true,
		ScriptID:          id,
		FeedbackProcessed: true,
	}
	if !req.Approved && req.RequestReanalysis {
		rec.script.Status = models.ScriptStatusPendingRevision
		rec.script.ErrorMessage = "Human feedback: " + req.FeedbackText
		resp.Message = "Feedback received. Re-analysis can be triggered manually."
		resp.ActionTaken = "marked_for_revision"
	} else {
		rec.script.Status = models.ScriptStatusNeedsAttention
		if req.Approved {
			rec.script.Status = models.ScriptStatusCompletedWithFeedback
		}
		if req.FeedbackText != "" {
			rec.script.ErrorMessage = strings.TrimSpace(rec.script.ErrorMessage + "\nHuman feedback: " + req.FeedbackText)
		}
		resp.Message = "Feedback recorded successfully"
		resp.ActionTaken = "feedback_recorded"
	}
	rec.script.UpdatedAt = s.timestamp()
	resp.Status = rec.script.Status
	s.mu.Unlock()

	c.JSON(http.StatusOK, resp)
}

func (s *Server) chat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		detail(c, http.StatusUnprocessableEntity, "Message is required")
		return
	}
	script, ok := s.Script(c.Param("id"))
	if !ok {
		detail(c, http.StatusNotFound, "Analyzed script not found")
		return
	}
	c.JSON(http.StatusOK, models.ChatResponse{
		Success:  true,
		Response: chatReply(script, strings.TrimSpace(req.Message)),
	})
}
