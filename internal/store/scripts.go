// internal/store/scripts.go
package store

import (
	"context"
	"encoding/json"
	"math"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/Corphon/ScriptBreakdown/internal/errors"
	"github.com/Corphon/ScriptBreakdown/internal/models"
	"github.com/Corphon/ScriptBreakdown/internal/remote"
)

// Script list defaults
const (
	DefaultLimit          = 100
	DefaultOrderBy        = "created_at"
	DefaultOrderDirection = "desc"
)

// ScriptQuery selects a page of the script list. Zero values take the
// defaults; search and status filters come from the Store.
type ScriptQuery struct {
	Page           int
	Limit          int
	OrderBy        string
	OrderDirection string
}

func (q ScriptQuery) withDefaults() ScriptQuery {
	if q.Page < 0 {
		q.Page = 0
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.OrderBy == "" {
		q.OrderBy = DefaultOrderBy
	}
	if q.OrderDirection == "" {
		q.OrderDirection = DefaultOrderDirection
	}
	return q
}

// Scripts returns a copy of the listed scripts
func (s *Store) Scripts() []models.Script {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Script(nil), s.scripts...)
}

// Pagination returns the metadata of the last list fetch
func (s *Store) Pagination() models.Pagination {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pagination
}

// Filters returns the active search term and status filter
func (s *Store) Filters() (search, status string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchTerm, s.statusFilter
}

// CurrentScript returns the current script and its analysis; either may be nil
func (s *Store) CurrentScript() (*models.Script, *models.AnalysisData) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sc *models.Script
	if s.currentScript != nil {
		c := *s.currentScript
		sc = &c
	}
	var a *models.AnalysisData
	if s.currentAnalysis != nil {
		c := *s.currentAnalysis
		a = &c
	}
	return sc, a
}

// LastAnalysis returns the result of the last AnalyzeScript call
func (s *Store) LastAnalysis() *models.AnalysisResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAnalysis
}

// Statistics summarizes the listed scripts. Total is the server total.
func (s *Store) Statistics() models.Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := models.Statistics{Total: s.pagination.Total}
	for i := range s.scripts {
		switch {
		case s.scripts[i].Status == models.ScriptStatusCompleted:
			st.Completed++
		case s.scripts[i].Status == models.ScriptStatusError:
			st.Errors++
		}
		if s.scripts[i].IsPending() {
			st.Pending++
		}
	}
	if st.Total > 0 {
		st.SuccessRate = int(math.Round(float64(st.Completed) / float64(st.Total) * 100))
	}
	return st
}

// CheckHealth queries the remote health endpoint
func (s *Store) CheckHealth(ctx context.Context) *models.HealthCheck {
	h, err := s.client.Health(ctx)
	if err != nil {
		s.fail("health", err)
		return nil
	}
	return h
}

// Initialize checks the service and loads the first page of scripts
func (s *Store) Initialize(ctx context.Context) {
	s.CheckHealth(ctx)
	s.FetchScripts(ctx, ScriptQuery{})
}

// AnalyzeScript uploads a file for analysis. The project directory is not
// touched.
func (s *Store) AnalyzeScript(ctx context.Context, file models.ScriptFile) *models.AnalysisResult {
	done := s.begin()
	defer done()

	res, err := s.client.AnalyzeScript(ctx, file)
	if err != nil {
		s.fail("analyze_script", err)
		return nil
	}

	s.mu.Lock()
	s.lastAnalysis = res
	s.mu.Unlock()
	return res
}

// SaveAnalysis persists an analysis remotely and refreshes the script list
func (s *Store) SaveAnalysis(ctx context.Context, result *models.AnalysisResult) *models.SaveResponse {
	done := s.begin()
	defer done()

	if result == nil {
		s.fail("save_analysis", apperrors.NewValidationError("no analysis to save", nil))
		return nil
	}
	resp, err := s.client.SaveAnalysis(ctx, result.SaveRequest)
	if err != nil {
		s.fail("save_analysis", err)
		return nil
	}

	s.FetchScripts(ctx, ScriptQuery{})
	return resp
}

// AnalyzeAndSave analyzes then saves a file. When both succeed an ACTIVE
// api-<id> project is synthesized for the saved script and selected.
func (s *Store) AnalyzeAndSave(ctx context.Context, file models.ScriptFile) *models.SaveResponse {
	res := s.AnalyzeScript(ctx, file)
	if res == nil || !res.Success {
		return nil
	}
	saved := s.SaveAnalysis(ctx, res)
	if saved == nil || !saved.Success {
		return saved
	}

	var analysis json.RawMessage
	if res.Data != nil {
		analysis, _ = json.Marshal(res.Data)
	}
	now := s.timestamp()

	s.mu.Lock()
	p := &models.Project{
		ID:                    models.APIIDPrefix + saved.DatabaseID,
		Title:                 strings.TrimSuffix(file.Name, path.Ext(file.Name)),
		Description:           "Script analysis project for " + file.Name,
		Status:                models.StatusActive,
		UserID:                s.userIDLocked(),
		BudgetTotal:           models.Float64(res.TotalCost()),
		EstimatedDurationDays: 30,
		ScriptFilename:        file.Name,
		CreatedAt:             now,
		UpdatedAt:             now,
		ScriptsCount:          1,
		Type:                  models.ProjectTypeAPIScript,
		ScriptID:              saved.DatabaseID,
		AnalysisData:          analysis,
	}
	s.insertFrontLocked(p)
	s.mu.Unlock()

	s.logger.Info("created project for uploaded script", map[string]interface{}{
		"project_id": p.ID,
		"title":      p.Title,
	})
	s.SetSelectedProject(p.ID)
	return saved
}

// FetchScripts replaces the script list and pagination with one page
func (s *Store) FetchScripts(ctx context.Context, q ScriptQuery) bool {
	done := s.begin()
	defer done()

	q = q.withDefaults()
	search, status := s.Filters()
	resp, err := s.client.ListScripts(ctx, remote.ListQuery{
		Skip:           q.Page * q.Limit,
		Limit:          q.Limit,
		OrderBy:        q.OrderBy,
		OrderDirection: q.OrderDirection,
		StatusFilter:   status,
		Search:         search,
	})
	if err != nil {
		s.fail("fetch_scripts", err)
		return false
	}
	s.replaceList(resp)
	return true
}

// ScriptsAwaitingFeedback replaces the list with scripts awaiting review
func (s *Store) ScriptsAwaitingFeedback(ctx context.Context, page, limit int) bool {
	done := s.begin()
	defer done()

	q := ScriptQuery{Page: page, Limit: limit}.withDefaults()
	resp, err := s.client.ScriptsAwaitingFeedback(ctx, q.Page*q.Limit, q.Limit)
	if err != nil {
		s.fail("scripts_awaiting_feedback", err)
		return false
	}
	s.replaceList(resp)
	return true
}

func (s *Store) replaceList(resp *models.ScriptListResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if resp == nil {
		s.scripts = nil
		s.pagination = models.DefaultPagination()
		return
	}
	s.scripts = append([]models.Script(nil), resp.Data...)
	s.pagination = resp.Pagination
}

// SearchScripts sets the search term and refetches the first page
func (s *Store) SearchScripts(ctx context.Context, term string) bool {
	s.mu.Lock()
	s.searchTerm = term
	s.mu.Unlock()
	return s.FetchScripts(ctx, ScriptQuery{})
}

// FilterByStatus sets the status filter and refetches the first page
func (s *Store) FilterByStatus(ctx context.Context, status string) bool {
	s.mu.Lock()
	s.statusFilter = status
	s.mu.Unlock()
	return s.FetchScripts(ctx, ScriptQuery{})
}

// SetFilters replaces the search term and status filter without fetching
func (s *Store) SetFilters(search, status string) {
	s.mu.Lock()
	s.searchTerm = search
	s.statusFilter = status
	s.mu.Unlock()
}

// ClearSearch drops the search term and status filter
func (s *Store) ClearSearch() {
	s.mu.Lock()
	s.searchTerm = ""
	s.statusFilter = ""
	s.mu.Unlock()
}

func (s *Store) ResetPagination() {
	s.mu.Lock()
	s.pagination = models.DefaultPagination()
	s.mu.Unlock()
}

// LoadMore fetches the page after the current one when the server
// reported more. Like every list fetch it replaces the list.
func (s *Store) LoadMore(ctx context.Context) bool {
	p := s.Pagination()
	if !p.HasMore {
		return false
	}
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	return s.FetchScripts(ctx, ScriptQuery{Page: p.Skip/limit + 1, Limit: limit})
}

// FetchScript loads one script and makes it current, replacing the
// previous script and analysis.
func (s *Store) FetchScript(ctx context.Context, id string) bool {
	done := s.begin()
	defer done()

	if err := s.loadScript(ctx, id); err != nil {
		s.fail("fetch_script", err)
		return false
	}
	return true
}

func (s *Store) loadScript(ctx context.Context, id string) error {
	d, err := s.client.GetScript(ctx, id)
	if err != nil {
		return err
	}
	sc := d.Script
	a := d.Analysis()

	s.mu.Lock()
	s.currentScript = &sc
	s.currentAnalysis = a
	s.mu.Unlock()
	return nil
}

// RefreshCurrentScript reloads the current script, if any
func (s *Store) RefreshCurrentScript(ctx context.Context) bool {
	sc, _ := s.CurrentScript()
	if sc == nil || sc.ID == "" {
		return false
	}
	return s.FetchScript(ctx, sc.ID)
}

func (s *Store) ClearCurrentScript() {
	s.mu.Lock()
	s.currentScript = nil
	s.currentAnalysis = nil
	s.mu.Unlock()
}

// DeleteScript deletes remotely, then drops the script from the list,
// decrements the total and clears the current script if it matched.
func (s *Store) DeleteScript(ctx context.Context, id string) bool {
	done := s.begin()
	defer done()

	if err := s.deleteScript(ctx, id); err != nil {
		s.fail("delete_script", err)
		return false
	}
	return true
}

// DeleteScripts deletes concurrently and reports each id separately
func (s *Store) DeleteScripts(ctx context.Context, ids []string) []BatchResult {
	done := s.begin()
	defer done()

	results := make([]BatchResult, len(ids))
	var g errgroup.Group
	g.SetLimit(batchLimit)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			err := s.deleteScript(ctx, id)
			if err != nil {
				s.fail("delete_script", err)
			}
			results[i] = batchResult(id, err)
			return nil
		})
	}
	g.Wait()
	return results
}

func (s *Store) deleteScript(ctx context.Context, id string) error {
	if err := s.client.DeleteScript(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.scripts[:0]
	for _, sc := range s.scripts {
		if sc.ID != id {
			kept = append(kept, sc)
		}
	}
	s.scripts = kept
	if s.pagination.Total > 0 {
		s.pagination.Total--
	}
	if s.currentScript != nil && s.currentScript.ID == id {
		s.currentScript = nil
		s.currentAnalysis = nil
	}
	return nil
}

// ProvideFeedback submits a review and reloads the script to pick up the
// server-side status change.
func (s *Store) ProvideFeedback(ctx context.Context, id, text string, approved, reanalysis bool) *models.FeedbackResponse {
	done := s.begin()
	defer done()

	resp, err := s.client.ProvideFeedback(ctx, id, models.FeedbackRequest{
		FeedbackText:      text,
		Approved:          approved,
		RequestReanalysis: reanalysis,
	})
	if err != nil {
		s.fail("provide_feedback", err)
		return nil
	}

	if err := s.loadScript(ctx, id); err != nil {
		s.fail("fetch_script", err)
	}
	return resp
}

// ChatWithScript asks the assistant about a script. ok is false when the
// call failed or the reply was empty.
func (s *Store) ChatWithScript(ctx context.Context, id, message string) (string, bool) {
	done := s.begin()
	defer done()

	resp, err := s.client.Chat(ctx, id, message)
	if err != nil {
		s.fail("chat", err)
		return "", false
	}
	if resp == nil || !resp.Success || resp.Response == "" {
		s.fail("chat", apperrors.NewProcessingError("Invalid response from chat service", nil))
		return "", false
	}
	return resp.Response, true
}

// ScriptAnalysisData returns the standardized analysis of a script,
// loading it first unless it is already current. It is nil when the
// analysis has no scene list.
func (s *Store) ScriptAnalysisData(ctx context.Context, id string) *models.ScriptAnalysis {
	done := s.begin()
	defer done()

	out, err := s.scriptAnalysis(ctx, id)
	if err != nil {
		s.fail("script_analysis", err)
		return nil
	}
	return out
}

func (s *Store) scriptAnalysis(ctx context.Context, id string) (*models.ScriptAnalysis, error) {
	a, err := s.analysisFor(ctx, id)
	if err != nil {
		return nil, err
	}
	return standardize(a), nil
}

// analysisFor returns the analysis of script id, loading the script unless
// it is already current.
func (s *Store) analysisFor(ctx context.Context, id string) (*models.AnalysisData, error) {
	s.mu.RLock()
	loaded := s.currentScript != nil && s.currentScript.ID == id && s.currentAnalysis != nil
	s.mu.RUnlock()

	if !loaded {
		if err := s.loadScript(ctx, id); err != nil {
			return nil, err
		}
	}
	_, a := s.CurrentScript()
	return a, nil
}

func standardize(a *models.AnalysisData) *models.ScriptAnalysis {
	scenes, ok := a.APIScenes()
	if !ok {
		return nil
	}
	return &models.ScriptAnalysis{
		Scenes:                models.StandardizeAPIScenes(scenes),
		CastBreakdown:         a.CastBreakdown,
		CostBreakdown:         a.CostBreakdown,
		LocationBreakdown:     a.LocationBreakdown,
		PropsBreakdown:        a.PropsBreakdown,
		ComprehensiveAnalysis: a,
	}
}
