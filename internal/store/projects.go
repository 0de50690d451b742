// internal/store/projects.go
package store

import (
	"context"
	"encoding/json"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Corphon/ScriptBreakdown/internal/demo"
	apperrors "github.com/Corphon/ScriptBreakdown/internal/errors"
	"github.com/Corphon/ScriptBreakdown/internal/models"
	"github.com/Corphon/ScriptBreakdown/internal/storage"
)

// batchLimit bounds concurrent remote calls of a batch operation
const batchLimit = 8

const msgProjectNotFound = "Project not found"

// restoreSelection loads the persisted selection and current project
func (s *Store) restoreSelection() {
	id, _ := s.state.Get(storage.KeySelectedProjectID)
	title, _ := s.state.Get(storage.KeySelectedProjectTitle)

	var current *models.Project
	if data, ok := s.state.Get(storage.KeyCurrentProject); ok && data != "" {
		var p models.Project
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			s.logger.Warn("invalid persisted current project", map[string]interface{}{"error": err})
			s.forget(storage.KeyCurrentProject)
		} else {
			current = &p
		}
	}

	s.mu.Lock()
	s.selectedID = id
	s.selectedTitle = title
	s.current = current
	s.mu.Unlock()
}

// Projects returns a snapshot of the project directory
func (s *Store) Projects() []*models.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Project, len(s.projects))
	for i, p := range s.projects {
		out[i] = p.Clone()
	}
	return out
}

// Project returns the project with id, or nil
func (s *Store) Project(id string) *models.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.projects[i].Clone()
	}
	return nil
}

func (s *Store) indexLocked(id string) int {
	for i, p := range s.projects {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) titleIndexLocked(title string) int {
	for i, p := range s.projects {
		if p.Title == title {
			return i
		}
	}
	return -1
}

// insertFrontLocked puts p first, replacing any entry with the same id
func (s *Store) insertFrontLocked(p *models.Project) {
	if i := s.indexLocked(p.ID); i >= 0 {
		s.projects = append(s.projects[:i], s.projects[i+1:]...)
	}
	s.projects = append([]*models.Project{p}, s.projects...)
}

// FetchProjects re-seeds the demo projects and merges the remote list.
// Remote failures are swallowed: the demo dataset stays usable and no
// error is surfaced, except that a rejected session still ends it.
func (s *Store) FetchProjects(ctx context.Context) {
	done := s.begin()
	defer done()

	s.seed(nil)

	remoteProjects, err := s.client.ListProjects(ctx)
	if err != nil {
		if apperrors.IsUnauthorizedError(err) {
			s.fail("fetch_projects", err)
			s.seed(nil)
		} else {
			s.logger.Info("remote projects unavailable, using demo data only", map[string]interface{}{
				"error": err,
			})
			s.setError("")
		}
		s.resolveSelection()
		return
	}

	s.seed(remoteProjects)
	s.resolveSelection()
}

// seed rebuilds the directory: demo projects, then locally synthesized
// api- projects, then remote projects whose id and title are both unused.
func (s *Store) seed(remoteProjects []*models.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := demo.Projects()
	ids := make(map[string]bool, len(next))
	titles := make(map[string]bool, len(next))
	for _, p := range next {
		ids[p.ID] = true
		titles[p.Title] = true
	}

	for _, p := range s.projects {
		if p.IsAPIScript() && strings.HasPrefix(p.ID, models.APIIDPrefix) && !ids[p.ID] {
			next = append(next, p)
			ids[p.ID] = true
			titles[p.Title] = true
		}
	}

	skipped := 0
	for _, p := range remoteProjects {
		if p == nil || p.ID == "" || ids[p.ID] || titles[p.Title] {
			skipped++
			continue
		}
		next = append(next, p.Clone())
		ids[p.ID] = true
		titles[p.Title] = true
	}
	if skipped > 0 {
		s.logger.Debug("skipped colliding remote projects", map[string]interface{}{"count": skipped})
	}

	s.projects = next
}

// resolveSelection resolves a persisted selection against the loaded
// directory. An unresolved id degrades to no selection in memory but stays
// persisted; with nothing selected the first demo project is selected
// without persisting it and becomes the current project.
func (s *Store) resolveSelection() {
	s.mu.Lock()
	var persistTitle string
	if s.selectedID != "" {
		if i := s.indexLocked(s.selectedID); i >= 0 {
			p := s.projects[i]
			if s.selectedTitle != p.Title {
				persistTitle = p.Title
			}
			s.selectedTitle = p.Title
			s.current = p.Clone()
		} else {
			s.selectedID = ""
			s.selectedTitle = ""
		}
	}
	if s.current != nil && s.indexLocked(s.current.ID) < 0 {
		s.current = nil
	}
	if s.selectedID == "" {
		for _, p := range s.projects {
			if p.IsDemo() {
				s.selectedID = p.ID
				s.selectedTitle = p.Title
				s.current = p.Clone()
				break
			}
		}
	}
	s.mu.Unlock()

	if persistTitle != "" {
		s.persist(storage.KeySelectedProjectTitle, persistTitle)
	}
}

// CreateProject creates a project remotely, puts it first and selects it.
// The error is returned as well as recorded.
func (s *Store) CreateProject(ctx context.Context, req models.CreateProjectRequest) (*models.Project, error) {
	done := s.begin()
	defer done()

	p, err := s.client.CreateProject(ctx, req)
	if err != nil {
		s.fail("create_project", err)
		return nil, err
	}
	if p == nil || p.ID == "" {
		err := apperrors.NewProcessingError("Project creation failed", nil)
		s.fail("create_project", err)
		return nil, err
	}

	s.mu.Lock()
	s.insertFrontLocked(p.Clone())
	s.mu.Unlock()
	s.SetSelectedProject(p.ID)
	return p, nil
}

// CreateProjectWithScript uploads a script together with the new project
func (s *Store) CreateProjectWithScript(ctx context.Context, title, description string, file models.ScriptFile) (*models.CreateProjectResult, error) {
	done := s.begin()
	defer done()

	res, err := s.client.CreateProjectWithScript(ctx, title, description, file)
	if err != nil {
		s.fail("create_project_with_script", err)
		return nil, err
	}

	if res.Success && res.Project != nil {
		s.mu.Lock()
		s.insertFrontLocked(res.Project.Clone())
		if res.AnalysisData != nil {
			a := *res.AnalysisData
			s.currentScript = nil
			s.currentAnalysis = &a
		}
		s.mu.Unlock()
		s.SetSelectedProject(res.Project.ID)
	}
	return res, nil
}

// UpdateProject sends a partial update and replaces the local entry in
// place with the server's version.
func (s *Store) UpdateProject(ctx context.Context, id string, fields map[string]any) bool {
	done := s.begin()
	defer done()

	p, err := s.client.UpdateProject(ctx, id, fields)
	if err != nil {
		s.fail("update_project", err)
		return false
	}
	if p == nil {
		s.fail("update_project", apperrors.NewProcessingError("Project update failed", nil))
		return false
	}
	if p.ID == "" {
		p.ID = id
	}

	s.mu.Lock()
	if i := s.indexLocked(id); i >= 0 {
		s.projects[i] = p.Clone()
	}
	var snapshot []byte
	if s.current != nil && s.current.ID == id {
		s.current = p.Clone()
		snapshot, _ = json.Marshal(s.current)
	}
	var title string
	if s.selectedID == id && s.selectedTitle != p.Title {
		s.selectedTitle = p.Title
		title = p.Title
	}
	s.mu.Unlock()

	if snapshot != nil {
		s.persist(storage.KeyCurrentProject, string(snapshot))
	}
	if title != "" {
		s.persist(storage.KeySelectedProjectTitle, title)
	}
	return true
}

// DeleteProject removes a project. Demo projects and locally synthesized
// script projects only exist here and are removed without a remote call.
func (s *Store) DeleteProject(ctx context.Context, id string) bool {
	done := s.begin()
	defer done()

	if err := s.deleteProject(ctx, id); err != nil {
		s.fail("delete_project", err)
		return false
	}
	return true
}

// DeleteProjects deletes concurrently and reports each id separately
func (s *Store) DeleteProjects(ctx context.Context, ids []string) []BatchResult {
	done := s.begin()
	defer done()

	results := make([]BatchResult, len(ids))
	var g errgroup.Group
	g.SetLimit(batchLimit)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			err := s.deleteProject(ctx, id)
			if err != nil {
				s.fail("delete_project", err)
			}
			results[i] = batchResult(id, err)
			return nil
		})
	}
	g.Wait()
	return results
}

func (s *Store) deleteProject(ctx context.Context, id string) error {
	s.mu.RLock()
	i := s.indexLocked(id)
	local := false
	if i >= 0 {
		local = s.projects[i].IsDemo() || s.projects[i].IsAPIScript()
	} else if strings.HasPrefix(id, models.DemoIDPrefix) || strings.HasPrefix(id, models.APIIDPrefix) {
		s.mu.RUnlock()
		return apperrors.NewNotFoundError(msgProjectNotFound, nil)
	}
	s.mu.RUnlock()

	if !local {
		if err := s.client.DeleteProject(ctx, id); err != nil {
			return err
		}
	}
	s.removeProject(id)
	return nil
}

func (s *Store) removeProject(id string) {
	s.mu.Lock()
	if i := s.indexLocked(id); i >= 0 {
		s.projects = append(s.projects[:i], s.projects[i+1:]...)
	}
	clearCurrent := s.current != nil && s.current.ID == id
	if clearCurrent {
		s.current = nil
	}
	clearSelected := s.selectedID == id
	if clearSelected {
		s.selectedID = ""
		s.selectedTitle = ""
	}
	s.mu.Unlock()

	if clearCurrent {
		s.forget(storage.KeyCurrentProject)
	}
	if clearSelected {
		s.forget(storage.KeySelectedProjectID, storage.KeySelectedProjectTitle)
	}
}

// SetSelectedProject selects by id, then by title, and persists the
// selection. When nothing matches but the input carries a demo- or api-
// prefix, the bare id is persisted so a later FetchProjects can resolve it.
func (s *Store) SetSelectedProject(idOrTitle string) bool {
	s.mu.Lock()
	i := s.indexLocked(idOrTitle)
	if i < 0 {
		i = s.titleIndexLocked(idOrTitle)
	}

	if i >= 0 {
		p := s.projects[i]
		s.selectedID = p.ID
		s.selectedTitle = p.Title
		s.current = p.Clone()
		id, title := p.ID, p.Title
		s.mu.Unlock()

		s.persist(storage.KeySelectedProjectID, id)
		s.persist(storage.KeySelectedProjectTitle, title)
		s.publish(EventProjectSelected, id, title, "")
		return true
	}

	deferred := strings.HasPrefix(idOrTitle, models.APIIDPrefix) || strings.HasPrefix(idOrTitle, models.DemoIDPrefix)
	if deferred {
		s.selectedID = idOrTitle
		s.selectedTitle = ""
	}
	s.mu.Unlock()

	s.logger.Warn("project not found for selection", map[string]interface{}{
		"project":  idOrTitle,
		"deferred": deferred,
	})
	if deferred {
		s.persist(storage.KeySelectedProjectID, idOrTitle)
		s.forget(storage.KeySelectedProjectTitle)
	}
	return false
}

// SelectedProject returns the selected id and title, empty when none
func (s *Store) SelectedProject() (id, title string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedID, s.selectedTitle
}

// CurrentProject returns the current project, or nil
func (s *Store) CurrentProject() *models.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// SetCurrentProject replaces the current project and its persisted
// snapshot; nil removes both.
func (s *Store) SetCurrentProject(p *models.Project) {
	s.mu.Lock()
	s.current = p.Clone()
	s.mu.Unlock()

	if p == nil {
		s.forget(storage.KeyCurrentProject)
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		s.logger.Error("encode current project failed", map[string]interface{}{"error": err})
		return
	}
	s.persist(storage.KeyCurrentProject, string(data))
}

// UpdateProjectStatus changes a status locally. An unknown api-<scriptID>
// id whose script is listed gets a project synthesized for it.
func (s *Store) UpdateProjectStatus(id, status string) bool {
	s.mu.Lock()
	if i := s.indexLocked(id); i >= 0 {
		s.projects[i].Status = status
		if s.current != nil && s.current.ID == id {
			s.current.Status = status
		}
		s.mu.Unlock()
		return true
	}

	if scriptID, ok := strings.CutPrefix(id, models.APIIDPrefix); ok {
		for _, sc := range s.scripts {
			if sc.ID != scriptID {
				continue
			}
			p := s.projectFromScriptLocked(sc, status)
			s.projects = append([]*models.Project{p}, s.projects...)
			s.mu.Unlock()
			s.logger.Info("synthesized project for script", map[string]interface{}{
				"project_id": id,
				"status":     status,
			})
			return true
		}
	}
	s.mu.Unlock()

	s.metrics.RecordStoreError("update_project_status")
	s.setError(msgProjectNotFound)
	return false
}

func (s *Store) projectFromScriptLocked(sc models.Script, status string) *models.Project {
	title := sc.Filename
	if title == "" {
		title = "Untitled Script"
	}
	analysis, _ := json.Marshal(sc)
	return &models.Project{
		ID:                    models.APIIDPrefix + sc.ID,
		Title:                 title,
		Description:           "Script analysis project for " + sc.Filename,
		Status:                status,
		UserID:                s.userIDLocked(),
		BudgetTotal:           models.Float64(sc.EstimatedBudget),
		EstimatedDurationDays: 30,
		ScriptFilename:        sc.Filename,
		CreatedAt:             sc.CreatedAt,
		UpdatedAt:             s.timestamp(),
		ScriptsCount:          1,
		Type:                  models.ProjectTypeAPIScript,
		ScriptID:              sc.ID,
		AnalysisData:          analysis,
	}
}

func (s *Store) userIDLocked() string {
	if s.session.User != nil && s.session.User.ID != "" {
		return s.session.User.ID
	}
	return "current-user"
}

// GetProjectAnalysis returns the remote analysis of a project, or nil
func (s *Store) GetProjectAnalysis(ctx context.Context, id string) json.RawMessage {
	done := s.begin()
	defer done()

	data, err := s.client.ProjectAnalysis(ctx, id)
	if err != nil {
		s.fail("project_analysis", err)
		return nil
	}
	return data
}
