package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/ScriptBreakdown/internal/errors"
	"github.com/Corphon/ScriptBreakdown/internal/models"
	"github.com/Corphon/ScriptBreakdown/internal/storage"
)

func ids(projects []*models.Project) []string {
	out := make([]string, len(projects))
	for i, p := range projects {
		out[i] = p.ID
	}
	return out
}

func remoteProjects() []*models.Project {
	return []*models.Project{
		{ID: "x1", Title: "Space Horizon"},
		{ID: "demo-2", Title: "Not A Demo"},
		{ID: "p1", Title: "Remote One"},
		{ID: "p2", Title: "Remote Two"},
		{ID: "p3", Title: "Remote One"},
	}
}

func TestFetchProjectsWithFailingRemote(t *testing.T) {
	f := newFakeRemote()
	f.fail("ListProjects", networkDown())
	state := storage.NewMemoryStorage()
	s, _ := newTestStore(f, state)

	s.FetchProjects(context.Background())

	assert.Equal(t, []string{"demo-1", "demo-2", "demo-3", "demo-4"}, ids(s.Projects()))
	assert.Empty(t, s.LastError())
	assert.False(t, s.Loading())

	id, title := s.SelectedProject()
	assert.Equal(t, "demo-1", id)
	assert.Equal(t, "Penjaga Akhir Zaman", title)
	_, persisted := state.Get(storage.KeySelectedProjectID)
	assert.False(t, persisted)
}

func TestFetchProjectsMergesWithoutCollisions(t *testing.T) {
	f := newFakeRemote()
	f.projects = remoteProjects()
	s, _ := newTestStore(f, nil)

	s.FetchProjects(context.Background())
	assert.Equal(t, []string{"demo-1", "demo-2", "demo-3", "demo-4", "p1", "p2"}, ids(s.Projects()))

	// re-seeding is idempotent
	s.FetchProjects(context.Background())
	assert.Len(t, s.Projects(), 6)
}

func TestFetchProjectsUnauthorized(t *testing.T) {
	state := storage.NewMemoryStorage()
	require.NoError(t, state.Set(storage.KeyAccessToken, "T"))
	require.NoError(t, state.Set(storage.KeyUserData, userJSON))
	require.NoError(t, state.Set(storage.KeyIsLoggedIn, "true"))

	f := newFakeRemote()
	f.fail("ListProjects", unauthorized())
	s, _ := newTestStore(f, state)

	s.FetchProjects(context.Background())
	assert.False(t, s.IsLoggedIn())
	assert.NotEmpty(t, s.LastError())
	assert.Len(t, s.Projects(), 4)
}

func TestFetchProjectsResolvesPersistedSelection(t *testing.T) {
	state := storage.NewMemoryStorage()
	require.NoError(t, state.Set(storage.KeySelectedProjectID, "p1"))

	f := newFakeRemote()
	f.projects = remoteProjects()
	s, _ := newTestStore(f, state)

	id, title := s.SelectedProject()
	assert.Equal(t, "p1", id)
	assert.Empty(t, title)

	s.FetchProjects(context.Background())
	id, title = s.SelectedProject()
	assert.Equal(t, "p1", id)
	assert.Equal(t, "Remote One", title)
	require.NotNil(t, s.CurrentProject())
	assert.Equal(t, "p1", s.CurrentProject().ID)

	v, _ := state.Get(storage.KeySelectedProjectTitle)
	assert.Equal(t, "Remote One", v)
}

func TestUnresolvedSelectionDegrades(t *testing.T) {
	state := storage.NewMemoryStorage()
	require.NoError(t, state.Set(storage.KeySelectedProjectID, "api-77"))

	f := newFakeRemote()
	f.fail("ListProjects", networkDown())
	s, _ := newTestStore(f, state)

	s.FetchProjects(context.Background())
	id, _ := s.SelectedProject()
	assert.Equal(t, "demo-1", id)

	v, _ := state.Get(storage.KeySelectedProjectID)
	assert.Equal(t, "api-77", v)
}

func TestUnresolvedSelectionReplacesStaleCurrent(t *testing.T) {
	state := storage.NewMemoryStorage()
	require.NoError(t, state.Set(storage.KeySelectedProjectID, "api-77"))
	require.NoError(t, state.Set(storage.KeyCurrentProject, `{"id":"api-77","title":"Gone","status":"active"}`))

	f := newFakeRemote()
	f.fail("ListProjects", networkDown())
	s, _ := newTestStore(f, state)
	require.NotNil(t, s.CurrentProject())

	s.FetchProjects(context.Background())
	id, title := s.SelectedProject()
	assert.Equal(t, "demo-1", id)
	assert.Equal(t, "Penjaga Akhir Zaman", title)

	current := s.CurrentProject()
	require.NotNil(t, current)
	assert.Equal(t, id, current.ID)
	assert.Equal(t, title, current.Title)
}

func TestSetSelectedProject(t *testing.T) {
	t.Run("deferred id on empty directory", func(t *testing.T) {
		state := storage.NewMemoryStorage()
		s, _ := newTestStore(newFakeRemote(), state)

		assert.False(t, s.SetSelectedProject("api-42"))
		v, ok := state.Get(storage.KeySelectedProjectID)
		assert.True(t, ok)
		assert.Equal(t, "api-42", v)
		_, ok = state.Get(storage.KeySelectedProjectTitle)
		assert.False(t, ok)

		id, title := s.SelectedProject()
		assert.Equal(t, "api-42", id)
		assert.Empty(t, title)
	})

	t.Run("unprefixed miss persists nothing", func(t *testing.T) {
		state := storage.NewMemoryStorage()
		s, _ := newTestStore(newFakeRemote(), state)

		assert.False(t, s.SetSelectedProject("whatever"))
		assert.Empty(t, state.Keys())
	})

	t.Run("by id and by title", func(t *testing.T) {
		state := storage.NewMemoryStorage()
		s, _ := newTestStore(newFakeRemote(), state)
		s.FetchProjects(context.Background())
		events, cancel := s.Events().Subscribe()
		defer cancel()

		require.True(t, s.SetSelectedProject("demo-3"))
		id, title := s.SelectedProject()
		assert.Equal(t, "demo-3", id)
		assert.Equal(t, "Tentang Matahari", title)
		v, _ := state.Get(storage.KeySelectedProjectID)
		assert.Equal(t, "demo-3", v)
		v, _ = state.Get(storage.KeySelectedProjectTitle)
		assert.Equal(t, "Tentang Matahari", v)

		ev := <-events
		assert.Equal(t, EventProjectSelected, ev.Kind)
		assert.Equal(t, "demo-3", ev.ProjectID)

		require.True(t, s.SetSelectedProject("Space Horizon"))
		id, _ = s.SelectedProject()
		assert.Equal(t, "demo-4", id)
		assert.Equal(t, "demo-4", s.CurrentProject().ID)
	})
}

func TestCreateProject(t *testing.T) {
	f := newFakeRemote()
	s, _ := newTestStore(f, nil)
	s.FetchProjects(context.Background())

	p, err := s.CreateProject(context.Background(), models.CreateProjectRequest{Title: "Fresh"})
	require.NoError(t, err)
	assert.Equal(t, "new-1", p.ID)
	assert.Equal(t, "new-1", s.Projects()[0].ID)
	id, _ := s.SelectedProject()
	assert.Equal(t, "new-1", id)

	f.fail("CreateProject", apperrors.NewRemoteError(500, "database unavailable"))
	_, err = s.CreateProject(context.Background(), models.CreateProjectRequest{Title: "Again"})
	require.Error(t, err)
	assert.Equal(t, "database unavailable", s.LastError())
	assert.Len(t, s.Projects(), 5)
}

func TestCreateProjectWithScript(t *testing.T) {
	f := newFakeRemote()
	f.created = &models.CreateProjectResult{
		Success:      true,
		Project:      &models.Project{ID: "p-up", Title: "Uploaded"},
		AnalysisData: &models.AnalysisData{CostBreakdown: []byte(`{"total_cast_costs":10}`)},
	}
	s, _ := newTestStore(f, nil)

	res, err := s.CreateProjectWithScript(context.Background(), "Uploaded", "", models.ScriptFile{
		Name: "u.txt", Content: strings.NewReader("INT. ROOM - DAY"),
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "p-up", s.Projects()[0].ID)
	id, _ := s.SelectedProject()
	assert.Equal(t, "p-up", id)

	sc, a := s.CurrentScript()
	assert.Nil(t, sc)
	require.NotNil(t, a)
	assert.True(t, a.HasCostBreakdown())

	f.fail("CreateProjectWithScript", networkDown())
	_, err = s.CreateProjectWithScript(context.Background(), "x", "", models.ScriptFile{Name: "x", Content: strings.NewReader("x")})
	assert.True(t, apperrors.IsNetworkError(err))
}

func TestUpdateProjectInPlace(t *testing.T) {
	f := newFakeRemote()
	f.projects = remoteProjects()
	state := storage.NewMemoryStorage()
	s, _ := newTestStore(f, state)
	s.FetchProjects(context.Background())
	require.True(t, s.SetSelectedProject("p1"))

	require.True(t, s.UpdateProject(context.Background(), "p1", map[string]any{"title": "Renamed"}))

	projects := s.Projects()
	assert.Equal(t, "p1", projects[4].ID)
	assert.Equal(t, "Renamed", projects[4].Title)
	assert.Equal(t, "Renamed", s.CurrentProject().Title)
	_, title := s.SelectedProject()
	assert.Equal(t, "Renamed", title)

	v, _ := state.Get(storage.KeyCurrentProject)
	assert.Contains(t, v, "Renamed")

	f.fail("UpdateProject", apperrors.NewRemoteError(404, "Project not found"))
	assert.False(t, s.UpdateProject(context.Background(), "p1", map[string]any{"title": "Nope"}))
	assert.Equal(t, "Project not found", s.LastError())
}

func TestDeleteProject(t *testing.T) {
	f := newFakeRemote()
	f.projects = remoteProjects()
	s, _ := newTestStore(f, nil)
	s.FetchProjects(context.Background())
	require.True(t, s.SetSelectedProject("p2"))

	require.True(t, s.DeleteProject(context.Background(), "p1"))
	assert.Equal(t, []string{"demo-1", "demo-2", "demo-3", "demo-4", "p2"}, ids(s.Projects()))
	assert.Equal(t, "p2", s.CurrentProject().ID)
	assert.Equal(t, 1, f.count("DeleteProject"))

	require.True(t, s.DeleteProject(context.Background(), "p2"))
	assert.Nil(t, s.CurrentProject())
	id, _ := s.SelectedProject()
	assert.Empty(t, id)

	// demo projects only exist locally
	require.True(t, s.DeleteProject(context.Background(), "demo-1"))
	assert.Equal(t, 2, f.count("DeleteProject"))
	assert.Len(t, s.Projects(), 3)

	assert.False(t, s.DeleteProject(context.Background(), "demo-9"))
	assert.Equal(t, "Project not found", s.LastError())
	assert.Len(t, s.Projects(), 3)
}

func TestDeleteProjectsReportsPerItem(t *testing.T) {
	f := newFakeRemote()
	f.projects = remoteProjects()
	f.deleteErrs["gone"] = apperrors.NewRemoteError(404, "Project not found")
	s, _ := newTestStore(f, nil)
	s.FetchProjects(context.Background())

	results := s.DeleteProjects(context.Background(), []string{"p1", "demo-9", "gone", "demo-2"})
	require.Len(t, results, 4)
	assert.Equal(t, BatchResult{ID: "p1", OK: true}, results[0])
	assert.Equal(t, BatchResult{ID: "demo-9", Error: "Project not found"}, results[1])
	assert.Equal(t, BatchResult{ID: "gone", Error: "Project not found"}, results[2])
	assert.True(t, results[3].OK)

	assert.Equal(t, []string{"demo-1", "demo-3", "demo-4", "p2"}, ids(s.Projects()))
	assert.False(t, s.Loading())
}

func TestUpdateProjectStatus(t *testing.T) {
	f := newFakeRemote()
	f.list = &models.ScriptListResponse{
		Success: true,
		Data: []models.Script{
			{ID: "s7", Filename: "pilot.pdf", Status: "completed", EstimatedBudget: 1200, CreatedAt: "2025-01-01T00:00:00"},
		},
		Pagination: models.Pagination{Total: 1, Limit: 100, Returned: 1},
	}
	s, _ := newTestStore(f, nil)
	s.FetchProjects(context.Background())
	require.True(t, s.FetchScripts(context.Background(), ScriptQuery{}))

	require.True(t, s.UpdateProjectStatus("demo-1", "ARCHIVED"))
	assert.Equal(t, "ARCHIVED", s.Project("demo-1").Status)
	assert.Equal(t, "ARCHIVED", s.CurrentProject().Status)

	require.True(t, s.UpdateProjectStatus("api-s7", "IN_REVIEW"))
	p := s.Projects()[0]
	assert.Equal(t, "api-s7", p.ID)
	assert.Equal(t, "pilot.pdf", p.Title)
	assert.Equal(t, "Script analysis project for pilot.pdf", p.Description)
	assert.Equal(t, "IN_REVIEW", p.Status)
	assert.Equal(t, "current-user", p.UserID)
	assert.Equal(t, 30, p.EstimatedDurationDays)
	assert.Equal(t, "2025-01-01T00:00:00", p.CreatedAt)
	assert.Equal(t, "2025-06-01T12:00:00Z", p.UpdatedAt)
	require.NotNil(t, p.BudgetTotal)
	assert.Equal(t, 1200.0, *p.BudgetTotal)
	assert.True(t, p.IsAPIScript())

	assert.False(t, s.UpdateProjectStatus("api-unknown", "X"))
	assert.Equal(t, "Project not found", s.LastError())
}

func TestCurrentProjectSurvivesRestart(t *testing.T) {
	state := storage.NewMemoryStorage()
	s, _ := newTestStore(newFakeRemote(), state)
	s.SetCurrentProject(&models.Project{ID: "p5", Title: "Five"})

	again, _ := newTestStore(newFakeRemote(), state)
	require.NotNil(t, again.CurrentProject())
	assert.Equal(t, "Five", again.CurrentProject().Title)

	again.SetCurrentProject(nil)
	_, ok := state.Get(storage.KeyCurrentProject)
	assert.False(t, ok)

	require.NoError(t, state.Set(storage.KeyCurrentProject, "{broken"))
	broken, _ := newTestStore(newFakeRemote(), state)
	assert.Nil(t, broken.CurrentProject())
	_, ok = state.Get(storage.KeyCurrentProject)
	assert.False(t, ok)
}

func TestGetProjectAnalysis(t *testing.T) {
	f := newFakeRemote()
	s, _ := newTestStore(f, nil)
	assert.JSONEq(t, `{"project_id":"p1"}`, string(s.GetProjectAnalysis(context.Background(), "p1")))

	f.fail("ProjectAnalysis", apperrors.NewRemoteError(404, "Project not found"))
	assert.Nil(t, s.GetProjectAnalysis(context.Background(), "p1"))
	assert.Equal(t, "Project not found", s.LastError())
}
