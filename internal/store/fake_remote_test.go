package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	apperrors "github.com/Corphon/ScriptBreakdown/internal/errors"
	"github.com/Corphon/ScriptBreakdown/internal/models"
	"github.com/Corphon/ScriptBreakdown/internal/remote"
	"github.com/Corphon/ScriptBreakdown/internal/storage"
	"github.com/Corphon/ScriptBreakdown/internal/utils"
)

// fakeRemote is an in-memory Remote. Errors are keyed by method name;
// deleteErrs is keyed by id.
type fakeRemote struct {
	mu sync.Mutex

	calls      map[string]int
	errs       map[string]error
	deleteErrs map[string]error

	auth      *models.AuthResponse
	user      *models.User
	projects  []*models.Project
	details   map[string]*models.ScriptDetail
	list      *models.ScriptListResponse
	lastQuery remote.ListQuery
	analysis  *models.AnalysisResult
	save      *models.SaveResponse
	chat      *models.ChatResponse
	feedback  *models.FeedbackResponse
	created   *models.CreateProjectResult
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		calls:      map[string]int{},
		errs:       map[string]error{},
		deleteErrs: map[string]error{},
		details:    map[string]*models.ScriptDetail{},
	}
}

func (f *fakeRemote) record(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	return f.errs[method]
}

func (f *fakeRemote) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeRemote) fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[method] = err
}

func (f *fakeRemote) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	if err := f.record("Login"); err != nil {
		return nil, err
	}
	return f.auth, nil
}

func (f *fakeRemote) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	if err := f.record("Register"); err != nil {
		return nil, err
	}
	return f.auth, nil
}

func (f *fakeRemote) Logout(ctx context.Context) error {
	return f.record("Logout")
}

func (f *fakeRemote) Profile(ctx context.Context) (*models.User, error) {
	if err := f.record("Profile"); err != nil {
		return nil, err
	}
	return f.user, nil
}

func (f *fakeRemote) Health(ctx context.Context) (*models.HealthCheck, error) {
	if err := f.record("Health"); err != nil {
		return nil, err
	}
	return &models.HealthCheck{Status: "healthy"}, nil
}

func (f *fakeRemote) ListProjects(ctx context.Context) ([]*models.Project, error) {
	if err := f.record("ListProjects"); err != nil {
		return nil, err
	}
	out := make([]*models.Project, len(f.projects))
	for i, p := range f.projects {
		out[i] = p.Clone()
	}
	return out, nil
}

func (f *fakeRemote) CreateProject(ctx context.Context, req models.CreateProjectRequest) (*models.Project, error) {
	if err := f.record("CreateProject"); err != nil {
		return nil, err
	}
	return &models.Project{ID: "new-1", Title: req.Title, Description: req.Description, Status: models.StatusActive}, nil
}

func (f *fakeRemote) UpdateProject(ctx context.Context, id string, fields map[string]any) (*models.Project, error) {
	if err := f.record("UpdateProject"); err != nil {
		return nil, err
	}
	p := &models.Project{ID: id}
	if t, ok := fields["title"].(string); ok {
		p.Title = t
	}
	if st, ok := fields["status"].(string); ok {
		p.Status = st
	}
	return p, nil
}

func (f *fakeRemote) DeleteProject(ctx context.Context, id string) error {
	if err := f.record("DeleteProject"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteErrs[id]
}

func (f *fakeRemote) ProjectAnalysis(ctx context.Context, id string) (json.RawMessage, error) {
	if err := f.record("ProjectAnalysis"); err != nil {
		return nil, err
	}
	return json.RawMessage(`{"project_id":"` + id + `"}`), nil
}

func (f *fakeRemote) CreateProjectWithScript(ctx context.Context, title, description string, file models.ScriptFile) (*models.CreateProjectResult, error) {
	if err := f.record("CreateProjectWithScript"); err != nil {
		return nil, err
	}
	return f.created, nil
}

func (f *fakeRemote) AnalyzeScript(ctx context.Context, file models.ScriptFile) (*models.AnalysisResult, error) {
	if err := f.record("AnalyzeScript"); err != nil {
		return nil, err
	}
	return f.analysis, nil
}

func (f *fakeRemote) SaveAnalysis(ctx context.Context, req models.SaveRequest) (*models.SaveResponse, error) {
	if err := f.record("SaveAnalysis"); err != nil {
		return nil, err
	}
	return f.save, nil
}

func (f *fakeRemote) ListScripts(ctx context.Context, q remote.ListQuery) (*models.ScriptListResponse, error) {
	if err := f.record("ListScripts"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = q
	return f.list, nil
}

func (f *fakeRemote) ScriptsAwaitingFeedback(ctx context.Context, skip, limit int) (*models.ScriptListResponse, error) {
	if err := f.record("ScriptsAwaitingFeedback"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = remote.ListQuery{Skip: skip, Limit: limit}
	return f.list, nil
}

func (f *fakeRemote) GetScript(ctx context.Context, id string) (*models.ScriptDetail, error) {
	if err := f.record("GetScript"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.details[id]
	if !ok {
		return nil, apperrors.NewRemoteError(404, "Analyzed script not found")
	}
	c := *d
	return &c, nil
}

func (f *fakeRemote) DeleteScript(ctx context.Context, id string) error {
	if err := f.record("DeleteScript"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteErrs[id]
}

func (f *fakeRemote) ProvideFeedback(ctx context.Context, id string, req models.FeedbackRequest) (*models.FeedbackResponse, error) {
	if err := f.record("ProvideFeedback"); err != nil {
		return nil, err
	}
	return f.feedback, nil
}

func (f *fakeRemote) Chat(ctx context.Context, id, message string) (*models.ChatResponse, error) {
	if err := f.record("Chat"); err != nil {
		return nil, err
	}
	return f.chat, nil
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// newTestStore builds a Store over a fake remote and in-memory state
func newTestStore(f *fakeRemote, state *storage.MemoryStorage) (*Store, *utils.MetricsCollector) {
	if state == nil {
		state = storage.NewMemoryStorage()
	}
	collector := utils.NewMetricsCollector()
	s := New(Options{
		State:   state,
		Client:  f,
		Logger:  utils.NewNopLogger(),
		Metrics: utils.NewAPIMetricsWith(collector, utils.NewNopLogger()),
		Now:     func() time.Time { return fixedNow },
	})
	return s, collector
}

func unauthorized() error {
	e := apperrors.NewUnauthorizedError(remote.MsgAuthRequired, nil)
	e.Status = 401
	return e
}

func networkDown() error {
	return apperrors.NewNetworkError(remote.MsgNetworkError, context.DeadlineExceeded)
}
