// internal/store/store.go
package store

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Corphon/ScriptBreakdown/internal/budget"
	apperrors "github.com/Corphon/ScriptBreakdown/internal/errors"
	"github.com/Corphon/ScriptBreakdown/internal/models"
	"github.com/Corphon/ScriptBreakdown/internal/remote"
	"github.com/Corphon/ScriptBreakdown/internal/storage"
	"github.com/Corphon/ScriptBreakdown/internal/utils"
)

// Remote is the subset of the remote service the Store talks to.
// *remote.Client implements it.
type Remote interface {
	Login(ctx context.Context, email, password string) (*models.AuthResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (*models.User, error)
	Health(ctx context.Context) (*models.HealthCheck, error)

	ListProjects(ctx context.Context) ([]*models.Project, error)
	CreateProject(ctx context.Context, req models.CreateProjectRequest) (*models.Project, error)
	UpdateProject(ctx context.Context, id string, fields map[string]any) (*models.Project, error)
	DeleteProject(ctx context.Context, id string) error
	ProjectAnalysis(ctx context.Context, id string) (json.RawMessage, error)
	CreateProjectWithScript(ctx context.Context, title, description string, file models.ScriptFile) (*models.CreateProjectResult, error)

	AnalyzeScript(ctx context.Context, file models.ScriptFile) (*models.AnalysisResult, error)
	SaveAnalysis(ctx context.Context, req models.SaveRequest) (*models.SaveResponse, error)
	ListScripts(ctx context.Context, q remote.ListQuery) (*models.ScriptListResponse, error)
	ScriptsAwaitingFeedback(ctx context.Context, skip, limit int) (*models.ScriptListResponse, error)
	GetScript(ctx context.Context, id string) (*models.ScriptDetail, error)
	DeleteScript(ctx context.Context, id string) error
	ProvideFeedback(ctx context.Context, id string, req models.FeedbackRequest) (*models.FeedbackResponse, error)
	Chat(ctx context.Context, id, message string) (*models.ChatResponse, error)
}

// tokenSetter is implemented by clients that read the bearer token lazily
type tokenSetter interface {
	SetTokenSource(ts remote.TokenSource)
}

// Options configures a Store
type Options struct {
	State   storage.StateStore
	Client  Remote
	Logger  *utils.Logger
	Metrics *utils.APIMetrics
	Events  *Events
	// Now defaults to time.Now
	Now func() time.Time
	// Currency is the prefix of formatted amounts, default RM
	Currency string
}

// Store is the session and project state manager. It owns the session,
// the project directory and the script analysis cache; every mutation
// goes through its methods. Remote calls are made without holding the
// lock and applied under it, so concurrent operations interleave with
// last write wins per id.
type Store struct {
	state    storage.StateStore
	client   Remote
	logger   *utils.Logger
	metrics  *utils.APIMetrics
	events   *Events
	now      func() time.Time
	currency string

	loading int32

	mu sync.RWMutex

	// auth session
	session models.Session

	// project directory
	projects      []*models.Project
	current       *models.Project
	selectedID    string
	selectedTitle string

	// script analysis cache
	scripts         []models.Script
	currentScript   *models.Script
	currentAnalysis *models.AnalysisData
	lastAnalysis    *models.AnalysisResult
	pagination      models.Pagination
	searchTerm      string
	statusFilter    string

	lastErr string
}

// New creates a Store and restores the persisted session and selection
func New(opts Options) *Store {
	s := &Store{
		state:      opts.State,
		client:     opts.Client,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		events:     opts.Events,
		now:        opts.Now,
		currency:   opts.Currency,
		pagination: models.DefaultPagination(),
	}
	if s.state == nil {
		s.state = storage.NewMemoryStorage()
	}
	if s.logger == nil {
		s.logger = utils.GetLogger()
	}
	if s.metrics == nil {
		s.metrics = utils.NewAPIMetrics()
	}
	if s.events == nil {
		s.events = NewEvents()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.currency == "" {
		s.currency = budget.DefaultCurrency
	}
	if ts, ok := s.client.(tokenSetter); ok {
		ts.SetTokenSource(s.Token)
	}

	s.restoreSession()
	s.restoreSelection()
	return s
}

// Events returns the event bus
func (s *Store) Events() *Events {
	return s.events
}

// Currency returns the prefix used for formatted amounts
func (s *Store) Currency() string {
	return s.currency
}

// Loading reports whether any operation is in flight
func (s *Store) Loading() bool {
	return atomic.LoadInt32(&s.loading) > 0
}

// LastError returns the message of the last failure to settle, or ""
func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// ClearError empties the error slot
func (s *Store) ClearError() {
	s.setError("")
}

// Reload re-reads the session and selection from durable state. Used when
// another process changed the state file. A session that disappeared is
// treated as a logout: dependent state is dropped and EventLoggedOut is
// published.
func (s *Store) Reload() {
	wasLoggedIn := s.IsLoggedIn()
	s.restoreSession()
	if wasLoggedIn && !s.IsLoggedIn() {
		s.resetMemory()
		s.logger.Info("session ended by another process", nil)
		s.publish(EventLoggedOut, "", "", "")
		return
	}

	s.restoreSelection()
	s.mu.RLock()
	loaded := len(s.projects) > 0
	s.mu.RUnlock()
	if loaded {
		s.resolveSelection()
	}
}

// begin marks an operation in flight and clears the error slot
func (s *Store) begin() func() {
	atomic.AddInt32(&s.loading, 1)
	s.metrics.OperationStarted()
	s.setError("")
	return func() {
		atomic.AddInt32(&s.loading, -1)
		s.metrics.OperationFinished()
	}
}

func (s *Store) setError(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
}

// fail records err in the error slot. An authentication failure ends the
// session first.
func (s *Store) fail(op string, err error) {
	s.metrics.RecordStoreError(op)
	if apperrors.IsUnauthorizedError(err) {
		s.expire()
		s.setError(remote.MsgAuthRequired)
		return
	}

	msg := apperrors.Message(err)
	s.logger.Warn("store operation failed", map[string]interface{}{
		"operation": op,
		"error":     err,
	})
	s.setError(msg)
}

// persist writes key; failures are logged and otherwise ignored
func (s *Store) persist(key, value string) {
	if err := s.state.Set(key, value); err != nil {
		s.logger.Error("persist state failed", map[string]interface{}{
			"key":   key,
			"error": err,
		})
	}
}

func (s *Store) forget(keys ...string) {
	if err := s.state.Remove(keys...); err != nil {
		s.logger.Error("remove state failed", map[string]interface{}{
			"keys":  keys,
			"error": err,
		})
	}
}

func (s *Store) publish(kind EventKind, projectID, title, message string) {
	s.events.Publish(Event{
		Kind:      kind,
		ProjectID: projectID,
		Title:     title,
		Message:   message,
		At:        s.now(),
	})
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// BatchResult is the outcome of one item of a batch operation
type BatchResult struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func batchResult(id string, err error) BatchResult {
	if err != nil {
		return BatchResult{ID: id, Error: apperrors.Message(err)}
	}
	return BatchResult{ID: id, OK: true}
}
