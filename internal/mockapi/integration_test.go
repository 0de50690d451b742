package mockapi_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/ScriptBreakdown/internal/budget"
	"github.com/Corphon/ScriptBreakdown/internal/mockapi"
	"github.com/Corphon/ScriptBreakdown/internal/models"
	"github.com/Corphon/ScriptBreakdown/internal/remote"
	"github.com/Corphon/ScriptBreakdown/internal/storage"
	"github.com/Corphon/ScriptBreakdown/internal/store"
	"github.com/Corphon/ScriptBreakdown/internal/utils"
)

type harness struct {
	mock  *mockapi.Server
	state *storage.MemoryStorage
	store *store.Store
	url   string
}

func newHarness(t *testing.T, opts mockapi.Options) *harness {
	t.Helper()
	opts.Secret = []byte("integration-secret")
	opts.Logger = utils.NewNopLogger()
	mock := mockapi.New(opts)
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)

	h := &harness{mock: mock, state: storage.NewMemoryStorage(), url: srv.URL}
	h.store = h.open()
	return h
}

// open builds a fresh store over the same durable state, like a restart
func (h *harness) open() *store.Store {
	logger := utils.NewNopLogger()
	client := remote.New(remote.Options{BaseURL: h.url, Logger: logger})
	return store.New(store.Options{State: h.state, Client: client, Logger: logger})
}

func TestSessionSurvivesRestart(t *testing.T) {
	h := newHarness(t, mockapi.Options{RequireAuth: true})
	ctx := context.Background()

	require.True(t, h.store.Register(ctx, models.RegisterRequest{
		Email: "director@example.test", Password: "secret1", FullName: "Director",
	}))

	again := h.open()
	require.True(t, again.IsLoggedIn())
	assert.Equal(t, "Director", again.User().FullName)

	u := again.Profile(ctx)
	require.NotNil(t, u)
	assert.Equal(t, "director@example.test", u.Email)

	again.Logout(ctx)
	assert.False(t, again.IsLoggedIn())
	assert.Empty(t, h.state.Keys())
}

func TestRejectedTokenEndsSession(t *testing.T) {
	h := newHarness(t, mockapi.Options{RequireAuth: true})
	ctx := context.Background()
	_, err := h.mock.AddUser(models.RegisterRequest{Email: "ap@example.test", Password: "secret1"})
	require.NoError(t, err)
	require.True(t, h.store.Login(ctx, "ap@example.test", "secret1"))

	events, cancel := h.store.Events().Subscribe()
	defer cancel()

	// a second client revokes the token server-side
	other := h.open()
	other.Logout(ctx)

	h.store.FetchProjects(ctx)
	assert.False(t, h.store.IsLoggedIn())
	assert.Equal(t, remote.MsgAuthRequired, h.store.LastError())

	ev := <-events
	assert.Equal(t, store.EventSessionExpired, ev.Kind)

	// demo projects are still offered
	require.NotEmpty(t, h.store.Projects())
	assert.True(t, h.store.Projects()[0].IsDemo())
}

func TestFailedLoginMessage(t *testing.T) {
	h := newHarness(t, mockapi.Options{})
	assert.False(t, h.store.Login(context.Background(), "nobody@example.test", "secret1"))
	assert.Equal(t, "Incorrect email or password", h.store.LastError())
}

func TestAnalyzeSaveAndBudget(t *testing.T) {
	h := newHarness(t, mockapi.Options{})
	ctx := context.Background()

	saved := h.store.AnalyzeAndSave(ctx, models.ScriptFile{Name: "pilot.pdf", Content: strings.NewReader("12345678")})
	require.NotNil(t, saved, h.store.LastError())

	id, title := h.store.SelectedProject()
	assert.Equal(t, models.APIIDPrefix+saved.DatabaseID, id)
	assert.Equal(t, "pilot", title)

	p := h.store.Project(id)
	require.NotNil(t, p)
	require.NotNil(t, p.BudgetTotal)
	assert.Equal(t, 6000.0, *p.BudgetTotal)

	require.Len(t, h.store.Scripts(), 1)
	assert.Equal(t, 1, h.store.Pagination().Total)

	b, err := h.store.BudgetBreakdown(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, budget.Breakdown{
		Talent: 2100, Location: 900, PropsSet: 720, WardrobeMakeup: 480,
		SfxVfx: 1200, Crew: 480, Miscellaneous: 120, Total: 6000,
	}, b)

	analysis := h.store.ScriptAnalysisData(ctx, saved.DatabaseID)
	require.NotNil(t, analysis)
	assert.Len(t, analysis.Scenes, 3)
	assert.Equal(t, "INT. APARTMENT - NIGHT", analysis.Scenes[0].Heading)
	assert.Equal(t, "RM 1500", analysis.Scenes[0].Budget)

	reply, ok := h.store.ChatWithScript(ctx, saved.DatabaseID, "Which locations?")
	require.True(t, ok)
	assert.Contains(t, reply, "pilot.pdf")
}

func TestFeedbackAndBatchDelete(t *testing.T) {
	h := newHarness(t, mockapi.Options{})
	ctx := context.Background()
	review := h.mock.AddScript("review.pdf", 9, models.ScriptStatusAwaitingFeedback)
	done := h.mock.AddScript("done.pdf", 9, "")

	require.True(t, h.store.ScriptsAwaitingFeedback(ctx, 0, 10))
	require.Len(t, h.store.Scripts(), 1)

	resp := h.store.ProvideFeedback(ctx, review.ID, "recheck props", false, true)
	require.NotNil(t, resp)
	assert.Equal(t, models.ScriptStatusPendingRevision, resp.Status)
	sc, _ := h.store.CurrentScript()
	require.NotNil(t, sc)
	assert.Equal(t, models.ScriptStatusPendingRevision, sc.Status)

	require.True(t, h.store.FetchScripts(ctx, store.ScriptQuery{}))
	stats := h.store.Statistics()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Pending)

	results := h.store.DeleteScripts(ctx, []string{done.ID, "missing"})
	require.Len(t, results, 2)
	assert.Equal(t, store.BatchResult{ID: done.ID, OK: true}, results[0])
	assert.False(t, results[1].OK)
	assert.Equal(t, "Analyzed script not found", results[1].Error)
	assert.Equal(t, 1, h.store.Pagination().Total)
}

func TestPagingThroughStore(t *testing.T) {
	h := newHarness(t, mockapi.Options{})
	ctx := context.Background()
	for _, name := range []string{"one.pdf", "two.pdf", "three.pdf"} {
		h.mock.AddScript(name, 5, "")
	}

	require.True(t, h.store.FetchScripts(ctx, store.ScriptQuery{Limit: 2}))
	assert.True(t, h.store.Pagination().HasMore)
	require.True(t, h.store.LoadMore(ctx))
	assert.False(t, h.store.Pagination().HasMore)
	assert.Equal(t, 1, h.store.Pagination().Returned)

	require.True(t, h.store.SearchScripts(ctx, "two"))
	require.Len(t, h.store.Scripts(), 1)
	assert.Equal(t, "two.pdf", h.store.Scripts()[0].Filename)
}

func TestRemoteProjectsMerge(t *testing.T) {
	h := newHarness(t, mockapi.Options{})
	ctx := context.Background()

	p, err := h.store.CreateProject(ctx, models.CreateProjectRequest{Title: "Night Market"})
	require.NoError(t, err)
	require.NotNil(t, p)

	fresh := h.open()
	fresh.FetchProjects(ctx)
	id, title := fresh.SelectedProject()
	assert.Equal(t, p.ID, id)
	assert.Equal(t, "Night Market", title)

	require.True(t, fresh.UpdateProject(ctx, p.ID, map[string]any{"title": "Night Market II"}))
	assert.Equal(t, "Night Market II", fresh.Project(p.ID).Title)

	results := fresh.DeleteProjects(ctx, []string{p.ID, "demo-1"})
	assert.True(t, results[0].OK)
	assert.True(t, results[1].OK)
	assert.Nil(t, fresh.Project(p.ID))
	assert.Zero(t, h.mock.Projects())
}
