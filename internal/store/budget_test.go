package store

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/ScriptBreakdown/internal/budget"
	apperrors "github.com/Corphon/ScriptBreakdown/internal/errors"
	"github.com/Corphon/ScriptBreakdown/internal/models"
	"github.com/Corphon/ScriptBreakdown/internal/storage"
	"github.com/Corphon/ScriptBreakdown/internal/utils"
)

func TestBudgetFromDemoProject(t *testing.T) {
	s, _ := newTestStore(newFakeRemote(), nil)
	s.FetchProjects(context.Background())

	b, err := s.BudgetBreakdown(context.Background(), "demo-1")
	require.NoError(t, err)
	assert.Equal(t, 2500000.0, b.Total)
	assert.Equal(t, b.Sum(), b.Total)

	rows, _, err := s.BudgetCategories(context.Background(), "demo-1")
	require.NoError(t, err)
	require.Len(t, rows, 7)
	assert.Equal(t, budget.KeyTalent, rows[0].Key)
}

func TestBudgetFromScriptCostBreakdown(t *testing.T) {
	f := newFakeRemote()
	f.analysis = &models.AnalysisResult{Success: true}
	f.save = &models.SaveResponse{Success: true, DatabaseID: "42"}
	f.details["42"] = &models.ScriptDetail{
		Script:       models.Script{ID: "42"},
		AnalysisData: models.AnalysisData{CostBreakdown: json.RawMessage(costBreakdown)},
	}
	s, _ := newTestStore(f, nil)
	require.NotNil(t, s.AnalyzeAndSave(context.Background(), models.ScriptFile{Name: "a.pdf", Content: strings.NewReader("x")}))

	b, err := s.BudgetBreakdown(context.Background(), "api-42")
	require.NoError(t, err)
	assert.Equal(t, budget.Breakdown{
		Talent: 1000, Location: 500, PropsSet: 150, SfxVfx: 200, Crew: 300, Miscellaneous: 25, Total: 2175,
	}, b)

	// the loaded analysis is reused
	_, err = s.BudgetBreakdown(context.Background(), "api-42")
	require.NoError(t, err)
	assert.Equal(t, 1, f.count("GetScript"))
}

func TestBudgetFromScriptScenes(t *testing.T) {
	f := newFakeRemote()
	f.list = listOf(models.Script{ID: "43", Filename: "short.txt"})
	f.details["43"] = &models.ScriptDetail{
		Script:       models.Script{ID: "43"},
		AnalysisData: models.AnalysisData{ScriptData: json.RawMessage(twoScenes)},
	}
	s, _ := newTestStore(f, nil)
	require.True(t, s.FetchScripts(context.Background(), ScriptQuery{}))
	require.True(t, s.UpdateProjectStatus("api-43", models.StatusActive))

	b, err := s.BudgetBreakdown(context.Background(), "api-43")
	require.NoError(t, err)
	assert.Equal(t, budget.Breakdown{
		Talent: 350, Location: 150, PropsSet: 120, WardrobeMakeup: 80, SfxVfx: 200, Crew: 80, Miscellaneous: 20, Total: 1000,
	}, b)
}

func TestBudgetForListedScriptWithoutProject(t *testing.T) {
	f := newFakeRemote()
	f.list = listOf(models.Script{ID: "44"})
	f.details["44"] = &models.ScriptDetail{
		Script: models.Script{ID: "44"},
		AnalysisData: models.AnalysisData{
			ScriptData:    json.RawMessage(twoScenes),
			CostBreakdown: json.RawMessage(costBreakdown),
		},
	}
	s, _ := newTestStore(f, nil)
	require.True(t, s.FetchScripts(context.Background(), ScriptQuery{}))

	b, err := s.BudgetBreakdown(context.Background(), "api-44")
	require.NoError(t, err)
	assert.Equal(t, 2175.0, b.Total)
}

func TestBudgetErrors(t *testing.T) {
	f := newFakeRemote()
	f.list = listOf(models.Script{ID: "45"})
	s, _ := newTestStore(f, nil)
	s.FetchProjects(context.Background())
	require.True(t, s.FetchScripts(context.Background(), ScriptQuery{}))
	require.True(t, s.UpdateProjectStatus("api-45", models.StatusActive))

	_, err := s.BudgetBreakdown(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFoundError(err))
	assert.Equal(t, "Project not found", s.LastError())

	// script 45 has no detail on the remote side
	b, err := s.BudgetBreakdown(context.Background(), "api-45")
	require.Error(t, err)
	assert.Equal(t, budget.Zero(), b)
	assert.Equal(t, "Analyzed script not found", s.LastError())
}

func TestBudgetZeroWhenNothingKnown(t *testing.T) {
	f := newFakeRemote()
	f.list = listOf(models.Script{ID: "46"})
	f.details["46"] = &models.ScriptDetail{Script: models.Script{ID: "46"}}
	s, _ := newTestStore(f, nil)
	require.True(t, s.FetchScripts(context.Background(), ScriptQuery{}))
	require.True(t, s.UpdateProjectStatus("api-46", models.StatusActive))

	b, err := s.BudgetBreakdown(context.Background(), "api-46")
	require.NoError(t, err)
	assert.Equal(t, budget.Zero(), b)
}

func TestUpdateBudgetCategory(t *testing.T) {
	f := newFakeRemote()
	f.list = listOf(models.Script{ID: "47"})
	s, _ := newTestStore(f, nil)
	s.FetchProjects(context.Background())
	require.True(t, s.FetchScripts(context.Background(), ScriptQuery{}))
	require.True(t, s.UpdateProjectStatus("api-47", models.StatusActive))

	require.True(t, s.UpdateBudgetCategory("demo-1", budget.KeyTalent, 900000))
	assert.Equal(t, "RM 900,000", s.Project("demo-1").ScriptBreakdown.Budget[budget.KeyTalent])
	b, err := s.BudgetBreakdown(context.Background(), "demo-1")
	require.NoError(t, err)
	assert.Equal(t, 900000.0, b.Talent)
	assert.Equal(t, b.Sum(), b.Total)

	assert.False(t, s.UpdateBudgetCategory("api-47", budget.KeyTalent, 1))
	assert.False(t, s.UpdateBudgetCategory("demo-1", "catering", 1))
	assert.False(t, s.UpdateBudgetCategory("missing", budget.KeyCrew, 1))
	assert.Equal(t, "Project not found", s.LastError())
}

func TestUpdateBudgetCategoryUsesConfiguredCurrency(t *testing.T) {
	s := New(Options{
		State:    storage.NewMemoryStorage(),
		Client:   newFakeRemote(),
		Logger:   utils.NewNopLogger(),
		Currency: "USD",
	})
	s.FetchProjects(context.Background())

	require.True(t, s.UpdateBudgetCategory("demo-1", budget.KeyCrew, 12500))
	assert.Equal(t, "USD 12,500", s.Project("demo-1").ScriptBreakdown.Budget[budget.KeyCrew])

	b, err := s.BudgetBreakdown(context.Background(), "demo-1")
	require.NoError(t, err)
	assert.Equal(t, 12500.0, b.Crew)
	assert.Equal(t, b.Sum(), b.Total)

	rows, _, err := s.BudgetCategories(context.Background(), "demo-1")
	require.NoError(t, err)
	for _, r := range rows {
		if r.Key == budget.KeyCrew {
			assert.Equal(t, "USD 12,500", r.Formatted)
		}
	}
}
