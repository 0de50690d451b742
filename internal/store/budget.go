// internal/store/budget.go
package store

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Corphon/ScriptBreakdown/internal/budget"
	apperrors "github.com/Corphon/ScriptBreakdown/internal/errors"
	"github.com/Corphon/ScriptBreakdown/internal/models"
)

// BudgetBreakdown resolves the canonical budget of a project:
//  1. a script-linked project uses its analysis (the current one when it
//     is already loaded), preferring the cost breakdown over scene estimates
//  2. a project with an embedded breakdown uses its budget strings
//  3. anything else is all zero
//
// An unknown id is looked up among the listed scripts as api-<scriptID>.
// Errors from loading a remote analysis are returned; missing data is not
// an error.
func (s *Store) BudgetBreakdown(ctx context.Context, projectID string) (budget.Breakdown, error) {
	done := s.begin()
	defer done()

	b, err := s.budgetBreakdown(ctx, projectID)
	if err != nil {
		s.fail("budget_breakdown", err)
		return budget.Zero(), err
	}
	return b, nil
}

// BudgetCategories is BudgetBreakdown as display rows
func (s *Store) BudgetCategories(ctx context.Context, projectID string) ([]budget.Category, budget.Breakdown, error) {
	b, err := s.BudgetBreakdown(ctx, projectID)
	if err != nil {
		return nil, b, err
	}
	return budget.CategoriesWith(s.currency, b), b, nil
}

func (s *Store) budgetBreakdown(ctx context.Context, projectID string) (budget.Breakdown, error) {
	p := s.Project(projectID)
	if p == nil {
		return s.orphanBudget(ctx, projectID)
	}

	if p.IsAPIScript() {
		a, err := s.analysisFor(ctx, p.ScriptID)
		if err != nil {
			return budget.Zero(), err
		}
		if b, ok := fromAnalysis(a, standardize(a)); ok {
			return b, nil
		}
	}

	if p.ScriptBreakdown != nil && p.ScriptBreakdown.Budget != nil {
		return budget.FromDemo(p.ScriptBreakdown.Budget), nil
	}
	return budget.Zero(), nil
}

// orphanBudget resolves a project id that is not in the directory through
// the listed script it would have been synthesized from.
func (s *Store) orphanBudget(ctx context.Context, projectID string) (budget.Breakdown, error) {
	scriptID := strings.TrimPrefix(projectID, models.APIIDPrefix)

	s.mu.RLock()
	listed := false
	for i := range s.scripts {
		if s.scripts[i].ID == scriptID {
			listed = true
			break
		}
	}
	s.mu.RUnlock()

	if listed {
		data, err := s.scriptAnalysis(ctx, scriptID)
		if err != nil {
			return budget.Zero(), err
		}
		if data != nil {
			return budget.FromAPI(asMap(data)), nil
		}
	}
	return budget.Zero(), apperrors.NewNotFoundError(msgProjectNotFound, nil)
}

// fromAnalysis prefers the cost breakdown, then the scene estimates.
// ok is false when neither is available.
func fromAnalysis(a *models.AnalysisData, std *models.ScriptAnalysis) (budget.Breakdown, bool) {
	if a.HasCostBreakdown() {
		return budget.FromAPI(a.AsMap()), true
	}
	if std != nil && len(std.Scenes) > 0 {
		return budget.FromScenes(std.Scenes), true
	}
	return budget.Zero(), false
}

func asMap(v any) map[string]any {
	out := map[string]any{}
	data, err := json.Marshal(v)
	if err != nil {
		return out
	}
	json.Unmarshal(data, &out)
	return out
}

// UpdateBudgetCategory edits one category of a project's embedded budget.
// Script-linked projects have no editable budget and report false.
func (s *Store) UpdateBudgetCategory(projectID, category string, amount float64) bool {
	if !budget.IsCategory(category) {
		s.setError("Unknown budget category: " + category)
		return false
	}

	s.mu.Lock()
	i := s.indexLocked(projectID)
	if i < 0 {
		s.lastErr = msgProjectNotFound
		s.mu.Unlock()
		return false
	}
	p := s.projects[i]
	if p.IsAPIScript() || p.ScriptBreakdown == nil || p.ScriptBreakdown.Budget == nil {
		s.mu.Unlock()
		return false
	}
	if amount < 0 {
		amount = 0
	}
	p.ScriptBreakdown.Budget[category] = budget.FormatAmountWith(s.currency, amount)
	if s.current != nil && s.current.ID == projectID {
		s.current = p.Clone()
	}
	s.mu.Unlock()
	return true
}
