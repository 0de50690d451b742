// internal/models/project.go
package models

import (
	"encoding/json"
	"strings"
)

// ID provenance prefixes
const (
	DemoIDPrefix = "demo-"
	APIIDPrefix  = "api-"

	// ProjectTypeAPIScript marks a project synthesized from a saved script
	ProjectTypeAPIScript = "api-script"

	StatusActive    = "ACTIVE"
	StatusCompleted = "COMPLETED"
)

// Project is a production project
type Project struct {
	ID                    string   `json:"id" yaml:"id"`
	Title                 string   `json:"title" yaml:"title"`
	Description           string   `json:"description,omitempty" yaml:"description"`
	Status                string   `json:"status" yaml:"status"`
	UserID                string   `json:"user_id,omitempty" yaml:"user_id"`
	BudgetTotal           *float64 `json:"budget_total,omitempty" yaml:"budget_total"`
	EstimatedDurationDays int      `json:"estimated_duration_days,omitempty" yaml:"estimated_duration_days"`
	ScriptFilename        string   `json:"script_filename,omitempty" yaml:"script_filename"`
	CreatedAt             string   `json:"created_at,omitempty" yaml:"created_at"`
	UpdatedAt             string   `json:"updated_at,omitempty" yaml:"updated_at"`
	ScriptsCount          int      `json:"scripts_count" yaml:"scripts_count"`

	// api-script projects only
	Type         string          `json:"type,omitempty" yaml:"type"`
	ScriptID     string          `json:"script_id,omitempty" yaml:"script_id"`
	AnalysisData json.RawMessage `json:"analysis_data,omitempty" yaml:"-"`

	// demo display fields
	Genre   string `json:"genre,omitempty" yaml:"genre"`
	DueDate string `json:"dueDate,omitempty" yaml:"due_date"`
	Team    string `json:"team,omitempty" yaml:"team"`

	ScriptBreakdown *ScriptBreakdown `json:"scriptBreakdown,omitempty" yaml:"script_breakdown"`
}

// ScriptBreakdown is the legacy breakdown embedded in demo projects.
// Budget values are display strings such as "RM 450000".
type ScriptBreakdown struct {
	Scenes []Scene           `json:"scenes" yaml:"scenes"`
	Budget map[string]string `json:"budget,omitempty" yaml:"budget"`
}

// IsDemo reports whether the project comes from the demo dataset
func (p *Project) IsDemo() bool {
	return strings.HasPrefix(p.ID, DemoIDPrefix)
}

// IsAPIScript reports whether the project is linked to a saved script
func (p *Project) IsAPIScript() bool {
	return p.Type == ProjectTypeAPIScript && p.ScriptID != ""
}

// Clone returns a deep copy
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	c := *p
	if p.BudgetTotal != nil {
		v := *p.BudgetTotal
		c.BudgetTotal = &v
	}
	if p.AnalysisData != nil {
		c.AnalysisData = append(json.RawMessage(nil), p.AnalysisData...)
	}
	if p.ScriptBreakdown != nil {
		sb := &ScriptBreakdown{Scenes: make([]Scene, len(p.ScriptBreakdown.Scenes))}
		for i, s := range p.ScriptBreakdown.Scenes {
			sb.Scenes[i] = s.Clone()
		}
		if p.ScriptBreakdown.Budget != nil {
			sb.Budget = make(map[string]string, len(p.ScriptBreakdown.Budget))
			for k, v := range p.ScriptBreakdown.Budget {
				sb.Budget[k] = v
			}
		}
		c.ScriptBreakdown = sb
	}
	return &c
}

// CreateProjectRequest is the body of POST /projects
type CreateProjectRequest struct {
	Title                 string `json:"title"`
	Description           string `json:"description,omitempty"`
	EstimatedDurationDays int    `json:"estimated_duration_days,omitempty"`
}

// CreateProjectResult is returned by POST /create-project-with-script
type CreateProjectResult struct {
	Success      bool          `json:"success"`
	Message      string        `json:"message,omitempty"`
	Project      *Project      `json:"project,omitempty"`
	AnalysisData *AnalysisData `json:"analysis_data,omitempty"`
}

// Float64 returns a pointer to v
func Float64(v float64) *float64 {
	return &v
}
