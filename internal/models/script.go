// internal/models/script.go
package models

import (
	"encoding/json"
	"io"
	"strings"
)

// Script statuses used by the remote service
const (
	ScriptStatusCompleted             = "completed"
	ScriptStatusError                 = "error"
	ScriptStatusAwaitingFeedback      = "awaiting_human_feedback"
	ScriptStatusPendingRevision       = "pending_revision"
	ScriptStatusCompletedWithFeedback = "completed_with_feedback"
	ScriptStatusNeedsAttention        = "needs_attention"
)

// Script is an analyzed script
type Script struct {
	ID                    string  `json:"id"`
	Filename              string  `json:"filename"`
	OriginalFilename      string  `json:"original_filename,omitempty"`
	FileSizeBytes         int64   `json:"file_size_bytes"`
	Status                string  `json:"status"`
	TotalScenes           int     `json:"total_scenes,omitempty"`
	TotalCharacters       int     `json:"total_characters,omitempty"`
	TotalLocations        int     `json:"total_locations,omitempty"`
	EstimatedBudget       float64 `json:"estimated_budget,omitempty"`
	BudgetCategory        string  `json:"budget_category,omitempty"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds,omitempty"`
	APICallsUsed          int     `json:"api_calls_used,omitempty"`
	ErrorMessage          string  `json:"error_message,omitempty"`
	CreatedAt             string  `json:"created_at,omitempty"`
	UpdatedAt             string  `json:"updated_at,omitempty"`
}

// IsPending reports whether the status is one of the pending variants
func (s *Script) IsPending() bool {
	return strings.Contains(s.Status, "pending")
}

// AnalysisData is the derived breakdown of a script. The sub-objects are
// defined by the remote analysis and kept opaque.
type AnalysisData struct {
	ScriptData        json.RawMessage `json:"script_data,omitempty"`
	CastBreakdown     json.RawMessage `json:"cast_breakdown,omitempty"`
	CostBreakdown     json.RawMessage `json:"cost_breakdown,omitempty"`
	LocationBreakdown json.RawMessage `json:"location_breakdown,omitempty"`
	PropsBreakdown    json.RawMessage `json:"props_breakdown,omitempty"`
}

// APIScenes decodes script_data.scenes. ok is false when there is no
// scene list.
func (a *AnalysisData) APIScenes() (scenes []APIScene, ok bool) {
	if a == nil || len(a.ScriptData) == 0 {
		return nil, false
	}
	var sd struct {
		Scenes []APIScene `json:"scenes"`
	}
	if err := json.Unmarshal(a.ScriptData, &sd); err != nil || sd.Scenes == nil {
		return nil, false
	}
	return sd.Scenes, true
}

// HasCostBreakdown reports whether cost_breakdown is a non-empty object
func (a *AnalysisData) HasCostBreakdown() bool {
	if a == nil || len(a.CostBreakdown) == 0 {
		return false
	}
	var m map[string]any
	if err := json.Unmarshal(a.CostBreakdown, &m); err != nil {
		return false
	}
	return len(m) > 0
}

// AsMap returns the analysis as a generic JSON object
func (a *AnalysisData) AsMap() map[string]any {
	out := map[string]any{}
	if a == nil {
		return out
	}
	data, err := json.Marshal(a)
	if err != nil {
		return out
	}
	json.Unmarshal(data, &out)
	return out
}

// ScriptDetail is GET /analyzed-scripts/{id} data: the script plus its
// analysis sub-objects at the same level.
type ScriptDetail struct {
	Script
	AnalysisData
}

// Analysis returns a copy of the analysis part
func (d *ScriptDetail) Analysis() *AnalysisData {
	a := d.AnalysisData
	return &a
}

type AnalysisMetadata struct {
	Filename              string  `json:"filename"`
	OriginalFilename      string  `json:"original_filename"`
	FileSizeBytes         int64   `json:"file_size_bytes"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
	Timestamp             string  `json:"timestamp"`
	APICallsUsed          int     `json:"api_calls_used"`
}

type OptimizationInfo struct {
	ActualCallsUsed int `json:"actual_calls_used"`
	ExpectedCalls   int `json:"expected_calls"`
}

// SaveRequest is the body of POST /save-analysis. The analysis service
// returns it prebuilt.
type SaveRequest struct {
	Filename              string          `json:"filename"`
	OriginalFilename      string          `json:"original_filename"`
	FileSizeBytes         int64           `json:"file_size_bytes"`
	AnalysisData          json.RawMessage `json:"analysis_data"`
	ProcessingTimeSeconds float64         `json:"processing_time_seconds"`
	APICallsUsed          int             `json:"api_calls_used"`
}

// AnalysisResult is returned by POST /analyze-script
type AnalysisResult struct {
	Success          bool             `json:"success"`
	Message          string           `json:"message"`
	Data             *AnalysisData    `json:"data,omitempty"`
	AnalysisData     *AnalysisData    `json:"analysis_data,omitempty"`
	Metadata         AnalysisMetadata `json:"metadata"`
	OptimizationInfo OptimizationInfo `json:"optimization_info"`
	SaveRequest      SaveRequest      `json:"save_request"`
}

// TotalCost returns data.cost_breakdown.total_cost, or 0
func (r *AnalysisResult) TotalCost() float64 {
	if r == nil || r.Data == nil || len(r.Data.CostBreakdown) == 0 {
		return 0
	}
	var cb struct {
		TotalCost float64 `json:"total_cost"`
	}
	if err := json.Unmarshal(r.Data.CostBreakdown, &cb); err != nil {
		return 0
	}
	return cb.TotalCost
}

type SaveResponse struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	DatabaseID string          `json:"database_id"`
	SavedAt    string          `json:"saved_at"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// Pagination mirrors the remote list metadata
type Pagination struct {
	Total    int  `json:"total"`
	Skip     int  `json:"skip"`
	Limit    int  `json:"limit"`
	Returned int  `json:"returned"`
	HasMore  bool `json:"has_more"`
}

// DefaultPagination is the state before any list has been fetched
func DefaultPagination() Pagination {
	return Pagination{Limit: 100}
}

type ScriptListResponse struct {
	Success    bool       `json:"success"`
	Data       []Script   `json:"data"`
	Pagination Pagination `json:"pagination"`
	SearchTerm string     `json:"search_term,omitempty"`
}

type FeedbackRequest struct {
	FeedbackText      string `json:"feedback_text"`
	Approved          bool   `json:"approved"`
	RequestReanalysis bool   `json:"request_reanalysis"`
}

type FeedbackResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	ScriptID          string `json:"script_id"`
	FeedbackProcessed bool   `json:"feedback_processed"`
	ActionTaken       string `json:"action_taken"`
	Status            string `json:"status"`
}

type HealthCheck struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
	Version   string `json:"version"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response"`
}

// ScriptAnalysis is the standardized view of a script's analysis
type ScriptAnalysis struct {
	Scenes                []Scene         `json:"scenes"`
	CastBreakdown         json.RawMessage `json:"cast_breakdown,omitempty"`
	CostBreakdown         json.RawMessage `json:"cost_breakdown,omitempty"`
	LocationBreakdown     json.RawMessage `json:"location_breakdown,omitempty"`
	PropsBreakdown        json.RawMessage `json:"props_breakdown,omitempty"`
	ComprehensiveAnalysis *AnalysisData   `json:"comprehensive_analysis,omitempty"`
}

// ScriptFile is a file to upload
type ScriptFile struct {
	Name    string
	Content io.Reader
}

// Statistics summarizes the listed scripts
type Statistics struct {
	Total       int `json:"total"`
	Completed   int `json:"completed"`
	Errors      int `json:"errors"`
	Pending     int `json:"pending"`
	SuccessRate int `json:"success_rate"`
}
