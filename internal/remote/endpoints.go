// internal/remote/endpoints.go
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	apperrors "github.com/Corphon/ScriptBreakdown/internal/errors"
	"github.com/Corphon/ScriptBreakdown/internal/models"
)

// ListQuery holds the /analyzed-scripts query parameters
type ListQuery struct {
	Skip           int
	Limit          int
	OrderBy        string
	OrderDirection string
	StatusFilter   string
	Search         string
}

// Values encodes the query; empty filters are omitted
func (q ListQuery) Values() url.Values {
	v := url.Values{}
	v.Set("skip", strconv.Itoa(q.Skip))
	v.Set("limit", strconv.Itoa(q.Limit))
	if q.OrderBy != "" {
		v.Set("order_by", q.OrderBy)
	}
	if q.OrderDirection != "" {
		v.Set("order_direction", q.OrderDirection)
	}
	if q.StatusFilter != "" {
		v.Set("status_filter", q.StatusFilter)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}

// Auth

func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var out models.AuthResponse
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/auth/login",
		endpoint: "auth_login",
		jsonBody: models.LoginRequest{Email: email, Password: password},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	var out models.AuthResponse
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/auth/register",
		endpoint: "auth_register",
		jsonBody: req,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/auth/logout",
		endpoint: "auth_logout",
	}, nil)
}

func (c *Client) Profile(ctx context.Context) (*models.User, error) {
	var out models.User
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/auth/profile",
		endpoint: "auth_profile",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Health(ctx context.Context) (*models.HealthCheck, error) {
	var out models.HealthCheck
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/health",
		endpoint: "health",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Projects

// ListProjects accepts {"data": [...]} and {"projects": [...]}
func (c *Client) ListProjects(ctx context.Context) ([]*models.Project, error) {
	var out struct {
		Data     []*models.Project `json:"data"`
		Projects []*models.Project `json:"projects"`
	}
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/projects",
		endpoint: "projects_list",
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Data) > 0 {
		return out.Data, nil
	}
	return out.Projects, nil
}

func (c *Client) CreateProject(ctx context.Context, req models.CreateProjectRequest) (*models.Project, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/projects",
		endpoint: "projects_create",
		jsonBody: req,
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeProject(raw)
}

// UpdateProject sends a partial update; the response is either
// {"project": {...}} or the bare project.
func (c *Client) UpdateProject(ctx context.Context, id string, fields map[string]any) (*models.Project, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		method:   http.MethodPut,
		path:     "/projects/" + escape(id),
		endpoint: "projects_update",
		jsonBody: fields,
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeProject(raw)
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, request{
		method:   http.MethodDelete,
		path:     "/projects/" + escape(id),
		endpoint: "projects_delete",
	}, nil)
}

// ProjectAnalysis returns the "data" member of the analysis response
func (c *Client) ProjectAnalysis(ctx context.Context, id string) (json.RawMessage, error) {
	var out struct {
		Data json.RawMessage `json:"data"`
	}
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/projects/" + escape(id) + "/analysis",
		endpoint: "projects_analysis",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) CreateProjectWithScript(ctx context.Context, title, description string, file models.ScriptFile) (*models.CreateProjectResult, error) {
	fields := map[string]string{"title": title}
	if description != "" {
		fields["description"] = description
	}
	body, contentType, err := multipartBody(fields, file)
	if err != nil {
		return nil, err
	}

	var out models.CreateProjectResult
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/create-project-with-script",
		endpoint:    "projects_create_with_script",
		body:        body,
		contentType: contentType,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Scripts

func (c *Client) AnalyzeScript(ctx context.Context, file models.ScriptFile) (*models.AnalysisResult, error) {
	body, contentType, err := multipartBody(nil, file)
	if err != nil {
		return nil, err
	}

	var out models.AnalysisResult
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/analyze-script",
		endpoint:    "scripts_analyze",
		body:        body,
		contentType: contentType,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SaveAnalysis(ctx context.Context, req models.SaveRequest) (*models.SaveResponse, error) {
	var out models.SaveResponse
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/save-analysis",
		endpoint: "scripts_save",
		jsonBody: req,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListScripts(ctx context.Context, q ListQuery) (*models.ScriptListResponse, error) {
	var out models.ScriptListResponse
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/analyzed-scripts",
		endpoint: "scripts_list",
		query:    q.Values(),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ScriptsAwaitingFeedback(ctx context.Context, skip, limit int) (*models.ScriptListResponse, error) {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))

	var out models.ScriptListResponse
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/scripts-awaiting-feedback",
		endpoint: "scripts_awaiting_feedback",
		query:    q,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetScript(ctx context.Context, id string) (*models.ScriptDetail, error) {
	var out struct {
		Success bool                 `json:"success"`
		Data    *models.ScriptDetail `json:"data"`
	}
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/analyzed-scripts/" + escape(id),
		endpoint: "scripts_get",
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Data == nil {
		return nil, apperrors.NewNotFoundError("Analyzed script not found", nil)
	}
	return out.Data, nil
}

func (c *Client) DeleteScript(ctx context.Context, id string) error {
	return c.do(ctx, request{
		method:   http.MethodDelete,
		path:     "/analyzed-scripts/" + escape(id),
		endpoint: "scripts_delete",
	}, nil)
}

func (c *Client) ProvideFeedback(ctx context.Context, id string, req models.FeedbackRequest) (*models.FeedbackResponse, error) {
	var out models.FeedbackResponse
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/provide-feedback/" + escape(id),
		endpoint: "scripts_feedback",
		jsonBody: req,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Chat(ctx context.Context, id, message string) (*models.ChatResponse, error) {
	var out models.ChatResponse
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/chat/" + escape(id),
		endpoint: "chat",
		jsonBody: models.ChatRequest{Message: message},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func decodeProject(raw json.RawMessage) (*models.Project, error) {
	var wrapped struct {
		Project *models.Project `json:"project"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Project != nil {
		return wrapped.Project, nil
	}
	var p models.Project
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.NewProcessingError("invalid project in response", err)
	}
	return &p, nil
}

// multipartBody encodes fields plus the file under "file"
func multipartBody(fields map[string]string, file models.ScriptFile) (io.Reader, string, error) {
	if file.Content == nil || file.Name == "" {
		return nil, "", apperrors.NewValidationError("a script file is required", nil)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	part, err := w.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return nil, "", apperrors.NewValidationError("read script file", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
