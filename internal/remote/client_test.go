package remote

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/ScriptBreakdown/internal/errors"
	"github.com/Corphon/ScriptBreakdown/internal/models"
	"github.com/Corphon/ScriptBreakdown/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestClient(t *testing.T, r *gin.Engine, token string) (*Client, *utils.MetricsCollector) {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	collector := utils.NewMetricsCollector()
	c := New(Options{
		BaseURL: srv.URL + "/",
		Timeout: 5 * time.Second,
		Token:   func() string { return token },
		Metrics: utils.NewAPIMetricsWith(collector, utils.NewNopLogger()),
		Logger:  utils.NewNopLogger(),
	})
	return c, collector
}

func TestBearerHeaderAndJSONBody(t *testing.T) {
	r := gin.New()
	r.POST("/chat/:id", func(c *gin.Context) {
		var body models.ChatRequest
		require.NoError(t, c.ShouldBindJSON(&body))
		assert.Equal(t, "Bearer T", c.GetHeader("Authorization"))
		assert.Equal(t, "s 1", c.Param("id"))
		c.JSON(http.StatusOK, gin.H{"success": true, "response": "echo: " + body.Message})
	})
	client, collector := newTestClient(t, r, "T")

	resp, err := client.Chat(context.Background(), "s 1", "hello")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "echo: hello", resp.Response)
	assert.Equal(t, int64(1), collector.GetCounterValue("remote_responses_2xx"))
}

func TestNoAuthorizationWhenLoggedOut(t *testing.T) {
	r := gin.New()
	r.GET("/health", func(c *gin.Context) {
		assert.Empty(t, c.GetHeader("Authorization"))
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "version": "2.1.0"})
	})
	client, _ := newTestClient(t, r, "")

	h, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
}

func TestUnauthorizedIsAuthError(t *testing.T) {
	r := gin.New()
	r.GET("/projects", func(c *gin.Context) {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Token expired"})
	})
	client, _ := newTestClient(t, r, "stale")

	_, err := client.ListProjects(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthorizedError(err))
	assert.Equal(t, MsgAuthRequired, apperrors.Message(err))
}

func TestRemoteErrorUsesDetail(t *testing.T) {
	r := gin.New()
	r.DELETE("/analyzed-scripts/:id", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Analyzed script not found"})
	})
	r.POST("/save-analysis", func(c *gin.Context) {
		c.String(http.StatusInternalServerError, "boom")
	})
	r.POST("/provide-feedback/:id", func(c *gin.Context) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"msg": "field required"}}})
	})
	client, collector := newTestClient(t, r, "")

	err := client.DeleteScript(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, apperrors.IsRemoteError(err))
	assert.Equal(t, "Analyzed script not found", apperrors.Message(err))

	_, err = client.SaveAnalysis(context.Background(), models.SaveRequest{})
	assert.Equal(t, "HTTP 500: Internal Server Error", apperrors.Message(err))

	_, err = client.ProvideFeedback(context.Background(), "x", models.FeedbackRequest{})
	assert.Equal(t, "HTTP 422: Unprocessable Entity", apperrors.Message(err))

	assert.Equal(t, int64(2), collector.GetCounterValue("remote_responses_4xx"))
	assert.Equal(t, int64(1), collector.GetCounterValue("remote_responses_5xx"))
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := New(Options{BaseURL: url, Logger: utils.NewNopLogger(), Metrics: utils.NewAPIMetricsWith(utils.NewMetricsCollector(), utils.NewNopLogger())})
	_, err := client.Health(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsNetworkError(err))
	assert.Equal(t, MsgNetworkError, apperrors.Message(err))
}

func TestListProjectsShapes(t *testing.T) {
	r := gin.New()
	r.GET("/projects", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": []gin.H{{"id": "p1", "title": "One"}}})
	})
	client, _ := newTestClient(t, r, "")
	projects, err := client.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "p1", projects[0].ID)

	r2 := gin.New()
	r2.GET("/projects", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"projects": []gin.H{{"id": "p2", "title": "Two"}}})
	})
	client2, _ := newTestClient(t, r2, "")
	projects, err = client2.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "p2", projects[0].ID)
}

func TestUpdateProjectShapes(t *testing.T) {
	r := gin.New()
	r.PUT("/projects/:id", func(c *gin.Context) {
		var fields map[string]any
		require.NoError(t, c.ShouldBindJSON(&fields))
		if c.Param("id") == "wrapped" {
			c.JSON(http.StatusOK, gin.H{"success": true, "project": gin.H{"id": "wrapped", "title": fields["title"]}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "title": fields["title"]})
	})
	client, _ := newTestClient(t, r, "")

	p, err := client.UpdateProject(context.Background(), "wrapped", map[string]any{"title": "New"})
	require.NoError(t, err)
	assert.Equal(t, "wrapped", p.ID)
	assert.Equal(t, "New", p.Title)

	p, err = client.UpdateProject(context.Background(), "bare", map[string]any{"title": "Bare"})
	require.NoError(t, err)
	assert.Equal(t, "bare", p.ID)
	assert.Equal(t, "Bare", p.Title)
}

func TestListScriptsQuery(t *testing.T) {
	r := gin.New()
	r.GET("/analyzed-scripts", func(c *gin.Context) {
		assert.Equal(t, "200", c.Query("skip"))
		assert.Equal(t, "100", c.Query("limit"))
		assert.Equal(t, "created_at", c.Query("order_by"))
		assert.Equal(t, "desc", c.Query("order_direction"))
		assert.Equal(t, "completed", c.Query("status_filter"))
		_, hasSearch := c.GetQuery("search")
		assert.False(t, hasSearch)
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"data":       []gin.H{{"id": "s1", "filename": "a.pdf", "status": "completed"}},
			"pagination": gin.H{"total": 201, "skip": 200, "limit": 100, "returned": 1, "has_more": false},
		})
	})
	client, _ := newTestClient(t, r, "")

	resp, err := client.ListScripts(context.Background(), ListQuery{
		Skip: 200, Limit: 100, OrderBy: "created_at", OrderDirection: "desc", StatusFilter: "completed",
	})
	require.NoError(t, err)
	assert.Len(t, resp.Data, 1)
	assert.Equal(t, 201, resp.Pagination.Total)
}

func TestAnalyzeScriptMultipart(t *testing.T) {
	r := gin.New()
	r.POST("/analyze-script", func(c *gin.Context) {
		fh, err := c.FormFile("file")
		require.NoError(t, err)
		f, err := fh.Open()
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		f.Close()
		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"metadata":     gin.H{"filename": fh.Filename, "file_size_bytes": len(data)},
			"save_request": gin.H{"filename": fh.Filename, "file_size_bytes": len(data)},
		})
	})
	r.POST("/create-project-with-script", func(c *gin.Context) {
		assert.Equal(t, "Pilot", c.PostForm("title"))
		_, hasDesc := c.GetPostForm("description")
		assert.False(t, hasDesc)
		c.JSON(http.StatusOK, gin.H{"success": true, "project": gin.H{"id": "p9", "title": "Pilot"}})
	})
	client, _ := newTestClient(t, r, "")

	res, err := client.AnalyzeScript(context.Background(), models.ScriptFile{Name: "pilot.pdf", Content: strings.NewReader("INT. ROOM - DAY")})
	require.NoError(t, err)
	assert.Equal(t, "pilot.pdf", res.Metadata.Filename)
	assert.Equal(t, int64(15), res.SaveRequest.FileSizeBytes)

	created, err := client.CreateProjectWithScript(context.Background(), "Pilot", "", models.ScriptFile{Name: "pilot.pdf", Content: strings.NewReader("x")})
	require.NoError(t, err)
	assert.Equal(t, "p9", created.Project.ID)

	_, err = client.AnalyzeScript(context.Background(), models.ScriptFile{})
	assert.True(t, apperrors.IsValidationError(err))
}

func TestGetScriptFlattensDetail(t *testing.T) {
	r := gin.New()
	r.GET("/analyzed-scripts/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
			"id": c.Param("id"), "filename": "a.pdf", "status": "completed",
			"cost_breakdown": gin.H{"total_cast_costs": 100},
		}})
	})
	client, _ := newTestClient(t, r, "")

	d, err := client.GetScript(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", d.ID)
	assert.True(t, d.Analysis().HasCostBreakdown())
}

func TestContextCancellation(t *testing.T) {
	r := gin.New()
	r.GET("/health", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})
	client, _ := newTestClient(t, r, "")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Health(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
