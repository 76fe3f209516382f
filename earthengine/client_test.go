package earthengine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wgdzlh/forestloss/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	ee "google.golang.org/api/earthengine/v1"
)

const testProject = "test-project"

func TestMain(m *testing.M) {
	// opencensus的view包在init中启动常驻worker
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(context.Background(), Config{Project: testProject, BaseURL: srv.URL + "/", HTTPClient: srv.Client()})
	require.NoError(t, err)
	return c, srv
}

func TestComputeValue(t *testing.T) {
	var got map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/projects/test-project/value:compute", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"result": {"area2000": 1.5, "loss": 0.25}}`))
	})
	before := testutil.ToFloat64(metrics.EERequestsTotal.WithLabelValues(methodCompute))

	root := LoadImage("UMD/hansen/global_forest_change_2023_v1_11").Select("loss")
	var out struct {
		Area2000 float64 `json:"area2000"`
		Loss     float64 `json:"loss"`
	}
	require.NoError(t, c.ComputeValue(context.Background(), root.Node, &out))
	assert.Equal(t, 1.5, out.Area2000)
	assert.Equal(t, 0.25, out.Loss)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.EERequestsTotal.WithLabelValues(methodCompute)))

	expr, ok := got["expression"].(map[string]any)
	require.True(t, ok, "request has no expression: %v", got)
	assert.Equal(t, "0", expr["result"])
	values := expr["values"].(map[string]any)
	fn := values["0"].(map[string]any)["functionInvocationValue"].(map[string]any)
	assert.Equal(t, "Image.select", fn["functionName"])
}

func TestComputeValueAPIError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"code": 429, "message": "Too many concurrent aggregations.", "status": "RESOURCE_EXHAUSTED"}}`))
	})
	before := testutil.ToFloat64(metrics.EEFailTotal.WithLabelValues(methodCompute))

	var out any
	err := c.ComputeValue(context.Background(), Constant(1), &out)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.HTTPStatus)
	assert.Equal(t, "RESOURCE_EXHAUSTED", apiErr.Status)
	assert.Equal(t, "Too many concurrent aggregations.", apiErr.Message)
	assert.True(t, apiErr.Temporary())
	assert.Contains(t, err.Error(), "RESOURCE_EXHAUSTED")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.EEFailTotal.WithLabelValues(methodCompute)))
}

func TestComputeValuePlainError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	})
	var out any
	err := c.ComputeValue(context.Background(), Constant(1), &out)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "backend exploded", apiErr.Message)
	assert.False(t, apiErr.Temporary())
	assert.Contains(t, err.Error(), "Internal Server Error")
}

func TestComputeValueCanceled(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result": 1}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out any
	err := c.ComputeValue(ctx, Constant(1), &out)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetMapID(t *testing.T) {
	var got ee.EarthEngineMap
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/projects/test-project/maps", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"name": "projects/test-project/maps/abc123"}`))
	})

	maxCover := 100.0
	id, err := c.GetMapID(context.Background(), PixelArea(), VisParams{Palette: []string{"000000", "00FF00"}, Max: &maxCover})
	require.NoError(t, err)
	assert.Equal(t, "projects/test-project/maps/abc123", id.Name)
	assert.Equal(t, srv.URL+"/v1/projects/test-project/maps/abc123/tiles/{z}/{x}/{y}", c.TileURL(id))

	assert.Equal(t, "AUTO_JPEG_PNG", got.FileFormat)
	require.NotNil(t, got.VisualizationOptions)
	assert.Equal(t, []string{"000000", "00FF00"}, got.VisualizationOptions.PaletteColors)
	require.Len(t, got.VisualizationOptions.Ranges, 1)
	assert.Equal(t, 0.0, got.VisualizationOptions.Ranges[0].Min)
	assert.Equal(t, 100.0, got.VisualizationOptions.Ranges[0].Max)
	require.NotNil(t, got.Expression)
	assert.Equal(t, "Image.pixelArea", got.Expression.Values["0"].FunctionInvocationValue.FunctionName)
}

func TestGetMapIDEmptyName(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	_, err := c.GetMapID(context.Background(), PixelArea(), VisParams{})
	assert.ErrorIs(t, err, ErrEmptyMapID)
}

func TestVisParamsOptions(t *testing.T) {
	assert.Nil(t, VisParams{}.options())

	opts := VisParams{Palette: []string{"FF0000"}}.options()
	require.NotNil(t, opts)
	assert.Empty(t, opts.Ranges)

	lo := 10.0
	opts = VisParams{Min: &lo}.options()
	require.Len(t, opts.Ranges, 1)
	assert.Equal(t, 10.0, opts.Ranges[0].Min)
	assert.Equal(t, 1.0, opts.Ranges[0].Max)
}

func TestTimeoutLeavesCallerClientUntouched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	hc := srv.Client()
	c, err := NewClient(context.Background(), Config{Project: testProject, BaseURL: srv.URL, HTTPClient: hc, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	var out any
	err = c.ComputeValue(context.Background(), Constant(1), &out)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, hc.Timeout)
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), Config{Project: "  "})
	assert.ErrorIs(t, err, ErrNoProject)
}
