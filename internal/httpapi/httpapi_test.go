package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/paramfn/internal/inmemorystore"
	"github.com/vk/paramfn/internal/model"
	"github.com/vk/paramfn/internal/registry"
	"github.com/vk/paramfn/internal/testutil"
)

const quadratic = "def f(x, a=1, b=0, c=0): return a*x*x + b*x + c"

func strPtr(v string) *string { return &v }

type testServer struct {
	*httptest.Server
	client *Client
	store  *inmemorystore.Store
	logs   *testutil.SafeBuffer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := inmemorystore.New()
	reg := registry.New(st)
	require.NoError(t, reg.Load(context.Background()))

	logs := &testutil.SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	srv := httptest.NewServer(NewHandler(reg, logger))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, client: NewClient(srv.URL, srv.Client()), store: st, logs: logs}
}

func (s *testServer) raw(t *testing.T, method, path, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestCreateAndCompute(t *testing.T) {
	// --- Arrange ---
	s := newTestServer(t)
	ctx := context.Background()

	// --- Act ---
	err := s.client.Create(ctx, CreateRequest{Name: "quadratic", Source: quadratic, Description: "Quadratic function"})
	require.NoError(t, err)
	ys, err := s.client.Compute(ctx, "quadratic", []float64{0, 1, 2, 3}, map[string]float64{"a": 2, "b": 3, "c": 1})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 6, 15, 28}, ys)

	list, err := s.client.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []FunctionSummary{{Name: "quadratic", Description: "Quadratic function"}}, list)
}

func TestCreate_LegacyCodeField(t *testing.T) {
	s := newTestServer(t)

	status, body := s.raw(t, http.MethodPost, "/functions", `{"name": "line", "code": "def f(x, a=1, b=0): return a*x + b"}`)

	assert.Equal(t, http.StatusCreated, status)
	assert.JSONEq(t, `{"message": "Function 'line' created successfully"}`, body)

	def, err := s.client.Get(context.Background(), "line")
	require.NoError(t, err)
	assert.Equal(t, "def f(x, a=1, b=0): return a*x + b", def.Source)
	assert.Equal(t, `{"x":"float","a":"float","b":"float"}`, def.InputSignature.String())
}

func TestFaultMapping(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.client.Create(context.Background(), CreateRequest{Name: "root", Source: "def f(x): return sqrt(x)"}))

	testCases := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantDetail string
	}{
		{name: "get missing", method: http.MethodGet, path: "/functions/nope", wantStatus: http.StatusNotFound, wantDetail: "function not found"},
		{name: "delete missing", method: http.MethodDelete, path: "/functions/nope", wantStatus: http.StatusNotFound},
		{name: "update missing", method: http.MethodPut, path: "/functions/nope", body: `{"description": "x"}`, wantStatus: http.StatusNotFound},
		{name: "compute missing", method: http.MethodPost, path: "/functions/nope/compute", body: `{"x": [1]}`, wantStatus: http.StatusNotFound},
		{name: "data missing", method: http.MethodGet, path: "/functions/nope/data", wantStatus: http.StatusNotFound},
		{name: "duplicate", method: http.MethodPost, path: "/functions", body: `{"name": "root", "source": "def f(x): return x"}`, wantStatus: http.StatusConflict, wantDetail: "already exists"},
		{name: "invalid source", method: http.MethodPost, path: "/functions", body: `{"name": "bad", "source": "def g(x): return x"}`, wantStatus: http.StatusBadRequest, wantDetail: "invalid function definition"},
		{name: "missing name", method: http.MethodPost, path: "/functions", body: `{"source": "def f(x): return x"}`, wantStatus: http.StatusBadRequest, wantDetail: "Field 'name' is required"},
		{name: "missing source", method: http.MethodPost, path: "/functions", body: `{"name": "n"}`, wantStatus: http.StatusBadRequest, wantDetail: "Field 'source' is required"},
		{name: "malformed body", method: http.MethodPost, path: "/functions", body: `{"name": `, wantStatus: http.StatusBadRequest, wantDetail: "invalid JSON body"},
		{name: "x missing", method: http.MethodPost, path: "/functions/root/compute", body: `{"params": {}}`, wantStatus: http.StatusBadRequest, wantDetail: "Field 'x' is required"},
		{name: "x not a list", method: http.MethodPost, path: "/functions/root/compute", body: `{"x": 3}`, wantStatus: http.StatusBadRequest},
		{name: "evaluation error", method: http.MethodPost, path: "/functions/root/compute", body: `{"x": [4, -1]}`, wantStatus: http.StatusBadRequest, wantDetail: "x=-1"},
		{name: "unknown route", method: http.MethodGet, path: "/nowhere", wantStatus: http.StatusNotFound, wantDetail: "Not Found"},
		{name: "wrong method", method: http.MethodPatch, path: "/functions", wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := s.raw(t, tc.method, tc.path, tc.body)

			assert.Equal(t, tc.wantStatus, status, body)
			assert.Contains(t, body, `"detail"`)
			assert.Contains(t, body, tc.wantDetail)
		})
	}
}

func TestFaultMapping_SerializationIs500(t *testing.T) {
	s := newTestServer(t)
	s.store.FailNextSave(errors.New("disk full"))

	err := s.client.Create(context.Background(), CreateRequest{Name: "line", Source: "def f(x): return x"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.ErrorIs(t, err, model.ErrSerialization)
	assert.Contains(t, s.logs.String(), "Request failed.")
}

func TestClient_ErrorsMatchFaults(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.client.Create(ctx, CreateRequest{Name: "root", Source: "def f(x): return sqrt(x)"}))

	_, err := s.client.Get(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	err = s.client.Create(ctx, CreateRequest{Name: "root", Source: "def f(x): return x"})
	assert.ErrorIs(t, err, model.ErrAlreadyExists)

	err = s.client.Create(ctx, CreateRequest{Name: "bad", Source: "def f(x): return y"})
	assert.ErrorIs(t, err, model.ErrInvalidDefinition)

	_, err = s.client.Compute(ctx, "root", []float64{-1}, nil)
	assert.ErrorIs(t, err, model.ErrEvaluation)
}

func TestUpdateAndDelete(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.client.Create(ctx, CreateRequest{Name: "line", Source: "def f(x, a=1, b=0): return a*x + b"}))

	// Patch policy
	require.NoError(t, s.client.Update(ctx, "line", model.Patch{Description: strPtr("described")}))
	def, err := s.client.Get(ctx, "line")
	require.NoError(t, err)
	assert.Equal(t, "described", def.Description)

	// Replace policy through the legacy field
	status, _ := s.raw(t, http.MethodPut, "/functions/line", `{"code": "def f(x, k=3): return k*x"}`)
	require.Equal(t, http.StatusOK, status)
	ys, err := s.client.Compute(ctx, "line", []float64{1, 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 6}, ys)

	// Delete
	require.NoError(t, s.client.Delete(ctx, "line"))
	_, err = s.client.Get(ctx, "line")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestFunctionData(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.client.Create(ctx, CreateRequest{Name: "wave", Source: "def f(t, w=2): return sin(w*t)"}))

	data, err := s.client.Data(ctx, "wave")

	require.NoError(t, err)
	assert.Equal(t, `{"t":"float","w":"float"}`, data.InputSignature.String())
	assert.Equal(t, []string{"t", "w"}, data.Arguments)
	assert.Equal(t, []string{"sin"}, data.Uses)
	require.Len(t, data.Parameters, 1)
	assert.Equal(t, 2.0, *data.Parameters[0].Default)
}

func TestComputeEmptyInput(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.client.Create(context.Background(), CreateRequest{Name: "id", Source: "def f(x): return x"}))

	status, body := s.raw(t, http.MethodPost, "/functions/id/compute", `{"x": []}`)

	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, body)
}

func TestBannerHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	status, body := s.raw(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"message": "Parametric Function Server"}`, body)

	require.NoError(t, s.client.Health(ctx))

	_, _ = s.client.Get(ctx, "missing")
	status, body = s.raw(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "paramfn_http_requests_total")
	assert.Contains(t, body, `paramfn_faults_total{kind="not_found"}`)
}

func TestRequestsCarryRequestID(t *testing.T) {
	s := newTestServer(t)

	_, _ = s.raw(t, http.MethodGet, "/functions", "")

	assert.Contains(t, s.logs.String(), "Request received.")
	assert.Contains(t, s.logs.String(), "request_id=")
}
