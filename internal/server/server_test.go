package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/credence/internal/capability"
	"github.com/ppiankov/credence/internal/model"
	"github.com/ppiankov/credence/internal/pipeline"
	"github.com/ppiankov/credence/internal/store"
	"github.com/ppiankov/credence/internal/telemetry"
	"github.com/ppiankov/credence/internal/worker"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testCorpus = model.Corpus{
	"Financial Report 2024: The company saw a 15% increase in revenue compared to Q3 2023. Operating costs were reduced by 5% through automation.",
	"Product Roadmap: Version 2.0 of the core AI engine is scheduled for release in November 2024.",
}

// gatedGenerator blocks until release is closed
type gatedGenerator struct {
	release chan struct{}
	answer  string
}

func (g *gatedGenerator) Generate(ctx context.Context, req capability.GenerateRequest) (capability.GenerateResponse, error) {
	select {
	case <-g.release:
		return capability.GenerateResponse{Answer: g.answer}, nil
	case <-ctx.Done():
		return capability.GenerateResponse{}, ctx.Err()
	}
}

type testEnv struct {
	server *Server
	memory *store.Memory
	reg    *prometheus.Registry
}

func newTestEnv(t *testing.T, set capability.Set) *testEnv {
	t.Helper()
	reg := prometheus.NewRegistry()
	memory := store.NewMemory(0)
	p := pipeline.New(set, testCorpus, pipeline.Options{
		Workers: 2,
		Metrics: telemetry.New(reg),
	})

	s := New(Config{Pipeline: p, Memory: memory, Gatherer: reg})
	t.Cleanup(s.Close)
	return &testEnv{server: s, memory: memory, reg: reg}
}

func heuristicSet() capability.Set {
	return capability.NewHeuristic(testCorpus).Set()
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decodeRun(t *testing.T, w *httptest.ResponseRecorder) model.Run {
	t.Helper()
	var run model.Run
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	return run
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t, heuristicSet())
	w := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestServer_Check(t *testing.T) {
	env := newTestEnv(t, heuristicSet())

	w := env.do(t, http.MethodPost, "/v1/check", RunRequest{
		Question: "How did revenue develop?",
		Answer:   "The company saw a 15% increase in revenue compared to Q3 2023.",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	run := decodeRun(t, w)
	assert.Equal(t, model.StatusComplete, run.Status)
	require.Len(t, run.Results, 1)
	assert.Equal(t, model.ClassificationVerified, run.Results[0].Status)
	require.NotNil(t, run.Metrics)
	assert.Equal(t, model.RiskLow, run.Metrics.RiskLevel)
	assert.Contains(t, w.Body.String(), `"breakdown"`)

	// The memory store saw the run
	stored, err := env.memory.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusComplete, stored.Status)
}

func TestServer_Check_CustomDocuments(t *testing.T) {
	env := newTestEnv(t, heuristicSet())

	w := env.do(t, http.MethodPost, "/v1/check", RunRequest{
		Answer:    "The company saw a 15% increase in revenue compared to Q3 2023.",
		Documents: []string{"The weather in Lisbon was sunny all week."},
	})
	require.Equal(t, http.StatusOK, w.Code)

	run := decodeRun(t, w)
	require.Len(t, run.Results, 1)
	assert.Equal(t, model.ClassificationUnsupported, run.Results[0].Status)
}

func TestServer_Check_RunErrorIsReturned(t *testing.T) {
	env := newTestEnv(t, heuristicSet())

	// No corpus sentence shares a term with the question, so nothing is generated
	w := env.do(t, http.MethodPost, "/v1/check", RunRequest{Question: "zebra xylophone"})
	require.Equal(t, http.StatusOK, w.Code)

	run := decodeRun(t, w)
	assert.Equal(t, model.StatusError, run.Status)
	assert.Contains(t, run.Error, "answer is empty")
	assert.Nil(t, run.Metrics)
}

func TestServer_InvalidRequests(t *testing.T) {
	env := newTestEnv(t, heuristicSet())

	tests := []struct {
		name string
		path string
		body any
	}{
		{"check without question or answer", "/v1/check", RunRequest{}},
		{"run without question or answer", "/v1/runs", RunRequest{}},
		{"blank document", "/v1/check", RunRequest{Answer: "x", Documents: []string{""}}},
		{"not json", "/v1/check", "nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "INVALID_REQUEST", resp.Code)
		})
	}
}

func TestServer_StartRunIsAsync(t *testing.T) {
	gen := &gatedGenerator{release: make(chan struct{}), answer: "Operating costs were reduced by 5% through automation."}
	set := heuristicSet()
	set.Generator = gen
	env := newTestEnv(t, set)

	w := env.do(t, http.MethodPost, "/v1/runs", RunRequest{Question: "What happened to costs?"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var started StartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	require.NotEmpty(t, started.ID)
	assert.Equal(t, "/v1/runs/"+started.ID, started.StatusURL)

	// Still generating while the generator is held
	w = env.do(t, http.MethodGet, started.StatusURL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.StatusGenerating, decodeRun(t, w).Status)

	close(gen.release)

	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, started.StatusURL, nil)
		w := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(w, req)
		var run model.Run
		return json.Unmarshal(w.Body.Bytes(), &run) == nil && run.Status == model.StatusComplete
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_StartRunRejected(t *testing.T) {
	env := newTestEnv(t, heuristicSet())

	w := env.do(t, http.MethodPost, "/v1/runs", RunRequest{Question: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "RUN_REJECTED", resp.Code)
}

func TestServer_GetUnknownRun(t *testing.T) {
	env := newTestEnv(t, heuristicSet())
	w := env.do(t, http.MethodGet, "/v1/runs/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_History(t *testing.T) {
	env := newTestEnv(t, heuristicSet())

	var ids []string
	for i := 0; i < 3; i++ {
		w := env.do(t, http.MethodPost, "/v1/check", RunRequest{Answer: "Version 2.0 is scheduled for release in November 2024."})
		require.Equal(t, http.StatusOK, w.Code)
		ids = append(ids, decodeRun(t, w).ID)
		time.Sleep(2 * time.Millisecond)
	}

	w := env.do(t, http.MethodGet, "/v1/runs?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Runs []model.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Runs, 2)
	assert.Equal(t, ids[2], resp.Runs[0].ID)
	assert.Equal(t, ids[1], resp.Runs[1].ID)

	for _, bad := range []string{"0", "101", "abc"} {
		w := env.do(t, http.MethodGet, "/v1/runs?limit="+bad, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
}

type failingHistory struct{ store.Store }

func (failingHistory) History(ctx context.Context, limit int) ([]model.Run, error) {
	return nil, errors.New("connection refused")
}

func TestServer_HistoryStoreError(t *testing.T) {
	p := pipeline.New(heuristicSet(), testCorpus, pipeline.Options{})
	s := New(Config{Pipeline: p, History: failingHistory{}, Gatherer: prometheus.NewRegistry()})
	t.Cleanup(s.Close)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/runs", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestServer_Metrics(t *testing.T) {
	env := newTestEnv(t, heuristicSet())
	env.do(t, http.MethodPost, "/v1/check", RunRequest{Answer: "Version 2.0 is scheduled for release in November 2024."})

	w := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `credence_runs_total{status="complete"} 1`)
}

func TestServer_Stream(t *testing.T) {
	gen := &gatedGenerator{release: make(chan struct{}), answer: "Operating costs were reduced by 5% through automation."}
	set := heuristicSet()
	set.Generator = gen
	env := newTestEnv(t, set)

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	w := env.do(t, http.MethodPost, "/v1/runs", RunRequest{Question: "What happened to costs?"})
	require.Equal(t, http.StatusAccepted, w.Code)
	var started StartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + started.StreamURL
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	close(gen.release)

	var statuses []model.RunStatus
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var run model.Run
		if err := conn.ReadJSON(&run); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		statuses = append(statuses, run.Status)
	}

	require.NotEmpty(t, statuses)
	assert.Equal(t, model.StatusGenerating, statuses[0])
	assert.Equal(t, model.StatusComplete, statuses[len(statuses)-1])
}

func TestServer_StreamUnknownRun(t *testing.T) {
	env := newTestEnv(t, heuristicSet())
	w := env.do(t, http.MethodGet, "/v1/runs/nope/stream", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_AdmissionLimitsSubmissionsPerClient(t *testing.T) {
	p := pipeline.New(heuristicSet(), testCorpus, pipeline.Options{Workers: 1})
	s := New(Config{Pipeline: p, Admission: worker.NewLimiter(0.001, 1)})
	t.Cleanup(s.Close)

	post := func(remote string) *httptest.ResponseRecorder {
		data, err := json.Marshal(RunRequest{Question: "Q", Answer: "Revenue grew 15%."})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/v1/check", bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, post("10.0.0.1:4000").Code)

	w := post("10.0.0.1:4001")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "RATE_LIMITED", resp.Code)

	// Other clients have their own bucket
	assert.Equal(t, http.StatusOK, post("10.0.0.2:4000").Code)

	// Reads are never limited
	env := &testEnv{server: s}
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/v1/runs", nil).Code)
}
