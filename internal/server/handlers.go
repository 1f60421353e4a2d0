package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ppiankov/credence/internal/model"
	"github.com/ppiankov/credence/internal/pipeline"
	"github.com/ppiankov/credence/internal/store"
)

const (
	maxHistoryLimit = 100
	startTimeout    = 10 * time.Second
	writeWait       = 10 * time.Second
)

// RunRequest starts a run. Without an answer the pipeline generates one
// from the question; without documents the server's corpus is used.
type RunRequest struct {
	Question  string   `json:"question" binding:"required_without=Answer,max=4000"`
	Answer    string   `json:"answer" binding:"max=50000"`
	Documents []string `json:"documents" binding:"omitempty,max=200,dive,required"`
}

// StartResponse acknowledges an async run
type StartResponse struct {
	ID        string `json:"id"`
	StatusURL string `json:"status_url"`
	StreamURL string `json:"stream_url"`
}

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// pipelineFor picks the corpus a request is verified against
func (s *Server) pipelineFor(req RunRequest) *pipeline.Pipeline {
	if len(req.Documents) == 0 {
		return s.pipeline
	}
	return s.pipeline.WithCorpus(model.Corpus(req.Documents))
}

func execute(ctx context.Context, p *pipeline.Pipeline, req RunRequest) (*model.Run, error) {
	if req.Answer != "" {
		return p.Check(ctx, req.Question, req.Answer)
	}
	return p.Run(ctx, req.Question)
}

// handleStartRun handles POST /v1/runs: 202 with the run ID, run continues
// in the background
func (s *Server) handleStartRun(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Warn("Invalid run request", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	// The first transition is reported synchronously, so the ID arrives
	// before any capability is called
	ids := make(chan string, 1)
	var once sync.Once
	idSink := pipeline.SinkFunc(func(ctx context.Context, run model.Run) error {
		once.Do(func() { ids <- run.ID })
		return nil
	})
	p := s.pipelineFor(req).WithSink(idSink)

	failed := make(chan error, 1)
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		if _, err := execute(s.runCtx, p, req); err != nil {
			s.logger.Warn("Async run failed", "error", err)
			failed <- err
		}
	}()

	accepted := func(id string) {
		c.JSON(http.StatusAccepted, StartResponse{
			ID:        id,
			StatusURL: "/v1/runs/" + id,
			StreamURL: "/v1/runs/" + id + "/stream",
		})
	}

	select {
	case id := <-ids:
		accepted(id)
	case err := <-failed:
		// A run that started and then failed is still a run
		select {
		case id := <-ids:
			accepted(id)
		default:
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "RUN_REJECTED"})
		}
	case <-time.After(startTimeout):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "run did not start", Code: "START_TIMEOUT"})
	}
}

// handleCheck handles POST /v1/check: the run executes within the request
// and the final snapshot is returned, including runs that ended in error
func (s *Server) handleCheck(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Warn("Invalid check request", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	run, err := execute(c.Request.Context(), s.pipelineFor(req), req)
	if run == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "RUN_REJECTED"})
		return
	}
	c.JSON(http.StatusOK, s.renderer.NewReport(run))
}

// handleGetRun handles GET /v1/runs/:id
func (s *Server) handleGetRun(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	run, err := s.memory.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) && s.history != store.Store(s.memory) {
		run, err = s.history.Get(ctx, id)
	}
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "run not found", Code: "NOT_FOUND"})
		return
	}
	if err != nil {
		s.logger.Error("Load run failed", "run_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "STORE_ERROR"})
		return
	}

	c.JSON(http.StatusOK, s.renderer.NewReport(run))
}

// handleHistory handles GET /v1/runs?limit=N
func (s *Server) handleHistory(c *gin.Context) {
	limit := store.DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be between 1 and 100", Code: "INVALID_LIMIT"})
			return
		}
		limit = n
	}

	runs, err := s.history.History(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("Load history failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "STORE_ERROR"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleStream handles GET /v1/runs/:id/stream: every snapshot of the run
// as a JSON text message, then a normal close once the run is terminal
func (s *Server) handleStream(c *gin.Context) {
	id := c.Param("id")
	snapshots, cancel, err := s.memory.Subscribe(id)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "run not found", Code: "NOT_FOUND"})
		return
	}
	defer cancel()

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "run_id", id, "error", err)
		return
	}
	defer func() { _ = ws.Close() }()

	// Reader: detects the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case run, ok := <-snapshots:
			if !ok {
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"),
					time.Now().Add(writeWait))
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(s.renderer.NewReport(&run)); err != nil {
				s.logger.Warn("WebSocket write failed", "run_id", id, "error", err)
				return
			}
		case <-gone:
			s.logger.Debug("WebSocket client disconnected", "run_id", id)
			return
		}
	}
}
