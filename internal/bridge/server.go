// Package bridge exposes a running engine to an editor over HTTP.
//
// Every handler hands its work to the engine loop through Submit,
// Enqueue or RequestUpdate, so the graph keeps a single writer no matter
// how many requests are in flight.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/pinsync/internal/engine"
	"github.com/roach88/pinsync/internal/graph"
	"github.com/roach88/pinsync/internal/store"
)

// Saver persists a serialized graph. Implemented by *store.Store.
type Saver interface {
	SaveWorkflow(ctx context.Context, name string, doc *graph.Document) (*store.Workflow, bool, error)
}

// Server routes HTTP requests onto one engine editing one workflow.
type Server struct {
	eng      *engine.Engine
	saver    Saver
	workflow string
}

// New creates a server for the named workflow.
func New(eng *engine.Engine, saver Saver, workflow string) *Server {
	return &Server{eng: eng, saver: saver, workflow: workflow}
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// UpdateRequest is the body of POST /nodes/:id/update. A nil Query
// re-parses the text the node already holds.
type UpdateRequest struct {
	Query *string `json:"query"`
}

// ConnectRequest is the body of POST /links.
type ConnectRequest struct {
	OriginID   graph.NodeID `json:"origin_id" binding:"required"`
	OriginSlot *int         `json:"origin_slot" binding:"required,min=0"`
	TargetID   graph.NodeID `json:"target_id" binding:"required"`
	TargetSlot *int         `json:"target_slot" binding:"required,min=0"`
}

// SaveResponse is the body of a successful POST /save.
type SaveResponse struct {
	Name     string `json:"name"`
	Revision int64  `json:"revision"`
	Changed  bool   `json:"changed"`
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	s.RegisterRoutes(router)
	return router
}

// RegisterRoutes registers the bridge endpoints.
//
//	GET    /healthz            - liveness and queue depth
//	GET    /metrics            - Prometheus metrics
//	GET    /nodes/:id          - live pins and widgets of a node
//	POST   /nodes/:id/update   - re-parse a Highway query
//	POST   /links              - connect two slots
//	DELETE /links/:id          - remove a link
//	POST   /save               - persist the graph
func (s *Server) RegisterRoutes(r gin.IRouter) {
	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/nodes/:id", s.handleGetNode)
	r.POST("/nodes/:id/update", s.handleUpdate)
	r.POST("/links", s.handleConnect)
	r.DELETE("/links/:id", s.handleDisconnect)
	r.POST("/save", s.handleSave)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"workflow": s.workflow,
		"queue":    s.eng.QueueLen(),
	})
}

func (s *Server) handleGetNode(c *gin.Context) {
	id, ok := nodeParam(c)
	if !ok {
		return
	}
	var view NodeView
	err := s.eng.Submit(c.Request.Context(), func(g *graph.Graph) error {
		n, err := g.Node(id)
		if err != nil {
			return err
		}
		view = ViewNode(n)
		return nil
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleUpdate(c *gin.Context) {
	id, ok := nodeParam(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: []string{err.Error()}})
			return
		}
	}

	res, err := s.eng.RequestUpdate(c.Request.Context(), id, req.Query)
	if res == nil {
		writeError(c, err)
		return
	}
	if err != nil && !engine.IsValidationError(err) && !engine.IsTransportError(err) {
		writeError(c, err)
		return
	}
	c.JSON(updateStatus(res.Status), res)
}

// updateStatus maps an update outcome to its HTTP status.
func updateStatus(st engine.UpdateStatus) int {
	switch st {
	case engine.UpdateApplied:
		return http.StatusOK
	case engine.UpdateStale:
		return http.StatusConflict
	case engine.UpdateRejected:
		return http.StatusUnprocessableEntity
	case engine.UpdateFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleConnect(c *gin.Context) {
	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: []string{err.Error()}})
		return
	}

	var view LinkView
	err := s.eng.Submit(c.Request.Context(), func(g *graph.Graph) error {
		l, err := g.Connect(req.OriginID, *req.OriginSlot, req.TargetID, *req.TargetSlot)
		if l != nil {
			view = ViewLink(l)
		}
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (s *Server) handleDisconnect(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid link id"})
		return
	}

	reply := make(chan error, 1)
	if !s.eng.Enqueue(engine.Event{Type: engine.EventTypeDisconnect, Disconnect: graph.LinkID(id), Reply: reply}) {
		writeError(c, engine.ErrStopped)
		return
	}
	select {
	case err := <-reply:
		if err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	case <-c.Request.Context().Done():
		writeError(c, c.Request.Context().Err())
	}
}

func (s *Server) handleSave(c *gin.Context) {
	var doc *graph.Document
	err := s.eng.Submit(c.Request.Context(), func(g *graph.Graph) error {
		var err error
		doc, err = g.Serialize()
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}

	wf, changed, err := s.saver.SaveWorkflow(c.Request.Context(), s.workflow, doc)
	if err != nil {
		slog.Error("save workflow failed", "workflow", s.workflow, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "save failed", Details: []string{err.Error()}})
		return
	}
	c.JSON(http.StatusOK, SaveResponse{Name: wf.Name, Revision: wf.Revision, Changed: changed})
}

func nodeParam(c *gin.Context) (graph.NodeID, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid node id"})
		return 0, false
	}
	return graph.NodeID(id), true
}

// writeError maps engine and graph errors to HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, graph.ErrUnknownNode), errors.Is(err, graph.ErrUnknownLink), engine.IsUnknownNodeError(err):
		status = http.StatusNotFound
	case graph.IsSlotError(err), errors.Is(err, graph.ErrConnectionRejected):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrStopped):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusRequestTimeout
	}
	if status == http.StatusInternalServerError {
		slog.Error("bridge request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("bridge request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
