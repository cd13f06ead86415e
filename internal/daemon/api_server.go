package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"yayd/internal/api"
	"yayd/internal/fileutil"
	"yayd/internal/jobs"
	"yayd/internal/logging"
)

type apiServer struct {
	daemon *Daemon
	logger *slog.Logger
	engine *gin.Engine

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(d *Daemon, logger *slog.Logger) *apiServer {
	s := &apiServer{
		daemon: d,
		logger: logging.NewComponentLogger(logger, "api-server"),
	}
	s.engine = s.routes(strings.TrimSpace(d.cfg.Paths.APIToken))
	return s
}

func (s *apiServer) routes(token string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	group := r.Group("/api")
	group.Use(authMiddleware(token))

	group.POST("/download", s.handleSubmit)
	group.GET("/status/:id", s.handleStatus)
	group.GET("/cancel/:id", s.handleCancel)
	group.POST("/cancel/:id", s.handleCancel)
	group.GET("/download/:id", s.handleResult)
	group.GET("/jobs", s.handleList)
	group.DELETE("/jobs/:id", s.handleForget)
	group.GET("/jobs/:id/events", s.handleEvents)
	group.GET("/health", s.handleHealth)
	return r
}

func (s *apiServer) start(ctx context.Context, bind string) error {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		_ = server.Close()
	}
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) controller() *jobs.Controller {
	return s.daemon.controller
}

// POST /api/download
func (s *apiServer) handleSubmit(c *gin.Context) {
	var req api.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: invalid request body: %v", jobs.ErrInvalidInput, err))
		return
	}
	jobReq := req.JobRequest()
	if jobReq.Source == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "URL is required", Code: jobs.CodeInvalidInput})
		return
	}
	if dir := strings.TrimSpace(jobReq.OutputDir); dir != "" {
		confined, err := fileutil.Confine(s.controller().Settings().OutputDir, dir)
		if err != nil {
			writeError(c, fmt.Errorf("%w: outputDir must stay inside the download directory: %v", jobs.ErrInvalidInput, err))
			return
		}
		jobReq.OutputDir = confined
	}
	id, err := s.controller().Submit(c.Request.Context(), jobReq)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.SubmitResponse{DownloadID: id, Message: "Download started"})
}

// GET /api/status/:id
func (s *apiServer) handleStatus(c *gin.Context) {
	snap, err := s.controller().Status(c.Param("id"))
	if err != nil {
		writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromSnapshot(snap))
}

// GET|POST /api/cancel/:id
func (s *apiServer) handleCancel(c *gin.Context) {
	id := c.Param("id")
	if err := s.controller().Cancel(id); err != nil {
		writeLookupError(c, err)
		return
	}
	snap, err := s.controller().Status(id)
	if err != nil {
		writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.CancelResponse{Message: "Download cancelled", State: string(snap.State)})
}

// GET /api/download/:id
func (s *apiServer) handleResult(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.controller().Status(id); err != nil {
		writeLookupError(c, err)
		return
	}
	res, err := s.controller().Result(id)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "File not found", Code: jobs.CodeNotFound})
			return
		}
		writeError(c, err)
		return
	}
	if res.Collection {
		c.JSON(http.StatusOK, api.FromResult(id, res))
		return
	}
	c.FileAttachment(res.Path, filepath.Base(res.Path))
}

// GET /api/jobs
func (s *apiServer) handleList(c *gin.Context) {
	filter := make(map[jobs.State]struct{})
	for _, value := range c.QueryArray("state") {
		for _, part := range strings.Split(value, ",") {
			state, ok := jobs.ParseState(part)
			if !ok {
				if strings.TrimSpace(part) == "" {
					continue
				}
				writeError(c, fmt.Errorf("%w: unknown state %q", jobs.ErrInvalidInput, part))
				return
			}
			filter[state] = struct{}{}
		}
	}
	snaps := s.controller().List()
	if len(filter) > 0 {
		kept := snaps[:0]
		for _, snap := range snaps {
			if _, ok := filter[snap.State]; ok {
				kept = append(kept, snap)
			}
		}
		snaps = kept
	}
	c.JSON(http.StatusOK, api.JobListResponse{Jobs: api.FromSnapshots(snaps)})
}

// DELETE /api/jobs/:id
func (s *apiServer) handleForget(c *gin.Context) {
	if err := s.controller().Forget(c.Param("id")); err != nil {
		writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.ForgetResponse{Message: "Download forgotten"})
}

// GET /api/health
func (s *apiServer) handleHealth(c *gin.Context) {
	status := s.daemon.Status(c.Request.Context())
	counts := make(map[string]int, len(status.Jobs))
	for state, n := range status.Jobs {
		counts[string(state)] = n
	}
	payload := api.Health{
		Running:      status.Running,
		PID:          status.PID,
		Bind:         status.Bind,
		DownloadDir:  status.DownloadDir,
		LockFilePath: status.LockFilePath,
		HistoryPath:  status.HistoryPath,
		Jobs:         counts,
		Dependencies: api.FromDependencyStatuses(status.Dependencies),
	}
	if !status.StartedAt.IsZero() {
		payload.StartedAt = status.StartedAt.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, payload)
}

// writeLookupError keeps the "Download not found" body browser clients
// already expect for unknown ids.
func writeLookupError(c *gin.Context, err error) {
	if errors.Is(err, jobs.ErrNotFound) {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Download not found", Code: jobs.CodeNotFound})
		return
	}
	writeError(c, err)
}

func writeError(c *gin.Context, err error) {
	resp := api.NewErrorResponse(err)
	c.JSON(api.HTTPStatus(resp.Code), resp)
}
