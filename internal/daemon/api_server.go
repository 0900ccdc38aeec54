package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/iiab/tubeshelf/internal/api"
	"github.com/iiab/tubeshelf/internal/config"
	"github.com/iiab/tubeshelf/internal/logging"
	"github.com/iiab/tubeshelf/internal/worker"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/tasks", srv.handleTasks)
	mux.HandleFunc("/api/tasks/", srv.handleTaskAction)
	mux.HandleFunc("/api/search/captions", srv.handleCaptionSearch)
	mux.HandleFunc("/api/search/titles", srv.handleTitleSearch)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status()
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		Workers:      status.Workers,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		TaskCounts:   status.TaskCounts,
	})
}

func (s *apiServer) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req api.SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		id, err := s.daemon.Submit(strings.TrimSpace(req.MediaURL), strings.TrimSpace(req.NotifyURL), strings.TrimSpace(req.User))
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.SubmitResponse{TaskID: id})
	case http.MethodGet:
		user := strings.TrimSpace(r.URL.Query().Get("user"))
		snapshots := s.daemon.Tasks(user)
		views := make([]api.TaskView, 0, len(snapshots))
		for _, snapshot := range snapshots {
			views = append(views, taskView(snapshot))
		}
		s.writeJSON(w, http.StatusOK, api.TaskListResponse{Tasks: views})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleTaskAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	taskID, action, found := strings.Cut(rest, "/")
	if !found || action != "cancel" || taskID == "" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.CancelResponse{Cancelled: s.daemon.Cancel(taskID)})
}

func (s *apiServer) handleCaptionSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	term := r.URL.Query().Get("term")
	ids, passages, err := s.daemon.SearchCaptions(r.Context(), term)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := api.CaptionSearchResponse{
		IDs:      make([]string, 0, len(ids)),
		Passages: make([]api.CaptionPassage, 0, len(passages)),
	}
	for _, id := range ids {
		resp.IDs = append(resp.IDs, strconv.FormatInt(id, 10))
	}
	for _, passage := range passages {
		resp.Passages = append(resp.Passages, api.CaptionPassage{
			MediaID: passage.MediaID,
			Start:   passage.Start,
			End:     passage.End,
			Text:    passage.Text,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleTitleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	titles, err := s.daemon.SearchTitles(r.Context(), r.URL.Query().Get("term"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.TitleSearchResponse{Titles: titles})
}

func taskView(snapshot worker.Snapshot) api.TaskView {
	view := api.TaskView{
		ID:          snapshot.ID,
		User:        snapshot.UserID,
		Name:        snapshot.Name,
		Message:     snapshot.Message,
		Progress:    snapshot.Progress,
		Status:      string(snapshot.Status),
		Cancellable: snapshot.Cancellable,
	}
	if !snapshot.StartTime.IsZero() {
		view.StartTime = snapshot.StartTime.Format(time.RFC3339)
	}
	if !snapshot.EndTime.IsZero() {
		view.EndTime = snapshot.EndTime.Format(time.RFC3339)
	}
	return view
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	return logging.NewComponentLogger(s.logger, "api-server")
}
