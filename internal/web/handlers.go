package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/cjeanneret/LineGo/internal/dispatch"
	"github.com/cjeanneret/LineGo/internal/logic/navigation"
	"github.com/cjeanneret/LineGo/internal/status"
	"github.com/cjeanneret/LineGo/internal/store"
)

// maxRequestBytes bounds POST bodies.
const maxRequestBytes = 1 << 20

// maxRouteNameLen bounds route names accepted from the web form.
const maxRouteNameLen = 64

// RunRequest is the body of POST /run.
type RunRequest struct {
	Route string `json:"route"`
}

// RouteRunner starts route runs; one at a time.
type RouteRunner interface {
	Busy() bool
	RunSelection(ctx context.Context, name string) (navigation.Result, error)
}

// SnapshotSource returns the current operator status.
type SnapshotSource interface {
	Snapshot() status.Snapshot
}

// RunHistory lists recorded runs.
type RunHistory interface {
	Recent(ctx context.Context, limit int) ([]store.Run, error)
}

// FormConfig holds default values for the run form (from config).
type FormConfig struct {
	Routes             []string `json:"routes"`
	StopAt             int      `json:"stop_at"`
	TotalIntersections int      `json:"total_intersections"`
	Threshold          int      `json:"threshold"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster  *StatusBroadcaster
	Runner       RouteRunner
	Status       SnapshotSource
	History      RunHistory
	FormDefaults FormConfig
	runningMu    sync.Mutex
	running      bool
	ctx          context.Context
	staticFS     fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If runner is nil, POST /run returns 503; if history is nil, GET /runs does.
func NewHandlers(broadcaster *StatusBroadcaster, runner RouteRunner, board SnapshotSource, history RunHistory, formDefaults FormConfig, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster:  broadcaster,
		Runner:       runner,
		Status:       board,
		History:      history,
		FormDefaults: formDefaults,
		ctx:          context.Background(),
		staticFS:     staticFS,
	}
}

// ValidateRunRequest checks the route name of a manual run.
func ValidateRunRequest(req RunRequest) error {
	name := strings.TrimSpace(req.Route)
	if name == "" {
		return errors.New("route is required")
	}
	if !utf8.ValidString(name) {
		return errors.New("route must be valid UTF-8")
	}
	if n := utf8.RuneCountInString(name); n > maxRouteNameLen {
		return fmt.Errorf("route must be at most %d characters, got %d", maxRouteNameLen, n)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return errors.New("route must not contain control characters")
		}
	}
	return nil
}

// HandleConfig returns the form default values (from config) as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.FormDefaults)
}

// HandleStatus returns the current status snapshot as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if h.Status == nil {
		http.Error(w, "status not configured", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, h.Status.Snapshot())
}

// HandleRuns returns recent runs, newest first. ?limit=N (1-100, default 20).
func (h *Handlers) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		http.Error(w, "run history not configured", http.StatusServiceUnavailable)
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 || v > 100 {
			http.Error(w, "limit must be between 1 and 100", http.StatusBadRequest)
			return
		}
		limit = v
	}

	runs, err := h.History.Recent(r.Context(), limit)
	if err != nil {
		log.Printf("list runs failed: %v", err)
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleRun handles POST /run to start a route.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := ValidateRunRequest(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(req.Route)

	if h.Runner == nil {
		http.Error(w, "route runner not configured", http.StatusServiceUnavailable)
		return
	}

	h.runningMu.Lock()
	if h.running || h.Runner.Busy() {
		h.runningMu.Unlock()
		http.Error(w, dispatch.ErrBusy.Error(), http.StatusConflict)
		return
	}
	h.running = true
	h.runningMu.Unlock()

	// Run in goroutine; clear running when done
	go func() {
		defer func() {
			h.runningMu.Lock()
			h.running = false
			h.runningMu.Unlock()
		}()

		res, err := h.Runner.RunSelection(h.ctx, name)
		switch {
		case errors.Is(err, dispatch.ErrBusy):
			h.Broadcaster.Broadcast("error", "Route "+name+" not started: "+err.Error())
		case err != nil:
			h.Broadcaster.Broadcast("error", "Route "+name+" failed: "+err.Error())
			log.Printf("route %q failed: %v", name, err)
		default:
			h.Broadcaster.Broadcast("info", fmt.Sprintf("Route %s %s (%d/%d intersections)", name, res.Outcome, res.IntersectionsPassed, res.Total))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started", "route": name})
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	if h.Status != nil {
		snap := h.Status.Snapshot()
		if data, err := json.Marshal(StatusEvent{Time: time.Now().Format(time.RFC3339), Status: &snap}); err == nil {
			w.Write([]byte("data: " + string(data) + "\n\n"))
		}
	}
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
