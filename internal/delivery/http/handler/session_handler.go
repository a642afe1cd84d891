package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	sessionService "navidrive/internal/application/session"
	"navidrive/internal/domain/drive"
	domain "navidrive/internal/domain/session"
	"navidrive/internal/infrastructure/logging"
	"navidrive/internal/infrastructure/metrics"
)

// resolveTimeout bounds how long a navigation request waits for the new
// listing before answering with a loading view.
const resolveTimeout = 5 * time.Second

type SessionHandler struct {
	service sessionService.Service
}

func NewSessionHandler(service sessionService.Service) *SessionHandler {
	return &SessionHandler{service: service}
}

// ActionResponse is the answer to a session action: what the action did and
// the view after it.
type ActionResponse struct {
	Result any                 `json:"result,omitempty"`
	View   sessionService.View `json:"view"`
}

// HandleSession routes /api/session based on method
func (h *SessionHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.Start(w, r)
	case http.MethodGet:
		h.View(w, r)
	case http.MethodDelete:
		h.End(w, r)
	default:
		SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Start handles POST /api/session
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Start(r.Context())
	if err != nil {
		if errors.Is(err, drive.ErrNotFound) {
			SendError(w, "Drive is not initialized", http.StatusServiceUnavailable)
			return
		}
		SendServiceError(w, err, "Failed to start session")
		return
	}
	SendSuccess(w, "Session started", resp)
}

// View handles GET /api/session?q={filter}&refresh=true
func (h *SessionHandler) View(w http.ResponseWriter, r *http.Request) {
	rt, ok := requireSession(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("refresh") == "true" {
		if err := rt.Refresh(r.Context()); err != nil {
			SendServiceError(w, err, "Failed to refresh folder")
			return
		}
		if !waitResolved(w, r, rt) {
			return
		}
	}

	v, err := rt.View(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		SendServiceError(w, err, "Failed to render session")
		return
	}
	SendSuccess(w, "", v)
}

// End handles DELETE /api/session
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	rt, ok := requireSession(w, r)
	if !ok {
		return
	}

	if err := h.service.End(r.Context(), rt.Token()); err != nil {
		SendServiceError(w, err, "Failed to end session")
		return
	}
	SendSuccess(w, "Session ended", nil)
}

// Navigate handles POST /api/session/navigate
func (h *SessionHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	rt, ok := requirePost(w, r)
	if !ok {
		return
	}

	var req domain.NavigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FolderID <= 0 {
		SendError(w, "folderId is required", http.StatusBadRequest)
		return
	}

	if err := rt.Navigate(r.Context(), req.FolderID); err != nil {
		SendServiceError(w, err, "Failed to navigate")
		return
	}
	if !waitResolved(w, r, rt) {
		return
	}
	sendAction(w, r, rt, "", nil)
}

// Up handles POST /api/session/up
func (h *SessionHandler) Up(w http.ResponseWriter, r *http.Request) {
	rt, ok := requirePost(w, r)
	if !ok {
		return
	}

	moved, err := rt.GoUp(r.Context())
	if err != nil {
		SendServiceError(w, err, "Failed to navigate")
		return
	}
	if moved && !waitResolved(w, r, rt) {
		return
	}
	sendAction(w, r, rt, "", map[string]bool{"moved": moved})
}

// Open handles POST /api/session/open
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	rt, ref, ok := decodeItem(w, r)
	if !ok {
		return
	}

	res, err := rt.Open(r.Context(), ref)
	if errors.Is(err, domain.ErrAccessDenied) {
		// The refused click still moves the narrative, so the caller gets
		// the view along with the refusal.
		v, verr := rt.View(r.Context(), "")
		if verr != nil {
			SendServiceError(w, verr, "Failed to render session")
			return
		}
		SendJSON(w, http.StatusForbidden, Response{
			Success: false,
			Message: "Cannot open file - access denied",
			Data:    ActionResponse{View: v},
		})
		return
	}
	if err != nil {
		SendServiceError(w, err, "Failed to open item")
		return
	}

	if res.FolderID != 0 && !waitResolved(w, r, rt) {
		return
	}
	sendAction(w, r, rt, res.Notice, res)
}

// Select handles POST /api/session/select
func (h *SessionHandler) Select(w http.ResponseWriter, r *http.Request) {
	rt, ref, ok := decodeItem(w, r)
	if !ok {
		return
	}

	selected, err := rt.Select(r.Context(), ref)
	if err != nil {
		SendServiceError(w, err, "Failed to select item")
		return
	}
	sendAction(w, r, rt, "", map[string]bool{"selected": selected})
}

// Repair handles POST /api/session/repair
func (h *SessionHandler) Repair(w http.ResponseWriter, r *http.Request) {
	rt, ref, ok := decodeItem(w, r)
	if !ok {
		return
	}

	if err := rt.Repair(r.Context(), ref); err != nil {
		SendServiceError(w, err, "Failed to repair item")
		return
	}
	sendAction(w, r, rt, "Repair attempted", nil)
}

// Key handles POST /api/session/key
func (h *SessionHandler) Key(w http.ResponseWriter, r *http.Request) {
	rt, ok := requirePost(w, r)
	if !ok {
		return
	}

	var req domain.KeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := rt.Key(r.Context(), req.Key); err != nil {
		SendServiceError(w, err, "Failed to handle key")
		return
	}
	sendAction(w, r, rt, "", nil)
}

// Stream handles GET /api/session/stream. Every change and tick of the
// session is pushed as a "view" event until the client goes away or the
// session stops.
func (h *SessionHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rt, ok := requireSession(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		SendError(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	views, cancel, err := rt.Subscribe(ctx, r.URL.Query().Get("q"))
	if err != nil {
		SendServiceError(w, err, "Failed to subscribe")
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	metrics.SSEConnectionOpened()
	defer metrics.SSEConnectionClosed()

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-views:
			if !ok {
				fmt.Fprint(w, "event: end\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			data, err := json.Marshal(v)
			if err != nil {
				logging.Warn("failed to encode view", zap.String("session_id", rt.ID()), zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: view\nid: %d\ndata: %s\n\n", v.Generation, data)
			flusher.Flush()
		}
	}
}

// Terminal handles GET /api/session/terminal
func (h *SessionHandler) Terminal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rt, ok := requireSession(w, r)
	if !ok {
		return
	}

	v, err := rt.View(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		SendServiceError(w, err, "Failed to render session")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, sessionService.RenderTerminal(v))
}

func requireSession(w http.ResponseWriter, r *http.Request) (*sessionService.Runtime, bool) {
	rt := GetSessionFromContext(r.Context())
	if rt == nil {
		SendError(w, "Session required", http.StatusUnauthorized)
		return nil, false
	}
	return rt, true
}

func requirePost(w http.ResponseWriter, r *http.Request) (*sessionService.Runtime, bool) {
	if r.Method != http.MethodPost {
		SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}
	return requireSession(w, r)
}

func decodeItem(w http.ResponseWriter, r *http.Request) (*sessionService.Runtime, drive.Ref, bool) {
	rt, ok := requirePost(w, r)
	if !ok {
		return nil, drive.Ref{}, false
	}

	var req domain.ItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendError(w, "Invalid request body", http.StatusBadRequest)
		return nil, drive.Ref{}, false
	}
	ref, err := drive.ParseRef(req.Ref)
	if err != nil {
		SendError(w, "Invalid item reference", http.StatusBadRequest)
		return nil, drive.Ref{}, false
	}
	return rt, ref, true
}

// waitResolved waits for the pending listing. A slow listing is not an
// error: the caller answers with a loading view.
func waitResolved(w http.ResponseWriter, r *http.Request, rt *sessionService.Runtime) bool {
	ctx, cancel := context.WithTimeout(r.Context(), resolveTimeout)
	defer cancel()

	err := rt.WaitResolved(ctx)
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	SendServiceError(w, err, "Failed to load folder")
	return false
}

func sendAction(w http.ResponseWriter, r *http.Request, rt *sessionService.Runtime, message string, result any) {
	v, err := rt.View(r.Context(), "")
	if err != nil {
		SendServiceError(w, err, "Failed to render session")
		return
	}
	SendSuccess(w, message, ActionResponse{Result: result, View: v})
}
