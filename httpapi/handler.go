// Package httpapi exposes the bridge to HTTP callers: starting a tool run,
// attaching to its event stream, and submitting elicitation answers. Event
// streams are newline-delimited JSON objects; the stream ends when the
// response body is closed, there is no explicit end-of-stream marker on the
// wire.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"

	"github.com/promptline/elicitbridge/bridge"
	"github.com/promptline/elicitbridge/internal/logctx"
)

// sessionIDHeader carries the effective session id back to the caller on
// /chat, which may have started a brand new session.
const sessionIDHeader = "Elicit-Session-Id"

var (
	jsonMediaType   = contenttype.NewMediaType("application/json")
	ndjsonMediaType = contenttype.NewMediaType("application/x-ndjson")

	// A plain-JSON Accept is good enough for the stream: every frame is a
	// JSON object, clients that ask for application/json get ndjson back.
	streamMediaTypes = []contenttype.MediaType{ndjsonMediaType, jsonMediaType}
)

// Classifier resolves a chat message to a tool invocation.
type Classifier interface {
	Classify(message string) (tool string, args map[string]any)
}

// Option configures the Handler.
type Option func(*Handler)

// WithLogger sets the logger. If not provided, logs are discarded.
func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) { h.log = log }
}

// WithServerURL sets the remote MCP endpoint advertised by GET /tools.
func WithServerURL(u string) Option {
	return func(h *Handler) { h.serverURL = u }
}

// Handler is the HTTP surface over a bridge.Manager.
type Handler struct {
	log       *slog.Logger
	mgr       *bridge.Manager
	classify  Classifier
	serverURL string
	mux       *http.ServeMux
}

var _ http.Handler = (*Handler)(nil)

// New constructs the handler. classify decides which tool a /chat message
// runs; the bridge does everything else.
func New(mgr *bridge.Manager, classify Classifier, opts ...Option) *Handler {
	h := &Handler{
		log:      slog.New(slog.DiscardHandler),
		mgr:      mgr,
		classify: classify,
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.mux.HandleFunc("POST /chat", h.handleChat)
	h.mux.HandleFunc("GET /tools", h.handleTools)
	h.mux.HandleFunc("GET /sessions/{id}/events", h.handleEvents)
	h.mux.HandleFunc("POST /sessions/{id}/elicitation", h.handleSubmit)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		Path:       r.URL.Path,
		RemoteAddr: r.RemoteAddr,
	})
	h.mux.ServeHTTP(w, r.WithContext(ctx))
}

// writeJSONError emits a minimal JSON body for request rejections before any
// stream has started. Shape: {"error":{"code":<httpStatus>,"message":"..."}}.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": status, "message": msg}})
}

type chatRequest struct {
	Message   string `json:"message"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Message == "" {
		writeJSONError(w, http.StatusBadRequest, "message is required")
		return
	}

	tool, args := h.classify.Classify(req.Message)
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx := logctx.WithSessionData(r.Context(), &logctx.SessionData{SessionID: sessionID, Tool: tool})
	h.log.InfoContext(ctx, "http.chat.start", slog.String("user_id", req.UserID))

	// StartTool registers the event channel before returning, so the
	// attachment below cannot miss it.
	h.mgr.StartTool(sessionID, tool, args)

	w.Header().Set(sessionIDHeader, sessionID)
	h.streamEvents(w, r.WithContext(ctx), sessionID)
}

type submitRequest struct {
	Answer map[string]any `json:"answer"`
}

// handleSubmit resolves a pending elicitation. It acknowledges and returns
// immediately: the resumed run publishes onto the session's stream, which the
// caller observes through its existing attachment (or a fresh one on the
// events endpoint). Stale and duplicate submissions are acknowledged too;
// they are no-ops by design.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Answer == nil {
		req.Answer = map[string]any{}
	}

	ctx := logctx.WithSessionData(r.Context(), &logctx.SessionData{SessionID: sessionID})
	h.log.InfoContext(ctx, "http.elicitation.submit")

	h.mgr.SubmitAnswer(sessionID, req.Answer)

	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "accepted", "session_id": sessionID})
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	ctx := logctx.WithSessionData(r.Context(), &logctx.SessionData{SessionID: sessionID})
	h.streamEvents(w, r.WithContext(ctx), sessionID)
}

// streamEvents drains the session's stream onto the response as ndjson,
// flushing per event so a consumer sees an elicitation the moment the
// background run suspends on it.
func (h *Handler) streamEvents(w http.ResponseWriter, r *http.Request, sessionID string) {
	if _, _, err := contenttype.GetAcceptableMediaType(r, streamMediaTypes); err != nil {
		writeJSONError(w, http.StatusNotAcceptable, "acceptable media type: "+ndjsonMediaType.String())
		return
	}

	w.Header().Set("Content-Type", ndjsonMediaType.String())
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	st := h.mgr.Attach(sessionID)
	enc := json.NewEncoder(w)
	for {
		ev, err := st.Next(r.Context())
		if errors.Is(err, io.EOF) {
			h.log.DebugContext(r.Context(), "http.stream.end")
			return
		}
		if err != nil {
			// Consumer went away; the background run keeps publishing and a
			// later re-attachment picks up the unread remainder.
			h.log.DebugContext(r.Context(), "http.stream.detached", slog.String("err", err.Error()))
			return
		}
		if err := enc.Encode(ev); err != nil {
			h.log.DebugContext(r.Context(), "http.stream.write.err", slog.String("err", err.Error()))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

type toolsResponse struct {
	Tools     []toolEntry `json:"tools"`
	ServerURL string      `json:"server_url"`
}

type toolEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) handleTools(w http.ResponseWriter, r *http.Request) {
	infos, err := h.mgr.ListTools(r.Context())
	if err != nil {
		h.log.ErrorContext(r.Context(), "http.tools.err", slog.String("err", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := toolsResponse{Tools: make([]toolEntry, 0, len(infos)), ServerURL: h.serverURL}
	for _, ti := range infos {
		resp.Tools = append(resp.Tools, toolEntry{Name: ti.Name, Description: ti.Description})
	}
	w.Header().Set("Content-Type", jsonMediaType.String())
	_ = json.NewEncoder(w).Encode(resp)
}
