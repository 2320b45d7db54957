package bridge

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/veil/domveil/protocol"
)

// ErrNotFound is returned by a Controller for an unknown element id.
var ErrNotFound = errors.New("bridge: element not found")

// HTTP exposes a Controller over JSON endpoints:
//
//	POST   /actions           inbound command ({"name": ...})
//	POST   /gestures/click    {"id"} -> {"prevented"}
//	POST   /gestures/touch    {"id", "phase"}
//	POST   /selection         protocol.SelectRequest
//	DELETE /selection         clear the selection
//	POST   /mutations         protocol.MutateRequest
//	GET    /elements          identified elements
//	GET    /elements/{id}     one element
//	GET    /document          masked document as HTML
type HTTP struct {
	c      Controller
	logger *slog.Logger
}

// NewHTTP creates the HTTP transport.
func NewHTTP(c Controller, logger *slog.Logger) *HTTP {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTP{c: c, logger: logger}
}

// RegisterHTTP mounts the endpoints on r.
func (h *HTTP) RegisterHTTP(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/actions", h.handleAction)
	r.Route("/gestures", func(r chi.Router) {
		r.Post("/click", h.handleClick)
		r.Post("/touch", h.handleTouch)
	})
	r.Post("/selection", h.handleSelect)
	r.Delete("/selection", h.handleClearSelection)
	r.Post("/mutations", h.handleMutate)
	r.Get("/elements", h.handleElements)
	r.Get("/elements/{id}", h.handleElement)
	r.Get("/document", h.handleDocument)
}

// Handler returns a chi router with every endpoint mounted.
func (h *HTTP) Handler() http.Handler {
	r := chi.NewRouter()
	h.RegisterHTTP(r)
	return r
}

func (h *HTTP) handleAction(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxLine))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	msg, err := protocol.UnmarshalInbound(data)
	if err != nil {
		h.logger.Warn("bridge: dropping malformed command", "error", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.c.Dispatch(r.Context(), msg); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "name": msg.Action()})
}

func (h *HTTP) handleClick(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}
	prevented, err := h.c.Click(r.Context(), req.ID)
	if err != nil {
		writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"prevented": prevented})
}

func (h *HTTP) handleTouch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID    string              `json:"id"`
		Phase protocol.TouchPhase `json:"phase"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" || !req.Phase.Valid() {
		http.Error(w, "id and phase (start|end|leave|cancel) required", http.StatusBadRequest)
		return
	}
	if err := h.c.Touch(r.Context(), req.ID, req.Phase); err != nil {
		writeControllerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req protocol.SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.AnchorID != "" && req.FocusID == "" {
		req.FocusID = req.AnchorID
	}
	if err := h.c.Select(r.Context(), req); err != nil {
		writeControllerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	if err := h.c.Select(r.Context(), protocol.SelectRequest{}); err != nil {
		writeControllerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) handleMutate(w http.ResponseWriter, r *http.Request) {
	var req protocol.MutateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.HTML == "" && req.RemoveID == "" {
		http.Error(w, "html or remove_id required", http.StatusBadRequest)
		return
	}
	if err := h.c.Mutate(r.Context(), req); err != nil {
		writeControllerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) handleElements(w http.ResponseWriter, r *http.Request) {
	els, err := h.c.Elements(r.Context())
	if err != nil {
		writeControllerError(w, err)
		return
	}
	if els == nil {
		els = []protocol.ElementInfo{}
	}
	writeJSON(w, http.StatusOK, els)
}

func (h *HTTP) handleElement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	els, err := h.c.Elements(r.Context())
	if err != nil {
		writeControllerError(w, err)
		return
	}
	for _, el := range els {
		if el.ID == id {
			writeJSON(w, http.StatusOK, el)
			return
		}
	}
	writeControllerError(w, ErrNotFound)
}

func (h *HTTP) handleDocument(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.c.Render(r.Context(), w); err != nil {
		h.logger.Error("bridge: render failed", "error", err)
	}
}

func writeControllerError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeError(w, http.StatusServiceUnavailable, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
