package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/yamui/internal/control"
)

const maxBodyBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *control.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *control.Service) *Handler {
	return &Handler{svc: svc}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// Info handles GET /api/info.
//
//	@Summary		Describe the running instance
//	@Tags			runtime
//	@Produce		json
//	@Success		200	{object}	control.Info
//	@Security		BearerAuth
//	@Router			/info [get]
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.Info(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// ListState handles GET /api/state.
//
//	@Summary		List every state entry
//	@Tags			state
//	@Produce		json
//	@Success		200	{object}	StateListResponse
//	@Security		BearerAuth
//	@Router			/state [get]
func (h *Handler) ListState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StateListResponse{State: h.svc.State(r.Context())})
}

// GetState handles GET /api/state/{key}.
//
//	@Summary		Get one state value
//	@Tags			state
//	@Produce		json
//	@Param			key	path		string	true	"State key"
//	@Success		200	{object}	StateEntry
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/state/{key} [get]
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	v, err := h.svc.GetState(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StateEntry{Key: key, Value: v})
}

// PutState handles PUT /api/state/{key}.
//
//	@Summary		Set a state value
//	@Tags			state
//	@Accept			json
//	@Produce		json
//	@Param			key		path		string			true	"State key"
//	@Param			body	body		SetStateRequest	true	"New value"
//	@Success		200		{object}	StateEntry
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/state/{key} [put]
func (h *Handler) PutState(w http.ResponseWriter, r *http.Request) {
	var req SetStateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Value == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("value is required"))
		return
	}
	key := chi.URLParam(r, "key")
	v, err := h.svc.SetState(r.Context(), key, req.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StateEntry{Key: key, Value: v})
}

// GetNav handles GET /api/nav.
//
//	@Summary		Get the screen and modal stacks
//	@Tags			navigation
//	@Produce		json
//	@Success		200	{object}	control.NavState
//	@Security		BearerAuth
//	@Router			/nav [get]
func (h *Handler) GetNav(w http.ResponseWriter, r *http.Request) {
	nav, err := h.svc.Nav(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nav)
}

// Navigate handles POST /api/nav/{op}.
//
//	@Summary		Apply a navigation operation
//	@Tags			navigation
//	@Accept			json
//	@Produce		json
//	@Param			op		path		string			true	"Operation"	Enums(goto, push, replace, pop, modal, close_modal)
//	@Param			body	body		NavigateRequest	false	"Target screen or component"
//	@Success		200		{object}	control.NavState
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nav/{op} [post]
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	op := chi.URLParam(r, "op")
	var req NavigateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	target := req.Screen
	if target == "" {
		target = req.Component
	}
	switch op {
	case "goto", "push", "replace", "modal":
		if target == "" {
			writeJSON(w, http.StatusBadRequest, errorBody("screen or component is required"))
			return
		}
	}
	nav, err := h.svc.Navigate(r.Context(), op, target)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nav)
}

// ListScreens handles GET /api/screens.
//
//	@Summary		List the screens of the loaded document
//	@Tags			runtime
//	@Produce		json
//	@Success		200	{object}	ScreenListResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/screens [get]
func (h *Handler) ListScreens(w http.ResponseWriter, r *http.Request) {
	screens, err := h.svc.Screens(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ScreenListResponse{Screens: screens})
}

// Tree handles GET /api/tree.
//
//	@Summary		Snapshot the live widget tree
//	@Tags			runtime
//	@Produce		json
//	@Success		200	{object}	render.TreeNode
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tree [get]
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.svc.Tree(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

// DispatchEvent handles POST /api/widgets/{id}/events/{event}.
//
//	@Summary		Deliver an event to a widget
//	@Tags			runtime
//	@Accept			json
//	@Param			id		path	string			true	"Widget id"
//	@Param			event	path	string			true	"Event"	Enums(click, press, release, change, focus, blur)
//	@Param			body	body	EventRequest	false	"Event details"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Failure		422	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/widgets/{id}/events/{event} [post]
func (h *Handler) DispatchEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id, event := chi.URLParam(r, "id"), chi.URLParam(r, "event")
	if err := h.svc.Dispatch(r.Context(), id, event, req.EventInfo); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List stored documents
//	@Tags			documents
//	@Produce		json
//	@Success		200	{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.Documents(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs})
}

// GetDocument handles GET /api/documents/{name}. The raw document is
// returned with its checksum as ETag.
//
//	@Summary		Get the raw document
//	@Tags			documents
//	@Produce		application/yaml
//	@Param			name	path		string	true	"Document name"
//	@Success		200		{string}	string
//	@Header			200		{string}	ETag	"Document checksum"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{name} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	d, data, err := h.svc.ReadDocument(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	w.Header().Set("ETag", strconv.Quote(d.Checksum))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// PutDocument handles PUT /api/documents/{name}. The body is the raw
// document; If-Match guards against concurrent edits.
//
//	@Summary		Validate and store a document
//	@Tags			documents
//	@Accept			application/yaml
//	@Produce		json
//	@Param			name		path		string	true	"Document name"
//	@Param			If-Match	header		string	false	"Checksum of the version being replaced"
//	@Param			body		body		string	true	"Document content"
//	@Success		200			{object}	docstore.Doc
//	@Failure		400			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Failure		413			{object}	errResponse
//	@Failure		422			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{name} [put]
func (h *Handler) PutDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	if len(body) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("document body is required"))
		return
	}
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)
	d, err := h.svc.PutDocument(r.Context(), chi.URLParam(r, "name"), body, ifMatch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// LoadDocument handles POST /api/documents/{name}/load.
//
//	@Summary		Make a stored document active
//	@Tags			documents
//	@Produce		json
//	@Param			name	path		string	true	"Document name"
//	@Success		200		{object}	control.Info
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{name}/load [post]
func (h *Handler) LoadDocument(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.LoadDocument(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Check handles POST /api/check with a raw document body.
//
//	@Summary		Compile a document without loading it
//	@Tags			documents
//	@Accept			application/yaml
//	@Produce		json
//	@Param			body	body		string	true	"Document content"
//	@Success		200		{object}	control.Report
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/check [post]
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	report, err := h.svc.Check(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListNatives handles GET /api/natives.
//
//	@Summary		List registered native functions
//	@Tags			natives
//	@Produce		json
//	@Success		200	{object}	NativeListResponse
//	@Security		BearerAuth
//	@Router			/natives [get]
func (h *Handler) ListNatives(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NativeListResponse{Natives: h.svc.Natives()})
}

// CallNative handles POST /api/natives/{name}.
//
//	@Summary		Call a native function
//	@Tags			natives
//	@Accept			json
//	@Param			name	path	string			true	"Native name"
//	@Param			body	body	NativeRequest	false	"Arguments"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/natives/{name} [post]
func (h *Handler) CallNative(w http.ResponseWriter, r *http.Request) {
	var req NativeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.CallNative(r.Context(), chi.URLParam(r, "name"), req.Args); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Trace handles GET /api/trace.
//
//	@Summary		List recent trace events, newest first
//	@Tags			trace
//	@Produce		json
//	@Param			limit	query		int		false	"Maximum number of events"
//	@Param			type	query		string	false	"Filter by event type"
//	@Success		200		{object}	TraceResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trace [get]
func (h *Handler) Trace(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	records, err := h.svc.Trace(r.Context(), limit, q.Get("type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TraceResponse{Events: records})
}
