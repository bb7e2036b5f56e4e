package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"claimdesk/internal/claimstage/service"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
	"claimdesk/pkg/platform/httputil"
)

// Handler exposes claim stage tracking over HTTP, mounted under a claim
// route.
type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts tracking endpoints; the parent router provides {claimID}.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/initialize", h.initialize)
	r.Get("/", h.list)
	r.Get("/advance", h.advance)
	r.Post("/{stageID}/start", h.start)
	r.Post("/{stageID}/complete", h.complete)
	r.Post("/{stageID}/skip", h.skip)
	return r
}

type initializeRequest struct {
	WorkflowID id.WorkflowID `json:"workflow_id"`
}

type noteRequest struct {
	Note string `json:"note,omitempty"`
}

type completeRequest struct {
	EvidenceDocID *id.DocumentID `json:"evidence_doc_id,omitempty"`
	Note          string         `json:"note,omitempty"`
}

func (h *Handler) initialize(w http.ResponseWriter, r *http.Request) {
	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	rows, err := h.svc.Initialize(r.Context(), claimID, req.WorkflowID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{"claim_stages": rows})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	progress, err := h.svc.List(r.Context(), claimID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"stages": progress})
}

func (h *Handler) advance(w http.ResponseWriter, r *http.Request) {
	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	adv, err := h.svc.Advance(r.Context(), claimID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, adv)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	stageID, err := id.ParseStageID(chi.URLParam(r, "stageID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	row, err := h.svc.Start(r.Context(), claimID, stageID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, row)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	claimID, stageID, ok := h.stageParams(w, r)
	if !ok {
		return
	}
	var req completeRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	row, err := h.svc.Complete(r.Context(), claimID, stageID, req.EvidenceDocID, req.Note)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, row)
}

func (h *Handler) skip(w http.ResponseWriter, r *http.Request) {
	claimID, stageID, ok := h.stageParams(w, r)
	if !ok {
		return
	}
	var req noteRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	row, err := h.svc.Skip(r.Context(), claimID, stageID, req.Note)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, row)
}

func (h *Handler) stageParams(w http.ResponseWriter, r *http.Request) (id.ClaimID, id.StageID, bool) {
	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ClaimID{}, id.StageID{}, false
	}
	stageID, err := id.ParseStageID(chi.URLParam(r, "stageID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ClaimID{}, id.StageID{}, false
	}
	return claimID, stageID, true
}

// decodeOptional parses a JSON body when one was sent; an empty body leaves
// the request zero-valued.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return false
	}
	return true
}
