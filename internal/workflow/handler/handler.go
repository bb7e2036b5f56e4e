package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"claimdesk/internal/workflow/models"
	"claimdesk/internal/workflow/service"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
	"claimdesk/pkg/platform/httputil"
)

// Handler exposes the workflow catalog over HTTP. It delegates to the service
// and only handles decoding, path parsing and response envelopes.
type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the catalog endpoints on a fresh router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/resolve-default", h.resolveDefault)
	r.Route("/{workflowID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Patch("/", h.update)
		r.Delete("/", h.delete)
		r.Post("/default", h.setDefault)
		r.Get("/stages", h.listStages)
		r.Post("/stages", h.createStage)
	})
	r.Route("/stages/{stageID}", func(r chi.Router) {
		r.Get("/", h.getStage)
		r.Patch("/", h.updateStage)
		r.Delete("/", h.deleteStage)
	})
	return r
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	companyID, err := id.ParseCompanyID(r.URL.Query().Get("company_id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "company_id query parameter is required"))
		return
	}
	var areaID *id.AreaID
	if raw := r.URL.Query().Get("area_id"); raw != "" {
		parsed, err := id.ParseAreaID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		areaID = &parsed
	}
	activeOnly := r.URL.Query().Get("active") == "true"

	workflows, err := h.svc.ListWorkflows(r.Context(), companyID, areaID, activeOnly)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"workflows": workflows})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	workflow, err := h.svc.CreateWorkflow(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, workflow)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	workflowID, err := id.ParseWorkflowID(chi.URLParam(r, "workflowID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	details, err := h.svc.GetWorkflow(r.Context(), workflowID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, details)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	workflowID, err := id.ParseWorkflowID(chi.URLParam(r, "workflowID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.UpdateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	workflow, err := h.svc.UpdateWorkflow(r.Context(), workflowID, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, workflow)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	workflowID, err := id.ParseWorkflowID(chi.URLParam(r, "workflowID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.svc.DeleteWorkflow(r.Context(), workflowID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setDefault(w http.ResponseWriter, r *http.Request) {
	workflowID, err := id.ParseWorkflowID(chi.URLParam(r, "workflowID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	workflow, err := h.svc.SetDefault(r.Context(), workflowID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, workflow)
}

func (h *Handler) resolveDefault(w http.ResponseWriter, r *http.Request) {
	companyID, err := id.ParseCompanyID(r.URL.Query().Get("company_id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "company_id query parameter is required"))
		return
	}
	var areaID *id.AreaID
	if raw := r.URL.Query().Get("area_id"); raw != "" {
		parsed, err := id.ParseAreaID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		areaID = &parsed
	}
	workflow, err := h.svc.ResolveDefault(r.Context(), companyID, areaID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, workflow)
}

func (h *Handler) listStages(w http.ResponseWriter, r *http.Request) {
	workflowID, err := id.ParseWorkflowID(chi.URLParam(r, "workflowID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	activeOnly := r.URL.Query().Get("active") == "true"
	stages, err := h.svc.ListStages(r.Context(), workflowID, activeOnly)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"stages": stages})
}

func (h *Handler) createStage(w http.ResponseWriter, r *http.Request) {
	workflowID, err := id.ParseWorkflowID(chi.URLParam(r, "workflowID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.CreateStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	req.WorkflowID = workflowID
	stage, err := h.svc.CreateStage(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, stage)
}

func (h *Handler) getStage(w http.ResponseWriter, r *http.Request) {
	stageID, err := id.ParseStageID(chi.URLParam(r, "stageID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	stage, err := h.svc.GetStage(r.Context(), stageID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stage)
}

func (h *Handler) updateStage(w http.ResponseWriter, r *http.Request) {
	stageID, err := id.ParseStageID(chi.URLParam(r, "stageID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.UpdateStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	stage, err := h.svc.UpdateStage(r.Context(), stageID, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stage)
}

func (h *Handler) deleteStage(w http.ResponseWriter, r *http.Request) {
	stageID, err := id.ParseStageID(chi.URLParam(r, "stageID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.svc.DeleteStage(r.Context(), stageID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
