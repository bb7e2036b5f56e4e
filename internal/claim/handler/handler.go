package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"claimdesk/internal/claim/models"
	"claimdesk/internal/claim/service"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
	"claimdesk/pkg/platform/httputil"
)

// Handler exposes claims over HTTP.
type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the claim endpoints. Nested routers, such as stage tracking
// and description versions, register under /{claimID} so they can read the
// claim from the URL.
func (h *Handler) Routes(nested ...func(r chi.Router)) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{claimID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Patch("/", h.update)
		r.Delete("/", h.delete)
		for _, mount := range nested {
			mount(r)
		}
	})
	return r
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	companyID, err := id.ParseCompanyID(r.URL.Query().Get("company_id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "company_id query parameter is required"))
		return
	}
	claims, err := h.svc.List(r.Context(), companyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"claims": claims})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	claim, err := h.svc.Create(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, claim)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	claim, err := h.svc.Get(r.Context(), claimID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, claim)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.UpdateClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	claim, err := h.svc.Update(r.Context(), claimID, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, claim)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.svc.Delete(r.Context(), claimID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
