package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"swapcourses-backend/application/services"
	"swapcourses-backend/domain/core/entities"
	"swapcourses-backend/domain/core/valueobjects"
	"swapcourses-backend/infrastructure/config"
	"swapcourses-backend/pkg/auth"
	pkgerrors "swapcourses-backend/pkg/errors"
	"swapcourses-backend/pkg/utils"
)

// SwapHandler handles swap-request HTTP requests.
type SwapHandler struct {
	service *services.SwapService
	dynamic *config.Watcher
	errors  *pkgerrors.ErrorHandler
	logger  *zap.Logger
}

// NewSwapHandler creates a new swap handler.
func NewSwapHandler(
	service *services.SwapService,
	dynamic *config.Watcher,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *SwapHandler {
	return &SwapHandler{
		service: service,
		dynamic: dynamic,
		errors:  errorHandler,
		logger:  logger,
	}
}

// CreateSwapRequestRequest is the request body for opening a swap request.
type CreateSwapRequestRequest struct {
	Offered string   `json:"offered" validate:"required,min=1,max=80"`
	Wanted  []string `json:"wanted" validate:"required,min=1,dive,min=1,max=80"`
}

// UpdateSwapRequestRequest is the request body for replacing a swap
// request's terms. Same shape as creation; both slots are re-verified.
type UpdateSwapRequestRequest struct {
	Offered string   `json:"offered" validate:"required,min=1,max=80"`
	Wanted  []string `json:"wanted" validate:"required,min=1,dive,min=1,max=80"`
}

// AgreeRequest names the match edge being accepted.
type AgreeRequest struct {
	CounterpartRequestID string `json:"counterpartRequestId" validate:"required,uuid"`
}

// SwapRequestResponse is the owner's view of their own request.
type SwapRequestResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Offered   string    `json:"offered"`
	Wanted    []string  `json:"wanted"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateSwapRequest handles POST /swap-requests.
func (h *SwapHandler) CreateSwapRequest(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req CreateSwapRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}
	if err := h.validateTerms(req.Wanted, utils.ValidateStruct(req)); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	request, err := h.service.CreateSwapRequest(r.Context(), user.UserID, user.Email,
		valueobjects.TimeslotID(req.Offered), toTimeslotIDs(req.Wanted))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toSwapRequestResponse(request))
}

// ListSwapRequests handles GET /swap-requests.
func (h *SwapHandler) ListSwapRequests(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	views, err := h.service.ListSwapRequests(r.Context(), user.UserID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"swapRequests": views})
}

// GetSwapRequest handles GET /swap-requests/{requestId}.
func (h *SwapHandler) GetSwapRequest(w http.ResponseWriter, r *http.Request) {
	user, requestID, err := h.requestScope(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	view, err := h.service.GetSwapRequest(r.Context(), user.UserID, requestID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// UpdateSwapRequest handles PUT /swap-requests/{requestId}.
func (h *SwapHandler) UpdateSwapRequest(w http.ResponseWriter, r *http.Request) {
	user, requestID, err := h.requestScope(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req UpdateSwapRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}
	if err := h.validateTerms(req.Wanted, utils.ValidateStruct(req)); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	request, err := h.service.UpdateSwapRequest(r.Context(), user.UserID, requestID,
		valueobjects.TimeslotID(req.Offered), toTimeslotIDs(req.Wanted))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toSwapRequestResponse(request))
}

// AgreeToSwap handles POST /swap-requests/{requestId}/agree.
func (h *SwapHandler) AgreeToSwap(w http.ResponseWriter, r *http.Request) {
	user, requestID, err := h.requestScope(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req AgreeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}
	counterpartID, err := valueobjects.NewSwapRequestIDFromString(req.CounterpartRequestID)
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	request, err := h.service.AgreeToSwap(r.Context(), user.UserID, requestID, counterpartID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toSwapRequestResponse(request))
}

// DeleteSwapRequest handles DELETE /swap-requests/{requestId}.
func (h *SwapHandler) DeleteSwapRequest(w http.ResponseWriter, r *http.Request) {
	user, requestID, err := h.requestScope(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	if err := h.service.DeleteSwapRequest(r.Context(), user.UserID, requestID); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SwapHandler) requestScope(r *http.Request) (auth.UserContext, valueobjects.SwapRequestID, error) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		return auth.UserContext{}, valueobjects.SwapRequestID{}, err
	}
	requestID, err := valueobjects.NewSwapRequestIDFromString(chi.URLParam(r, "requestId"))
	if err != nil {
		return auth.UserContext{}, valueobjects.SwapRequestID{}, pkgerrors.NewValidationError(err.Error())
	}
	return user, requestID, nil
}

// validateTerms combines structural validation with the dynamic
// wanted-set limit.
func (h *SwapHandler) validateTerms(wanted []string, structErr error) error {
	if structErr != nil {
		return pkgerrors.NewValidationError(structErr.Error())
	}
	limit := h.limits().MaxWantedSlots
	if len(wanted) > limit {
		return pkgerrors.NewValidationError("too many wanted timeslots").
			WithDetails(map[string]interface{}{"max_wanted_slots": limit})
	}
	return nil
}

func (h *SwapHandler) limits() config.Limits {
	if h.dynamic != nil {
		return h.dynamic.Current().Limits
	}
	return config.DefaultDynamicConfig().Limits
}

func toTimeslotIDs(raw []string) []valueobjects.TimeslotID {
	ids := make([]valueobjects.TimeslotID, 0, len(raw))
	for _, s := range raw {
		ids = append(ids, valueobjects.TimeslotID(s))
	}
	return ids
}

func toSwapRequestResponse(r *entities.SwapRequest) SwapRequestResponse {
	wanted := make([]string, 0)
	for _, id := range r.Wanted() {
		wanted = append(wanted, id.String())
	}
	return SwapRequestResponse{
		ID:        r.ID().String(),
		Status:    string(r.Status()),
		Offered:   r.Offered().String(),
		Wanted:    wanted,
		CreatedAt: r.CreatedAt(),
		UpdatedAt: r.UpdatedAt(),
	}
}
