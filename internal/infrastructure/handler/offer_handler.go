package handler

import (
	"errors"
	"io"
	"net/http"
	"path"

	"github.com/damon-houk/insurance-offer-system/internal/application/service"
	"github.com/damon-houk/insurance-offer-system/internal/domain/entity"
	"github.com/damon-houk/insurance-offer-system/internal/infrastructure/logger"
	"github.com/damon-houk/insurance-offer-system/internal/infrastructure/middleware"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

// maxBodyBytes bounds offer request bodies
const maxBodyBytes = 1 << 20

// OfferHandler handles HTTP requests for offers
type OfferHandler struct {
	service  *service.OfferService
	validate *validator.Validate
	logger   logger.Logger
}

// NewOfferHandler creates a new offer handler
func NewOfferHandler(service *service.OfferService, log logger.Logger) *OfferHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &OfferHandler{
		service:  service,
		validate: newValidator(),
		logger:   log,
	}
}

// CreateOffer handles the creation of a new offer
func (h *OfferHandler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	req, ok := h.decodeOfferRequest(w, r)
	if !ok {
		return
	}

	offer, err := h.service.CreateOffer(r.Context(), req.PersonalNumber, req.Loans, req.MonthlyPayment)
	if err != nil {
		h.sendServiceError(w, err, requestID)
		return
	}

	w.Header().Set("Location", path.Join(r.URL.Path, offer.ID))
	sendJSON(w, h.logger, http.StatusCreated, newOfferResponse(offer), requestID)
}

// UpdateOffer handles replacing an offer's customer data and loans
func (h *OfferHandler) UpdateOffer(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id := mux.Vars(r)["id"]

	req, ok := h.decodeOfferRequest(w, r)
	if !ok {
		return
	}

	offer, err := h.service.UpdateOffer(r.Context(), id, req.PersonalNumber, req.Loans, req.MonthlyPayment)
	if err != nil {
		h.sendServiceError(w, err, requestID)
		return
	}

	sendJSON(w, h.logger, http.StatusOK, newOfferResponse(offer), requestID)
}

// AcceptOffer handles accepting a pending offer
func (h *OfferHandler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id := mux.Vars(r)["id"]

	offer, err := h.service.AcceptOffer(r.Context(), id)
	if err != nil {
		h.sendServiceError(w, err, requestID)
		return
	}

	sendJSON(w, h.logger, http.StatusOK, newOfferResponse(offer), requestID)
}

// GetOffer handles retrieving an offer by ID
func (h *OfferHandler) GetOffer(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id := mux.Vars(r)["id"]

	offer, err := h.service.GetOffer(r.Context(), id)
	if err != nil {
		h.sendServiceError(w, err, requestID)
		return
	}

	sendJSON(w, h.logger, http.StatusOK, newOfferResponse(offer), requestID)
}

// RegisterRoutes registers the offer handler routes
func (h *OfferHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/offers", h.CreateOffer).Methods(http.MethodPost)
	router.HandleFunc("/offers/{id}", h.GetOffer).Methods(http.MethodGet)
	router.HandleFunc("/offers/{id}", h.UpdateOffer).Methods(http.MethodPut)
	router.HandleFunc("/offers/{id}/accept", h.AcceptOffer).Methods(http.MethodPost)

	h.logger.Info("Offer routes registered", map[string]interface{}{
		"routes": []string{
			"POST /offers",
			"GET /offers/{id}",
			"PUT /offers/{id}",
			"POST /offers/{id}/accept",
		},
	})
}

func (h *OfferHandler) decodeOfferRequest(w http.ResponseWriter, r *http.Request) (*OfferRequest, bool) {
	requestID := middleware.GetRequestID(r.Context())

	var req OfferRequest
	if err := decodeSingleJSON(http.MaxBytesReader(w, r.Body, maxBodyBytes), &req); err != nil {
		h.logger.Warn("Invalid request body", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, h.logger, ErrorResponse{
			Error:       "Invalid request body",
			Status:      http.StatusBadRequest,
			Description: "The request body could not be parsed as valid JSON",
			RequestID:   requestID,
		})
		return nil, false
	}

	if err := h.validate.Struct(req); err != nil {
		fields := fieldErrors(err)
		h.logger.Warn("Offer request failed validation", map[string]interface{}{
			"request_id": requestID,
			"fields":     fields,
		})
		sendErrorResponse(w, h.logger, ErrorResponse{
			Error:       "Validation failed",
			Status:      http.StatusBadRequest,
			Description: "One or more fields are invalid",
			RequestID:   requestID,
			Fields:      fields,
		})
		return nil, false
	}

	return &req, true
}

// decodeSingleJSON decodes exactly one JSON value and rejects anything after it
func decodeSingleJSON(body io.Reader, v interface{}) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		return err
	}

	var trailing json.RawMessage
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// sendServiceError maps domain errors to HTTP status codes
func (h *OfferHandler) sendServiceError(w http.ResponseWriter, err error, requestID string) {
	var (
		validationErr *entity.ValidationError
		notFoundErr   *entity.NotFoundError
		conflictErr   *entity.ConflictError
	)

	switch {
	case errors.As(err, &validationErr):
		sendErrorResponse(w, h.logger, ErrorResponse{
			Error:       "Validation failed",
			Status:      http.StatusBadRequest,
			Description: validationErr.Error(),
			RequestID:   requestID,
			Fields:      map[string]string{validationErr.Field: validationErr.Message},
		})
	case errors.As(err, &notFoundErr):
		sendErrorResponse(w, h.logger, ErrorResponse{
			Error:       "Offer not found",
			Status:      http.StatusNotFound,
			Description: notFoundErr.Error(),
			RequestID:   requestID,
		})
	case errors.As(err, &conflictErr):
		sendErrorResponse(w, h.logger, ErrorResponse{
			Error:       "Offer cannot be accepted",
			Status:      http.StatusConflict,
			Description: conflictErr.Error(),
			RequestID:   requestID,
		})
	default:
		h.logger.Error("Unexpected error in offer handler", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, h.logger, ErrorResponse{
			Error:       "Internal server error",
			Status:      http.StatusInternalServerError,
			Description: "An unexpected error occurred. Please try again later.",
			RequestID:   requestID,
		})
	}
}

func sendJSON(w http.ResponseWriter, log logger.Logger, status int, body interface{}, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error("Failed to encode response", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
	}
}

// sendErrorResponse sends a standardized error response
func sendErrorResponse(w http.ResponseWriter, log logger.Logger, resp ErrorResponse) {
	log.Debug("Sending error response", map[string]interface{}{
		"request_id":  resp.RequestID,
		"status_code": resp.Status,
		"message":     resp.Error,
	})

	sendJSON(w, log, resp.Status, resp, resp.RequestID)
}
