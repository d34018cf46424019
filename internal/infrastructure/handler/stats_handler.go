// Package handler internal/infrastructure/handler/stats_handler.go
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/damon-houk/insurance-offer-system/internal/application/service"
	"github.com/damon-houk/insurance-offer-system/internal/domain/entity"
	"github.com/damon-houk/insurance-offer-system/internal/infrastructure/logger"
	"github.com/damon-houk/insurance-offer-system/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
)

// StatsHandler handles HTTP requests for offer statistics
type StatsHandler struct {
	service *service.StatsService
	logger  logger.Logger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(service *service.StatsService, log logger.Logger) *StatsHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &StatsHandler{
		service: service,
		logger:  log,
	}
}

// GetConversionStats handles the conversion stats request
func (h *StatsHandler) GetConversionStats(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	days := service.DefaultStatsDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.logger.Warn("Invalid days parameter", map[string]interface{}{
				"request_id": requestID,
				"days":       raw,
			})
			sendErrorResponse(w, h.logger, ErrorResponse{
				Error:       "Invalid days parameter",
				Status:      http.StatusBadRequest,
				Description: "The 'days' query parameter must be an integer",
				RequestID:   requestID,
				Fields:      map[string]string{"days": "must be an integer"},
			})
			return
		}
		days = parsed
	}

	stats, err := h.service.GetConversionStats(r.Context(), days)
	if err != nil {
		var validationErr *entity.ValidationError
		if errors.As(err, &validationErr) {
			sendErrorResponse(w, h.logger, ErrorResponse{
				Error:       "Invalid days parameter",
				Status:      http.StatusBadRequest,
				Description: validationErr.Error(),
				RequestID:   requestID,
				Fields:      map[string]string{validationErr.Field: validationErr.Message},
			})
			return
		}

		h.logger.Error("Unexpected error in stats handler", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, h.logger, ErrorResponse{
			Error:       "Internal server error",
			Status:      http.StatusInternalServerError,
			Description: "An unexpected error occurred. Please try again later.",
			RequestID:   requestID,
		})
		return
	}

	sendJSON(w, h.logger, http.StatusOK, ConversionStatsResponse{
		Days:                  stats.Days,
		TotalOffers:           stats.TotalOffers,
		AcceptedWithinDays:    stats.AcceptedWithinDays,
		ConversionRatePercent: stats.ConversionRatePercent,
	}, requestID)
}

// RegisterRoutes registers the stats handler routes
func (h *StatsHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/stats/conversion", h.GetConversionStats).Methods(http.MethodGet)

	h.logger.Info("Stats routes registered", map[string]interface{}{
		"routes": []string{
			"GET /stats/conversion",
		},
	})
}

// Health reports that the process is serving requests
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
