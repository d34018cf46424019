package handler

import (
	"net/http"

	"github.com/damon-houk/insurance-offer-system/internal/infrastructure/logger"
	"github.com/damon-houk/insurance-offer-system/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
)

// APIPrefix is the base path of the versioned API
const APIPrefix = "/api/v1"

// NewRouter wires the handlers under APIPrefix behind the request ID, logging and recovery middleware
func NewRouter(offers *OfferHandler, stats *StatsHandler, log logger.Logger) *mux.Router {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	router := mux.NewRouter()
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(log))
	router.Use(middleware.RecoveryMiddleware(log))

	router.HandleFunc("/health", Health).Methods(http.MethodGet)

	api := router.PathPrefix(APIPrefix).Subrouter()
	offers.RegisterRoutes(api)
	stats.RegisterRoutes(api)

	return router
}
