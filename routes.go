package main

import (
	"net/http"

	"github.com/gorilla/mux"

	"lyricsync-go/middleware"
)

func setupRoutes(router *mux.Router) {
	router.HandleFunc("/getLyrics", getLyrics)

	router.HandleFunc("/state/update", updateState).Methods(http.MethodPost)
	router.HandleFunc("/state/snapshot", getStateSnapshot).Methods(http.MethodGet)
	router.HandleFunc("/state/remove", removeState).Methods(http.MethodPost, http.MethodDelete)
	router.HandleFunc("/state/forceSync", forceSync).Methods(http.MethodPost)
	router.HandleFunc("/events", eventsHandler)

	router.HandleFunc("/health", getHealthStatus)
	router.HandleFunc("/stats", getStats)
	router.HandleFunc("/cache", getCacheDump)
	router.HandleFunc("/cache/sweep", sweepCache).Methods(http.MethodPost)

	router.HandleFunc("/", helpHandler)
}

// buildHandler chains logging, CORS and rate limiting around the router.
func buildHandler(router *mux.Router, corsHandler func(http.Handler) http.Handler, limiter *middleware.IPRateLimiter) http.Handler {
	logged := middleware.LoggingMiddleware(router)
	return limitMiddleware(corsHandler(logged), limiter)
}
