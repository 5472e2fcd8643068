package api

import "net/http"

// routes registers all endpoints on the router.
func (s *Server) routes() {
	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.Use(s.logRequests)

	v1.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	v1.HandleFunc("/workflow", s.handleWorkflowStatus).Methods(http.MethodGet)
	v1.HandleFunc("/workflow/actions/{action}", s.handleWorkflowAction).Methods(http.MethodPost)

	v1.HandleFunc("/heartbeat", s.handleHeartbeat).Methods(http.MethodGet)

	v1.HandleFunc("/devices/current", s.handleGetCurrentDevice).Methods(http.MethodGet)
	v1.HandleFunc("/devices/current", s.handleSetCurrentDevice).Methods(http.MethodPut)

	v1.HandleFunc("/devices/{sn}/cards/{cardId}/state", s.handleGetCardState).Methods(http.MethodGet)
	v1.HandleFunc("/devices/{sn}/cards/{cardId}/state", s.handleSetCardField).Methods(http.MethodPut)

	v1.HandleFunc("/sessions", s.handleSessions).Methods(http.MethodGet)
}

// logRequests is the access-log middleware.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Info("http request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
