package server

import "net/http"

// Route paths.
const (
	PathIndex   = "/"
	PathMetrics = "/metrics"
	PathThreads = "/threads"
)

// routes registers the three routes. Paths match exactly; GET patterns also
// serve HEAD, other methods get 405 and unknown paths 404 from the mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET "+PathMetrics, s.handleMetrics)
	mux.HandleFunc("GET "+PathThreads, s.handleThreads)

	// recovery is outermost so a panic anywhere below becomes a 500
	return s.recoverer(s.accessLog(mux))
}
