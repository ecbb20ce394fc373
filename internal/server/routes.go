// Package server wires HTTP handlers into a ServeMux for the AniConnect
// application via routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application routes:
// health check, WebSocket endpoint, read-only queries, and the test page.
func (s *Server) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	mux.HandleFunc("/api/channels", s.ChannelsHandler)
	mux.HandleFunc("/api/voice-channels", s.VoiceChannelsHandler)
	mux.HandleFunc("/api/stats", s.StatsHandler)
	mux.HandleFunc("/test", s.TestPageHandler)
	return mux
}
