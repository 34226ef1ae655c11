package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/me/corohost/internal/engine"
)

type healthResponse struct {
	Status    string   `json:"status"`
	Version   string   `json:"version"`
	GoVersion string   `json:"go_version"`
	Uptime    string   `json:"uptime"`
	Engines   []string `json:"engines"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := engine.Registered()
	engines := make([]string, len(names))
	for i, n := range names {
		engines[i] = string(n)
	}
	respondOK(w, RequestIDFromContext(r.Context()), healthResponse{
		Status:    "healthy",
		Version:   s.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Engines:   engines,
	})
}

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name      string         `json:"name"`
	Version   string         `json:"version"`
	Endpoints []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	respondOK(w, RequestIDFromContext(r.Context()), discoveryResponse{
		Name:    "corohost API",
		Version: "v1",
		Endpoints: []endpointInfo{
			{"/api/v1/runs", []string{"GET"}, "Recorded runs, newest first. Accepts ?limit= and ?state="},
			{"/api/v1/runs/{id}", []string{"GET"}, "Single run"},
			{"/api/v1/health", []string{"GET"}, "Server health and registered engines"},
		},
	})
}
