package handlers

import (
	"net/http"

	"github.com/example/containerlab/internal/platform/api"
)

// ServiceInfo describes the running build.
type ServiceInfo struct {
	Service     string
	Version     string
	BuildDate   string
	GitSHA      string
	Environment string
}

type indexResponse struct {
	Service     string            `json:"service"`
	Version     string            `json:"version"`
	BuildDate   string            `json:"build_date"`
	GitSHA      string            `json:"git_sha"`
	Description string            `json:"description"`
	Endpoints   map[string]string `json:"endpoints"`
}

type versionResponse struct {
	Version     string `json:"version"`
	BuildDate   string `json:"build_date"`
	GitSHA      string `json:"git_sha"`
	Environment string `json:"environment"`
}

// Index handles GET /
func Index(info ServiceInfo) http.HandlerFunc {
	resp := indexResponse{
		Service:     info.Service,
		Version:     info.Version,
		BuildDate:   info.BuildDate,
		GitSHA:      info.GitSHA,
		Description: "User service with probes, metrics and idempotent migrations",
		Endpoints: map[string]string{
			"/healthz": "Liveness probe",
			"/readyz":  "Readiness probe",
			"/metrics": "Prometheus metrics",
			"/users":   "GET list users, POST create user",
			"/version": "Version information",
		},
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		api.WriteJSON(w, http.StatusOK, resp)
	}
}

// Version handles GET /version
func Version(info ServiceInfo) http.HandlerFunc {
	resp := versionResponse{
		Version:     info.Version,
		BuildDate:   info.BuildDate,
		GitSHA:      info.GitSHA,
		Environment: info.Environment,
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		api.WriteJSON(w, http.StatusOK, resp)
	}
}
