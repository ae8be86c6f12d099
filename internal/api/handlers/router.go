package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/expense-insights/internal/api/middleware"
)

// NewRouter wires every endpoint onto a ServeMux.
func NewRouter(sessions *SessionsHandler, jobsHandler *JobsHandler) *http.ServeMux {
	mux := http.NewServeMux()

	// Sessions endpoints
	mux.HandleFunc("/api/sessions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			sessions.CreateSession(w, r)
		} else {
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/sessions/", func(w http.ResponseWriter, r *http.Request) {
		sessionID, action := splitPath(r.URL.Path, "/api/sessions/")
		if sessionID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Session ID is required")
			return
		}

		switch {
		case action == "" && r.Method == http.MethodGet:
			sessions.GetSession(w, r, sessionID)
		case action == "" && r.Method == http.MethodDelete:
			sessions.DeleteSession(w, r, sessionID)
		case action == "dashboard" && r.Method == http.MethodPost:
			sessions.Dashboard(w, r, sessionID)
		case action == "report" && r.Method == http.MethodPost:
			sessions.Report(w, r, sessionID)
		case action == "narratives" && r.Method == http.MethodPost:
			sessions.CreateNarrative(w, r, sessionID)
		case action == "" || action == "dashboard" || action == "report" || action == "narratives":
			methodNotAllowed(w)
		default:
			middleware.WriteError(w, http.StatusNotFound, "Not found")
		}
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		jobID, action := splitPath(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}

		switch {
		case action == "" && r.Method == http.MethodGet:
			jobsHandler.GetJob(w, r, jobID)
		case action == "" && r.Method == http.MethodDelete:
			jobsHandler.CancelJob(w, r, jobID)
		case action == "report" && r.Method == http.MethodGet:
			jobsHandler.DownloadReport(w, r, jobID)
		case action == "" || action == "report":
			methodNotAllowed(w)
		default:
			middleware.WriteError(w, http.StatusNotFound, "Not found")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return mux
}

// splitPath returns the ID and optional action following prefix,
// e.g. "/api/jobs/abc/report" → ("abc", "report").
func splitPath(path, prefix string) (id, action string) {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	parts := strings.SplitN(rest, "/", 2)
	id = parts[0]
	if len(parts) == 2 {
		action = parts[1]
	}
	return id, action
}

func methodNotAllowed(w http.ResponseWriter) {
	middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
