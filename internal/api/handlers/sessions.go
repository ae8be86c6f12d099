package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-insights/internal/analysis"
	"github.com/dvloznov/expense-insights/internal/api/middleware"
	"github.com/dvloznov/expense-insights/internal/domain"
	"github.com/dvloznov/expense-insights/internal/jobs"
	"github.com/dvloznov/expense-insights/internal/logger"
	"github.com/dvloznov/expense-insights/internal/narrative"
	"github.com/dvloznov/expense-insights/internal/pipeline"
	"github.com/dvloznov/expense-insights/internal/report"
	"github.com/dvloznov/expense-insights/internal/session"
	"github.com/dvloznov/expense-insights/internal/source"
)

// Multipart field names accepted by CreateSession.
const (
	FieldCurrent    = "current"
	FieldHistory    = "history"
	FieldHistoryURI = "history_uri"
)

// SessionsHandler handles upload sessions and everything derived from them.
type SessionsHandler struct {
	sessions  *session.Store
	parser    *pipeline.Parser
	loader    *source.Loader
	publisher jobs.Publisher
	log       zerolog.Logger

	// NarrativeEnabled gates the narrative endpoint.
	NarrativeEnabled bool
	DefaultBudget    domain.Budget
	MaxUploadBytes   int64
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(sessions *session.Store, parser *pipeline.Parser, loader *source.Loader, publisher jobs.Publisher, log zerolog.Logger) *SessionsHandler {
	return &SessionsHandler{
		sessions:       sessions,
		parser:         parser,
		loader:         loader,
		publisher:      publisher,
		log:            log,
		MaxUploadBytes: 32 << 20,
	}
}

type rejectedFile struct {
	File   string `json:"file"`
	Period string `json:"period"`
	Error  string `json:"error"`
}

type sessionResponse struct {
	SessionID       string         `json:"session_id"`
	Months          []string       `json:"months"`
	Categories      []string       `json:"categories"`
	Columns         []string       `json:"columns"`
	HasEssential    bool           `json:"has_essential"`
	HasSatisfaction bool           `json:"has_satisfaction"`
	CurrentRows     int            `json:"current_rows"`
	HistoryRows     int            `json:"history_rows"`
	HistoryMonths   []string       `json:"history_months"`
	Rejected        []rejectedFile `json:"rejected"`
}

// CreateSession handles POST /api/sessions
// The body is multipart: one or more "current" files, optional "history"
// files and optional "history_uri" values (gs:// or bq://).
func (h *SessionsHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.reqLog(r)

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d bytes", h.MaxUploadBytes))
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Expected a multipart/form-data body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	current, err := readUploads(r.MultipartForm.File[FieldCurrent])
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	history, err := readUploads(r.MultipartForm.File[FieldHistory])
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if uris := r.MultipartForm.Value[FieldHistoryURI]; len(uris) > 0 {
		if h.loader == nil {
			writeFailure(w, log, source.ErrNoBackend, "Failed to load history source")
			return
		}
		remote, err := source.LoadAll(ctx, uris, h.loader.LoadHistory)
		if err != nil {
			writeFailure(w, log, err, "Failed to load history source")
			return
		}
		history = append(history, remote...)
	}

	ds, err := pipeline.Ingest(ctx, h.parser, current, history)
	if err != nil {
		writeFailure(w, log, err, "Failed to ingest uploads")
		return
	}

	sess, err := h.sessions.Create(ds)
	if err != nil {
		writeFailure(w, log, err, "Failed to create session")
		return
	}

	log.Info().
		Str("session_id", sess.ID).
		Int("current_rows", ds.Current.Len()).
		Int("history_rows", ds.History.Len()).
		Int("rejected", len(ds.Rejected)).
		Msg("Session created")

	middleware.WriteJSON(w, http.StatusCreated, newSessionResponse(sess))
}

func newSessionResponse(sess *session.Session) sessionResponse {
	ds := sess.Dataset
	sel := domain.DefaultSelection(ds.Current)
	resp := sessionResponse{
		SessionID:       sess.ID,
		Months:          sel.Months,
		Categories:      sel.Categories,
		Columns:         ds.Current.Columns,
		HasEssential:    ds.Current.HasEssential,
		HasSatisfaction: ds.Current.HasSatisfaction,
		CurrentRows:     ds.Current.Len(),
		HistoryRows:     ds.History.Len(),
		HistoryMonths:   []string{},
		Rejected:        []rejectedFile{},
	}
	if ds.History != nil {
		resp.HistoryMonths = ds.History.Months()
	}
	for _, fe := range ds.Rejected {
		resp.Rejected = append(resp.Rejected, rejectedFile{File: fe.File, Period: fe.Period, Error: fe.Message()})
	}
	return resp
}

func readUploads(files []*multipart.FileHeader) ([]domain.Upload, error) {
	uploads := make([]domain.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", fh.Filename, err)
		}
		uploads = append(uploads, domain.Upload{Name: fh.Filename, Data: data})
	}
	return uploads, nil
}

// GetSession handles GET /api/sessions/{id}
func (h *SessionsHandler) GetSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	sess, err := h.sessions.Get(sessionID)
	if err != nil {
		writeFailure(w, h.reqLog(r), err, "Failed to get session")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newSessionResponse(sess))
}

// DeleteSession handles DELETE /api/sessions/{id}
func (h *SessionsHandler) DeleteSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := h.sessions.Delete(sessionID); err != nil {
		writeFailure(w, h.reqLog(r), err, "Failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// selectionRequest is the dashboard filter state. Omitted months or
// categories mean "all observed"; an explicit empty list is an error.
type selectionRequest struct {
	Months     []string `json:"months"`
	Categories []string `json:"categories"`
	Budget     *int64   `json:"budget"`
	TopN       int      `json:"top_n"`
}

// summarize decodes the selection from the body and aggregates the session.
func (h *SessionsHandler) summarize(r *http.Request, sessionID string) (*analysis.Summary, error) {
	sess, err := h.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return nil, &requestError{msg: "Invalid request body"}
	}

	sel := domain.DefaultSelection(sess.Dataset.Current)
	if req.Months != nil {
		sel.Months = req.Months
	}
	if req.Categories != nil {
		sel.Categories = req.Categories
	}
	budget := h.DefaultBudget
	if req.Budget != nil {
		budget = domain.Budget(*req.Budget)
	}

	return analysis.Aggregate(analysis.Input{
		Current:   sess.Dataset.Current,
		History:   sess.Dataset.History,
		Selection: sel,
		Budget:    budget,
		TopN:      req.TopN,
	})
}

type dashboardResponse struct {
	Summary      *analysis.Summary `json:"summary"`
	BudgetStatus string            `json:"budget_status"`
	Charts       analysis.Charts   `json:"charts"`
	TopRows      analysis.Table    `json:"top_rows"`
	Regret       analysis.Table    `json:"regret"`
	Value        analysis.Table    `json:"value"`
	Rows         analysis.Table    `json:"rows"`
}

// Dashboard handles POST /api/sessions/{id}/dashboard
func (h *SessionsHandler) Dashboard(w http.ResponseWriter, r *http.Request, sessionID string) {
	s, err := h.summarize(r, sessionID)
	if err != nil {
		h.fail(w, r, err, "Failed to build dashboard")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, dashboardResponse{
		Summary:      s,
		BudgetStatus: s.BudgetStatus(),
		Charts:       analysis.BuildCharts(s),
		TopRows:      analysis.DisplayTable(s.TopRows, s.Columns),
		Regret:       analysis.DisplayTable(s.Regret, s.Columns),
		Value:        analysis.DisplayTable(s.Value, s.Columns),
		Rows:         analysis.DisplayTable(s.Rows, s.Columns),
	})
}

// Report handles POST /api/sessions/{id}/report
// It returns the markdown report without a narrative.
func (h *SessionsHandler) Report(w http.ResponseWriter, r *http.Request, sessionID string) {
	s, err := h.summarize(r, sessionID)
	if err != nil {
		h.fail(w, r, err, "Failed to build report")
		return
	}

	now := time.Now()
	doc, err := report.Assemble(report.Input{Summary: s, GeneratedAt: now})
	if err != nil {
		h.fail(w, r, err, "Failed to build report")
		return
	}
	writeMarkdown(w, report.Filename(now), doc)
}

// CreateNarrative handles POST /api/sessions/{id}/narratives
// The narrative runs as a job; the response carries the job ID.
func (h *SessionsHandler) CreateNarrative(w http.ResponseWriter, r *http.Request, sessionID string) {
	ctx := r.Context()
	log := h.reqLog(r)

	if !h.NarrativeEnabled {
		writeFailure(w, log, domain.ErrNarrativeDisabled, "Narrative unavailable")
		return
	}

	s, err := h.summarize(r, sessionID)
	if err != nil {
		h.fail(w, r, err, "Failed to summarize session")
		return
	}
	prompt, err := narrative.BuildPrompt(s)
	if err != nil {
		writeFailure(w, log, err, "Failed to build prompt")
		return
	}

	job := &jobs.NarrativeJob{
		SessionID: sessionID,
		Prompt:    prompt,
		Summary:   s,
	}
	if err := h.publisher.PublishNarrative(ctx, job); err != nil {
		writeFailure(w, log, err, "Failed to enqueue narrative job")
		return
	}

	log.Info().Str("job_id", job.JobID).Str("session_id", sessionID).Msg("Narrative job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":     job.JobID,
		"session_id": sessionID,
		"status":     string(job.Status),
	})
}

func (h *SessionsHandler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		middleware.WriteError(w, http.StatusBadRequest, reqErr.msg)
		return
	}
	writeFailure(w, h.reqLog(r), err, msg)
}

// reqLog prefers the request-scoped logger installed by middleware.
func (h *SessionsHandler) reqLog(r *http.Request) zerolog.Logger {
	if l, ok := r.Context().Value(logger.LoggerKey).(zerolog.Logger); ok {
		return l
	}
	return h.log
}

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func writeMarkdown(w http.ResponseWriter, filename, doc string) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, doc)
}
