package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"interviewlab/internal/model"
	"interviewlab/internal/repository"
	"interviewlab/internal/service"
)

// RetentionHandler exposes storage stats, policy-driven cleanup, and data
// export.
type RetentionHandler struct {
	retention     *service.RetentionService
	export        *service.ExportService
	sessions      repository.SessionRepo
	defaultPolicy model.RetentionPolicy
}

// NewRetentionHandler creates a retention handler.
func NewRetentionHandler(retention *service.RetentionService, export *service.ExportService, sessions repository.SessionRepo, defaultPolicy model.RetentionPolicy) *RetentionHandler {
	return &RetentionHandler{
		retention:     retention,
		export:        export,
		sessions:      sessions,
		defaultPolicy: defaultPolicy,
	}
}

// Stats handles GET /v1/owners/{ownerId}/retention/stats
func (h *RetentionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ownerID := mux.Vars(r)["ownerId"]

	stats, err := h.retention.OwnerStats(r.Context(), ownerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Cleanup handles POST /v1/retention/cleanup. The body may override the
// configured policy; an empty body runs with the default.
func (h *RetentionHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	policy := h.defaultPolicy
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
			writeError(w, http.StatusBadRequest, "invalid policy")
			return
		}
	}

	report := h.retention.RunGlobalCleanup(r.Context(), policy)
	writeJSON(w, http.StatusOK, report)
}

// Export handles GET /v1/owners/{ownerId}/export
func (h *RetentionHandler) Export(w http.ResponseWriter, r *http.Request) {
	ownerID := mux.Vars(r)["ownerId"]

	options, err := exportOptionsFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessions, err := h.sessions.ListByOwner(r.Context(), ownerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	data, err := h.export.ExportUserData(sessions, options)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filename := h.export.Filename(options.Format, time.Now())
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Content-Type", contentType(options.Format))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func exportOptionsFromQuery(r *http.Request) (model.ExportOptions, error) {
	q := r.URL.Query()

	options := model.ExportOptions{
		Format:           model.ExportFormat(q.Get("format")),
		IncludeMetrics:   boolParam(q.Get("metrics")),
		IncludeResponses: boolParam(q.Get("responses")),
		IncludeFeedback:  boolParam(q.Get("feedback")),
	}
	if options.Format == "" {
		options.Format = model.ExportJSON
	}

	from, err := timeParam(q.Get("from"))
	if err != nil {
		return options, err
	}
	to, err := timeParam(q.Get("to"))
	if err != nil {
		return options, err
	}
	if !from.IsZero() || !to.IsZero() {
		options.DateRange = &model.DateRange{From: from, To: to}
	}
	return options, nil
}

func boolParam(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

func timeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}

func contentType(format model.ExportFormat) string {
	switch format {
	case model.ExportJSON:
		return "application/json"
	case model.ExportCSV:
		return "text/csv"
	default:
		return "text/plain"
	}
}
