package handlers

import (
	"net/http"
	"strings"

	"github.com/dvloznov/statement-ledger/internal/api/middleware"
	"github.com/dvloznov/statement-ledger/internal/dedup"
	"github.com/dvloznov/statement-ledger/internal/formats"
	"github.com/dvloznov/statement-ledger/internal/jobs"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
	"github.com/rs/zerolog"
)

// importRequest is the body of the import endpoints. Content carries the file
// for synchronous imports; SourceURI names it for queued ones.
type importRequest struct {
	Filename       string `json:"filename"`
	Content        string `json:"content"`
	SourceURI      string `json:"source_uri"`
	Format         string `json:"format"`
	Policy         string `json:"policy"`
	AutoCategorize bool   `json:"auto_categorize"`
}

// ImportsHandler handles parsing, duplicate analysis and imports.
type ImportsHandler struct {
	importer  *pipeline.Importer
	publisher jobs.Publisher
	policy    dedup.Policy
	log       zerolog.Logger
}

// NewImportsHandler creates a new imports handler. policy is used when a
// request names none; publisher may be nil when no job queue runs.
func NewImportsHandler(importer *pipeline.Importer, publisher jobs.Publisher, policy dedup.Policy, log zerolog.Logger) *ImportsHandler {
	return &ImportsHandler{
		importer:  importer,
		publisher: publisher,
		policy:    policy,
		log:       log,
	}
}

func (h *ImportsHandler) options(req importRequest, dryRun bool) (pipeline.ImportOptions, error) {
	policy := h.policy
	if strings.TrimSpace(req.Policy) != "" {
		p, err := dedup.ParsePolicy(req.Policy)
		if err != nil {
			return pipeline.ImportOptions{}, err
		}
		policy = p
	}
	return pipeline.ImportOptions{
		Format:         req.Format,
		Policy:         policy,
		AutoCategorize: req.AutoCategorize,
		DryRun:         dryRun,
	}, nil
}

func filename(req importRequest) string {
	if req.Filename != "" {
		return req.Filename
	}
	return "upload.csv"
}

// Parse handles POST /api/imports/parse
// It normalizes the file without touching the store.
func (h *ImportsHandler) Parse(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	format := strings.TrimSpace(req.Format)
	if format == "" || strings.EqualFold(format, formats.AutoDetect) {
		name, ok := formats.Detect(req.Content)
		if !ok {
			middleware.WriteJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error":      pipeline.ErrFormatNotDetected.Error(),
				"validation": formats.Validate(req.Content, formats.AutoDetect),
			})
			return
		}
		format = name
	}

	report, err := pipeline.ParseWithReport(r.Context(), req.Content, format)
	if err != nil {
		writeFailure(w, h.log, err, "Failed to parse file")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, report)
}

// Analyze handles POST /api/imports/analyze
// It runs the import as a dry run and reports every candidate.
func (h *ImportsHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	h.importText(w, r, true)
}

// Import handles POST /api/imports
func (h *ImportsHandler) Import(w http.ResponseWriter, r *http.Request) {
	h.importText(w, r, false)
}

func (h *ImportsHandler) importText(w http.ResponseWriter, r *http.Request, dryRun bool) {
	var req importRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	opts, err := h.options(req, dryRun)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.importer.ImportText(r.Context(), filename(req), req.Content, opts)
	if err != nil {
		writeFailure(w, h.log, err, "Failed to import file")
		return
	}

	status := http.StatusOK
	if report.Inserted > 0 {
		status = http.StatusCreated
	}
	middleware.WriteJSON(w, status, report)
}

// EnqueueImport handles POST /api/imports/jobs
func (h *ImportsHandler) EnqueueImport(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Job queue is not available")
		return
	}

	var req importRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SourceURI) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "source_uri is required")
		return
	}
	if _, err := h.options(req, false); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := &jobs.ImportFileJob{
		SourceURI:      req.SourceURI,
		Format:         req.Format,
		Policy:         req.Policy,
		AutoCategorize: req.AutoCategorize,
	}
	if err := h.publisher.PublishImportFile(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue import job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue import job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("source_uri", job.SourceURI).Msg("Import job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":     job.JobID,
		"source_uri": job.SourceURI,
		"status":     string(job.Status),
	})
}
