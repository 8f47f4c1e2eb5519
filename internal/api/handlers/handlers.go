// Package handlers implements the JSON HTTP endpoints of the ledger API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/api/middleware"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/formats"
	"github.com/dvloznov/statement-ledger/internal/jobs"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/rs/zerolog"
)

// maxBodyBytes caps request bodies, which carry whole statement files.
const maxBodyBytes = 20 << 20

// decodeJSON reads the request body into v and writes a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrFormatNotDetected),
		errors.Is(err, pipeline.ErrUnreadable),
		errors.Is(err, formats.ErrUnknownFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrEmptyCategory),
		errors.Is(err, ledger.ErrMergeTargetInSources):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrCycle),
		errors.Is(err, ledger.ErrHasParent),
		errors.Is(err, ledger.ErrSelfParent):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEmptyDescription),
		errors.Is(err, domain.ErrZeroAmount),
		errors.Is(err, domain.ErrMissingDate):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure logs err and writes it with the mapped status. Internal errors
// are reported with the generic message only.
func writeFailure(w http.ResponseWriter, log zerolog.Logger, err error, message string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg(message)
		middleware.WriteError(w, status, message)
		return
	}
	log.Warn().Err(err).Int("status", status).Msg(message)

	var formatErr *pipeline.FormatError
	if errors.As(err, &formatErr) {
		middleware.WriteJSON(w, status, map[string]interface{}{
			"error":      err.Error(),
			"validation": formatErr.Validation,
		})
		return
	}
	middleware.WriteError(w, status, err.Error())
}

// parseDateParam reads an optional YYYY-MM-DD query parameter.
func parseDateParam(r *http.Request, name string) (*civil.Date, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	d, err := civil.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// boolParam reports whether a query parameter is "true" or "1".
func boolParam(r *http.Request, name string) bool {
	v := strings.ToLower(strings.TrimSpace(r.URL.Query().Get(name)))
	return v == "true" || v == "1"
}
