package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"reliefportal/internal/adapters/http/middleware"
	"reliefportal/internal/domain/apperr"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindCredential:
		return http.StatusUnauthorized
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindDuplicateSignup, apperr.KindBusy:
		return http.StatusConflict
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}

// writeError answers with the JSON error envelope. Store messages pass
// through verbatim; the failure is also logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	logFailure(r, err)
	middleware.WriteJSONError(w, statusFor(kind), string(kind), err.Error())
}

// logFailure logs err at ERROR when it maps to a 5xx and at DEBUG otherwise.
func logFailure(r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if statusFor(kind) >= 500 {
		zap.L().Error("request_failed",
			zap.String("path", r.URL.Path),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return
	}
	zap.L().Debug("request_rejected", zap.String("path", r.URL.Path), zap.String("kind", string(kind)), zap.Error(err))
}

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	zap.L().Error("internal_error", zap.Error(err))
	middleware.WriteJSONError(w, http.StatusInternalServerError, "internal", "internal server error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write_json_failed", zap.Error(err))
	}
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
// Decode failures are validation errors.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validationf("request body is empty")
		}
		return apperr.Validation(fmt.Errorf("invalid request body: %w", err))
	}
	return nil
}

func isJSONRequest(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func isHTMLRequest(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") || strings.Contains(accept, "application/xhtml+xml")
}
