package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/toolshed/marketplace/internal/api/middleware"
	"github.com/toolshed/marketplace/internal/domain/entities"
	"github.com/toolshed/marketplace/internal/infrastructure/observability"
	apperrors "github.com/toolshed/marketplace/pkg/errors"
)

const maxJSONBody = 1 << 20

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps an error to its status. Only the message of a
// client-facing AppError is echoed; wrapped causes are logged, never sent.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.NewInternalError("internal server error", err)
	}

	status := http.StatusInternalServerError
	message := "internal server error"
	switch appErr.Type {
	case apperrors.ErrorTypeNotFound:
		status, message = http.StatusNotFound, appErr.Message
	case apperrors.ErrorTypeValidation:
		status, message = http.StatusBadRequest, appErr.Message
	case apperrors.ErrorTypeConflict:
		status, message = http.StatusConflict, appErr.Message
	case apperrors.ErrorTypeUnauthorized:
		status, message = http.StatusUnauthorized, appErr.Message
	case apperrors.ErrorTypeForbidden:
		status, message = http.StatusForbidden, appErr.Message
	case apperrors.ErrorTypeExternal:
		status, message = http.StatusBadGateway, "upstream service unavailable"
	}

	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error().
			Err(err).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	respondWithError(w, status, message)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return apperrors.NewValidationError("invalid request body")
	}
	return nil
}

// currentUser returns the session user. Routes wrapped with RequireUser
// always have one.
func currentUser(r *http.Request) *entities.User {
	user, _ := middleware.CurrentUser(r.Context())
	return user
}

func parseOptionalFloat(raw, name string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, apperrors.NewValidationError("invalid " + name + " parameter")
	}
	return &v, nil
}

func parseOptionalInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperrors.NewValidationError("invalid " + name + " parameter")
	}
	return v, nil
}
