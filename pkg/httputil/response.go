package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/vidtube/backend/pkg/errors"
	"github.com/vidtube/backend/pkg/logger"
	"github.com/vidtube/backend/pkg/validator"
)

// Response is the success envelope returned by every endpoint.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// ErrorResponse is the failure envelope. Data is always null and Errors is
// always an array, empty when no single field is to blame.
type ErrorResponse struct {
	StatusCode int                    `json:"statusCode"`
	Data       any                    `json:"data"`
	Message    string                 `json:"message"`
	Success    bool                   `json:"success"`
	Errors     []apperrors.FieldError `json:"errors"`
	Code       string                 `json:"code"`
	RequestID  string                 `json:"requestId,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes a success envelope.
func WriteSuccess(w http.ResponseWriter, status int, data any, message string) {
	WriteJSON(w, status, Response{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

// WriteError writes the failure envelope for err. It is the single place where
// errors become HTTP responses. AppErrors render their own status and message;
// bare sentinels map to a generic message; anything else is a 500 whose cause
// is logged and never returned. It prefers the request-scoped logger from
// context (set by the RequestLogger middleware) over the fallback logger.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	requestID := logger.CorrelationIDFromContext(r.Context())

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Status >= http.StatusInternalServerError {
			logInternal(l, r, err)
		}
		writeFailure(w, appErr.Status, appErr.Code, appErr.Message, appErr.Errors, requestID)
		return
	}

	status := apperrors.HTTPStatus(err)
	code := "INTERNAL_ERROR"
	message := "an internal error occurred"

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		code, message = "NOT_FOUND", "resource not found"
	case errors.Is(err, apperrors.ErrAlreadyExists), errors.Is(err, apperrors.ErrConflict):
		code, message = "ALREADY_EXISTS", "resource already exists"
	case errors.Is(err, apperrors.ErrInvalidInput):
		code, message = "INVALID_INPUT", err.Error()
	case errors.Is(err, apperrors.ErrUnauthorized):
		code, message = "UNAUTHORIZED", "unauthorized request"
	case errors.Is(err, apperrors.ErrForbidden):
		code, message = "FORBIDDEN", "forbidden"
	default:
		status = http.StatusInternalServerError
		logInternal(l, r, err)
	}

	writeFailure(w, status, code, message, nil, requestID)
}

// WriteValidationError writes a 400 envelope. Validator failures list every
// rejected field; any other error (usually a decode failure) is reported as is.
func WriteValidationError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := logger.CorrelationIDFromContext(r.Context())

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		writeFailure(w, http.StatusBadRequest, "VALIDATION_ERROR", "request validation failed",
			valErr.FieldErrors(), requestID)
		return
	}

	writeFailure(w, http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil, requestID)
}

func writeFailure(w http.ResponseWriter, status int, code, message string, fields []apperrors.FieldError, requestID string) {
	if fields == nil {
		fields = []apperrors.FieldError{}
	}
	WriteJSON(w, status, ErrorResponse{
		StatusCode: status,
		Data:       nil,
		Message:    message,
		Success:    false,
		Errors:     fields,
		Code:       code,
		RequestID:  requestID,
	})
}

func logInternal(l *slog.Logger, r *http.Request, err error) {
	l.ErrorContext(r.Context(), "internal error",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
}
