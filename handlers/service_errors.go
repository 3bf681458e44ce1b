package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/amoreldmija/hospital/services"
	"github.com/amoreldmija/hospital/utils"
	"go.uber.org/zap"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// WriteServiceError maps domain errors to HTTP responses
func WriteServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)
	if len(details) == 0 {
		details = nil
	}

	var writeErr error
	switch services.GetErrorType(err) {
	case services.ErrorTypeNotFound:
		writeErr = utils.WriteNotFound(w, messageOf(err))

	case services.ErrorTypeValidation:
		writeErr = utils.WriteBadRequest(w, messageOf(err), details)

	case services.ErrorTypeAuthentication, services.ErrorTypeUnauthorized:
		writeErr = utils.WriteUnauthorized(w, messageOf(err))

	case services.ErrorTypeForbidden:
		writeErr = utils.WriteForbidden(w, messageOf(err))

	case services.ErrorTypeConflict:
		writeErr = utils.WriteConflict(w, messageOf(err), details)

	case services.ErrorTypeBackendUnavailable:
		logger.Error("backend unavailable", zap.Error(err))
		writeErr = utils.WriteServiceUnavailable(w, "A backend service is unavailable, try again later")

	case services.ErrorTypeConfiguration:
		logger.Error("configuration error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "The server is misconfigured")

	case services.ErrorTypeInternal:
		// Log internal errors but return generic message
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An internal error occurred")

	default:
		logger.Error("unhandled error type", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// messageOf returns the user-facing message of a domain error without the
// wrapped cause.
func messageOf(err error) string {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}

// decodeJSON reads a JSON request body into v. Malformed bodies become
// validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return services.ErrInvalidInput.WithDetail("body", "request body is empty")
		}
		return services.NewDomainError(services.ErrorTypeValidation, "invalid request body", err)
	}
	return nil
}

// writeResult writes data with status or reports the write failure.
func writeResult(w http.ResponseWriter, status int, data interface{}, logger *zap.Logger) {
	if err := utils.WriteJSON(w, status, utils.SuccessResponse{Data: data}); err != nil {
		logger.Error("failed to write response", zap.Error(err))
	}
}
