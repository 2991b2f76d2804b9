package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "kindmesh/pkg/domain-errors"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError translates domain error codes into HTTP statuses with a
// JSON envelope. Internal and store errors keep their detail out of the
// response body.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeInternal
	message := "internal error"

	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		code = domainErr.Code
		message = domainErr.Message
	}

	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		message = "internal error"
		if code == dErrors.CodeUnavailable {
			message = "store unavailable"
		}
	}
	writeJSON(w, status, map[string]string{
		"error":   string(code),
		"message": message,
	})
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeValidation:
		return http.StatusUnprocessableEntity
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeQuorumNotMet:
		return http.StatusPreconditionFailed
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
