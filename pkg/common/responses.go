package common

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
)

// DefaultMaxBodyBytes bounds request bodies
const DefaultMaxBodyBytes int64 = 1 << 20

// SuccessResponse is the body of writes that return nothing else
type SuccessResponse struct {
	Success bool `json:"success"`
}

// RespondJSON sends data as a JSON response
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// RespondSuccess sends {"success": true}
func RespondSuccess(w http.ResponseWriter) {
	RespondJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// ParseJSONBody decodes a JSON request body of at most maxBytes into v.
// Malformed or oversized bodies become validation errors.
func ParseJSONBody(w http.ResponseWriter, r *http.Request, v interface{}, maxBytes int64) error {
	if r.Body == nil || r.Body == http.NoBody {
		return pkgerrors.NewValidationError("request body is required")
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return pkgerrors.NewValidationErrorf("request body exceeds %d bytes", maxBytes)
		}
		return pkgerrors.NewValidationError("failed to read request body").WithCause(err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return pkgerrors.NewValidationError("request body is required")
	}

	if err := json.Unmarshal(data, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return pkgerrors.NewValidationErrorf("%s has the wrong type", typeErr.Field).
				WithDetail("field", typeErr.Field)
		}
		return pkgerrors.NewValidationError(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}
