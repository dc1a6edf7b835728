package httpapi

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/bookstore/services/library/internal/errs"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBodyBytes = 1 << 20

// errorResponse is the body of every failed request
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusOf(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindConflict, errs.KindOutOfStock:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	status := statusOf(kind)

	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}

	writeJSON(w, status, errorResponse{Error: string(kind), Message: errs.MessageOf(err)})
}

// decodeJSON reads a JSON object body into v. Malformed bodies are validation errors.
func decodeJSON(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return errs.Validation("failed to read request body: %v", err)
	}
	if len(body) > maxBodyBytes {
		return errs.Validation("request body too large")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return errs.Validation("request body is required")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errs.Validation("malformed JSON body: %v", err)
	}
	return nil
}

// queryInt parses an optional non-negative integer query parameter
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errs.Validation("%s must be a non-negative integer", name)
	}
	return n, nil
}

// flexID accepts an id sent either as a JSON string or a JSON number
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return errs.Validation("id must be a string or a number")
	}
	*id = flexID(data)
	return nil
}
