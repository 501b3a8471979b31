package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Wuchinator/landing-analytics/internal/validation"
	"go.uber.org/zap"
)

// MaxBodyBytes caps every tracking payload.
const MaxBodyBytes = 64 << 10

// Response is the body of every non-2xx reply.
type Response struct {
	Error  string                  `json:"error"`
	Errors []validation.FieldError `json:"errors,omitempty"`
}

// Ack is the body of a successful tracking call.
type Ack struct {
	Success bool   `json:"success"`
	ID      *int64 `json:"id,omitempty"`
	Created *bool  `json:"created,omitempty"`
}

// Write outputs v as JSON with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// Read decodes the JSON body into v. The Content-Type is ignored because
// navigator.sendBeacon posts JSON as text/plain. On failure a 400 has
// already been written and false is returned.
func Read(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			Write(w, http.StatusRequestEntityTooLarge, Response{Error: "request body too large"})
			return false
		}
		Write(w, http.StatusBadRequest, Response{Error: "invalid request body"})
		return false
	}
	return true
}

// WriteError maps err to a status. Validation failures become 400 with
// per-field details, anything else a 500 carrying only msg.
func WriteError(w http.ResponseWriter, logger *zap.Logger, err error, msg string) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		Write(w, http.StatusBadRequest, Response{
			Error:  "validation failed",
			Errors: verr.Fields,
		})
		return
	}

	logger.Error(msg, zap.Error(err))
	Write(w, http.StatusInternalServerError, Response{Error: msg})
}

// ParseLimit reads ?limit=, falling back to def for missing or invalid
// values and capping at max.
func ParseLimit(r *http.Request, def, max int) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
