package httpx

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/RANAPRINCE06/Watch/internal/platform/requestctx"
)

const (
	maxCodeLen    = 80
	maxMessageLen = 512
	maxIDLen      = 80
)

// Error describes a failed request. Status defaults to 500.
type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]any
}

// NewError builds an Error with single-line, length bounded code and message.
func NewError(code, message string, status int) Error {
	return Error{
		Code:    oneLine(code, maxCodeLen),
		Message: oneLine(message, maxMessageLen),
		Status:  status,
	}
}

// WithDetails returns a copy of e carrying extra top-level envelope fields.
// Fields that collide with the envelope keys are ignored when written.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	e.Details = merged
	return e
}

func (e Error) envelope(ctx context.Context) map[string]any {
	body := make(map[string]any, len(e.Details)+5)
	for k, v := range e.Details {
		body[k] = v
	}
	body["success"] = false
	body["error"] = e.Code
	body["message"] = e.Message
	delete(body, "request_id")
	delete(body, "trace_id")
	if id := oneLine(middleware.GetReqID(ctx), maxIDLen); id != "" {
		body["request_id"] = id
	}
	if id := oneLine(requestctx.TraceID(ctx), maxIDLen); id != "" {
		body["trace_id"] = id
	}
	return body
}

// WriteError writes the failure envelope {success:false, error, message, request_id, trace_id}.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status < 400 {
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, err.envelope(ctx))
}

func oneLine(value string, limit int) string {
	value = strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(value))
	if len(value) <= limit {
		return value
	}
	value = value[:limit]
	for len(value) > 0 && !utf8.ValidString(value) {
		value = value[:len(value)-1]
	}
	return value
}
