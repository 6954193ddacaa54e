package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// MaxBodyBytes bounds request bodies decoded by DecodeJSON.
const MaxBodyBytes int64 = 64 * 1024

var (
	// ErrEmptyBody is returned when the request carries no body.
	ErrEmptyBody = errors.New("httpx: request body is empty")
	// ErrBodyTooLarge is returned when the body exceeds the configured limit.
	ErrBodyTooLarge = errors.New("httpx: request body too large")
)

// Success is embedded in response structs so every payload carries success:true.
type Success struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// OK returns the success marker.
func OK() Success { return Success{Success: true} }

// OKMessage returns the success marker with a message.
func OKMessage(msg string) Success { return Success{Success: true, Message: msg} }

// WriteJSON encodes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// ReadBody reads at most limit bytes from the request body.
func ReadBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil {
		return nil, ErrEmptyBody
	}
	if limit <= 0 {
		limit = MaxBodyBytes
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrBodyTooLarge
	}
	if len(data) == 0 {
		return nil, ErrEmptyBody
	}
	return data, nil
}

// DecodeJSON reads and decodes a bounded JSON body into dst.
func DecodeJSON(r *http.Request, dst any) error {
	data, err := ReadBody(r, MaxBodyBytes)
	if err != nil {
		return err
	}
	return json.NewDecoder(bytes.NewReader(data)).Decode(dst)
}
