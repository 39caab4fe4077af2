package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// NetworkMessage is shown when the academy API could not be reached at all.
const NetworkMessage = "We couldn't reach the academy servers. Please check your connection and try again."

var ErrUnauthorized = errors.New("unauthorized")

// NetworkError is a transport failure: timeout, refused connection, DNS.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError is a non-2xx response. Message is already the best human-readable
// text available: the server's own message or the operation fallback.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// UserMessage picks the text to show in an error banner.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return NetworkMessage
	}
	if fallback != "" {
		return fallback
	}
	return err.Error()
}

// errorBody covers the shapes the API uses for failures:
// {"error":{"message":"..."}}, {"error":"..."} and {"message":"..."}.
type errorBody struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

func extractMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	if len(eb.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(eb.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
		var flat string
		if err := json.Unmarshal(eb.Error, &flat); err == nil && flat != "" {
			return flat
		}
	}
	return eb.Message
}
