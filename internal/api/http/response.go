package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	merrors "github.com/moosedb/moosedb/internal/errors"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 4 << 20

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Category  string `json:"category,omitempty"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Response is the body of a successful request that carries only a message.
type Response struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// HTTPStatus maps an error to the status code returned to clients.
func HTTPStatus(err error) int {
	switch merrors.GetCategory(err) {
	case merrors.ErrCategoryInvalidInput:
		return http.StatusBadRequest
	case merrors.ErrCategoryUnauthorized:
		return http.StatusUnauthorized
	case merrors.ErrCategoryNotFound:
		return http.StatusNotFound
	case merrors.ErrCategoryAlreadyExists:
		return http.StatusConflict
	case merrors.ErrCategoryStorage:
		if merrors.GetCode(err) == merrors.CodeConstraintViolation {
			return http.StatusUnprocessableEntity
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as an ErrorResponse with the mapped status code.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{
		Message:   merrors.Message(err),
		Category:  string(merrors.GetCategory(err)),
		Code:      merrors.GetCode(err),
		RequestID: GetRequestID(r.Context()),
	}
	writeJSON(w, HTTPStatus(err), resp)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeMessage writes a successful Response.
func writeMessage(w http.ResponseWriter, r *http.Request, message string) {
	writeJSON(w, http.StatusOK, Response{
		Success:   true,
		Message:   message,
		RequestID: GetRequestID(r.Context()),
	})
}

// decodeBody reads a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return merrors.NewInvalidInput(merrors.CodeInvalidPayload,
			fmt.Sprintf("Failed to read request body: %v", err))
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return merrors.NewInvalidInput(merrors.CodeInvalidPayload,
			fmt.Sprintf("Invalid request body: %v", err))
	}
	return nil
}
