package core

import (
	"encoding/json"
	"errors"
	"net/http"

	"caliseed/internal/types"
)

// ListResponse is the envelope for collection endpoints.
type ListResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
	Data    any  `json:"data"`
}

// DataResponse is the envelope for single-object endpoints.
type DataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// ErrorResponse is the envelope for every error. The message is safe to show
// to clients; wrapped causes are never serialized.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// JSON writes data with the given status. A marshal failure degrades to a
// 500 error body.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(ErrorResponse{
			Error:     "failed to marshal response",
			Code:      string(types.ErrCodeInternalUnexpected),
			RequestID: types.GetRequestID(r.Context()),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// List writes a collection envelope. count is len(items).
func List[T any](w http.ResponseWriter, r *http.Request, items []T) {
	if items == nil {
		items = []T{}
	}
	JSON(w, r, http.StatusOK, ListResponse{Success: true, Count: len(items), Data: items})
}

// Error maps err to a status and error envelope. AppErrors keep their code
// and message; anything else becomes an opaque 500.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	requestID := types.GetRequestID(r.Context())

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		JSON(w, r, appErr.HTTPStatus(), ErrorResponse{
			Error:     appErr.Message,
			Code:      string(appErr.Code),
			RequestID: requestID,
		})
		return
	}

	JSON(w, r, http.StatusInternalServerError, ErrorResponse{
		Error:     "an unexpected error occurred",
		Code:      string(types.ErrCodeInternalUnexpected),
		RequestID: requestID,
	})
}
