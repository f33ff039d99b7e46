package response

import (
	"encoding/json"
	"net/http"
	"strings"
)

// ErrorBody is the JSON shape of every non-webhook error response.
type ErrorBody struct {
	StatusCode int    `json:"statusCode"`
	Message    any    `json:"message"`
	Error      string `json:"error"`
}

func JSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Error writes {statusCode, message, error}. message is a string or a list of
// validation messages.
func Error(w http.ResponseWriter, status int, message any) {
	JSON(w, status, ErrorBody{
		StatusCode: status,
		Message:    message,
		Error:      strings.TrimSpace(http.StatusText(status)),
	})
}
