package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Reply is the body of every control-plane response. Status is either
// StatusSuccess or StatusError; there are no other codes.
type Reply struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// WriteSuccess writes a 200 reply echoing what was done.
func WriteSuccess(w http.ResponseWriter, message string) {
	write(w, http.StatusOK, Reply{Status: StatusSuccess, Message: message})
}

// WriteRejected writes a 400 reply naming the offending input and the reason.
func WriteRejected(w http.ResponseWriter, message string) {
	write(w, http.StatusBadRequest, Reply{Status: StatusError, Message: message})
}

func write(w http.ResponseWriter, statusCode int, r Reply) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(r); err != nil {
		fmt.Printf("Failed to write reply: %v\n", err)
	}
}

// Flush pushes buffered bytes to the client when the writer supports it.
// Used before a deliberate restart so the client sees the result.
func Flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
