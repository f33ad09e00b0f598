// Package respond writes the JSON envelope shared by every endpoint.
package respond

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/membership-gateway/pkg/errs"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Status  string            `json:"status"`
	Data    interface{}       `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
	Error   string            `json:"error,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// JSON writes payload with the given status code.
func JSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// Success writes a 200 envelope carrying data.
func Success(w http.ResponseWriter, data interface{}, message string) {
	JSON(w, http.StatusOK, Envelope{Status: StatusSuccess, Data: data, Message: message})
}

// Error maps err to its status code and writes an error envelope. Untyped
// errors are reported as internal without leaking their text.
func Error(w http.ResponseWriter, r *http.Request, logger log.FieldLogger, err error) {
	e := errs.As(err)
	code := e.Status()

	entry := logger.WithFields(log.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"kind":   e.Kind,
		"status": code,
	}).WithError(err)
	if code >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Info("request rejected")
	}

	JSON(w, code, Envelope{
		Status:  StatusError,
		Error:   string(e.Kind),
		Message: e.Message,
		Details: e.Details,
	})
}
