// Package respond renders the {code, message, data, timestamp} envelope used
// by every API response.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/airobot/server/internal/apperr"
)

type Envelope struct {
	Code      int       `json:"code"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Result is a handler outcome. Err takes precedence over Data.
type Result struct {
	Status  int
	Message string
	Data    any
	Err     error
}

// Render maps a result to its HTTP status and envelope. Internal error
// details are never exposed.
func Render(res Result, now time.Time) (int, Envelope) {
	if res.Err != nil {
		kind := apperr.KindOf(res.Err)
		status := apperr.Status(kind)
		env := Envelope{Code: status, Message: "internal server error", Timestamp: now}
		if kind != apperr.KindInternal {
			var e *apperr.Error
			if errors.As(res.Err, &e) {
				env.Message = e.Message
				env.Data = e.Data
			}
		}
		return status, env
	}

	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}
	msg := res.Message
	if msg == "" {
		msg = "success"
	}
	return status, Envelope{Code: status, Message: msg, Data: res.Data, Timestamp: now}
}

// Write renders res and writes it as JSON.
func Write(w http.ResponseWriter, res Result) {
	status, env := Render(res, time.Now().UTC())
	JSON(w, status, env)
}

func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func OK(w http.ResponseWriter, data any) {
	Write(w, Result{Data: data})
}

func Created(w http.ResponseWriter, data any, message string) {
	Write(w, Result{Status: http.StatusCreated, Message: message, Data: data})
}

func Error(w http.ResponseWriter, err error) {
	Write(w, Result{Err: err})
}

// TooManyRequests writes the rate limit envelope with a Retry-After header.
func TooManyRequests(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int(retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	Error(w, apperr.TooManyRequests("too many requests, please try again later"))
}
