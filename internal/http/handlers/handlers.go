// Package handlers adapts HTTP requests to the domain services.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/airobot/server/internal/apperr"
	"github.com/airobot/server/internal/audit"
	"github.com/airobot/server/internal/http/respond"
	"github.com/airobot/server/internal/middleware"
	"github.com/airobot/server/internal/repo"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate = validator.New()

const maxBodyBytes = 1 << 20

// decode reads a JSON body into dst and validates its struct tags.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.InvalidInput("request body is required")
		}
		return apperr.InvalidInput("invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return apperr.InvalidInput(msgs[0]).WithData(map[string]any{"errors": msgs})
		}
		return apperr.InvalidInput("invalid request body")
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return field + " is invalid"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// pathID parses a positive numeric URL parameter.
func pathID(r *http.Request, name string) (uint, error) {
	n, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || n == 0 {
		return 0, apperr.InvalidInput("invalid " + name)
	}
	return uint(n), nil
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.InvalidInput(name + " must be an integer")
	}
	return n, nil
}

// queryPage parses ?page= and rejects values above repo.MaxPage. Absent means the first page.
func queryPage(r *http.Request) (int, error) {
	page, err := queryInt(r, "page")
	if err != nil {
		return 0, err
	}
	if page < 0 || page > repo.MaxPage {
		return 0, apperr.InvalidInput(fmt.Sprintf("page must be between 1 and %d", repo.MaxPage))
	}
	return page, nil
}

func userID(r *http.Request) uint {
	id, _ := middleware.GetUserID(r.Context())
	return id
}

// actor describes the caller for the operation log.
func actor(r *http.Request) audit.Actor {
	a := audit.Actor{IP: clientIP(r), UserAgent: r.UserAgent()}
	if u, ok := middleware.GetUser(r.Context()); ok {
		id := u.ID
		a.UserID = &id
		a.Username = u.Username
	}
	return a
}

func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.HasSuffix(host, "]") {
		host = host[:i]
	}
	return strings.Trim(host, "[]")
}

// fail writes err and logs it when it is an internal failure.
func fail(logger *zap.Logger, w http.ResponseWriter, r *http.Request, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		logger.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	}
	respond.Error(w, err)
}
