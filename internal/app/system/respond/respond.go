// internal/app/system/respond/respond.go
package respond

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dalemusser/impacthub/internal/app/system/apperr"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

// errorBody is the JSON envelope for every failure.
type errorBody struct {
	Error   apperr.Code `json:"error"`
	Message string      `json:"message"`
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes v with 200.
func OK(w http.ResponseWriter, v any) { JSON(w, http.StatusOK, v) }

// Created writes v with 201.
func Created(w http.ResponseWriter, v any) { JSON(w, http.StatusCreated, v) }

// Message writes {"message": msg} plus an optional named entity.
func Message(w http.ResponseWriter, status int, msg string, key string, entity any) {
	body := map[string]any{"message": msg}
	if key != "" {
		body[key] = entity
	}
	JSON(w, status, body)
}

// StatusFor maps an error category to its HTTP status.
func StatusFor(code apperr.Code) int {
	switch code {
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.Authentication:
		return http.StatusUnauthorized
	case apperr.Authorization:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error classifies err and writes the JSON error envelope. Internal errors
// are logged with their cause and answered with a generic message.
func Error(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	ae := apperr.Classify(err)
	status := StatusFor(ae.Code)

	msg := ae.Message
	if ae.Code == apperr.Internal {
		if log != nil {
			log.Error("request failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Error(err))
		}
		msg = "internal server error"
	}
	JSON(w, status, errorBody{Error: ae.Code, Message: msg})
}

// Decode reads a JSON body into dst. An empty or malformed body is a
// validation error.
func Decode(r *http.Request, dst any) error {
	if r.Body == nil {
		return apperr.Invalid("request body is required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Invalid("request body is required")
		}
		return apperr.Wrap(err, apperr.Validation, "malformed JSON body")
	}
	return nil
}

// ObjectID parses the chi URL parameter name as an ObjectID. A malformed id
// is a validation error.
func ObjectID(r *http.Request, name string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		return primitive.NilObjectID, apperr.Invalid("invalid " + name)
	}
	return oid, nil
}
