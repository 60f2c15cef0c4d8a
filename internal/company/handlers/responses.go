package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	e "github.com/gartstein/directory/internal/company/errors"
	"github.com/gartstein/directory/internal/company/models"
)

const (
	MsgNotFound        = "Company not found"
	MsgMalformedBody   = "Malformed JSON body"
	MsgInternal        = "Internal Server Error"
	MsgDeleted         = "Company deleted successfully"
	MsgNameTaken       = "Company name already exists"
	MsgTooManyRequests = "Too many requests, please try again later"
)

var errMalformedBody = errors.New("malformed JSON body")

type errorResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Errors  e.FieldErrors `json:"errors,omitempty"`
	Stack   string        `json:"stack,omitempty"`
}

type dataResponse struct {
	Success bool            `json:"success"`
	Data    *models.Company `json:"data"`
}

type listResponse struct {
	Success    bool             `json:"success"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	TotalPages int              `json:"totalPages"`
	Data       []models.Company `json:"data"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// errorWriter turns every failure into the error envelope. It is the only
// place that picks a status code for a service error.
type errorWriter struct {
	logger      *zap.Logger
	development bool
}

func (ew errorWriter) status(err error) (int, errorResponse) {
	var (
		ve *e.ValidationError
		ce *e.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorResponse{Message: ve.Message, Errors: ve.Fields}
	case errors.Is(err, errMalformedBody):
		return http.StatusBadRequest, errorResponse{Message: MsgMalformedBody}
	case errors.As(err, &ce):
		return http.StatusBadRequest, errorResponse{Message: ce.Message}
	case errors.Is(err, e.ErrDuplicateName):
		return http.StatusBadRequest, errorResponse{Message: MsgNameTaken}
	case errors.Is(err, e.ErrNotFound):
		return http.StatusNotFound, errorResponse{Message: MsgNotFound}
	default:
		return http.StatusInternalServerError, errorResponse{Message: MsgInternal}
	}
}

func (ew errorWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	code, body := ew.status(err)
	if code >= http.StatusInternalServerError {
		ew.logger.Error("Request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFrom(r.Context())),
		)
	}
	if ew.development {
		body.Stack = fmt.Sprintf("%v\n%s", err, debug.Stack())
	}
	writeJSON(w, code, body)
}

// message writes a bare envelope for failures that never reach the service.
func (ew errorWriter) message(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Message: msg})
}
