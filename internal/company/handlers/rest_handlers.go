package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"

	"github.com/gartstein/directory/internal/company/models"
	"github.com/gartstein/directory/internal/company/query"
	"github.com/gartstein/directory/internal/company/schema"
)

// maxBodyBytes bounds a create or update payload.
const maxBodyBytes = 1 << 20

// CompanyController defines the business logic interface
// that the gRPC/HTTP handlers will invoke.
type CompanyController interface {
	CreateCompany(ctx context.Context, candidate schema.Candidate) (*models.Company, error)
	GetCompany(ctx context.Context, id string) (*models.Company, error)
	ListCompanies(ctx context.Context, params query.Params) (*models.Page, error)
	UpdateCompany(ctx context.Context, id string, candidate schema.Candidate) (*models.Company, error)
	DeleteCompany(ctx context.Context, id string) error
	Rules() []schema.FieldRule
}

// RESTHandler serves the company REST API on a gateway mux.
type RESTHandler struct {
	service CompanyController
	logger  *zap.Logger
	errs    errorWriter
}

// NewRESTHandler builds the REST handler. With development set, error
// bodies carry a stack.
func NewRESTHandler(service CompanyController, logger *zap.Logger, development bool) *RESTHandler {
	logger = logger.Named("rest_handler")
	return &RESTHandler{
		service: service,
		logger:  logger,
		errs:    errorWriter{logger: logger, development: development},
	}
}

// NewMux returns a gateway mux with every route registered. Unknown paths
// and methods get the error envelope.
func (h *RESTHandler) NewMux() (*runtime.ServeMux, error) {
	mux := runtime.NewServeMux(runtime.WithRoutingErrorHandler(h.routingError))

	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{http.MethodGet, "/api/companies", h.listCompanies},
		{http.MethodPost, "/api/companies", h.createCompany},
		{http.MethodGet, "/api/companies/{id}", h.getCompany},
		{http.MethodPut, "/api/companies/{id}", h.updateCompany},
		{http.MethodDelete, "/api/companies/{id}", h.deleteCompany},
		{http.MethodGet, "/api/schema/company", h.companySchema},
		{http.MethodGet, "/healthz", h.healthz},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.pattern, rt.handler); err != nil {
			return nil, fmt.Errorf("register %s %s: %w", rt.method, rt.pattern, err)
		}
	}
	return mux, nil
}

func (h *RESTHandler) listCompanies(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	page, err := h.service.ListCompanies(r.Context(), query.ParamsFromValues(r.URL.Query()))
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	data := page.Companies
	if data == nil {
		data = []models.Company{}
	}
	writeJSON(w, http.StatusOK, listResponse{
		Success:    true,
		Total:      page.Total,
		Page:       page.Page,
		TotalPages: page.TotalPages,
		Data:       data,
	})
}

func (h *RESTHandler) createCompany(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	candidate, err := decodeCandidate(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	created, err := h.service.CreateCompany(r.Context(), candidate)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dataResponse{Success: true, Data: created})
}

func (h *RESTHandler) getCompany(w http.ResponseWriter, r *http.Request, params map[string]string) {
	company, err := h.service.GetCompany(r.Context(), params["id"])
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Success: true, Data: company})
}

func (h *RESTHandler) updateCompany(w http.ResponseWriter, r *http.Request, params map[string]string) {
	candidate, err := decodeCandidate(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	updated, err := h.service.UpdateCompany(r.Context(), params["id"], candidate)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Success: true, Data: updated})
}

func (h *RESTHandler) deleteCompany(w http.ResponseWriter, r *http.Request, params map[string]string) {
	if err := h.service.DeleteCompany(r.Context(), params["id"]); err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: MsgDeleted})
}

func (h *RESTHandler) companySchema(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, struct {
		Success bool               `json:"success"`
		Data    []schema.FieldRule `json:"data"`
	}{true, h.service.Rules()})
}

func (h *RESTHandler) healthz(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "ok"})
}

func (h *RESTHandler) routingError(_ context.Context, _ *runtime.ServeMux, _ runtime.Marshaler, w http.ResponseWriter, _ *http.Request, code int) {
	h.errs.message(w, code, http.StatusText(code))
}

// decodeCandidate reads a JSON object body. Numbers stay json.Number so
// the schema decides how to coerce them.
func decodeCandidate(r *http.Request) (schema.Candidate, error) {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()

	var candidate schema.Candidate
	if err := dec.Decode(&candidate); err != nil {
		if errors.Is(err, io.EOF) {
			return schema.Candidate{}, nil
		}
		return nil, fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if dec.More() {
		return nil, errMalformedBody
	}
	if candidate == nil {
		candidate = schema.Candidate{}
	}
	return candidate, nil
}
