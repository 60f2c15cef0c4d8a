package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	e "github.com/gartstein/directory/internal/company/errors"
	"github.com/gartstein/directory/internal/company/models"
	"github.com/gartstein/directory/internal/company/query"
	"github.com/gartstein/directory/internal/company/schema"
)

type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Errors     e.FieldErrors   `json:"errors"`
	Stack      string          `json:"stack"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	TotalPages int             `json:"totalPages"`
	Data       json.RawMessage `json:"data"`
}

func serve(t *testing.T, ctrl CompanyController, development bool, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	mux, err := NewRESTHandler(ctrl, zaptest.NewLogger(t), development).NewMux()
	require.NoError(t, err)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestREST_List(t *testing.T) {
	var got query.Params
	ctrl := &mockCompanyController{
		listCompaniesFunc: func(_ context.Context, p query.Params) (*models.Page, error) {
			got = p
			return &models.Page{Total: 0, Page: 1, TotalPages: 0}, nil
		},
	}

	rec, env := serve(t, ctrl, false, http.MethodGet, "/api/companies?search=Ac%25me&industry=IT&page=1&sortBy=foundedYear&sortOrder=desc", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.True(t, env.Success)
	assert.JSONEq(t, `[]`, string(env.Data))
	assert.Equal(t, query.Params{Search: "Ac%me", Industry: "IT", Page: "1", SortBy: "foundedYear", SortOrder: "desc"}, got)
}

func TestREST_ListInvalidParams(t *testing.T) {
	ctrl := &mockCompanyController{
		listCompaniesFunc: func(_ context.Context, _ query.Params) (*models.Page, error) {
			fe := e.FieldErrors{}
			fe.Add("page", "Page must be a positive integer")
			return nil, e.NewValidationError(query.InvalidParamsMessage, fe)
		},
	}

	rec, env := serve(t, ctrl, false, http.MethodGet, "/api/companies?page=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Invalid query parameters", env.Message)
	assert.Equal(t, e.FieldErrors{{Field: "page", Msg: "Page must be a positive integer"}}, env.Errors)
	assert.Empty(t, env.Stack)
}

func TestREST_ErrorShaping(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		target      string
		body        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{"create duplicate", http.MethodPost, "/api/companies", `{"name":"Acme"}`,
			e.NewConflictError(`Company with name "Acme" already exists`), http.StatusBadRequest, `Company with name "Acme" already exists`},
		{"update duplicate", http.MethodPut, "/api/companies/x", `{"name":"Acme"}`,
			e.NewConflictError("Company name already exists"), http.StatusBadRequest, "Company name already exists"},
		{"update missing", http.MethodPut, "/api/companies/x", `{"name":"Acme"}`,
			e.ErrNotFound, http.StatusNotFound, "Company not found"},
		{"get missing", http.MethodGet, "/api/companies/x", "",
			e.ErrNotFound, http.StatusNotFound, "Company not found"},
		{"delete missing", http.MethodDelete, "/api/companies/x", "",
			e.ErrNotFound, http.StatusNotFound, "Company not found"},
		{"store failure", http.MethodGet, "/api/companies/x", "",
			errors.New("connection reset"), http.StatusInternalServerError, "Internal Server Error"},
		{"malformed body", http.MethodPost, "/api/companies", `{"name":`,
			nil, http.StatusBadRequest, "Malformed JSON body"},
		{"array body", http.MethodPut, "/api/companies/x", `[1,2]`,
			nil, http.StatusBadRequest, "Malformed JSON body"},
		{"trailing data", http.MethodPost, "/api/companies", `{} {}`,
			nil, http.StatusBadRequest, "Malformed JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			ctrl := &mockCompanyController{
				createCompanyFunc: func(context.Context, schema.Candidate) (*models.Company, error) {
					called = true
					return nil, tt.err
				},
				getCompanyFunc: func(context.Context, string) (*models.Company, error) {
					called = true
					return nil, tt.err
				},
				updateCompanyFunc: func(context.Context, string, schema.Candidate) (*models.Company, error) {
					called = true
					return nil, tt.err
				},
				deleteCompanyFunc: func(context.Context, string) error {
					called = true
					return tt.err
				},
			}

			rec, env := serve(t, ctrl, false, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantMessage, env.Message)
			assert.Nil(t, env.Errors)
			assert.Equal(t, tt.err != nil, called)
		})
	}
}

func TestREST_StackOnlyInDevelopment(t *testing.T) {
	ctrl := &mockCompanyController{
		getCompanyFunc: func(context.Context, string) (*models.Company, error) {
			return nil, errors.New("boom")
		},
	}

	_, prod := serve(t, ctrl, false, http.MethodGet, "/api/companies/x", "")
	assert.Empty(t, prod.Stack)

	_, dev := serve(t, ctrl, true, http.MethodGet, "/api/companies/x", "")
	assert.Contains(t, dev.Stack, "boom")
	assert.Equal(t, "Internal Server Error", dev.Message)
}

func TestREST_CreateAndDelete(t *testing.T) {
	var got schema.Candidate
	ctrl := &mockCompanyController{
		createCompanyFunc: func(_ context.Context, c schema.Candidate) (*models.Company, error) {
			got = c
			return storedAcme(), nil
		},
		deleteCompanyFunc: func(context.Context, string) error { return nil },
	}

	rec, env := serve(t, ctrl, false, http.MethodPost, "/api/companies", `{"name":"Acme","employeeCount":50}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, json.Number("50"), got["employeeCount"])

	var data models.Company
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "id-acme", data.ID)

	rec, env = serve(t, ctrl, false, http.MethodDelete, "/api/companies/id-acme", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Company deleted successfully", env.Message)
}

func TestREST_EmptyBodyIsValidated(t *testing.T) {
	var got schema.Candidate
	ctrl := &mockCompanyController{
		createCompanyFunc: func(_ context.Context, c schema.Candidate) (*models.Company, error) {
			got = c
			return nil, e.NewValidationError("Validation failed", e.FieldErrors{{Field: "name", Msg: "Company name is required"}})
		},
	}

	rec, env := serve(t, ctrl, false, http.MethodPost, "/api/companies", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Validation failed", env.Message)
	assert.NotNil(t, got)
}

func TestREST_SchemaAndHealth(t *testing.T) {
	rec, env := serve(t, &mockCompanyController{}, false, http.MethodGet, "/api/schema/company", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var rules []schema.FieldRule
	require.NoError(t, json.Unmarshal(env.Data, &rules))
	require.NotEmpty(t, rules)
	assert.Equal(t, "name", rules[0].Field)

	rec, env = serve(t, &mockCompanyController{}, false, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
}

func TestREST_RoutingErrors(t *testing.T) {
	rec, env := serve(t, &mockCompanyController{}, false, http.MethodGet, "/api/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Not Found", env.Message)

	rec, env = serve(t, &mockCompanyController{}, false, http.MethodPatch, "/api/companies/x", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method Not Allowed", env.Message)
}
