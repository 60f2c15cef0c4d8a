// Package api is the typed HTTP client of the company REST API.
//
// Every failure is reported to the user exactly once, here, through the
// configured Notifier. The returned *Error is marked Presented so callers
// know not to notify again.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	cerrors "github.com/gartstein/directory/internal/company/errors"
	"github.com/gartstein/directory/internal/company/models"
	"github.com/gartstein/directory/internal/company/query"
	"github.com/gartstein/directory/internal/company/schema"
)

const (
	MsgCreated = "Company successfully created!"
	MsgUpdated = "Company successfully updated!"
	MsgDeleted = "Company successfully deleted!"
)

const companiesPath = "/api/companies"

// ErrTransport matches errors for requests that never produced a usable
// response.
var ErrTransport = errors.New("transport failure")

// Notifier shows transient messages to the user.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Success(string) {}
func (NopNotifier) Error(string)   {}

// Error is a failed API call. Status is 0 for transport failures.
type Error struct {
	Status    int
	Message   string
	Fields    cerrors.FieldErrors
	Presented bool
	Err       error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets callers test against the server error taxonomy.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Status == 0
	case cerrors.ErrNotFound:
		return e.Status == http.StatusNotFound
	case cerrors.ErrInvalidInput:
		return e.Status == http.StatusBadRequest && len(e.Fields) > 0
	}
	return false
}

// Headline is what the user sees: the first field violation when there is
// one, the server message otherwise.
func (e *Error) Headline() string {
	if first := e.Fields.First(); first != "" {
		return first
	}
	return e.Message
}

// IsPresented reports whether err was already shown to the user.
func IsPresented(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Presented
}

// Client talks to the company REST API.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
	notify  Notifier
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sends a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithNotifier(n Notifier) Option {
	return func(c *Client) { c.notify = n }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger.Named("api_client") }
}

// New creates a client for the API rooted at baseURL, e.g.
// "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		notify:  NopNotifier{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message"`
	Errors     cerrors.FieldErrors `json:"errors"`
	Data       json.RawMessage     `json:"data"`
	Total      int64               `json:"total"`
	Page       int                 `json:"page"`
	TotalPages int                 `json:"totalPages"`
}

// List fetches one page of companies.
func (c *Client) List(ctx context.Context, p query.Params) (*models.Page, error) {
	env, err := c.do(ctx, http.MethodGet, companiesPath, p.Values(), nil, "Failed to fetch companies")
	if err != nil {
		return nil, err
	}
	var companies []models.Company
	if err := c.decodeData(env, &companies, "Failed to fetch companies"); err != nil {
		return nil, err
	}
	return &models.Page{
		Companies:  companies,
		Total:      env.Total,
		Page:       env.Page,
		TotalPages: env.TotalPages,
	}, nil
}

// Get fetches a single company.
func (c *Client) Get(ctx context.Context, id string) (*models.Company, error) {
	const failed = "Failed to fetch company"
	env, err := c.do(ctx, http.MethodGet, companyPath(id), nil, nil, failed)
	if err != nil {
		return nil, err
	}
	var company models.Company
	if err := c.decodeData(env, &company, failed); err != nil {
		return nil, err
	}
	return &company, nil
}

// Create submits a new company.
func (c *Client) Create(ctx context.Context, in schema.Candidate) (*models.Company, error) {
	return c.write(ctx, http.MethodPost, companiesPath, in, "Failed to create company", MsgCreated)
}

// Update replaces the company's mutable fields.
func (c *Client) Update(ctx context.Context, id string, in schema.Candidate) (*models.Company, error) {
	return c.write(ctx, http.MethodPut, companyPath(id), in, "Failed to update company", MsgUpdated)
}

// Delete removes the company.
func (c *Client) Delete(ctx context.Context, id string) error {
	if _, err := c.do(ctx, http.MethodDelete, companyPath(id), nil, nil, "Failed to delete company"); err != nil {
		return err
	}
	c.notify.Success(MsgDeleted)
	return nil
}

// Schema fetches the field rules the server validates with.
func (c *Client) Schema(ctx context.Context) ([]schema.FieldRule, error) {
	const failed = "Failed to fetch schema"
	env, err := c.do(ctx, http.MethodGet, "/api/schema/company", nil, nil, failed)
	if err != nil {
		return nil, err
	}
	var rules []schema.FieldRule
	if err := c.decodeData(env, &rules, failed); err != nil {
		return nil, err
	}
	return rules, nil
}

func (c *Client) write(ctx context.Context, method, path string, in schema.Candidate, failed, success string) (*models.Company, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, c.fail(&Error{Message: failed, Err: err})
	}
	env, err := c.do(ctx, method, path, nil, body, failed)
	if err != nil {
		return nil, err
	}
	var company models.Company
	if err := c.decodeData(env, &company, failed); err != nil {
		return nil, err
	}
	c.notify.Success(success)
	return &company, nil
}

// do performs the request and decodes the envelope. Any error it returns
// has already been presented.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body []byte, failed string) (*envelope, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, c.fail(&Error{Message: failed, Err: err})
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(&Error{Message: failed, Err: err})
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode >= 300 {
		if decodeErr != nil {
			return nil, c.fail(&Error{Status: resp.StatusCode, Message: failed, Err: decodeErr})
		}
		msg := env.Message
		if msg == "" {
			msg = failed
		}
		return nil, c.fail(&Error{Status: resp.StatusCode, Message: msg, Fields: env.Errors})
	}
	if decodeErr != nil {
		return nil, c.fail(&Error{Message: failed, Err: decodeErr})
	}
	return &env, nil
}

func (c *Client) decodeData(env *envelope, out any, failed string) error {
	if err := json.Unmarshal(env.Data, out); err != nil {
		return c.fail(&Error{Message: failed, Err: err})
	}
	return nil
}

func (c *Client) fail(e *Error) *Error {
	c.logger.Debug("request failed",
		zap.Int("status", e.Status),
		zap.String("message", e.Message),
		zap.Error(e.Err))
	c.notify.Error(e.Headline())
	e.Presented = true
	return e
}

func companyPath(id string) string {
	return companiesPath + "/" + url.PathEscape(id)
}
