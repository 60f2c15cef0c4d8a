// Package query turns list parameters into a store-neutral Plan: filters,
// sort keys and a pagination window.
package query

import (
	"errors"
	"math"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	cerrors "github.com/gartstein/directory/internal/company/errors"
	"github.com/gartstein/directory/internal/company/schema"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10

	// InvalidParamsMessage heads every parameter validation failure.
	InvalidParamsMessage = "Invalid query parameters"
)

// Sortable fields.
const (
	SortByName          = "name"
	SortByFoundedYear   = "foundedYear"
	SortByTotalBranches = "totalBranches"
	SortByTotalClients  = "totalClients"
	SortByEmployeeCount = "employeeCount"

	// SortByCreatedAt is never accepted from callers; it is the tie breaker.
	SortByCreatedAt = "createdAt"
)

const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// SortFields lists the values accepted for sortBy.
var SortFields = []string{SortByName, SortByFoundedYear, SortByTotalBranches, SortByTotalClients, SortByEmployeeCount}

// Params are the raw list parameters exactly as they travel in a URL.
type Params struct {
	Search      string
	Industry    string
	Location    string
	FoundedYear string
	Page        string
	Limit       string
	SortBy      string
	SortOrder   string
}

// ParamsFromValues reads Params from a URL query.
func ParamsFromValues(v url.Values) Params {
	return Params{
		Search:      v.Get("search"),
		Industry:    v.Get("industry"),
		Location:    v.Get("location"),
		FoundedYear: v.Get("foundedYear"),
		Page:        v.Get("page"),
		Limit:       v.Get("limit"),
		SortBy:      v.Get("sortBy"),
		SortOrder:   v.Get("sortOrder"),
	}
}

// Values encodes the non-empty parameters.
func (p Params) Values() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("search", p.Search)
	set("industry", p.Industry)
	set("location", p.Location)
	set("foundedYear", p.FoundedYear)
	set("page", p.Page)
	set("limit", p.Limit)
	set("sortBy", p.SortBy)
	set("sortOrder", p.SortOrder)
	return v
}

// Filter holds the AND-ed match conditions. Empty strings and nil mean
// "no condition".
type Filter struct {
	// Search is a literal, case-insensitive substring matched against
	// name, description and address.
	Search      string
	Industry    string
	Location    string
	FoundedYear *int
}

// SortKey orders results by a JSON field name.
type SortKey struct {
	Field string
	Desc  bool
}

// Plan is a validated list request.
type Plan struct {
	Filter Filter
	Sort   []SortKey
	Page   int
	Limit  int
}

// Offset is the number of records skipped before the window. Windows past
// the largest representable offset saturate, so they are simply empty.
func (p Plan) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// TotalPages is ceil(total/limit).
func TotalPages(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return int(pages)
}

// typed mirrors Params after conversion; the validate tags carry the rules
// and the query tags name the parameter in error reports.
type typed struct {
	Search      string `query:"search" validate:"max=100"`
	Industry    string `query:"industry" validate:"max=50"`
	Location    string `query:"location" validate:"max=100"`
	FoundedYear *int   `query:"foundedYear" validate:"omitempty,founded_year"`
	Page        int    `query:"page" validate:"min=1"`
	Limit       int    `query:"limit" validate:"min=1"`
	SortBy      string `query:"sortBy" validate:"omitempty,oneof=name foundedYear totalBranches totalClients employeeCount"`
	SortOrder   string `query:"sortOrder" validate:"oneof=asc desc"`
}

var messages = map[string]string{
	"search":      "Search too long",
	"industry":    "Invalid industry",
	"location":    "Invalid location",
	"foundedYear": "Invalid founded year",
	"page":        "Page must be >= 1",
	"limit":       "Limit must be >= 1",
	"sortBy":      "Invalid sort field",
	"sortOrder":   "Sort order must be 'asc' or 'desc'",
}

// Builder validates Params and produces Plans.
type Builder struct {
	validate *validator.Validate
	now      func() time.Time
}

// NewBuilder creates a Builder. A nil clock means time.Now.
func NewBuilder(now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	b := &Builder{validate: validator.New(), now: now}
	b.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("query")
	})
	_ = b.validate.RegisterValidation("founded_year", func(fl validator.FieldLevel) bool {
		y := fl.Field().Int()
		return y >= schema.MinFoundedYear && y <= int64(b.now().Year())
	})
	return b
}

// Build validates p and returns the plan. Failures are a
// *errors.ValidationError listing every bad parameter.
func (b *Builder) Build(p Params) (Plan, error) {
	var fe cerrors.FieldErrors
	t := typed{
		Search:    strings.TrimSpace(p.Search),
		Industry:  strings.TrimSpace(p.Industry),
		Location:  strings.TrimSpace(p.Location),
		Page:      DefaultPage,
		Limit:     DefaultLimit,
		SortBy:    strings.TrimSpace(p.SortBy),
		SortOrder: OrderAsc,
	}

	intParam := func(name, raw string, dst *int) bool {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return true
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			fe.Add(name, messages[name])
			return false
		}
		*dst = n
		return true
	}

	var year int
	if intParam("foundedYear", p.FoundedYear, &year) && strings.TrimSpace(p.FoundedYear) != "" {
		t.FoundedYear = &year
	}
	intParam("page", p.Page, &t.Page)
	intParam("limit", p.Limit, &t.Limit)
	if o := strings.TrimSpace(p.SortOrder); o != "" {
		t.SortOrder = o
	}

	if err := b.validate.Struct(t); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Plan{}, err
		}
		for _, ve := range verrs {
			fe.Add(ve.Field(), messages[ve.Field()])
		}
	}
	if len(fe) > 0 {
		return Plan{}, cerrors.NewValidationError(InvalidParamsMessage, sortByParamOrder(fe))
	}

	return Plan{
		Filter: Filter{
			Search:      t.Search,
			Industry:    t.Industry,
			Location:    t.Location,
			FoundedYear: t.FoundedYear,
		},
		Sort:  sortKeys(t.SortBy, t.SortOrder),
		Page:  t.Page,
		Limit: t.Limit,
	}, nil
}

// sortKeys keeps the historical behaviour: sorting by name, or not asking
// for a sort at all, yields newest first and ignores the order.
func sortKeys(by, order string) []SortKey {
	newest := SortKey{Field: SortByCreatedAt, Desc: true}
	if by == "" || by == SortByName {
		return []SortKey{newest}
	}
	return []SortKey{{Field: by, Desc: order == OrderDesc}, newest}
}

var paramOrder = []string{"search", "industry", "location", "foundedYear", "page", "limit", "sortBy", "sortOrder"}

// sortByParamOrder merges conversion and tag failures into declaration order.
func sortByParamOrder(fe cerrors.FieldErrors) cerrors.FieldErrors {
	out := make(cerrors.FieldErrors, 0, len(fe))
	for _, name := range paramOrder {
		for _, e := range fe {
			if e.Field == name {
				out = append(out, e)
			}
		}
	}
	return out
}
