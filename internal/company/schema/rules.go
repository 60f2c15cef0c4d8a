// Package schema holds the company field rules and the validator that
// enforces them. The rule table is plain data so that the HTTP API can
// publish it and clients can validate forms against the very same rules.
package schema

import (
	"time"

	"github.com/gartstein/directory/internal/pkg/utils"
)

// Kind is the value type of a field.
type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
)

// Format names a well-known string format checked in addition to Pattern.
type Format string

const (
	FormatNone Format = ""
	FormatURL  Format = "url"
)

const (
	// MinFoundedYear is the earliest accepted founding year.
	MinFoundedYear = 1800
)

// Messages are the user-facing texts reported for each kind of violation.
type Messages struct {
	Required  string `json:"required,omitempty"`
	MaxLength string `json:"maxLength,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
	Range     string `json:"range,omitempty"`
	Type      string `json:"type,omitempty"`
	Option    string `json:"option,omitempty"`
}

// FieldRule describes every constraint on one company field.
type FieldRule struct {
	Field     string `json:"field"`
	Label     string `json:"label"`
	Kind      Kind   `json:"kind"`
	Required  bool   `json:"required"`
	MaxLength int    `json:"maxLength,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
	Format    Format `json:"format,omitempty"`
	Min       *int   `json:"min,omitempty"`
	Max       *int   `json:"max,omitempty"`
	// MaxIsCurrentYear makes Max track the calendar year at validation time.
	MaxIsCurrentYear bool `json:"maxIsCurrentYear,omitempty"`
	// Options is the closed set offered by forms. Only clients enforce it.
	Options  []string `json:"options,omitempty"`
	Messages Messages `json:"messages"`
}

var (
	// IndustryOptions are the industries offered by the company form.
	IndustryOptions = []string{"IT", "Energy", "Healthcare", "Finance", "Manufacturing", "Education"}
	// LocationOptions are the locations offered by the company form.
	LocationOptions = []string{"Hyderabad", "Mumbai", "Chennai", "Noida", "Bengaluru"}
)

// EmailPattern accepts gmail.com mailboxes only.
const EmailPattern = `^[a-zA-Z0-9._%+-]+@gmail\.com$`

// rules is ordered: the first violated rule becomes the headline error.
var rules = []FieldRule{
	{
		Field: "name", Label: "Company name", Kind: KindString, Required: true, MaxLength: 100,
		Messages: Messages{
			Required:  "Company name is required",
			MaxLength: "Name cannot exceed 100 characters",
		},
	},
	{
		Field: "address", Label: "Address", Kind: KindString, Required: true, MaxLength: 200,
		Messages: Messages{
			Required:  "Address is required",
			MaxLength: "Address cannot exceed 200 characters",
		},
	},
	{
		Field: "industry", Label: "Industry", Kind: KindString, Required: true, MaxLength: 50,
		Options: IndustryOptions,
		Messages: Messages{
			Required:  "Industry is required",
			MaxLength: "Industry cannot exceed 50 characters",
			Option:    "Please select a valid industry",
		},
	},
	{
		Field: "email", Label: "Email", Kind: KindString, Required: true, Pattern: EmailPattern,
		Messages: Messages{
			Required: "Email is required",
			Pattern:  "Email must be in the format text@gmail.com",
		},
	},
	{
		Field: "location", Label: "Location", Kind: KindString, Required: true, MaxLength: 100,
		Options: LocationOptions,
		Messages: Messages{
			Required:  "Location is required",
			MaxLength: "Location cannot exceed 100 characters",
			Option:    "Please select a valid location",
		},
	},
	{
		Field: "employeeCount", Label: "Employee count", Kind: KindInteger, Min: utils.Ptr(0),
		Messages: Messages{Range: "Employee count must be a positive integer"},
	},
	{
		Field: "foundedYear", Label: "Founded year", Kind: KindInteger, Min: utils.Ptr(MinFoundedYear),
		MaxIsCurrentYear: true,
		Messages:         Messages{Range: "Invalid founded year"},
	},
	{
		Field: "description", Label: "Description", Kind: KindString, MaxLength: 1000,
		Messages: Messages{MaxLength: "Description cannot exceed 1000 characters"},
	},
	{
		Field: "totalBranches", Label: "Total branches", Kind: KindInteger, Min: utils.Ptr(0),
		Messages: Messages{Range: "Total branches cannot be negative"},
	},
	{
		Field: "totalClients", Label: "Total clients", Kind: KindInteger, Min: utils.Ptr(0),
		Messages: Messages{Range: "Total clients cannot be negative"},
	},
	{
		Field: "imageUrl", Label: "Image URL", Kind: KindString, Format: FormatURL,
		Messages: Messages{
			Type:    "Image URL must be a string",
			Pattern: "Image URL must be a valid URL",
		},
	},
}

// Rules returns the rule table with year bounds resolved against now.
// The returned slice is a copy and may be modified by the caller.
func Rules(now time.Time) []FieldRule {
	out := make([]FieldRule, len(rules))
	for i, r := range rules {
		r.Options = append([]string(nil), r.Options...)
		if r.MaxIsCurrentYear {
			r.Max = utils.Ptr(now.Year())
		}
		out[i] = r
	}
	return out
}

// RuleFor looks up the rule of a single field.
func RuleFor(field string) (FieldRule, bool) {
	for _, r := range rules {
		if r.Field == field {
			return r, true
		}
	}
	return FieldRule{}, false
}

// Fields lists the field names in rule order.
func Fields() []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Field
	}
	return out
}
