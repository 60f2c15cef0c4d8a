package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	cerrors "github.com/gartstein/directory/internal/company/errors"
	"github.com/gartstein/directory/internal/company/models"
)

// Candidate is an untrusted company payload keyed by JSON field name.
type Candidate map[string]any

// Validator checks candidates against the rule table.
type Validator struct {
	validate       *validator.Validate
	enforceOptions bool
	now            func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// EnforceOptions makes industry and location accept only the option sets.
// Forms use it; the server does not.
func EnforceOptions() Option {
	return func(v *Validator) { v.enforceOptions = true }
}

// WithClock overrides the time source used for the founded year bound.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// NewValidator builds a Validator with one custom tag per pattern rule.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		validate: validator.New(),
		now:      time.Now,
	}
	for _, r := range rules {
		if r.Pattern == "" {
			continue
		}
		re := regexp.MustCompile(r.Pattern)
		// Registration only fails on an empty tag or nil func.
		_ = v.validate.RegisterValidation(patternTag(r.Field), func(fl validator.FieldLevel) bool {
			return re.MatchString(fl.Field().String())
		})
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func patternTag(field string) string {
	return "match_" + field
}

// Normalize trims and coerces a candidate into a CompanyInput, collecting
// every violated rule in rule order. The input is nil when any rule fails.
func (v *Validator) Normalize(c Candidate) (*models.CompanyInput, cerrors.FieldErrors) {
	var (
		fe      cerrors.FieldErrors
		strs    = make(map[string]string, len(rules))
		ints    = make(map[string]*int, len(rules))
		current = v.now().Year()
	)

	for _, r := range rules {
		raw := c[r.Field]
		switch r.Kind {
		case KindString:
			s, ok := coerceString(raw)
			if !ok {
				fe.Add(r.Field, typeMessage(r))
				continue
			}
			if msg := v.checkString(r, s); msg != "" {
				fe.Add(r.Field, msg)
				continue
			}
			strs[r.Field] = s
		case KindInteger:
			n, ok := coerceInt(raw)
			if !ok {
				fe.Add(r.Field, typeMessage(r))
				continue
			}
			if n == nil {
				if r.Required {
					fe.Add(r.Field, r.Messages.Required)
				}
				continue
			}
			if msg := v.checkInt(r, *n, current); msg != "" {
				fe.Add(r.Field, msg)
				continue
			}
			ints[r.Field] = n
		}
	}

	if len(fe) > 0 {
		return nil, fe
	}
	return &models.CompanyInput{
		Name:          strs["name"],
		Address:       strs["address"],
		Industry:      strs["industry"],
		Email:         strs["email"],
		EmployeeCount: ints["employeeCount"],
		FoundedYear:   ints["foundedYear"],
		Description:   strs["description"],
		Location:      strs["location"],
		TotalBranches: ints["totalBranches"],
		TotalClients:  ints["totalClients"],
		ImageURL:      strs["imageUrl"],
	}, nil
}

// InputCandidate turns a typed input back into a candidate.
func InputCandidate(in *models.CompanyInput) Candidate {
	c := Candidate{
		"name":        in.Name,
		"address":     in.Address,
		"industry":    in.Industry,
		"email":       in.Email,
		"description": in.Description,
		"location":    in.Location,
		"imageUrl":    in.ImageURL,
	}
	for field, p := range map[string]*int{
		"employeeCount": in.EmployeeCount,
		"foundedYear":   in.FoundedYear,
		"totalBranches": in.TotalBranches,
		"totalClients":  in.TotalClients,
	} {
		if p != nil {
			c[field] = *p
		}
	}
	return c
}

func (v *Validator) checkString(r FieldRule, s string) string {
	tags := make([]string, 0, 4)
	if r.Required {
		tags = append(tags, "required")
	} else {
		tags = append(tags, "omitempty")
	}
	if r.MaxLength > 0 {
		tags = append(tags, "max="+strconv.Itoa(r.MaxLength))
	}
	if r.Pattern != "" {
		tags = append(tags, patternTag(r.Field))
	}
	if r.Format == FormatURL {
		tags = append(tags, "url")
	}
	if err := v.validate.Var(s, strings.Join(tags, ",")); err != nil {
		return messageFor(r, err)
	}
	if v.enforceOptions && s != "" && len(r.Options) > 0 && !slices.Contains(r.Options, s) {
		return r.Messages.Option
	}
	return ""
}

func (v *Validator) checkInt(r FieldRule, n, currentYear int) string {
	tags := make([]string, 0, 2)
	if r.Min != nil {
		tags = append(tags, "min="+strconv.Itoa(*r.Min))
	}
	switch {
	case r.MaxIsCurrentYear:
		tags = append(tags, "max="+strconv.Itoa(currentYear))
	case r.Max != nil:
		tags = append(tags, "max="+strconv.Itoa(*r.Max))
	}
	if len(tags) == 0 {
		return ""
	}
	if err := v.validate.Var(n, strings.Join(tags, ",")); err != nil {
		return messageFor(r, err)
	}
	return ""
}

func messageFor(r FieldRule, err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Sprintf("%s is invalid", r.Label)
	}
	tag := verrs[0].Tag()
	switch {
	case tag == "required":
		return r.Messages.Required
	case (tag == "max" || tag == "min") && r.Kind == KindInteger:
		return r.Messages.Range
	case tag == "max":
		return r.Messages.MaxLength
	case tag == patternTag(r.Field), tag == "url":
		return r.Messages.Pattern
	}
	return fmt.Sprintf("%s is invalid", r.Label)
}

func typeMessage(r FieldRule) string {
	if r.Messages.Type != "" {
		return r.Messages.Type
	}
	if r.Kind == KindInteger && r.Messages.Range != "" {
		return r.Messages.Range
	}
	return fmt.Sprintf("%s must be a %s", r.Label, r.Kind)
}

// coerceString accepts strings and plain numbers. Absent values read as "".
func coerceString(raw any) (string, bool) {
	switch x := raw.(type) {
	case nil:
		return "", true
	case string:
		return strings.TrimSpace(x), true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	default:
		return "", false
	}
}

// coerceInt returns nil for absent values (nil or blank strings) and false
// when the value is present but not an integer in the int32 range.
func coerceInt(raw any) (*int, bool) {
	var i int64
	switch x := raw.(type) {
	case nil:
		return nil, true
	case int:
		i = int64(x)
	case int32:
		i = int64(x)
	case int64:
		i = x
	case float64:
		if x != math.Trunc(x) || x > math.MaxInt32 || x < math.MinInt32 {
			return nil, false
		}
		i = int64(x)
	case json.Number:
		v, err := x.Int64()
		if err != nil {
			return nil, false
		}
		i = v
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, true
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, false
		}
		i = v
	default:
		return nil, false
	}
	if i > math.MaxInt32 || i < math.MinInt32 {
		return nil, false
	}
	n := int(i)
	return &n, true
}
