package view

import (
	"errors"
	"maps"
	"strconv"

	"github.com/gartstein/directory/internal/client/api"
	"github.com/gartstein/directory/internal/company/models"
	"github.com/gartstein/directory/internal/company/schema"
)

// FormMode tells whether the form creates or edits a company.
type FormMode int

const (
	ModeAdd FormMode = iota
	ModeEdit
)

func (m FormMode) String() string {
	if m == ModeEdit {
		return "Edit Company"
	}
	return "Add Company"
}

// FormPhase is the form's position in closed → open → submitting.
type FormPhase int

const (
	FormClosed FormPhase = iota
	FormOpen
	FormSubmitting
)

// FormState is the add/edit company form. Values hold the raw text of
// every field; Errors the inline message per field.
type FormState struct {
	Phase  FormPhase
	Mode   FormMode
	ID     string
	Values map[string]string
	Errors map[string]string

	seq uint64
}

// OpenAdd opens an empty form.
func (s FormState) OpenAdd() FormState {
	s.Phase = FormOpen
	s.Mode = ModeAdd
	s.ID = ""
	s.Values = emptyValues()
	s.Errors = map[string]string{}
	return s
}

// OpenEdit opens the form filled from c.
func (s FormState) OpenEdit(c models.Company) FormState {
	s.Phase = FormOpen
	s.Mode = ModeEdit
	s.ID = c.ID
	s.Values = valuesOf(c)
	s.Errors = map[string]string{}
	return s
}

// Close hides the form. Pending submissions are forgotten.
func (s FormState) Close() FormState {
	s.Phase = FormClosed
	s.seq++
	return s
}

// Edit sets one field and clears its inline error.
func (s FormState) Edit(field, value string) FormState {
	if s.Phase != FormOpen {
		return s
	}
	s.Values = maps.Clone(s.Values)
	s.Values[field] = value
	if _, ok := s.Errors[field]; ok {
		s.Errors = maps.Clone(s.Errors)
		delete(s.Errors, field)
	}
	return s
}

// Submit validates the form. On failure the form stays open with every
// field error inline and the first one notified; otherwise it moves to
// submitting and asks for the network call.
func (s FormState) Submit(v *schema.Validator) (FormState, Effect) {
	if s.Phase != FormOpen {
		return s, nil
	}
	in, fe := v.Normalize(s.candidate())
	if len(fe) > 0 {
		s.Errors = fe.Map()
		return s, Notify{Level: LevelError, Msg: fe.First()}
	}
	s.Errors = map[string]string{}
	s.Phase = FormSubmitting
	s.seq++
	return s, Submit{Seq: s.seq, Mode: s.Mode, ID: s.ID, Candidate: schema.InputCandidate(in)}
}

// Submitted applies the outcome of submission seq. Success closes the form
// and refreshes the list. Failure reopens it; server field errors are shown
// inline and errors the API layer already presented are not notified again.
func (s FormState) Submitted(seq uint64, err error) (FormState, Effect) {
	if seq != s.seq || s.Phase != FormSubmitting {
		return s, nil
	}
	if err == nil {
		s.Phase = FormClosed
		return s, Refresh{}
	}

	s.Phase = FormOpen
	var apiErr *api.Error
	if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
		s.Errors = apiErr.Fields.Map()
	}
	if api.IsPresented(err) {
		return s, nil
	}
	return s, Notify{Level: LevelError, Msg: err.Error()}
}

// Seq is the sequence number of the latest submission.
func (s FormState) Seq() uint64 { return s.seq }

func (s FormState) candidate() schema.Candidate {
	c := make(schema.Candidate, len(s.Values))
	for k, v := range s.Values {
		c[k] = v
	}
	return c
}

func emptyValues() map[string]string {
	vals := make(map[string]string)
	for _, f := range schema.Fields() {
		vals[f] = ""
	}
	return vals
}

func valuesOf(c models.Company) map[string]string {
	num := func(p *int) string {
		if p == nil {
			return ""
		}
		return strconv.Itoa(*p)
	}
	return map[string]string{
		"name":          c.Name,
		"address":       c.Address,
		"industry":      c.Industry,
		"email":         c.Email,
		"location":      c.Location,
		"employeeCount": num(c.EmployeeCount),
		"foundedYear":   num(c.FoundedYear),
		"description":   c.Description,
		"totalBranches": num(c.TotalBranches),
		"totalClients":  num(c.TotalClients),
		"imageUrl":      c.ImageURL,
	}
}
