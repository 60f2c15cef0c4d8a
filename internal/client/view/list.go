package view

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gartstein/directory/internal/company/models"
	"github.com/gartstein/directory/internal/company/query"
)

const (
	// DebounceDelay is how long the search box must stay unchanged before
	// its text becomes the effective search.
	DebounceDelay = 500 * time.Millisecond
	// PageSize is the number of companies shown per page.
	PageSize = 9

	MsgLoadFailed = "Failed to load companies. Please try again."
)

// Filters are the list controls besides search and paging.
type Filters struct {
	Industry  string
	Location  string
	SortBy    string
	SortOrder string
}

// DefaultFilters asks for the server's default ordering.
func DefaultFilters() Filters {
	return Filters{SortBy: query.SortByName, SortOrder: query.OrderAsc}
}

// ListState is the company list screen.
type ListState struct {
	// SearchInput is the text in the search box; Search is the debounced
	// value actually sent to the server.
	SearchInput string
	Search      string
	Filters     Filters
	Page        int
	TotalPages  int
	Total       int64
	Companies   []models.Company
	Loading     bool
	// Err is set when the last fetch failed; the shell offers a retry.
	Err string

	seq      uint64
	debounce uint64
}

// NewListState returns the initial list: first page, default filters,
// nothing loaded.
func NewListState() ListState {
	return ListState{Filters: DefaultFilters(), Page: 1, TotalPages: 1}
}

// Seq is the sequence number of the latest issued fetch.
func (s ListState) Seq() uint64 { return s.seq }

// Params renders the request for the current state.
func (s ListState) Params() query.Params {
	return query.Params{
		Search:    s.Search,
		Industry:  s.Filters.Industry,
		Location:  s.Filters.Location,
		Page:      strconv.Itoa(s.Page),
		Limit:     strconv.Itoa(PageSize),
		SortBy:    s.Filters.SortBy,
		SortOrder: s.Filters.SortOrder,
	}
}

// Filtered reports whether search or a filter narrows the list.
func (s ListState) Filtered() bool {
	return s.Search != "" || s.Filters.Industry != "" || s.Filters.Location != ""
}

// Load issues a fetch for the current state. Earlier fetches still in
// flight become stale.
func (s ListState) Load() (ListState, Effect) {
	s.seq++
	s.Loading = true
	s.Err = ""
	return s, Fetch{Seq: s.seq, Params: s.Params()}
}

// Retry reloads after a failure.
func (s ListState) Retry() (ListState, Effect) {
	return s.Load()
}

// TypeSearch records new search box text and restarts the debounce.
func (s ListState) TypeSearch(text string) (ListState, Effect) {
	s.SearchInput = text
	s.debounce++
	return s, Debounce{Token: s.debounce, Delay: DebounceDelay}
}

// SearchSettled applies the search box once the debounce with token fired.
// Superseded tokens are ignored.
func (s ListState) SearchSettled(token uint64) (ListState, Effect) {
	if token != s.debounce {
		return s, nil
	}
	if s.Search == s.SearchInput && s.Page == 1 {
		return s, nil
	}
	s.Search = s.SearchInput
	s.Page = 1
	return s.Load()
}

// SetFilters replaces the filters and goes back to the first page.
func (s ListState) SetFilters(f Filters) (ListState, Effect) {
	if f == s.Filters {
		return s, nil
	}
	s.Filters = f
	s.Page = 1
	return s.Load()
}

// GoToPage moves to page n, clamped to the known page range.
func (s ListState) GoToPage(n int) (ListState, Effect) {
	last := max(s.TotalPages, 1)
	n = min(max(n, 1), last)
	if n == s.Page {
		return s, nil
	}
	s.Page = n
	return s.Load()
}

func (s ListState) NextPage() (ListState, Effect) { return s.GoToPage(s.Page + 1) }
func (s ListState) PrevPage() (ListState, Effect) { return s.GoToPage(s.Page - 1) }

// Loaded applies the result of fetch seq. Results of superseded fetches
// are dropped. A result always replaces the previous rows.
func (s ListState) Loaded(seq uint64, page *models.Page, err error) (ListState, Effect) {
	if seq != s.seq {
		return s, nil
	}
	s.Loading = false
	if err != nil {
		s.Companies = nil
		s.Total = 0
		s.TotalPages = 1
		s.Err = MsgLoadFailed
		return s, nil
	}

	s.Err = ""
	s.Companies = page.Companies
	s.Total = page.Total
	s.TotalPages = max(page.TotalPages, 1)
	if s.Filtered() {
		return s, Notify{Level: LevelInfo, Msg: fmt.Sprintf("Found %d companies", len(page.Companies))}
	}
	return s, nil
}
