// Package models defines the core domain models for the Company entity.
// It includes definitions for Company, CompanyInput and the list Page.
package models

import (
	"time"
)

// Company defines the domain model for a company entity.
type Company struct {
	// ID is the store-assigned identifier of the company.
	ID string `json:"id"`
	// Name is the company’s name. Unique across all companies.
	Name string `json:"name"`
	// Address is the postal address.
	Address string `json:"address"`
	// Industry is the business sector, e.g. "IT".
	Industry string `json:"industry"`
	// Email is the contact address; always a gmail.com mailbox.
	Email string `json:"email"`
	// EmployeeCount is the number of employees, when known.
	EmployeeCount *int `json:"employeeCount,omitempty"`
	// FoundedYear is the calendar year the company was founded, when known.
	FoundedYear *int `json:"foundedYear,omitempty"`
	// Description provides details about the company.
	Description string `json:"description,omitempty"`
	// Location is the city or region the company operates from.
	Location string `json:"location"`
	// TotalBranches is the number of branches, when known.
	TotalBranches *int `json:"totalBranches,omitempty"`
	// TotalClients is the number of clients, when known.
	TotalClients *int `json:"totalClients,omitempty"`
	// ImageURL points to an externally hosted company image.
	ImageURL string `json:"imageUrl,omitempty"`
	// CreatedAt records the timestamp when the company was created.
	CreatedAt time.Time `json:"createdAt"`
}

// CompanyInput is the full set of mutable company fields. It is what
// create and update accept after normalization; ID and CreatedAt are never
// part of it.
type CompanyInput struct {
	Name          string
	Address       string
	Industry      string
	Email         string
	EmployeeCount *int
	FoundedYear   *int
	Description   string
	Location      string
	TotalBranches *int
	TotalClients  *int
	ImageURL      string
}

// Apply copies every mutable field of the input onto the company,
// leaving ID and CreatedAt untouched.
func (in *CompanyInput) Apply(c *Company) {
	c.Name = in.Name
	c.Address = in.Address
	c.Industry = in.Industry
	c.Email = in.Email
	c.EmployeeCount = in.EmployeeCount
	c.FoundedYear = in.FoundedYear
	c.Description = in.Description
	c.Location = in.Location
	c.TotalBranches = in.TotalBranches
	c.TotalClients = in.TotalClients
	c.ImageURL = in.ImageURL
}

// ToCompany builds a new, not yet persisted Company from the input.
func (in *CompanyInput) ToCompany() *Company {
	c := &Company{}
	in.Apply(c)
	return c
}

// Page is one window of a list query.
type Page struct {
	Companies  []Company
	Total      int64
	Page       int
	TotalPages int
}
