// Package models contains the relational row models, configured to work
// using GORM as the ORM.
package models

import (
	"time"

	"golang.org/x/text/cases"

	domain "github.com/gartstein/directory/internal/company/models"
)

// Company is one row of the companies table. Rows are hard deleted, so there
// is no gorm.Model and no DeletedAt column.
type Company struct {
	ID            string    `gorm:"type:varchar(36);primaryKey"`
	Name          string    `gorm:"size:100;not null;uniqueIndex"`
	Address       string    `gorm:"size:200;not null"`
	Industry      string    `gorm:"size:50;not null;index"`
	Email         string    `gorm:"size:254;not null"`
	EmployeeCount *int      `gorm:"check:employee_count >= 0"`
	FoundedYear   *int      `gorm:"index"`
	Description   string    `gorm:"size:1000"`
	Location      string    `gorm:"size:100;not null;index"`
	TotalBranches *int      `gorm:"check:total_branches >= 0"`
	TotalClients  *int      `gorm:"check:total_clients >= 0"`
	ImageURL      string    `gorm:"size:2048"`
	CreatedAt     time.Time `gorm:"not null;index"`

	// Case-folded copies of the searchable text. Folding happens here rather
	// than in SQL because SQLite's LOWER only knows ASCII.
	NameFold        string `gorm:"not null;default:''"`
	DescriptionFold string `gorm:"not null;default:''"`
	AddressFold     string `gorm:"not null;default:''"`
}

// Fold maps s to its case-folded form, the form searches compare in.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// SetFolds recomputes the folded search columns.
func (c *Company) SetFolds() {
	c.NameFold = Fold(c.Name)
	c.DescriptionFold = Fold(c.Description)
	c.AddressFold = Fold(c.Address)
}

// TableName pins the table name regardless of naming strategy.
func (Company) TableName() string {
	return "companies"
}

// MutableColumns are the struct fields written by a full update.
var MutableColumns = []string{
	"Name", "Address", "Industry", "Email", "EmployeeCount", "FoundedYear",
	"Description", "Location", "TotalBranches", "TotalClients", "ImageURL",
	"NameFold", "DescriptionFold", "AddressFold",
}

// FromInput builds a row from the mutable fields.
func FromInput(in *domain.CompanyInput) *Company {
	c := &Company{
		Name:          in.Name,
		Address:       in.Address,
		Industry:      in.Industry,
		Email:         in.Email,
		EmployeeCount: in.EmployeeCount,
		FoundedYear:   in.FoundedYear,
		Description:   in.Description,
		Location:      in.Location,
		TotalBranches: in.TotalBranches,
		TotalClients:  in.TotalClients,
		ImageURL:      in.ImageURL,
	}
	c.SetFolds()
	return c
}

// ToDomain converts the row into the domain model.
func (c *Company) ToDomain() *domain.Company {
	return &domain.Company{
		ID:            c.ID,
		Name:          c.Name,
		Address:       c.Address,
		Industry:      c.Industry,
		Email:         c.Email,
		EmployeeCount: c.EmployeeCount,
		FoundedYear:   c.FoundedYear,
		Description:   c.Description,
		Location:      c.Location,
		TotalBranches: c.TotalBranches,
		TotalClients:  c.TotalClients,
		ImageURL:      c.ImageURL,
		CreatedAt:     c.CreatedAt,
	}
}
