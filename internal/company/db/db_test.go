package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	e "github.com/gartstein/directory/internal/company/errors"
	domain "github.com/gartstein/directory/internal/company/models"
	"github.com/gartstein/directory/internal/company/query"
	"github.com/gartstein/directory/internal/pkg/utils"
)

// SetupTestDB initializes an in-memory SQLite database for testing. Each
// created row is stamped one second after the previous one.
func SetupTestDB(t *testing.T) *Repository {
	t.Helper()

	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	repo, err := NewSQLiteRepository(":memory:", zaptest.NewLogger(t), WithClock(clock))
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func input(name string) *domain.CompanyInput {
	return &domain.CompanyInput{
		Name:     name,
		Address:  "1 Main St",
		Industry: "IT",
		Email:    "info@gmail.com",
		Location: "Mumbai",
	}
}

func listAll(t *testing.T, repo *Repository, plan query.Plan) ([]domain.Company, int64) {
	t.Helper()
	if plan.Page == 0 {
		plan.Page = 1
	}
	if plan.Limit == 0 {
		plan.Limit = 100
	}
	rows, total, err := repo.ListCompanies(context.Background(), plan)
	require.NoError(t, err)
	return rows, total
}

func names(cs []domain.Company) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

// TestCreateCompany tests the creation of a company record.
func TestCreateCompany(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	in := input("Test Company")
	in.EmployeeCount = utils.Ptr(12)

	created, err := repo.CreateCompany(ctx, in)
	require.NoError(t, err, "CreateCompany should not return an error")
	assert.NotEmpty(t, created.ID, "store should assign an id")
	assert.False(t, created.CreatedAt.IsZero(), "store should assign a creation time")

	// Verify the company was created
	retrieved, err := repo.GetCompany(ctx, created.ID)
	require.NoError(t, err, "GetCompany should retrieve the created company")
	assert.Equal(t, created.Name, retrieved.Name, "Company name should match")
	assert.Equal(t, utils.Ptr(12), retrieved.EmployeeCount)
	assert.Nil(t, retrieved.FoundedYear, "absent numbers stay absent")
	assert.True(t, created.CreatedAt.Equal(retrieved.CreatedAt), "creation time should round-trip")
}

// TestCreateCompanyDuplicateName keeps the first record intact.
func TestCreateCompanyDuplicateName(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	first, err := repo.CreateCompany(ctx, input("Acme"))
	require.NoError(t, err)

	dup := input("Acme")
	dup.Address = "elsewhere"
	_, err = repo.CreateCompany(ctx, dup)
	assert.ErrorIs(t, err, e.ErrDuplicateName)

	got, err := repo.GetCompany(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "1 Main St", got.Address)

	_, total := listAll(t, repo, query.Plan{})
	assert.EqualValues(t, 1, total)
}

// TestGetCompanyNotFound verifies error handling when the company does not exist.
func TestGetCompanyNotFound(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	_, err := repo.GetCompany(ctx, "no-such-id")
	assert.ErrorIs(t, err, e.ErrNotFound, "GetCompany should return ErrNotFound for non-existent company")
}

// TestUpdateCompany checks that an update replaces the mutable fields only.
func TestUpdateCompany(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	in := input("Old Name")
	in.TotalBranches = utils.Ptr(4)
	created, err := repo.CreateCompany(ctx, in)
	require.NoError(t, err, "CreateCompany should succeed")

	update := input("New Name")
	update.Description = "now with a description"

	updated, err := repo.UpdateCompany(ctx, created.ID, update)
	require.NoError(t, err, "UpdateCompany should not return an error")

	assert.Equal(t, created.ID, updated.ID)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt), "createdAt must not change")
	assert.Equal(t, "New Name", updated.Name, "Company name should be updated")
	assert.Equal(t, "now with a description", updated.Description)
	assert.Nil(t, updated.TotalBranches, "full replacement clears omitted numbers")
}

// TestUpdateCompanyNotFound tests updating a non-existing company.
func TestUpdateCompanyNotFound(t *testing.T) {
	repo := SetupTestDB(t)

	_, err := repo.UpdateCompany(context.Background(), "missing", input("Non-existent"))
	assert.ErrorIs(t, err, e.ErrNotFound, "UpdateCompany should return ErrNotFound for missing company")
}

// TestUpdateCompanyDuplicateName rejects taking another record's name.
func TestUpdateCompanyDuplicateName(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	_, err := repo.CreateCompany(ctx, input("Alpha"))
	require.NoError(t, err)
	beta, err := repo.CreateCompany(ctx, input("Beta"))
	require.NoError(t, err)

	_, err = repo.UpdateCompany(ctx, beta.ID, input("Alpha"))
	assert.ErrorIs(t, err, e.ErrDuplicateName)

	// keeping its own name is fine
	_, err = repo.UpdateCompany(ctx, beta.ID, input("Beta"))
	assert.NoError(t, err)
}

// TestDeleteCompany ensures companies are deleted correctly.
func TestDeleteCompany(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	created, err := repo.CreateCompany(ctx, input("To Be Deleted"))
	require.NoError(t, err, "CreateCompany should succeed")

	deleted, err := repo.DeleteCompany(ctx, created.ID)
	require.NoError(t, err, "DeleteCompany should not return an error")
	assert.Equal(t, created.ID, deleted.ID, "DeleteCompany should return the removed record")

	// Ensure deletion
	_, err = repo.GetCompany(ctx, created.ID)
	assert.ErrorIs(t, err, e.ErrNotFound, "Deleted company should not be found")

	// the name is free again
	_, err = repo.CreateCompany(ctx, input("To Be Deleted"))
	assert.NoError(t, err)
}

// TestDeleteCompanyNotFound checks behavior when trying to delete a non-existent company.
func TestDeleteCompanyNotFound(t *testing.T) {
	repo := SetupTestDB(t)

	_, err := repo.DeleteCompany(context.Background(), "missing")
	assert.ErrorIs(t, err, e.ErrNotFound, "DeleteCompany should return ErrNotFound for missing company")
}

// TestListCompaniesFilters covers search and exact filters.
func TestSearchFoldsNonASCII(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	in := input("Élan Ünited")
	in.Description = "STRAßE logistics"
	created, err := repo.CreateCompany(ctx, in)
	require.NoError(t, err)
	_, err = repo.CreateCompany(ctx, input("Plain"))
	require.NoError(t, err)

	for _, search := range []string{"Élan", "élan", "ünited", "ÜNITED", "strasse", "Straße"} {
		t.Run(search, func(t *testing.T) {
			rows, total := listAll(t, repo, query.Plan{Filter: query.Filter{Search: search}})
			require.EqualValues(t, 1, total)
			assert.Equal(t, created.ID, rows[0].ID)
		})
	}

	renamed := input("Ørsted")
	_, err = repo.UpdateCompany(ctx, created.ID, renamed)
	require.NoError(t, err)
	_, total := listAll(t, repo, query.Plan{Filter: query.Filter{Search: "élan"}})
	assert.Zero(t, total)
	_, total = listAll(t, repo, query.Plan{Filter: query.Filter{Search: "øRSTED"}})
	assert.EqualValues(t, 1, total)
}

func TestBackfillFolds(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	created, err := repo.CreateCompany(ctx, input("Ärzte Union"))
	require.NoError(t, err)
	require.NoError(t, repo.Exec(ctx, "UPDATE companies SET name_fold = '', description_fold = '', address_fold = ''"))

	require.NoError(t, backfillFolds(repo.db))
	rows, total := listAll(t, repo, query.Plan{Filter: query.Filter{Search: "ärzte"}})
	require.EqualValues(t, 1, total)
	assert.Equal(t, created.ID, rows[0].ID)
}

func TestListCompaniesFilters(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	seed := []struct {
		name, desc, addr, industry, location string
		year                                 *int
	}{
		{"Acme", "rockets", "1 Main St", "IT", "Mumbai", utils.Ptr(2001)},
		{"Globex", "ACME supplier", "2 Side St", "Energy", "Chennai", utils.Ptr(1990)},
		{"Initech", "software", "3 acme road", "IT", "Chennai", nil},
		{"Umbrella", "100% organic stuff", "4 Hill", "Healthcare", "Noida", utils.Ptr(2001)},
	}
	for _, s := range seed {
		in := input(s.name)
		in.Description = s.desc
		in.Address = s.addr
		in.Industry = s.industry
		in.Location = s.location
		in.FoundedYear = s.year
		_, err := repo.CreateCompany(ctx, in)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter query.Filter
		want   []string
	}{
		{"no filter", query.Filter{}, []string{"Umbrella", "Initech", "Globex", "Acme"}},
		{"search any field case-insensitive", query.Filter{Search: "aCmE"}, []string{"Initech", "Globex", "Acme"}},
		{"search is literal percent", query.Filter{Search: "100%"}, []string{"Umbrella"}},
		{"search is literal underscore", query.Filter{Search: "c_stuff"}, nil},
		{"industry", query.Filter{Industry: "IT"}, []string{"Initech", "Acme"}},
		{"location and industry", query.Filter{Industry: "IT", Location: "Chennai"}, []string{"Initech"}},
		{"founded year", query.Filter{FoundedYear: utils.Ptr(2001)}, []string{"Umbrella", "Acme"}},
		{"search and year", query.Filter{Search: "acme", FoundedYear: utils.Ptr(1990)}, []string{"Globex"}},
	}

	newest := []query.SortKey{{Field: query.SortByCreatedAt, Desc: true}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, total := listAll(t, repo, query.Plan{Filter: tt.filter, Sort: newest})
			assert.Equal(t, len(tt.want), int(total))
			if tt.want == nil {
				assert.Empty(t, rows)
				return
			}
			assert.Equal(t, tt.want, names(rows))
		})
	}
}

// TestListCompaniesSortAndPaging checks numeric sort with absent values and
// the pagination window.
func TestListCompaniesSortAndPaging(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	counts := []*int{utils.Ptr(50), nil, utils.Ptr(5), utils.Ptr(500), utils.Ptr(50)}
	for i, n := range counts {
		in := input(fmt.Sprintf("Company %d", i))
		in.EmployeeCount = n
		_, err := repo.CreateCompany(ctx, in)
		require.NoError(t, err)
	}

	newest := query.SortKey{Field: query.SortByCreatedAt, Desc: true}

	rows, _ := listAll(t, repo, query.Plan{Sort: []query.SortKey{{Field: query.SortByEmployeeCount, Desc: true}, newest}})
	assert.Equal(t, []string{"Company 3", "Company 4", "Company 0", "Company 2", "Company 1"}, names(rows))

	rows, _ = listAll(t, repo, query.Plan{Sort: []query.SortKey{{Field: query.SortByEmployeeCount}, newest}})
	assert.Equal(t, []string{"Company 1", "Company 2", "Company 4", "Company 0", "Company 3"}, names(rows))

	page2, total, err := repo.ListCompanies(ctx, query.Plan{Sort: []query.SortKey{newest}, Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Equal(t, []string{"Company 2", "Company 1"}, names(page2))
	assert.Equal(t, 3, query.TotalPages(total, 2))

	beyond, total, err := repo.ListCompanies(ctx, query.Plan{Sort: []query.SortKey{newest}, Page: 9, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Empty(t, beyond)
}

// TestWithTransaction ensures a failing transaction rolls back.
func TestWithTransaction(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	err := repo.WithTransaction(ctx, func(txRepo *Repository) error {
		if _, err := txRepo.CreateCompany(ctx, input("Transactional Company")); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	assert.EqualError(t, err, "abort")

	_, total := listAll(t, repo, query.Plan{})
	assert.EqualValues(t, 0, total, "rolled back company should not exist")

	require.NoError(t, repo.Ping(ctx))
}
