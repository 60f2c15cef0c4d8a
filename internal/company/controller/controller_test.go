package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	e "github.com/gartstein/directory/internal/company/errors"
	"github.com/gartstein/directory/internal/company/events"
	"github.com/gartstein/directory/internal/company/models"
	"github.com/gartstein/directory/internal/company/query"
	"github.com/gartstein/directory/internal/company/schema"
	"github.com/gartstein/directory/internal/pkg/utils"
)

type MockRepository struct {
	mock.Mock
}

func company(args mock.Arguments) (*models.Company, error) {
	c, _ := args.Get(0).(*models.Company)
	return c, args.Error(1)
}

func (m *MockRepository) CreateCompany(ctx context.Context, in *models.CompanyInput) (*models.Company, error) {
	return company(m.Called(ctx, in))
}

func (m *MockRepository) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	return company(m.Called(ctx, id))
}

func (m *MockRepository) ListCompanies(ctx context.Context, plan query.Plan) ([]models.Company, int64, error) {
	args := m.Called(ctx, plan)
	rows, _ := args.Get(0).([]models.Company)
	return rows, args.Get(1).(int64), args.Error(2)
}

func (m *MockRepository) UpdateCompany(ctx context.Context, id string, in *models.CompanyInput) (*models.Company, error) {
	return company(m.Called(ctx, id, in))
}

func (m *MockRepository) DeleteCompany(ctx context.Context, id string) (*models.Company, error) {
	return company(m.Called(ctx, id))
}

func (m *MockRepository) Close() error { return nil }

type published struct {
	Type    events.EventType
	Company *models.Company
}

// eventLog records what the service publishes.
type eventLog []published

func (l *eventLog) Produce(t events.EventType, c *models.Company) {
	*l = append(*l, published{t, c})
}

func clock() time.Time {
	return time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
}

func candidate(overrides map[string]any) schema.Candidate {
	c := schema.Candidate{
		"name":      "Valid Name",
		"address":   "1 Main St",
		"industry":  "IT",
		"email":     "valid@gmail.com",
		"location":  "Mumbai",
		"id":        "client-chosen",
		"createdAt": "1999-01-01T00:00:00Z",
	}
	for k, v := range overrides {
		c[k] = v
	}
	return c
}

func newService(t *testing.T) (*CompanyService, *MockRepository, *eventLog) {
	t.Helper()
	repo := &MockRepository{}
	log := &eventLog{}
	t.Cleanup(func() { repo.AssertExpectations(t) })
	return NewCompanyService(repo, log, zaptest.NewLogger(t), WithClock(clock)), repo, log
}

func TestCompanyService_CreateCompany(t *testing.T) {
	t.Run("store assigns id and timestamp", func(t *testing.T) {
		svc, repo, log := newService(t)
		stored := &models.Company{ID: "store-id", Name: "Valid Name", CreatedAt: clock()}
		repo.On("CreateCompany", mock.Anything, mock.MatchedBy(func(in *models.CompanyInput) bool {
			return in.Name == "Valid Name" && in.EmployeeCount == nil
		})).Return(stored, nil).Once()

		got, err := svc.CreateCompany(context.Background(), candidate(nil))
		require.NoError(t, err)
		assert.Same(t, stored, got)
		assert.Equal(t, eventLog{{events.CompanyCreated, stored}}, *log)
	})

	t.Run("duplicate name", func(t *testing.T) {
		svc, repo, log := newService(t)
		repo.On("CreateCompany", mock.Anything, mock.Anything).Return(nil, e.ErrDuplicateName).Once()

		_, err := svc.CreateCompany(context.Background(), candidate(nil))
		assert.ErrorIs(t, err, e.ErrDuplicateName)
		assert.EqualError(t, err, `Company with name "Valid Name" already exists`)
		assert.Empty(t, *log)
	})

	t.Run("invalid email never reaches the store", func(t *testing.T) {
		svc, _, log := newService(t)

		_, err := svc.CreateCompany(context.Background(), candidate(map[string]any{"email": "someone@yahoo.com"}))
		assert.ErrorIs(t, err, e.ErrInvalidInput)
		assert.EqualError(t, err, "Validation failed: email: Email must be in the format text@gmail.com")
		assert.Empty(t, *log)
	})

	t.Run("store failure", func(t *testing.T) {
		svc, repo, _ := newService(t)
		boom := errors.New("database error")
		repo.On("CreateCompany", mock.Anything, mock.Anything).Return(nil, boom).Once()

		_, err := svc.CreateCompany(context.Background(), candidate(nil))
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, e.ErrInvalidInput)
	})
}

func TestCompanyService_GetCompany(t *testing.T) {
	svc, repo, _ := newService(t)
	known := &models.Company{ID: "known", Name: "Existing Company"}
	repo.On("GetCompany", mock.Anything, "known").Return(known, nil)
	repo.On("GetCompany", mock.Anything, "unknown").Return(nil, e.ErrNotFound)
	repo.On("GetCompany", mock.Anything, "flaky").Return(nil, errors.New("timeout"))

	got, err := svc.GetCompany(context.Background(), "known")
	require.NoError(t, err)
	assert.Equal(t, "known", got.ID)

	_, err = svc.GetCompany(context.Background(), "unknown")
	assert.ErrorIs(t, err, e.ErrNotFound)

	_, err = svc.GetCompany(context.Background(), "flaky")
	require.Error(t, err)
	assert.NotErrorIs(t, err, e.ErrNotFound)
}

func TestCompanyService_ListCompanies(t *testing.T) {
	svc, repo, _ := newService(t)
	repo.On("ListCompanies", mock.Anything, mock.MatchedBy(func(p query.Plan) bool {
		return p.Filter.Search == "acme" && p.Offset() == 20 && p.Limit == 10
	})).Return([]models.Company{{ID: "a"}, {ID: "b"}}, int64(23), nil).Once()

	page, err := svc.ListCompanies(context.Background(), query.Params{
		Search: "acme", Page: "3", Limit: "10", SortBy: "foundedYear", SortOrder: "desc",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(23), page.Total)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 3, page.TotalPages)
	assert.Len(t, page.Companies, 2)

	_, err = svc.ListCompanies(context.Background(), query.Params{Limit: "0"})
	var ve *e.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, query.InvalidParamsMessage, ve.Message)
}

func TestCompanyService_UpdateCompany(t *testing.T) {
	created := clock().Add(-time.Hour)

	t.Run("numbers are normalized and identity kept", func(t *testing.T) {
		svc, repo, log := newService(t)
		stored := &models.Company{ID: "the-id", Name: "Valid Name", EmployeeCount: utils.Ptr(200), CreatedAt: created}
		repo.On("UpdateCompany", mock.Anything, "the-id", mock.MatchedBy(func(in *models.CompanyInput) bool {
			return in.EmployeeCount != nil && *in.EmployeeCount == 200
		})).Return(stored, nil).Once()

		got, err := svc.UpdateCompany(context.Background(), "the-id", candidate(map[string]any{"employeeCount": "200"}))
		require.NoError(t, err)
		assert.Equal(t, "the-id", got.ID)
		assert.True(t, got.CreatedAt.Equal(created))
		assert.Equal(t, eventLog{{events.CompanyUpdated, stored}}, *log)
	})

	t.Run("validation runs before lookup", func(t *testing.T) {
		svc, _, _ := newService(t)

		_, err := svc.UpdateCompany(context.Background(), "the-id", candidate(map[string]any{"foundedYear": 1700}))
		assert.ErrorIs(t, err, e.ErrInvalidInput)
	})

	for name, tc := range map[string]struct {
		storeErr error
		msg      string
	}{
		"not found":  {storeErr: e.ErrNotFound},
		"name taken": {storeErr: e.ErrDuplicateName, msg: "Company name already exists"},
	} {
		t.Run(name, func(t *testing.T) {
			svc, repo, log := newService(t)
			repo.On("UpdateCompany", mock.Anything, "the-id", mock.Anything).Return(nil, tc.storeErr).Once()

			_, err := svc.UpdateCompany(context.Background(), "the-id", candidate(nil))
			assert.ErrorIs(t, err, tc.storeErr)
			if tc.msg != "" {
				assert.EqualError(t, err, tc.msg)
			}
			assert.Empty(t, *log)
		})
	}
}

func TestCompanyService_DeleteCompany(t *testing.T) {
	t.Run("event carries the removed record", func(t *testing.T) {
		svc, repo, log := newService(t)
		removed := &models.Company{ID: "doomed", EmployeeCount: utils.Ptr(3)}
		repo.On("DeleteCompany", mock.Anything, "doomed").Return(removed, nil).Once()

		require.NoError(t, svc.DeleteCompany(context.Background(), "doomed"))
		assert.Equal(t, eventLog{{events.CompanyDeleted, removed}}, *log)
	})

	t.Run("not found", func(t *testing.T) {
		svc, repo, log := newService(t)
		repo.On("DeleteCompany", mock.Anything, "doomed").Return(nil, e.ErrNotFound).Once()

		assert.ErrorIs(t, svc.DeleteCompany(context.Background(), "doomed"), e.ErrNotFound)
		assert.Empty(t, *log)
	})

	t.Run("store failure is not a miss", func(t *testing.T) {
		svc, repo, _ := newService(t)
		repo.On("DeleteCompany", mock.Anything, "doomed").Return(nil, errors.New("connection reset")).Once()

		err := svc.DeleteCompany(context.Background(), "doomed")
		require.Error(t, err)
		assert.NotErrorIs(t, err, e.ErrNotFound)
	})
}

func TestCompanyService_Rules(t *testing.T) {
	svc, _, _ := newService(t)
	for _, r := range svc.Rules() {
		if r.Field == "foundedYear" {
			require.NotNil(t, r.Max)
			assert.Equal(t, 2025, *r.Max)
		}
	}
}
