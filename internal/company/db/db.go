package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/gartstein/directory/internal/company/db/models"
	e "github.com/gartstein/directory/internal/company/errors"
	domain "github.com/gartstein/directory/internal/company/models"
	"github.com/gartstein/directory/internal/company/query"
)

// Repository stores companies in a relational database through gorm.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// Config holds the PostgreSQL connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the libpq connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// Option customises a Repository.
type Option func(*Repository)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// NewRepository connects to PostgreSQL and migrates the schema.
func NewRepository(cfg *Config, logger *zap.Logger, opts ...Option) (*Repository, error) {
	return open(postgres.Open(cfg.DSN()), logger, opts...)
}

// NewSQLiteRepository opens (or creates) a SQLite database at path.
// ":memory:" gives a private in-memory database.
func NewSQLiteRepository(path string, logger *zap.Logger, opts ...Option) (*Repository, error) {
	r, err := open(sqlite.Open(path), logger, opts...)
	if err != nil {
		return nil, err
	}
	// A second pooled connection to ":memory:" would see an empty database.
	sqlDB, err := r.db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sqlite pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return r, nil
}

func open(dialector gorm.Dialector, logger *zap.Logger, opts ...Option) (*Repository, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         newGormLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&models.Company{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := backfillFolds(db); err != nil {
		return nil, fmt.Errorf("failed to backfill search columns: %w", err)
	}

	r := &Repository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// backfillFolds fills the search columns of rows written before they
// existed.
func backfillFolds(db *gorm.DB) error {
	var rows []models.Company
	if err := db.Where("name_fold = ?", "").Find(&rows).Error; err != nil {
		return err
	}
	for i := range rows {
		rows[i].SetFolds()
		err := db.Model(&models.Company{}).Where("id = ?", rows[i].ID).Updates(map[string]any{
			"name_fold":        rows[i].NameFold,
			"description_fold": rows[i].DescriptionFold,
			"address_fold":     rows[i].AddressFold,
		}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func newGormLogger(logger *zap.Logger) gormlogger.Interface {
	if logger == nil {
		logger = zap.NewNop()
	}
	return gormlogger.New(zap.NewStdLog(logger.Named("gorm")), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// CreateCompany inserts a new row. The id and creation time are assigned here.
func (r *Repository) CreateCompany(ctx context.Context, in *domain.CompanyInput) (*domain.Company, error) {
	row := models.FromInput(in)
	row.ID = uuid.New().String()
	row.CreatedAt = r.now().UTC().Truncate(time.Microsecond)

	result := r.db.WithContext(ctx).Create(row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, e.ErrDuplicateName
		}
		return nil, result.Error
	}
	return row.ToDomain(), nil
}

func (r *Repository) GetCompany(ctx context.Context, id string) (*domain.Company, error) {
	var row models.Company
	result := r.db.WithContext(ctx).First(&row, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return row.ToDomain(), nil
}

// ListCompanies returns one page of the plan together with the total number
// of matching rows.
func (r *Repository) ListCompanies(ctx context.Context, plan query.Plan) ([]domain.Company, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Company{}).
		Scopes(filterScope(plan.Filter)).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Company
	if err := r.db.WithContext(ctx).
		Scopes(filterScope(plan.Filter), sortScope(plan.Sort)).
		Offset(plan.Offset()).
		Limit(plan.Limit).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]domain.Company, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, total, nil
}

// UpdateCompany replaces every mutable column of the row and returns the
// stored result.
func (r *Repository) UpdateCompany(ctx context.Context, id string, in *domain.CompanyInput) (*domain.Company, error) {
	result := r.db.WithContext(ctx).Model(&models.Company{}).
		Where("id = ?", id).
		Select(models.MutableColumns).
		Updates(models.FromInput(in))

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, e.ErrDuplicateName
		}
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, e.ErrNotFound
	}
	return r.GetCompany(ctx, id)
}

// DeleteCompany removes the row and returns what was deleted.
func (r *Repository) DeleteCompany(ctx context.Context, id string) (*domain.Company, error) {
	var deleted *domain.Company
	err := r.WithTransaction(ctx, func(tx *Repository) error {
		c, err := tx.GetCompany(ctx, id)
		if err != nil {
			return err
		}
		result := tx.db.WithContext(ctx).Delete(&models.Company{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return e.ErrNotFound
		}
		deleted = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (r *Repository) WithTransaction(ctx context.Context, fn func(repo *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx, now: r.now})
	})
}

// Exec runs a raw statement, e.g. to reset tables between integration tests.
func (r *Repository) Exec(ctx context.Context, sql string, args ...any) error {
	return r.db.WithContext(ctx).Exec(sql, args...).Error
}

// Ping checks the connection.
func (r *Repository) Ping(ctx context.Context) error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

var columns = map[string]string{
	query.SortByName:          "name",
	query.SortByFoundedYear:   "founded_year",
	query.SortByTotalBranches: "total_branches",
	query.SortByTotalClients:  "total_clients",
	query.SortByEmployeeCount: "employee_count",
	query.SortByCreatedAt:     "created_at",
}

func filterScope(f query.Filter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.Search != "" {
			pattern := "%" + escapeLike(models.Fold(f.Search)) + "%"
			db = db.Where(
				`(name_fold LIKE ? ESCAPE '\' OR description_fold LIKE ? ESCAPE '\' OR address_fold LIKE ? ESCAPE '\')`,
				pattern, pattern, pattern,
			)
		}
		if f.Industry != "" {
			db = db.Where("industry = ?", f.Industry)
		}
		if f.Location != "" {
			db = db.Where("location = ?", f.Location)
		}
		if f.FoundedYear != nil {
			db = db.Where("founded_year = ?", *f.FoundedYear)
		}
		return db
	}
}

// sortScope orders NULLs as the lowest value so that both stores agree.
func sortScope(keys []query.SortKey) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for _, k := range keys {
			col, ok := columns[k.Field]
			if !ok {
				continue
			}
			if k.Desc {
				db = db.Order(col + " DESC NULLS LAST")
			} else {
				db = db.Order(col + " ASC NULLS FIRST")
			}
		}
		return db
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
