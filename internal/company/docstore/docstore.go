// Package docstore keeps companies in a MongoDB collection.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	e "github.com/gartstein/directory/internal/company/errors"
	domain "github.com/gartstein/directory/internal/company/models"
	"github.com/gartstein/directory/internal/company/query"
)

// Collection is the name of the companies collection.
const Collection = "companies"

type document struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Name          string             `bson:"name"`
	Address       string             `bson:"address"`
	Industry      string             `bson:"industry"`
	Email         string             `bson:"email"`
	EmployeeCount *int               `bson:"employeeCount,omitempty"`
	FoundedYear   *int               `bson:"foundedYear,omitempty"`
	Description   string             `bson:"description"`
	Location      string             `bson:"location"`
	TotalBranches *int               `bson:"totalBranches,omitempty"`
	TotalClients  *int               `bson:"totalClients,omitempty"`
	ImageURL      string             `bson:"imageUrl"`
	CreatedAt     time.Time          `bson:"createdAt"`
}

func (d *document) toDomain() *domain.Company {
	return &domain.Company{
		ID:            d.ID.Hex(),
		Name:          d.Name,
		Address:       d.Address,
		Industry:      d.Industry,
		Email:         d.Email,
		EmployeeCount: d.EmployeeCount,
		FoundedYear:   d.FoundedYear,
		Description:   d.Description,
		Location:      d.Location,
		TotalBranches: d.TotalBranches,
		TotalClients:  d.TotalClients,
		ImageURL:      d.ImageURL,
		CreatedAt:     d.CreatedAt,
	}
}

// Repository implements the company store on a mongo collection.
type Repository struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
	logger *zap.Logger
}

// Option customises a Repository.
type Option func(*Repository)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Repository) { r.logger = logger.Named("docstore") }
}

// New wraps an existing collection. Indexes are not touched.
func New(coll *mongo.Collection, opts ...Option) *Repository {
	r := &Repository{coll: coll, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect dials uri, verifies the connection and makes sure the indexes
// exist.
func Connect(ctx context.Context, uri, database string, opts ...Option) (*Repository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	r := New(client.Database(database).Collection(Collection), opts...)
	r.client = client
	if err := r.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	r.logger.Info("connected", zap.String("database", database))
	return r, nil
}

// EnsureIndexes creates the unique name index and the filter indexes.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "industry", Value: 1}}},
		{Keys: bson.D{{Key: "location", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (r *Repository) CreateCompany(ctx context.Context, in *domain.CompanyInput) (*domain.Company, error) {
	doc := fromInput(in)
	doc.ID = primitive.NewObjectID()
	// BSON dates carry milliseconds only.
	doc.CreatedAt = r.now().UTC().Truncate(time.Millisecond)

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, e.ErrDuplicateName
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *Repository) GetCompany(ctx context.Context, id string) (*domain.Company, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, e.ErrNotFound
	}
	var doc document
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	return doc.toDomain(), nil
}

func (r *Repository) ListCompanies(ctx context.Context, plan query.Plan) ([]domain.Company, int64, error) {
	filter := buildFilter(plan.Filter)

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	cur, err := r.coll.Find(ctx, filter, options.Find().
		SetSort(buildSort(plan.Sort)).
		SetSkip(int64(plan.Offset())).
		SetLimit(int64(plan.Limit)))
	if err != nil {
		return nil, 0, err
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}

	out := make([]domain.Company, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].toDomain())
	}
	return out, total, nil
}

// UpdateCompany replaces the mutable fields in a single atomic operation.
func (r *Repository) UpdateCompany(ctx context.Context, id string, in *domain.CompanyInput) (*domain.Company, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, e.ErrNotFound
	}
	var doc document
	err = r.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		buildUpdate(in),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, e.ErrDuplicateName
		}
		return nil, notFound(err)
	}
	return doc.toDomain(), nil
}

func (r *Repository) DeleteCompany(ctx context.Context, id string) (*domain.Company, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, e.ErrNotFound
	}
	var doc document
	if err := r.coll.FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	return doc.toDomain(), nil
}

// Ping checks the connection.
func (r *Repository) Ping(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Ping(ctx, readpref.Primary())
}

func (r *Repository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Disconnect(context.Background())
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return e.ErrNotFound
	}
	return err
}

func fromInput(in *domain.CompanyInput) *document {
	return &document{
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
}

// buildFilter AND-s the present conditions. Search is matched literally.
func buildFilter(f query.Filter) bson.D {
	filter := bson.D{}
	if f.Search != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "name", Value: re}},
			bson.D{{Key: "description", Value: re}},
			bson.D{{Key: "address", Value: re}},
		}})
	}
	if f.Industry != "" {
		filter = append(filter, bson.E{Key: "industry", Value: f.Industry})
	}
	if f.Location != "" {
		filter = append(filter, bson.E{Key: "location", Value: f.Location})
	}
	if f.FoundedYear != nil {
		filter = append(filter, bson.E{Key: "foundedYear", Value: *f.FoundedYear})
	}
	return filter
}

var sortable = map[string]bool{
	query.SortByName:          true,
	query.SortByFoundedYear:   true,
	query.SortByTotalBranches: true,
	query.SortByTotalClients:  true,
	query.SortByEmployeeCount: true,
	query.SortByCreatedAt:     true,
}

// buildSort relies on mongo ordering missing fields lowest.
func buildSort(keys []query.SortKey) bson.D {
	sort := bson.D{}
	for _, k := range keys {
		if !sortable[k.Field] {
			continue
		}
		dir := 1
		if k.Desc {
			dir = -1
		}
		sort = append(sort, bson.E{Key: k.Field, Value: dir})
	}
	return sort
}

// buildUpdate sets every mutable field and unsets absent numbers so the
// result is a full replacement that keeps _id and createdAt.
func buildUpdate(in *domain.CompanyInput) bson.D {
	set := bson.D{
		{Key: "name", Value: in.Name},
		{Key: "address", Value: in.Address},
		{Key: "industry", Value: in.Industry},
		{Key: "email", Value: in.Email},
		{Key: "description", Value: in.Description},
		{Key: "location", Value: in.Location},
		{Key: "imageUrl", Value: in.ImageURL},
	}
	unset := bson.D{}
	for _, n := range []struct {
		key string
		val *int
	}{
		{"employeeCount", in.EmployeeCount},
		{"foundedYear", in.FoundedYear},
		{"totalBranches", in.TotalBranches},
		{"totalClients", in.TotalClients},
	} {
		if n.val != nil {
			set = append(set, bson.E{Key: n.key, Value: *n.val})
		} else {
			unset = append(unset, bson.E{Key: n.key, Value: ""})
		}
	}

	update := bson.D{{Key: "$set", Value: set}}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}
	return update
}
