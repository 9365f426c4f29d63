package databases

// go generate: mockery --name ReportDatabase

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/minhng-dev/social-moderation-api/models"
)

const reportCollection = "reports"

// ReportDatabase contains the methods to use with the reports collection
type ReportDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.Report, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Report, error)
	FindPage(ctx context.Context, filter interface{}, page, limit int, sort interface{}) ([]models.Report, error)
	CountDocuments(ctx context.Context, filter interface{}) (int64, error)
	CountByStatus(ctx context.Context, filter interface{}) (map[string]int64, error)
	InsertOne(ctx context.Context, report models.Report) (interface{}, error)
	UpdateMany(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error)
	// Resolve moves an open report to a terminal state. ErrStateConflict
	// when the report exists but was already resolved or dismissed.
	Resolve(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Report, error)
}

type reportDatabase struct {
	db DatabaseHelper
}

// NewReportDatabase initializes a new instance of report database with the
// provided db connection
func NewReportDatabase(db DatabaseHelper) ReportDatabase {
	return &reportDatabase{db: db}
}

func (c *reportDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Report, error) {
	report := &models.Report{}
	err := c.db.Collection(reportCollection).FindOne(ctx, filter).Decode(report)
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (c *reportDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Report, error) {
	cursor, err := c.db.Collection(reportCollection).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var reports []models.Report
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

func (c *reportDatabase) FindPage(ctx context.Context, filter interface{}, page, limit int, sort interface{}) ([]models.Report, error) {
	opts := newMongoPaginate(limit, page).getPaginatedOpts()
	if sort != nil {
		opts.SetSort(sort)
	}
	return c.Find(ctx, filter, opts)
}

func (c *reportDatabase) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return c.db.Collection(reportCollection).CountDocuments(ctx, filter)
}

func (c *reportDatabase) CountByStatus(ctx context.Context, filter interface{}) (map[string]int64, error) {
	pipeline := []bson.M{
		{"$match": filter},
		{"$group": bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}},
	}
	cursor, err := c.db.Collection(reportCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (c *reportDatabase) InsertOne(ctx context.Context, report models.Report) (interface{}, error) {
	return c.db.Collection(reportCollection).InsertOne(ctx, report)
}

func (c *reportDatabase) UpdateMany(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error) {
	return c.db.Collection(reportCollection).UpdateMany(ctx, filter, update)
}

func (c *reportDatabase) Resolve(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Report, error) {
	set["updatedAt"] = primitive.NewDateTimeFromTime(time.Now())
	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": []string{models.ReportStatusPending, models.ReportStatusReviewing}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	report := &models.Report{}
	err := c.db.Collection(reportCollection).
		FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).
		Decode(report)
	if err == nil {
		return report, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	if _, findErr := c.FindOne(ctx, bson.M{"_id": id}); findErr == nil {
		return nil, ErrStateConflict
	}
	return nil, mongo.ErrNoDocuments
}
