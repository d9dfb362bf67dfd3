package databases

// go generate: mockery --name CourseDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/course-roster-api/models"
)

const courseName = "courses"

// CourseDatabase contains the methods to use with the course database
type CourseDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.Course, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Course, error)
	InsertOne(ctx context.Context, course models.Course) error
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error)
	DeleteMany(ctx context.Context, filter interface{}) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

type courseDatabase struct {
	db DatabaseHelper
}

// NewCourseDatabase initializes a new instance of course database with the provided db connection
func NewCourseDatabase(db DatabaseHelper) CourseDatabase {
	return &courseDatabase{
		db: db,
	}
}

func (c *courseDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Course, error) {
	course := &models.Course{}
	err := c.db.Collection(courseName).FindOne(ctx, filter).Decode(&course)
	if err != nil {
		return nil, err
	}
	return course, nil
}

func (c *courseDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Course, error) {
	courses := []models.Course{}
	cur, err := c.db.Collection(courseName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	if err = cur.All(ctx, &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

func (c *courseDatabase) InsertOne(ctx context.Context, course models.Course) error {
	_, err := c.db.Collection(courseName).InsertOne(ctx, course)
	return err
}

// UpdateOne applies update to the first matching course and returns the matched count
func (c *courseDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error) {
	res, err := c.db.Collection(courseName).UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (c *courseDatabase) DeleteMany(ctx context.Context, filter interface{}) (int64, error) {
	return c.db.Collection(courseName).DeleteMany(ctx, filter)
}

func (c *courseDatabase) EnsureIndexes(ctx context.Context) error {
	return c.db.Collection(courseName).CreateIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "professor", Value: 1}}},
		{Keys: bson.D{{Key: "students", Value: 1}}},
		{Keys: bson.D{{Key: "tas", Value: 1}}},
	})
}
