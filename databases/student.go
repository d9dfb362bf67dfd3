package databases

// go generate: mockery --name StudentDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/course-roster-api/models"
)

const studentName = "students"

// StudentDatabase contains the methods to use with the student (member profile) database
type StudentDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.Student, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Student, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

type studentDatabase struct {
	db DatabaseHelper
}

// NewStudentDatabase initializes a new instance of student database with the provided db connection
func NewStudentDatabase(db DatabaseHelper) StudentDatabase {
	return &studentDatabase{
		db: db,
	}
}

func (s *studentDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Student, error) {
	student := &models.Student{}
	err := s.db.Collection(studentName).FindOne(ctx, filter).Decode(&student)
	if err != nil {
		return nil, err
	}
	return student, nil
}

func (s *studentDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Student, error) {
	students := []models.Student{}
	cur, err := s.db.Collection(studentName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	if err = cur.All(ctx, &students); err != nil {
		return nil, err
	}
	return students, nil
}

// UpdateOne applies update to the first matching student and returns the matched count
func (s *studentDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error) {
	res, err := s.db.Collection(studentName).UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (s *studentDatabase) EnsureIndexes(ctx context.Context) error {
	return s.db.Collection(studentName).CreateIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
}
