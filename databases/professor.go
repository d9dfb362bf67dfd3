package databases

// go generate: mockery --name ProfessorDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/course-roster-api/models"
)

const professorName = "professors"

// ProfessorDatabase contains the methods to use with the professor database
type ProfessorDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.Professor, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Professor, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error)
	DeleteOne(ctx context.Context, filter interface{}) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

type professorDatabase struct {
	db DatabaseHelper
}

// NewProfessorDatabase initializes a new instance of professor database with the provided db connection
func NewProfessorDatabase(db DatabaseHelper) ProfessorDatabase {
	return &professorDatabase{
		db: db,
	}
}

func (p *professorDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Professor, error) {
	professor := &models.Professor{}
	err := p.db.Collection(professorName).FindOne(ctx, filter).Decode(&professor)
	if err != nil {
		return nil, err
	}
	return professor, nil
}

func (p *professorDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Professor, error) {
	professors := []models.Professor{}
	cur, err := p.db.Collection(professorName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	if err = cur.All(ctx, &professors); err != nil {
		return nil, err
	}
	return professors, nil
}

// UpdateOne applies update to the first matching professor and returns the matched count
func (p *professorDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error) {
	res, err := p.db.Collection(professorName).UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (p *professorDatabase) DeleteOne(ctx context.Context, filter interface{}) (int64, error) {
	return p.db.Collection(professorName).DeleteOne(ctx, filter)
}

func (p *professorDatabase) EnsureIndexes(ctx context.Context) error {
	return p.db.Collection(professorName).CreateIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
}
