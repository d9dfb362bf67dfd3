package databases

// go generate: mockery --name InviteDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/course-roster-api/models"
)

const inviteName = "invites"

// InviteDatabase contains the methods to use with the invite database
type InviteDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.Invite, error)
	InsertOne(ctx context.Context, invite models.Invite) error
	DeleteMany(ctx context.Context, filter interface{}) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

type inviteDatabase struct {
	db DatabaseHelper
}

// NewInviteDatabase initializes a new instance of invite database with the provided db connection
func NewInviteDatabase(db DatabaseHelper) InviteDatabase {
	return &inviteDatabase{
		db: db,
	}
}

func (i *inviteDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Invite, error) {
	invite := &models.Invite{}
	err := i.db.Collection(inviteName).FindOne(ctx, filter).Decode(&invite)
	if err != nil {
		return nil, err
	}
	return invite, nil
}

// InsertOne stores a new invite. A token collision surfaces as a duplicate key
// error from the unique index.
func (i *inviteDatabase) InsertOne(ctx context.Context, invite models.Invite) error {
	_, err := i.db.Collection(inviteName).InsertOne(ctx, invite)
	return err
}

func (i *inviteDatabase) DeleteMany(ctx context.Context, filter interface{}) (int64, error) {
	return i.db.Collection(inviteName).DeleteMany(ctx, filter)
}

// EnsureIndexes creates the unique token index and the TTL index that lets mongo
// drop invites once expiresAt has passed
func (i *inviteDatabase) EnsureIndexes(ctx context.Context) error {
	return i.db.Collection(inviteName).CreateIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		{Keys: bson.D{{Key: "courseId", Value: 1}}},
	})
}
