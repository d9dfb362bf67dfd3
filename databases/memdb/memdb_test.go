package memdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/course-roster-api/databases/memdb"
)

type doc struct {
	ID    string    `bson:"_id"`
	Name  string    `bson:"name"`
	Tags  []string  `bson:"tags"`
	Count int64     `bson:"count"`
	At    time.Time `bson:"at"`
}

func find(t *testing.T, coll *memdb.Collection, filter interface{}) []doc {
	t.Helper()
	cur, err := coll.Find(context.Background(), filter)
	require.NoError(t, err)
	out := []doc{}
	require.NoError(t, cur.All(context.Background(), &out))
	require.NoError(t, cur.Close(context.Background()))
	return out
}

func ids(docs []doc) []string {
	out := []string{}
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}

func TestCollection_Find(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	coll := memdb.New().C("docs")
	coll.Seed(
		doc{ID: "a", Name: "alpha", Tags: []string{"x", "y"}, Count: 1, At: now},
		doc{ID: "b", Name: "beta", Tags: []string{"y"}, Count: 2, At: now.Add(time.Hour)},
		doc{ID: "c", Name: "gamma", Tags: []string{}, Count: 3, At: now.Add(2 * time.Hour)},
	)

	assert.Equal(t, []string{"a", "b", "c"}, ids(find(t, coll, bson.M{})))
	assert.Equal(t, []string{"b"}, ids(find(t, coll, bson.M{"name": "beta"})))
	assert.Equal(t, []string{"a", "b"}, ids(find(t, coll, bson.M{"tags": "y"})))
	assert.Equal(t, []string{"a", "c"}, ids(find(t, coll, bson.M{"_id": bson.M{"$in": []string{"a", "c", "z"}}})))
	assert.Equal(t, []string{"a"}, ids(find(t, coll, bson.M{"tags": bson.M{"$in": []string{"x"}}})))
	assert.Equal(t, []string{"c"}, ids(find(t, coll, bson.M{"_id": bson.M{"$nin": []string{"a", "b"}}})))
	assert.Equal(t, []string{"a", "b", "c"}, ids(find(t, coll, bson.M{"_id": bson.M{"$nin": []string{}}})))
	assert.Equal(t, []string{"a", "b"}, ids(find(t, coll, bson.M{"at": bson.M{"$lte": now.Add(time.Hour)}})))
	assert.Panics(t, func() { find(t, coll, bson.M{"count": bson.M{"$gt": int64(1)}}) })

	var one doc
	require.NoError(t, coll.FindOne(context.Background(), bson.M{"_id": "c"}).Decode(&one))
	assert.Equal(t, "gamma", one.Name)
	assert.True(t, one.At.Equal(now.Add(2*time.Hour)))
	assert.ErrorIs(t, coll.FindOne(context.Background(), bson.M{"_id": "z"}).Decode(&one), mongo.ErrNoDocuments)
}

func TestCollection_Writes(t *testing.T) {
	ctx := context.Background()
	coll := memdb.New().C("docs")
	require.NoError(t, coll.CreateIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
	}))

	res, err := coll.InsertOne(ctx, doc{ID: "a", Name: "alpha"})
	require.NoError(t, err)
	assert.Equal(t, "a", res.Decode())

	_, err = coll.InsertOne(ctx, doc{ID: "a", Name: "other"})
	assert.True(t, mongo.IsDuplicateKeyError(err))
	_, err = coll.InsertOne(ctx, doc{ID: "b", Name: "alpha"})
	assert.True(t, mongo.IsDuplicateKeyError(err))

	coll.Seed(doc{ID: "b", Name: "beta", Tags: []string{"x"}})

	up, err := coll.UpdateOne(ctx, bson.M{"_id": "z"}, bson.M{"$set": bson.M{"name": "zeta"}})
	require.NoError(t, err)
	assert.Zero(t, up.MatchedCount)

	up, err = coll.UpdateOne(ctx, bson.M{"_id": "a"}, bson.M{"$addToSet": bson.M{"tags": "x"}, "$set": bson.M{"count": int64(5)}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), up.MatchedCount)
	assert.Equal(t, int64(1), up.ModifiedCount)

	up, err = coll.UpdateOne(ctx, bson.M{"_id": "a"}, bson.M{"$addToSet": bson.M{"tags": "x"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), up.MatchedCount)
	assert.Zero(t, up.ModifiedCount)

	_, err = coll.UpdateOne(ctx, bson.M{"_id": "b"}, bson.M{"$pull": bson.M{"tags": bson.M{"$in": []string{"x", "y"}}}})
	require.NoError(t, err)
	_, err = coll.UpdateOne(ctx, bson.M{"_id": "b"}, bson.M{"$unset": bson.M{"name": ""}})
	assert.Error(t, err)

	all := find(t, coll, bson.M{})
	require.Len(t, all, 2)
	assert.Equal(t, []string{"x"}, all[0].Tags)
	assert.Equal(t, int64(5), all[0].Count)
	assert.Empty(t, all[1].Tags)
	assert.Equal(t, "beta", all[1].Name)

	n, err := coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": []string{"a", "b"}}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 0, coll.Len())
}

func TestCollection_FailNext(t *testing.T) {
	ctx := context.Background()
	coll := memdb.New().C("docs")
	coll.FailNext("InsertOne", assert.AnError)

	_, err := coll.InsertOne(ctx, doc{ID: "a"})
	assert.ErrorIs(t, err, assert.AnError)
	_, err = coll.InsertOne(ctx, doc{ID: "a"})
	assert.NoError(t, err)
}

func TestClient(t *testing.T) {
	ctx := context.Background()
	client := memdb.NewClient()
	require.NoError(t, client.Ping(ctx))

	db := client.Database("roster")
	_, err := db.Collection("docs").InsertOne(ctx, doc{ID: "a"})
	require.NoError(t, err)

	cur, err := client.Database("roster").Collection("docs").Find(ctx, bson.M{})
	require.NoError(t, err)
	var found []doc
	require.NoError(t, cur.All(ctx, &found))
	assert.Len(t, found, 1)
	assert.Same(t, client, db.Client())
	assert.NoError(t, client.Disconnect(ctx))
}
