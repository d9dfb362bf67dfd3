package databases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/course-roster-api/databases"
	"github.com/linesmerrill/course-roster-api/databases/mocks"
)

func TestStudentDatabase_Find(t *testing.T) {
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var cursorErr databases.CursorHelper

	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	cursorErr = &mocks.CursorHelper{}

	cursorErr.(*mocks.CursorHelper).
		On("All", context.Background(), mock.Anything).
		Return(errors.New("mocked-error"))
	cursorErr.(*mocks.CursorHelper).
		On("Close", context.Background()).
		Return(nil)

	filter := bson.M{"taCourses": bson.M{"$in": []string{"CS101"}}}
	collectionHelper.(*mocks.CollectionHelper).
		On("Find", context.Background(), filter).
		Return(cursorErr, nil)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "students").Return(collectionHelper)

	students, err := databases.NewStudentDatabase(dbHelper).Find(context.Background(), filter)

	assert.Nil(t, students)
	assert.EqualError(t, err, "mocked-error")
	cursorErr.(*mocks.CursorHelper).AssertCalled(t, "Close", context.Background())
}

func TestStudentDatabase_UpdateOne(t *testing.T) {
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper

	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}

	id := primitive.NewObjectID()
	update := bson.M{"$pull": bson.M{"taCourses": "CS101"}}

	collectionHelper.(*mocks.CollectionHelper).
		On("UpdateOne", context.Background(), bson.M{"_id": id}, update).
		Return(nil, errors.New("mocked-error"))

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "students").Return(collectionHelper)

	n, err := databases.NewStudentDatabase(dbHelper).UpdateOne(context.Background(), bson.M{"_id": id}, update)
	assert.EqualError(t, err, "mocked-error")
	assert.Zero(t, n)
}
