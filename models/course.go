package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Course holds the structure for the course collection in mongo. The _id is the
// externally chosen course code (e.g. "CS101") and never changes.
type Course struct {
	ID          string               `json:"id" bson:"_id"`
	Name        string               `json:"name" bson:"name"`
	Description string               `json:"description" bson:"description"`
	Professor   primitive.ObjectID   `json:"professor" bson:"professor"`
	Students    []primitive.ObjectID `json:"students" bson:"students"`
	TAs         []primitive.ObjectID `json:"tas" bson:"tas"`
}

// CourseSummary is the display form of a course used by the member and
// professor projections
type CourseSummary struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Professor   ProfessorSummary `json:"professor"`
}
