package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Professor holds the structure for the professor collection in mongo
type Professor struct {
	ID      primitive.ObjectID `json:"id" bson:"_id"`
	UserID  primitive.ObjectID `json:"userId" bson:"userId"`
	Courses []string           `json:"courses" bson:"courses"`
}

// ProfessorSummary is the owning professor's display data
type ProfessorSummary struct {
	ID    primitive.ObjectID `json:"id"`
	Name  string             `json:"name"`
	Email string             `json:"email"`
}

// ProfessorDetails is a professor profile joined with its account and courses
type ProfessorDetails struct {
	ProfessorSummary
	UserID  primitive.ObjectID `json:"userId"`
	Courses []Course           `json:"courses"`
}
