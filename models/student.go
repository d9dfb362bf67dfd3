package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Role labels carried by member profiles and mirrored onto accounts
const (
	RoleStudent   = "Student"
	RoleTA        = "TA"
	RoleProfessor = "Professor"
)

// Student holds the structure for the student (member profile) collection in mongo
type Student struct {
	ID        primitive.ObjectID `json:"id" bson:"_id"`
	UserID    primitive.ObjectID `json:"userId" bson:"userId"`
	Courses   []string           `json:"courses" bson:"courses"`
	TACourses []string           `json:"taCourses" bson:"taCourses"`
	Role      string             `json:"role" bson:"role"`
}

// DerivedRole returns the global label implied by the student's TA memberships
func (s *Student) DerivedRole() string {
	if len(s.TACourses) > 0 {
		return RoleTA
	}
	return RoleStudent
}
