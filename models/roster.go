package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// RosterEntry is one display-ready row of a course roster
type RosterEntry struct {
	ID     primitive.ObjectID `json:"id"`
	Role   string             `json:"role"`
	Name   string             `json:"name"`
	Email  string             `json:"email"`
	UserID primitive.ObjectID `json:"userId"`
}

// Roster holds a course's students and TAs in course order
type Roster struct {
	Students []RosterEntry `json:"students"`
	TAs      []RosterEntry `json:"tas"`
}

// MemberCourses holds the courses a member attends, split by role
type MemberCourses struct {
	StudentCourses []CourseSummary `json:"studentCourses"`
	TACourses      []CourseSummary `json:"taCourses"`
}

// ReconcileReport describes the repairs made while reconciling one course
type ReconcileReport struct {
	CourseID        string               `json:"courseId"`
	DroppedRefs     []primitive.ObjectID `json:"droppedRefs"`
	RepairedMembers []primitive.ObjectID `json:"repairedMembers"`
	RelabeledUsers  []primitive.ObjectID `json:"relabeledUsers"`
}

// Clean reports whether reconciliation found nothing to repair
func (r ReconcileReport) Clean() bool {
	return len(r.DroppedRefs) == 0 && len(r.RepairedMembers) == 0 && len(r.RelabeledUsers) == 0
}
