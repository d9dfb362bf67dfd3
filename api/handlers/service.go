package handlers

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/course-roster-api/enrollment"
	"github.com/linesmerrill/course-roster-api/models"
)

// Service is the enrollment engine as seen by the HTTP layer. Handlers only
// decode, call one method and encode; *enrollment.Engine implements it.
type Service interface {
	GetRoster(ctx context.Context, courseID string) (*models.Roster, error)
	GetUnenrolled(ctx context.Context, courseID string) ([]models.RosterEntry, error)
	Enroll(ctx context.Context, courseID string, memberID primitive.ObjectID, asTA bool) error
	Unenroll(ctx context.Context, courseID string, memberID primitive.ObjectID, isTA bool) error
	ChangeRole(ctx context.Context, courseID string, memberID primitive.ObjectID, newRole string) error
	IssueInvite(ctx context.Context, courseID string) (*models.Invite, error)
	ValidateInvite(ctx context.Context, token string) (enrollment.Grant, error)
	RedeemInvite(ctx context.Context, token string, memberID primitive.ObjectID) error
	GetCoursesForMember(ctx context.Context, memberID primitive.ObjectID) (*models.MemberCourses, error)
	GetCoursesForProfessor(ctx context.Context, accountID primitive.ObjectID) ([]models.Course, error)
	CreateCourse(ctx context.Context, accountID primitive.ObjectID, id, name, description string) (*models.Course, error)
	GetProfessor(ctx context.Context, professorID primitive.ObjectID) (*models.ProfessorDetails, error)
	DeleteProfessor(ctx context.Context, professorID primitive.ObjectID) error
	Reconcile(ctx context.Context, courseID string) (*models.ReconcileReport, error)
	ReconcileAll(ctx context.Context, parallelism int) ([]models.ReconcileReport, error)
}

var _ Service = (*enrollment.Engine)(nil)
