package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/course-roster-api/enrollment"
	"github.com/linesmerrill/course-roster-api/mailer"
	"github.com/linesmerrill/course-roster-api/models"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) GetRoster(ctx context.Context, courseID string) (*models.Roster, error) {
	args := m.Called(ctx, courseID)
	roster, _ := args.Get(0).(*models.Roster)
	return roster, args.Error(1)
}

func (m *mockService) GetUnenrolled(ctx context.Context, courseID string) ([]models.RosterEntry, error) {
	args := m.Called(ctx, courseID)
	entries, _ := args.Get(0).([]models.RosterEntry)
	return entries, args.Error(1)
}

func (m *mockService) Enroll(ctx context.Context, courseID string, memberID primitive.ObjectID, asTA bool) error {
	return m.Called(ctx, courseID, memberID, asTA).Error(0)
}

func (m *mockService) Unenroll(ctx context.Context, courseID string, memberID primitive.ObjectID, isTA bool) error {
	return m.Called(ctx, courseID, memberID, isTA).Error(0)
}

func (m *mockService) ChangeRole(ctx context.Context, courseID string, memberID primitive.ObjectID, newRole string) error {
	return m.Called(ctx, courseID, memberID, newRole).Error(0)
}

func (m *mockService) IssueInvite(ctx context.Context, courseID string) (*models.Invite, error) {
	args := m.Called(ctx, courseID)
	invite, _ := args.Get(0).(*models.Invite)
	return invite, args.Error(1)
}

func (m *mockService) ValidateInvite(ctx context.Context, token string) (enrollment.Grant, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(enrollment.Grant), args.Error(1)
}

func (m *mockService) RedeemInvite(ctx context.Context, token string, memberID primitive.ObjectID) error {
	return m.Called(ctx, token, memberID).Error(0)
}

func (m *mockService) GetCoursesForMember(ctx context.Context, memberID primitive.ObjectID) (*models.MemberCourses, error) {
	args := m.Called(ctx, memberID)
	courses, _ := args.Get(0).(*models.MemberCourses)
	return courses, args.Error(1)
}

func (m *mockService) GetCoursesForProfessor(ctx context.Context, accountID primitive.ObjectID) ([]models.Course, error) {
	args := m.Called(ctx, accountID)
	courses, _ := args.Get(0).([]models.Course)
	return courses, args.Error(1)
}

func (m *mockService) CreateCourse(ctx context.Context, accountID primitive.ObjectID, id, name, description string) (*models.Course, error) {
	args := m.Called(ctx, accountID, id, name, description)
	course, _ := args.Get(0).(*models.Course)
	return course, args.Error(1)
}

func (m *mockService) GetProfessor(ctx context.Context, professorID primitive.ObjectID) (*models.ProfessorDetails, error) {
	args := m.Called(ctx, professorID)
	details, _ := args.Get(0).(*models.ProfessorDetails)
	return details, args.Error(1)
}

func (m *mockService) DeleteProfessor(ctx context.Context, professorID primitive.ObjectID) error {
	return m.Called(ctx, professorID).Error(0)
}

func (m *mockService) Reconcile(ctx context.Context, courseID string) (*models.ReconcileReport, error) {
	args := m.Called(ctx, courseID)
	report, _ := args.Get(0).(*models.ReconcileReport)
	return report, args.Error(1)
}

func (m *mockService) ReconcileAll(ctx context.Context, parallelism int) ([]models.ReconcileReport, error) {
	args := m.Called(ctx, parallelism)
	reports, _ := args.Get(0).([]models.ReconcileReport)
	return reports, args.Error(1)
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendInvite(ctx context.Context, inv mailer.Invitation) error {
	return m.Called(ctx, inv).Error(0)
}
