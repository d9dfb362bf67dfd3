package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/course-roster-api/enrollment"
	"github.com/linesmerrill/course-roster-api/mailer"
	"github.com/linesmerrill/course-roster-api/models"
)

const validToken = "0123456789abcdef0123456789abcdef"

func TestCourse_RosterHandler(t *testing.T) {
	svc := setup(t)
	userID := primitive.NewObjectID()
	svc.On("GetRoster", mock.Anything, "CS101").Return(&models.Roster{
		Students: []models.RosterEntry{{ID: memberID, Role: models.RoleStudent, Name: "Ada", Email: "ada@example.edu", UserID: userID}},
		TAs:      []models.RosterEntry{},
	}, nil)

	req, _ := http.NewRequest("GET", "/api/v1/courses/CS101/students", nil)
	response := executeRequest(req)
	checkResponseCode(t, http.StatusOK, response.Code)

	var roster models.Roster
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &roster))
	require.Len(t, roster.Students, 1)
	assert.Equal(t, memberID, roster.Students[0].ID)
	assert.Equal(t, "Ada", roster.Students[0].Name)
	assert.Empty(t, roster.TAs)
}

func TestCourse_RosterHandlerNotFound(t *testing.T) {
	svc := setup(t)
	svc.On("GetRoster", mock.Anything, "NOPE").Return(nil, enrollment.ErrNotFound)

	req, _ := http.NewRequest("GET", "/api/v1/courses/NOPE/students", nil)
	response := executeRequest(req)
	checkResponseCode(t, http.StatusNotFound, response.Code)
	assert.Contains(t, response.Body.String(), "failed to get roster")
}

func TestCourse_UnenrolledHandlerEmpty(t *testing.T) {
	svc := setup(t)
	svc.On("GetUnenrolled", mock.Anything, "CS101").Return(nil, nil)

	req, _ := http.NewRequest("GET", "/api/v1/courses/CS101/new-students", nil)
	response := executeRequest(req)
	checkResponseCode(t, http.StatusOK, response.Code)
	assert.JSONEq(t, `[]`, response.Body.String())
}

func TestCourse_EnrollHandler(t *testing.T) {
	svc := setup(t)
	svc.On("Enroll", mock.Anything, "CS101", memberID, true).Return(nil).Once()
	svc.On("Enroll", mock.Anything, "CS101", memberID, false).Return(nil).Once()

	req, _ := http.NewRequest("POST", "/api/v1/courses/CS101/students/"+memberID.Hex(), strings.NewReader(`{"isTA": true}`))
	checkResponseCode(t, http.StatusOK, executeRequest(req).Code)

	// no body enrolls as a student
	req, _ = http.NewRequest("POST", "/api/v1/courses/CS101/students/"+memberID.Hex(), nil)
	checkResponseCode(t, http.StatusOK, executeRequest(req).Code)
}

func TestCourse_EnrollHandlerErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not found", enrollment.ErrNotFound, http.StatusNotFound},
		{"other role held", enrollment.ErrInvariantViolation, http.StatusConflict},
		{"storage", &enrollment.StorageError{Op: "update student", Err: errors.New("boom")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := setup(t)
			svc.On("Enroll", mock.Anything, "CS101", memberID, false).Return(tt.err)

			req, _ := http.NewRequest("POST", "/api/v1/courses/CS101/students/"+memberID.Hex(), strings.NewReader(`{}`))
			checkResponseCode(t, tt.code, executeRequest(req).Code)
		})
	}
}

func TestCourse_EnrollHandlerBadBody(t *testing.T) {
	setup(t)
	req, _ := http.NewRequest("POST", "/api/v1/courses/CS101/students/"+memberID.Hex(), strings.NewReader(`{"isTA": "yes"`))
	checkResponseCode(t, http.StatusBadRequest, executeRequest(req).Code)
}

func TestCourse_UnenrollHandler(t *testing.T) {
	svc := setup(t)
	svc.On("Unenroll", mock.Anything, "CS101", memberID, true).Return(nil).Twice()

	req, _ := http.NewRequest("DELETE", "/api/v1/courses/CS101/students/"+memberID.Hex()+"?isTA=true", nil)
	checkResponseCode(t, http.StatusOK, executeRequest(req).Code)

	req, _ = http.NewRequest("DELETE", "/api/v1/courses/CS101/students/"+memberID.Hex(), strings.NewReader(`{"isTA": true}`))
	checkResponseCode(t, http.StatusOK, executeRequest(req).Code)

	req, _ = http.NewRequest("DELETE", "/api/v1/courses/CS101/students/"+memberID.Hex()+"?isTA=maybe", nil)
	checkResponseCode(t, http.StatusBadRequest, executeRequest(req).Code)
}

func TestCourse_ChangeRoleHandler(t *testing.T) {
	svc := setup(t)
	svc.On("ChangeRole", mock.Anything, "CS101", memberID, models.RoleTA).Return(nil)
	svc.On("ChangeRole", mock.Anything, "CS101", memberID, "Dean").Return(enrollment.ErrInvalidInput)

	req, _ := http.NewRequest("PUT", "/api/v1/courses/CS101/students/"+memberID.Hex()+"/role", strings.NewReader(`{"newRole": "TA"}`))
	checkResponseCode(t, http.StatusOK, executeRequest(req).Code)

	req, _ = http.NewRequest("PUT", "/api/v1/courses/CS101/students/"+memberID.Hex()+"/role", strings.NewReader(`{"newRole": "Dean"}`))
	checkResponseCode(t, http.StatusBadRequest, executeRequest(req).Code)
}

func TestCourse_GenerateLinkHandler(t *testing.T) {
	svc := setup(t)
	expires := time.Date(2024, 9, 9, 9, 0, 0, 0, time.UTC)
	svc.On("IssueInvite", mock.Anything, "CS101").Return(&models.Invite{Token: validToken, CourseID: "CS101", ExpiresAt: expires}, nil)

	req, _ := http.NewRequest("POST", "/api/v1/courses/CS101/generate-link", nil)
	response := executeRequest(req)
	checkResponseCode(t, http.StatusOK, response.Code)

	var body generateLinkResponse
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &body))
	assert.Equal(t, validToken, body.Token)
	assert.Equal(t, "https://roster.test/invite/"+validToken, body.Link)
	assert.True(t, expires.Equal(body.ExpiresAt))
	assert.Zero(t, body.Emailed)
	svc.AssertNotCalled(t, "ValidateInvite", mock.Anything, mock.Anything)
}

func TestCourse_GenerateLinkHandlerEmails(t *testing.T) {
	svc := setup(t)
	m := &mockMailer{}
	a.Mailer = m
	a.Router = a.New()

	expires := time.Date(2024, 9, 9, 9, 0, 0, 0, time.UTC)
	svc.On("IssueInvite", mock.Anything, "CS101").Return(&models.Invite{Token: validToken, CourseID: "CS101", ExpiresAt: expires}, nil)
	m.On("SendInvite", mock.Anything, mock.MatchedBy(func(inv mailer.Invitation) bool {
		return inv.CourseID == "CS101" && len(inv.To) == 2 && inv.Link == "https://roster.test/invite/"+validToken &&
			inv.ExpiresAt.Equal(expires)
	})).Return(nil).Once()
	m.On("SendInvite", mock.Anything, mock.Anything).Return(errors.New("sendgrid returned 401")).Once()

	req, _ := http.NewRequest("POST", "/api/v1/courses/CS101/generate-link", strings.NewReader(`{"emails": ["ada@example.edu", "alan@example.edu"]}`))
	response := executeRequest(req)
	checkResponseCode(t, http.StatusOK, response.Code)
	var body generateLinkResponse
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Emailed)
	assert.Empty(t, body.EmailError)

	// a mail failure still hands back the link
	req, _ = http.NewRequest("POST", "/api/v1/courses/CS101/generate-link", strings.NewReader(`{"emails": ["ada@example.edu"]}`))
	response = executeRequest(req)
	checkResponseCode(t, http.StatusOK, response.Code)
	body = generateLinkResponse{}
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &body))
	assert.Equal(t, validToken, body.Token)
	assert.Zero(t, body.Emailed)
	assert.Contains(t, body.EmailError, "401")
	m.AssertExpectations(t)
}

func TestCourse_GenerateLinkHandlerUnknownCourse(t *testing.T) {
	svc := setup(t)
	svc.On("IssueInvite", mock.Anything, "NOPE").Return(nil, enrollment.ErrNotFound)

	req, _ := http.NewRequest("POST", "/api/v1/courses/NOPE/generate-link", nil)
	checkResponseCode(t, http.StatusNotFound, executeRequest(req).Code)
}

func TestCourse_CheckTokenHandler(t *testing.T) {
	svc := setup(t)
	expires := time.Date(2024, 9, 9, 9, 0, 0, 0, time.UTC)
	svc.On("ValidateInvite", mock.Anything, validToken).Return(enrollment.Grant{Kind: enrollment.GrantCourse, CourseID: "CS101", ExpiresAt: expires}, nil)
	svc.On("ValidateInvite", mock.Anything, "admin-secret").Return(enrollment.Grant{Kind: enrollment.GrantAdmin}, nil)
	svc.On("ValidateInvite", mock.Anything, "expired").Return(enrollment.Grant{}, enrollment.ErrInviteInvalid)
	svc.On("ValidateInvite", mock.Anything, "").Return(enrollment.Grant{}, nil)

	req, _ := http.NewRequest("GET", "/api/v1/courses/check-token?token="+validToken, nil)
	response := executeRequest(req)
	checkResponseCode(t, http.StatusOK, response.Code)
	var body checkTokenResponse
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &body))
	assert.Equal(t, "Token is valid", body.Message)
	assert.Equal(t, "CS101", body.CourseID)
	assert.False(t, body.Admin)

	req, _ = http.NewRequest("GET", "/api/v1/courses/check-token?token=admin-secret", nil)
	response = executeRequest(req)
	checkResponseCode(t, http.StatusOK, response.Code)
	body = checkTokenResponse{}
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &body))
	assert.True(t, body.Admin)
	assert.Empty(t, body.CourseID)

	req, _ = http.NewRequest("GET", "/api/v1/courses/check-token?token=expired", nil)
	checkResponseCode(t, http.StatusNotFound, executeRequest(req).Code)

	req, _ = http.NewRequest("GET", "/api/v1/courses/check-token", nil)
	checkResponseCode(t, http.StatusNotFound, executeRequest(req).Code)
}

func TestCourse_ReconcileHandler(t *testing.T) {
	svc := setup(t)
	svc.On("Reconcile", mock.Anything, "CS101").Return(&models.ReconcileReport{CourseID: "CS101", RepairedMembers: []primitive.ObjectID{memberID}}, nil)

	req, _ := http.NewRequest("POST", "/api/v1/courses/CS101/reconcile", nil)
	response := executeRequest(req)
	checkResponseCode(t, http.StatusOK, response.Code)

	var report models.ReconcileReport
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &report))
	assert.Equal(t, []primitive.ObjectID{memberID}, report.RepairedMembers)
}

func TestCourse_ReconcileAllHandler(t *testing.T) {
	svc := setup(t)
	svc.On("ReconcileAll", mock.Anything, enrollment.DefaultReconcileParallelism).Return(nil, nil)
	svc.On("ReconcileAll", mock.Anything, 2).Return([]models.ReconcileReport{{CourseID: "GONE"}}, nil)

	req, _ := http.NewRequest("POST", "/api/v1/reconcile", nil)
	response := executeRequest(req)
	checkResponseCode(t, http.StatusOK, response.Code)
	assert.JSONEq(t, `[]`, response.Body.String())

	req, _ = http.NewRequest("POST", "/api/v1/reconcile?parallelism=2", nil)
	response = executeRequest(req)
	checkResponseCode(t, http.StatusOK, response.Code)
	assert.Contains(t, response.Body.String(), `"GONE"`)

	req, _ = http.NewRequest("POST", "/api/v1/reconcile?parallelism=0", nil)
	checkResponseCode(t, http.StatusBadRequest, executeRequest(req).Code)
}
