package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/course-roster-api/api"
	"github.com/linesmerrill/course-roster-api/config"
	"github.com/linesmerrill/course-roster-api/enrollment"
	"github.com/linesmerrill/course-roster-api/mailer"
	"github.com/linesmerrill/course-roster-api/models"
)

// Course exists for dependency injection
type Course struct {
	Svc     Service
	Mailer  mailer.InviteSender
	BaseURL string
}

type enrollRequest struct {
	IsTA bool `json:"isTA"`
}

type changeRoleRequest struct {
	NewRole string `json:"newRole"`
}

type generateLinkRequest struct {
	Emails []string `json:"emails"`
}

type generateLinkResponse struct {
	Token      string    `json:"token"`
	Link       string    `json:"link"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Emailed    int       `json:"emailed"`
	EmailError string    `json:"emailError,omitempty"`
}

type checkTokenResponse struct {
	Message   string     `json:"message"`
	CourseID  string     `json:"courseId"`
	Admin     bool       `json:"admin,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// RosterHandler returns the students and TAs of a course
func (c Course) RosterHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	roster, err := c.Svc.GetRoster(ctx, mux.Vars(r)["courseId"])
	if err != nil {
		engineError(w, "failed to get roster", err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

// UnenrolledHandler returns every member profile that is neither a student nor a TA of the course
func (c Course) UnenrolledHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	entries, err := c.Svc.GetUnenrolled(ctx, mux.Vars(r)["courseId"])
	if err != nil {
		engineError(w, "failed to get unenrolled members", err)
		return
	}
	if entries == nil {
		entries = []models.RosterEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// EnrollHandler adds a member to a course as a student, or as a TA when isTA is set
func (c Course) EnrollHandler(w http.ResponseWriter, r *http.Request) {
	memberID, ok := objectIDVar(w, r, "studentId")
	if !ok {
		return
	}
	var req enrollRequest
	if err := decodeBody(r, &req); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := c.Svc.Enroll(ctx, mux.Vars(r)["courseId"], memberID, req.IsTA); err != nil {
		engineError(w, "failed to enroll member", err)
		return
	}
	writeJSON(w, http.StatusOK, message("Member enrolled"))
}

// UnenrollHandler removes a member from a course. The role is read from the
// isTA query parameter, falling back to the request body.
func (c Course) UnenrollHandler(w http.ResponseWriter, r *http.Request) {
	memberID, ok := objectIDVar(w, r, "studentId")
	if !ok {
		return
	}
	var req enrollRequest
	if q := r.URL.Query().Get("isTA"); q != "" {
		isTA, err := strconv.ParseBool(q)
		if err != nil {
			config.ErrorStatus("invalid isTA query parameter", http.StatusBadRequest, w, err)
			return
		}
		req.IsTA = isTA
	} else if err := decodeBody(r, &req); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := c.Svc.Unenroll(ctx, mux.Vars(r)["courseId"], memberID, req.IsTA); err != nil {
		engineError(w, "failed to unenroll member", err)
		return
	}
	writeJSON(w, http.StatusOK, message("Member unenrolled"))
}

// ChangeRoleHandler moves a member between the student and TA lists of a course
func (c Course) ChangeRoleHandler(w http.ResponseWriter, r *http.Request) {
	memberID, ok := objectIDVar(w, r, "studentId")
	if !ok {
		return
	}
	var req changeRoleRequest
	if err := decodeBody(r, &req); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := c.Svc.ChangeRole(ctx, mux.Vars(r)["courseId"], memberID, req.NewRole); err != nil {
		engineError(w, "failed to change role", err)
		return
	}
	writeJSON(w, http.StatusOK, message("Role updated"))
}

// GenerateLinkHandler issues an invite token for the course and optionally
// mails the join link to the given addresses
func (c Course) GenerateLinkHandler(w http.ResponseWriter, r *http.Request) {
	var req generateLinkRequest
	if err := decodeBody(r, &req); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	courseID := mux.Vars(r)["courseId"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	invite, err := c.Svc.IssueInvite(ctx, courseID)
	if err != nil {
		engineError(w, "failed to generate invite", err)
		return
	}

	resp := generateLinkResponse{
		Token:     invite.Token,
		Link:      c.inviteLink(invite.Token),
		ExpiresAt: invite.ExpiresAt,
	}
	if len(req.Emails) > 0 && c.Mailer != nil {
		err := c.Mailer.SendInvite(ctx, mailer.Invitation{
			To:        req.Emails,
			CourseID:  courseID,
			Link:      resp.Link,
			ExpiresAt: invite.ExpiresAt,
		})
		if err != nil {
			zap.S().Warnw("failed to email invite", "courseId", courseID, "error", err)
			resp.EmailError = err.Error()
		} else {
			resp.Emailed = len(req.Emails)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (c Course) inviteLink(token string) string {
	return fmt.Sprintf("%s/invite/%s", strings.TrimRight(c.BaseURL, "/"), token)
}

// CheckTokenHandler validates an invite token without redeeming it
func (c Course) CheckTokenHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	grant, err := c.Svc.ValidateInvite(ctx, r.URL.Query().Get("token"))
	if err != nil {
		engineError(w, "failed to check token", err)
		return
	}
	switch grant.Kind {
	case enrollment.GrantAdmin:
		writeJSON(w, http.StatusOK, checkTokenResponse{Message: "Token is valid", Admin: true})
	case enrollment.GrantCourse:
		expiresAt := grant.ExpiresAt
		writeJSON(w, http.StatusOK, checkTokenResponse{Message: "Token is valid", CourseID: grant.CourseID, ExpiresAt: &expiresAt})
	default:
		config.ErrorStatus("token not valid or expired", http.StatusNotFound, w, enrollment.ErrInviteInvalid)
	}
}

// ReconcileHandler repairs the membership references of a single course
func (c Course) ReconcileHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	report, err := c.Svc.Reconcile(ctx, mux.Vars(r)["courseId"])
	if err != nil {
		engineError(w, "failed to reconcile course", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ReconcileAllHandler reconciles every course and strips references to courses
// that no longer exist. Only courses that needed repairs are reported.
func (c Course) ReconcileAllHandler(w http.ResponseWriter, r *http.Request) {
	parallelism := enrollment.DefaultReconcileParallelism
	if q := r.URL.Query().Get("parallelism"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			config.ErrorStatus("invalid parallelism query parameter", http.StatusBadRequest, w, fmt.Errorf("parallelism %q", q))
			return
		}
		parallelism = n
	}

	reports, err := c.Svc.ReconcileAll(r.Context(), parallelism)
	if err != nil {
		engineError(w, "failed to reconcile courses", err)
		return
	}
	if reports == nil {
		reports = []models.ReconcileReport{}
	}
	writeJSON(w, http.StatusOK, reports)
}
