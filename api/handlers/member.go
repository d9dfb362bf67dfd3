package handlers

import (
	"net/http"

	"github.com/linesmerrill/course-roster-api/api"
)

// Member exists for dependency injection
type Member struct {
	Svc Service
}

// CoursesHandler returns the courses a member attends as a student and as a TA
func (m Member) CoursesHandler(w http.ResponseWriter, r *http.Request) {
	memberID, ok := objectIDVar(w, r, "studentId")
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	courses, err := m.Svc.GetCoursesForMember(ctx, memberID)
	if err != nil {
		engineError(w, "failed to get member courses", err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}
