package handlers

import (
	"net/http"

	"github.com/linesmerrill/course-roster-api/api"
	"github.com/linesmerrill/course-roster-api/config"
	"github.com/linesmerrill/course-roster-api/models"
)

// Professor exists for dependency injection
type Professor struct {
	Svc Service
}

type createCourseRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CoursesHandler returns the courses owned by the professor behind an account
func (p Professor) CoursesHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := objectIDVar(w, r, "accountId")
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	courses, err := p.Svc.GetCoursesForProfessor(ctx, accountID)
	if err != nil {
		engineError(w, "failed to get professor courses", err)
		return
	}
	if courses == nil {
		courses = []models.Course{}
	}
	writeJSON(w, http.StatusOK, courses)
}

// CreateCourseHandler creates a course owned by the professor behind an account
func (p Professor) CreateCourseHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := objectIDVar(w, r, "accountId")
	if !ok {
		return
	}
	var req createCourseRequest
	if err := decodeBody(r, &req); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	course, err := p.Svc.CreateCourse(ctx, accountID, req.ID, req.Name, req.Description)
	if err != nil {
		engineError(w, "failed to create course", err)
		return
	}
	writeJSON(w, http.StatusCreated, course)
}

// ProfessorHandler returns a professor profile with its account and courses
func (p Professor) ProfessorHandler(w http.ResponseWriter, r *http.Request) {
	professorID, ok := objectIDVar(w, r, "professorId")
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	details, err := p.Svc.GetProfessor(ctx, professorID)
	if err != nil {
		engineError(w, "failed to get professor", err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// DeleteProfessorHandler deletes a professor and every course they own
func (p Professor) DeleteProfessorHandler(w http.ResponseWriter, r *http.Request) {
	professorID, ok := objectIDVar(w, r, "professorId")
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := p.Svc.DeleteProfessor(ctx, professorID); err != nil {
		engineError(w, "failed to delete professor", err)
		return
	}
	writeJSON(w, http.StatusOK, message("Professor deleted"))
}
