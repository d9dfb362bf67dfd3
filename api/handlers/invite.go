package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/course-roster-api/api"
	"github.com/linesmerrill/course-roster-api/config"
)

// Invite exists for dependency injection
type Invite struct {
	Svc Service
}

type acceptInviteRequest struct {
	StudentID string `json:"studentId"`
}

// AcceptInviteHandler redeems an invite token, enrolling the member as a student
func (i Invite) AcceptInviteHandler(w http.ResponseWriter, r *http.Request) {
	var req acceptInviteRequest
	if err := decodeBody(r, &req); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	if req.StudentID == "" {
		config.ErrorStatus("studentId is required", http.StatusBadRequest, w, errors.New("missing studentId"))
		return
	}
	memberID, err := primitive.ObjectIDFromHex(req.StudentID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := i.Svc.RedeemInvite(ctx, mux.Vars(r)["token"], memberID); err != nil {
		engineError(w, "failed to accept invite", err)
		return
	}
	writeJSON(w, http.StatusOK, message("Invite accepted"))
}
