package models

import "time"

// Invite represents the structure of an invite document in mongo. Invites are
// never updated after insert; a TTL index on expiresAt lets mongo remove them.
type Invite struct {
	Token     string    `json:"token" bson:"token"`
	CourseID  string    `json:"courseId" bson:"courseId"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt" bson:"expiresAt"`
}

// IsValidAt reports whether the invite can still be redeemed at t
func (i Invite) IsValidAt(t time.Time) bool {
	return t.Before(i.ExpiresAt)
}
