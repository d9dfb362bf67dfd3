package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// User holds the structure for the user (account) collection in mongo. Accounts are
// provisioned by the identity service; this API only reads them and keeps ProfileRole
// in step with the linked member profile.
type User struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id"`
	Name        string             `json:"name" bson:"name"`
	Email       string             `json:"email" bson:"email"`
	ProfileID   primitive.ObjectID `json:"profileId" bson:"profileId"`
	ProfileRole string             `json:"profileRole" bson:"profileRole"`
}
