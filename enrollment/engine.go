// Package enrollment keeps course rosters and member profiles consistent. A
// membership is stored twice, once in the course's students/tas lists and once in
// the member profile's courses/taCourses sets, and the store only guarantees
// atomic writes per document. Every operation checks the one-role-per-course
// invariant on both loaded documents, then writes only the changed set entries
// with $addToSet/$pull, course before member, and finally derives the role label
// from the stored member. Targeted writes keep concurrent operations on the same
// course from overwriting each other. A failure between the writes is reported as
// a StorageError and is repaired by retrying (all operations are idempotent) or
// by Reconcile.
package enrollment

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/linesmerrill/course-roster-api/databases"
	"github.com/linesmerrill/course-roster-api/models"
)

// DefaultInviteTTL is how long an issued invite stays redeemable
const DefaultInviteTTL = 7 * 24 * time.Hour

// Engine implements enrollment, role changes, invites and the roster projections
type Engine struct {
	Courses    databases.CourseDatabase
	Students   databases.StudentDatabase
	Professors databases.ProfessorDatabase
	Users      databases.UserDatabase
	Invites    databases.InviteDatabase

	// AdminToken, when set, validates as GrantAdmin without a registry lookup
	AdminToken string
	InviteTTL  time.Duration

	// Now and Random default to time.Now and crypto/rand
	Now    func() time.Time
	Random io.Reader
}

// New wires an engine to the collections of db
func New(db databases.DatabaseHelper) *Engine {
	return &Engine{
		Courses:    databases.NewCourseDatabase(db),
		Students:   databases.NewStudentDatabase(db),
		Professors: databases.NewProfessorDatabase(db),
		Users:      databases.NewUserDatabase(db),
		Invites:    databases.NewInviteDatabase(db),
		InviteTTL:  DefaultInviteTTL,
	}
}

// EnsureIndexes creates the unique and TTL indexes the engine relies on
func (e *Engine) EnsureIndexes(ctx context.Context) error {
	for name, ensure := range map[string]func(context.Context) error{
		"courses":    e.Courses.EnsureIndexes,
		"students":   e.Students.EnsureIndexes,
		"professors": e.Professors.EnsureIndexes,
		"invites":    e.Invites.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			return storageErr("create indexes on "+name, err)
		}
	}
	return nil
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) random() io.Reader {
	if e.Random != nil {
		return e.Random
	}
	return rand.Reader
}

func (e *Engine) inviteTTL() time.Duration {
	if e.InviteTTL > 0 {
		return e.InviteTTL
	}
	return DefaultInviteTTL
}

func (e *Engine) findCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := e.Courses.FindOne(ctx, bson.M{"_id": courseID})
	if err != nil {
		return nil, lookupErr("course", courseID, err)
	}
	return course, nil
}

func (e *Engine) findStudent(ctx context.Context, memberID primitive.ObjectID) (*models.Student, error) {
	student, err := e.Students.FindOne(ctx, bson.M{"_id": memberID})
	if err != nil {
		return nil, lookupErr("student", memberID.Hex(), err)
	}
	return student, nil
}

// findAccount returns the account linked to a profile, or nil when the identity
// directory has no such account
func (e *Engine) findAccount(ctx context.Context, profileID primitive.ObjectID) (*models.User, error) {
	user, err := e.Users.FindOne(ctx, bson.M{"profileId": profileID})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("find account", err)
	}
	return user, nil
}

// syncLabel re-reads the member, stores the role label its TA courses imply and
// pushes that label to the account whenever the account disagrees. It returns
// the account it pushed to, or nil.
func (e *Engine) syncLabel(ctx context.Context, memberID primitive.ObjectID) (*models.Student, *models.User, error) {
	member, err := e.findStudent(ctx, memberID)
	if err != nil {
		return nil, nil, err
	}
	derived := member.DerivedRole()
	changed := member.Role != derived
	if changed {
		if _, err := e.Students.UpdateOne(ctx, bson.M{"_id": member.ID}, bson.M{"$set": bson.M{"role": derived}}); err != nil {
			return nil, nil, storageErr("update student role", err)
		}
		zap.S().Infow("member role label changed",
			"memberId", member.ID.Hex(),
			"from", member.Role,
			"to", derived)
		member.Role = derived
	}

	account, err := e.findAccount(ctx, member.ID)
	if err != nil {
		return nil, nil, err
	}
	if account == nil {
		if changed {
			zap.S().Warnw("no account linked to member profile, role label not propagated",
				"memberId", member.ID.Hex(),
				"role", member.Role)
		}
		return member, nil, nil
	}
	if account.ProfileRole == member.Role {
		return member, nil, nil
	}
	if err := e.pushRole(ctx, member, account); err != nil {
		return nil, nil, err
	}
	return member, account, nil
}

// pushRole mirrors a member's label onto its account
func (e *Engine) pushRole(ctx context.Context, member *models.Student, account *models.User) error {
	_, err := e.Users.UpdateOne(ctx, bson.M{"_id": account.ID}, bson.M{"$set": bson.M{"profileRole": member.Role}})
	if err != nil {
		zap.S().Errorw("failed to propagate role label",
			"userId", account.ID.Hex(),
			"role", member.Role,
			"error", err)
		return storageErr("update account role", err)
	}
	return nil
}

// stage adds one field to an update operator document, creating the operator on first use
func stage(update bson.M, op, field string, value interface{}) {
	fields, ok := update[op].(bson.M)
	if !ok {
		fields = bson.M{}
		update[op] = fields
	}
	fields[field] = value
}

func appendUnique[T comparable](list []T, v T) ([]T, bool) {
	if slices.Contains(list, v) {
		return list, false
	}
	return append(list, v), true
}

func without[T comparable](list []T, v T) ([]T, bool) {
	if !slices.Contains(list, v) {
		return list, false
	}
	out := make([]T, 0, len(list))
	for _, item := range list {
		if item != v {
			out = append(out, item)
		}
	}
	return out, true
}
