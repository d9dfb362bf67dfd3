package enrollment

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/linesmerrill/course-roster-api/models"
)

const (
	// tokenBytes gives invite tokens 128 bits of entropy
	tokenBytes = 16
	// maxTokenAttempts bounds retries on a token collision with the unique index
	maxTokenAttempts = 3
)

// GrantKind is the outcome of validating an invite token
type GrantKind int

// Validation outcomes. Admin bypass is decided before the registry is consulted,
// so a token is never both.
const (
	GrantInvalid GrantKind = iota
	GrantCourse
	GrantAdmin
)

func (k GrantKind) String() string {
	switch k {
	case GrantCourse:
		return "course"
	case GrantAdmin:
		return "admin"
	default:
		return "invalid"
	}
}

// Grant is what a validated token gives access to. CourseID is empty unless
// Kind is GrantCourse.
type Grant struct {
	Kind      GrantKind
	CourseID  string
	ExpiresAt time.Time
}

// Valid reports whether the token was accepted
func (g Grant) Valid() bool {
	return g.Kind != GrantInvalid
}

func newToken(r io.Reader) (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func wellFormedToken(token string) bool {
	if len(token) != tokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}

// IssueInvite creates a reusable invite link for the course and returns the
// stored invite
func (e *Engine) IssueInvite(ctx context.Context, courseID string) (*models.Invite, error) {
	if _, err := e.findCourse(ctx, courseID); err != nil {
		return nil, err
	}
	now := e.now()
	for attempt := 1; attempt <= maxTokenAttempts; attempt++ {
		token, err := newToken(e.random())
		if err != nil {
			return nil, fmt.Errorf("generate invite token: %w", err)
		}
		invite := models.Invite{
			Token:     token,
			CourseID:  courseID,
			CreatedAt: now,
			ExpiresAt: now.Add(e.inviteTTL()),
		}
		err = e.Invites.InsertOne(ctx, invite)
		if err == nil {
			zap.S().Infow("invite issued", "courseId", courseID, "expiresAt", invite.ExpiresAt)
			return &invite, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, storageErr("insert invite", err)
		}
		zap.S().Warnw("invite token collision, regenerating", "courseId", courseID, "attempt", attempt)
	}
	return nil, storageErr("insert invite", errors.New("could not generate a unique token"))
}

// ValidateInvite resolves a token. An unknown or expired token is reported as a
// GrantInvalid result, not an error; a malformed one returns ErrInviteInvalid.
func (e *Engine) ValidateInvite(ctx context.Context, token string) (Grant, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Grant{}, fmt.Errorf("%w: empty token", ErrInviteInvalid)
	}
	if e.AdminToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(e.AdminToken)) == 1 {
		return Grant{Kind: GrantAdmin}, nil
	}
	if !wellFormedToken(token) {
		return Grant{}, fmt.Errorf("%w: malformed token", ErrInviteInvalid)
	}

	invite, err := e.Invites.FindOne(ctx, bson.M{"token": token})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Grant{Kind: GrantInvalid}, nil
	}
	if err != nil {
		return Grant{}, storageErr("find invite", err)
	}
	// the TTL sweep lags, so expiry is checked here
	if !invite.IsValidAt(e.now()) {
		return Grant{Kind: GrantInvalid}, nil
	}
	return Grant{Kind: GrantCourse, CourseID: invite.CourseID, ExpiresAt: invite.ExpiresAt}, nil
}

// RedeemInvite enrolls the member as a student of the invite's course. Members
// already in the course under either role are left unchanged.
func (e *Engine) RedeemInvite(ctx context.Context, token string, memberID primitive.ObjectID) error {
	grant, err := e.ValidateInvite(ctx, token)
	if err != nil {
		return err
	}
	if grant.Kind != GrantCourse {
		return fmt.Errorf("%w: token grants no course", ErrInviteInvalid)
	}
	ed, err := e.loadEdge(ctx, grant.CourseID, memberID)
	if err != nil {
		return err
	}
	if !ed.holds(models.RoleTA) {
		ed.add(models.RoleStudent)
	}
	return e.commit(ctx, ed)
}

// SweepExpiredInvites deletes invites past their expiry and returns how many went
func (e *Engine) SweepExpiredInvites(ctx context.Context) (int64, error) {
	n, err := e.Invites.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lte": e.now()}})
	if err != nil {
		return 0, storageErr("delete expired invites", err)
	}
	return n, nil
}
