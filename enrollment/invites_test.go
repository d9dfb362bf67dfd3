package enrollment_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/course-roster-api/enrollment"
	"github.com/linesmerrill/course-roster-api/models"
)

const day = 24 * time.Hour

func TestIssueInvite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	prof, _ := f.professor("p")
	f.course("CS101", prof)

	invite, err := f.engine.IssueInvite(ctx, "CS101")
	require.NoError(t, err)
	assert.Len(t, invite.Token, 32)
	_, err = hex.DecodeString(invite.Token)
	assert.NoError(t, err)
	assert.Equal(t, "CS101", invite.CourseID)
	assert.True(t, invite.CreatedAt.Equal(start))
	assert.True(t, invite.ExpiresAt.Equal(start.Add(7*day)))

	grant, err := f.engine.ValidateInvite(ctx, invite.Token)
	require.NoError(t, err)
	assert.Equal(t, enrollment.GrantCourse, grant.Kind)
	assert.Equal(t, "CS101", grant.CourseID)
	assert.True(t, grant.ExpiresAt.Equal(invite.ExpiresAt))

	other, err := f.engine.IssueInvite(ctx, "CS101")
	require.NoError(t, err)
	assert.NotEqual(t, invite.Token, other.Token)
}

func TestIssueInvite_UnknownCourse(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.IssueInvite(context.Background(), "NOPE")
	assert.ErrorIs(t, err, enrollment.ErrNotFound)
	assert.Equal(t, 0, f.db.C("invites").Len())
}

func TestIssueInvite_TokenCollision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	prof, _ := f.professor("p")
	f.course("CS101", prof)
	first := bytes.Repeat([]byte{0xab}, 16)
	second := bytes.Repeat([]byte{0xcd}, 16)

	f.engine.Random = bytes.NewReader(first)
	invite, err := f.engine.IssueInvite(ctx, "CS101")
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(first), invite.Token)

	f.engine.Random = io.MultiReader(bytes.NewReader(first), bytes.NewReader(second))
	invite, err = f.engine.IssueInvite(ctx, "CS101")
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(second), invite.Token)

	f.engine.Random = bytes.NewReader(bytes.Repeat(first, 3))
	_, err = f.engine.IssueInvite(ctx, "CS101")
	assert.ErrorIs(t, err, enrollment.ErrStorage)
	assert.Equal(t, 2, f.db.C("invites").Len())
}

func TestValidateInvite_Expiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	prof, _ := f.professor("p")
	f.course("CS101", prof)
	invite, err := f.engine.IssueInvite(ctx, "CS101")
	require.NoError(t, err)
	token := invite.Token

	f.now = start.Add(6 * day)
	grant, err := f.engine.ValidateInvite(ctx, token)
	require.NoError(t, err)
	assert.True(t, grant.Valid())

	f.now = start.Add(8 * day)
	grant, err = f.engine.ValidateInvite(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, enrollment.GrantInvalid, grant.Kind)
	assert.False(t, grant.Valid())
}

func TestValidateInvite_BadTokens(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, token := range []string{"", "   ", "not-hex", "abcd"} {
		_, err := f.engine.ValidateInvite(ctx, token)
		assert.ErrorIs(t, err, enrollment.ErrInviteInvalid, "token %q", token)
	}

	grant, err := f.engine.ValidateInvite(ctx, hex.EncodeToString(make([]byte, 16)))
	require.NoError(t, err)
	assert.Equal(t, enrollment.GrantInvalid, grant.Kind)
}

func TestValidateInvite_StorageError(t *testing.T) {
	f := newFixture(t)
	f.db.C("invites").FailNext("FindOne", assert.AnError)

	_, err := f.engine.ValidateInvite(context.Background(), hex.EncodeToString(make([]byte, 16)))
	assert.ErrorIs(t, err, enrollment.ErrStorage)
}

func TestValidateInvite_AdminBypass(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	prof, _ := f.professor("p")
	f.course("CS101", prof)
	f.engine.AdminToken = "staff-override"

	grant, err := f.engine.ValidateInvite(ctx, "staff-override")
	require.NoError(t, err)
	assert.Equal(t, enrollment.GrantAdmin, grant.Kind)
	assert.Empty(t, grant.CourseID)
	assert.Equal(t, "admin", grant.Kind.String())

	// the bypass wins even over a registered token of the same value
	invite, err := f.engine.IssueInvite(ctx, "CS101")
	require.NoError(t, err)
	token := invite.Token
	f.engine.AdminToken = token
	grant, err = f.engine.ValidateInvite(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, enrollment.GrantAdmin, grant.Kind)
	assert.Empty(t, grant.CourseID)

	f.engine.AdminToken = ""
	grant, err = f.engine.ValidateInvite(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, enrollment.GrantCourse, grant.Kind)
}

func TestRedeemInvite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	prof, _ := f.professor("p")
	f.course("CS101", prof)
	a := f.member("a")
	b := f.member("b")
	invite, err := f.engine.IssueInvite(ctx, "CS101")
	require.NoError(t, err)
	token := invite.Token

	require.NoError(t, f.engine.RedeemInvite(ctx, token, a))
	require.NoError(t, f.engine.RedeemInvite(ctx, token, b))
	require.NoError(t, f.engine.RedeemInvite(ctx, token, a))

	assert.Equal(t, []primitive.ObjectID{a, b}, f.getCourse(t, "CS101").Students)
	assert.Equal(t, []string{"CS101"}, f.getStudent(t, a).Courses)
	assert.Equal(t, []string{"CS101"}, f.getStudent(t, b).Courses)
}

func TestRedeemInvite_HeldAsTA(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	prof, _ := f.professor("p")
	f.course("CS101", prof)
	s := f.member("s")
	require.NoError(t, f.engine.Enroll(ctx, "CS101", s, true))
	invite, err := f.engine.IssueInvite(ctx, "CS101")
	require.NoError(t, err)
	token := invite.Token

	require.NoError(t, f.engine.RedeemInvite(ctx, token, s))

	c := f.getCourse(t, "CS101")
	assert.Empty(t, c.Students)
	assert.Equal(t, []primitive.ObjectID{s}, c.TAs)
	assert.Equal(t, models.RoleTA, f.getStudent(t, s).Role)
}

func TestRedeemInvite_Rejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	prof, _ := f.professor("p")
	f.course("CS101", prof)
	s := f.member("s")
	invite, err := f.engine.IssueInvite(ctx, "CS101")
	require.NoError(t, err)
	token := invite.Token
	f.engine.AdminToken = "staff-override"

	f.now = start.Add(8 * day)
	assert.ErrorIs(t, f.engine.RedeemInvite(ctx, token, s), enrollment.ErrInviteInvalid)
	assert.ErrorIs(t, f.engine.RedeemInvite(ctx, "staff-override", s), enrollment.ErrInviteInvalid)
	assert.ErrorIs(t, f.engine.RedeemInvite(ctx, "", s), enrollment.ErrInviteInvalid)

	f.now = start
	assert.ErrorIs(t, f.engine.RedeemInvite(ctx, token, primitive.NewObjectID()), enrollment.ErrNotFound)
	assert.Empty(t, f.getCourse(t, "CS101").Students)
}

func TestSweepExpiredInvites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	prof, _ := f.professor("p")
	f.course("CS101", prof)
	invite, err := f.engine.IssueInvite(ctx, "CS101")
	require.NoError(t, err)
	old := invite.Token
	f.now = start.Add(3 * day)
	invite, err = f.engine.IssueInvite(ctx, "CS101")
	require.NoError(t, err)
	fresh := invite.Token

	f.now = start.Add(8 * day)
	n, err := f.engine.SweepExpiredInvites(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, f.db.C("invites").Len())

	grant, err := f.engine.ValidateInvite(ctx, fresh)
	require.NoError(t, err)
	assert.True(t, grant.Valid())
	grant, err = f.engine.ValidateInvite(ctx, old)
	require.NoError(t, err)
	assert.False(t, grant.Valid())
}
