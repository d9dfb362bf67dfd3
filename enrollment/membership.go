package enrollment

import (
	"context"
	"fmt"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linesmerrill/course-roster-api/models"
)

// edge is one course<->member relationship loaded from both documents. Callers
// never touch the lists directly; they go through add and remove so both sides
// change together and each change is staged as a targeted update.
type edge struct {
	course       *models.Course
	member       *models.Student
	courseUpdate bson.M
	memberUpdate bson.M
}

func (e *Engine) loadEdge(ctx context.Context, courseID string, memberID primitive.ObjectID) (*edge, error) {
	course, err := e.findCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	member, err := e.findStudent(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return &edge{course: course, member: member, courseUpdate: bson.M{}, memberUpdate: bson.M{}}, nil
}

// holds reports whether either side records the member under role
func (ed *edge) holds(role string) bool {
	id, courseID := ed.member.ID, ed.course.ID
	if role == models.RoleTA {
		return slices.Contains(ed.course.TAs, id) || slices.Contains(ed.member.TACourses, courseID)
	}
	return slices.Contains(ed.course.Students, id) || slices.Contains(ed.member.Courses, courseID)
}

// roleFields names the course list and member set that record role
func roleFields(role string) (courseField, memberField string) {
	if role == models.RoleTA {
		return "tas", "taCourses"
	}
	return "students", "courses"
}

func (ed *edge) lists(role string) (*[]primitive.ObjectID, *[]string) {
	if role == models.RoleTA {
		return &ed.course.TAs, &ed.member.TACourses
	}
	return &ed.course.Students, &ed.member.Courses
}

func (ed *edge) add(role string) {
	var c, m bool
	onCourse, onMember := ed.lists(role)
	*onCourse, c = appendUnique(*onCourse, ed.member.ID)
	*onMember, m = appendUnique(*onMember, ed.course.ID)
	courseField, memberField := roleFields(role)
	if c {
		stage(ed.courseUpdate, "$addToSet", courseField, ed.member.ID)
	}
	if m {
		stage(ed.memberUpdate, "$addToSet", memberField, ed.course.ID)
	}
}

func (ed *edge) remove(role string) {
	var c, m bool
	onCourse, onMember := ed.lists(role)
	*onCourse, c = without(*onCourse, ed.member.ID)
	*onMember, m = without(*onMember, ed.course.ID)
	courseField, memberField := roleFields(role)
	if c {
		stage(ed.courseUpdate, "$pull", courseField, ed.member.ID)
	}
	if m {
		stage(ed.memberUpdate, "$pull", memberField, ed.course.ID)
	}
}

// check enforces Student XOR TA on both documents before anything is written
func (ed *edge) check() error {
	id, courseID := ed.member.ID, ed.course.ID
	if slices.Contains(ed.course.Students, id) && slices.Contains(ed.course.TAs, id) {
		return fmt.Errorf("%w: student %s listed as both student and TA of course %s", ErrInvariantViolation, id.Hex(), courseID)
	}
	if slices.Contains(ed.member.Courses, courseID) && slices.Contains(ed.member.TACourses, courseID) {
		return fmt.Errorf("%w: course %s in both course sets of student %s", ErrInvariantViolation, courseID, id.Hex())
	}
	return nil
}

// commit applies the staged course update, then the staged member update, then
// syncs the label from what the member document holds afterwards. Entries that
// did not change are not written, which is what makes repeated calls no-ops.
func (e *Engine) commit(ctx context.Context, ed *edge) error {
	if err := ed.check(); err != nil {
		return err
	}

	if len(ed.courseUpdate) > 0 {
		matched, err := e.Courses.UpdateOne(ctx, bson.M{"_id": ed.course.ID}, ed.courseUpdate)
		if err != nil {
			zap.S().Errorw("failed to update course side of membership",
				"courseId", ed.course.ID,
				"memberId", ed.member.ID.Hex(),
				"error", err)
			return storageErr("update course", err)
		}
		if matched == 0 {
			return fmt.Errorf("%w: course %s", ErrNotFound, ed.course.ID)
		}
	}
	if len(ed.memberUpdate) > 0 {
		matched, err := e.Students.UpdateOne(ctx, bson.M{"_id": ed.member.ID}, ed.memberUpdate)
		if err != nil {
			zap.S().Errorw("failed to update member side of membership",
				"courseId", ed.course.ID,
				"memberId", ed.member.ID.Hex(),
				"courseUpdated", len(ed.courseUpdate) > 0,
				"error", err)
			return storageErr("update student", err)
		}
		if matched == 0 {
			return fmt.Errorf("%w: student %s", ErrNotFound, ed.member.ID.Hex())
		}
	}
	_, _, err := e.syncLabel(ctx, ed.member.ID)
	return err
}

func roleFor(ta bool) string {
	if ta {
		return models.RoleTA
	}
	return models.RoleStudent
}

func otherRole(role string) string {
	if role == models.RoleTA {
		return models.RoleStudent
	}
	return models.RoleTA
}

// Enroll adds the member to the course as a student, or as a TA when asTA is set.
// Enrolling into a role the member already holds is a no-op. A member holding the
// other role is left alone and ErrInvariantViolation is returned; use ChangeRole.
func (e *Engine) Enroll(ctx context.Context, courseID string, memberID primitive.ObjectID, asTA bool) error {
	ed, err := e.loadEdge(ctx, courseID, memberID)
	if err != nil {
		return err
	}
	role := roleFor(asTA)
	if ed.holds(otherRole(role)) {
		return fmt.Errorf("%w: student %s already holds role %s in course %s, change the role instead",
			ErrInvariantViolation, memberID.Hex(), otherRole(role), courseID)
	}
	ed.add(role)
	return e.commit(ctx, ed)
}

// ChangeRole moves the member to newRole in the course, clearing the other role on
// both sides. The label becomes TA for a TA move; for a Student move it only
// reverts once the member has no TA course left.
func (e *Engine) ChangeRole(ctx context.Context, courseID string, memberID primitive.ObjectID, newRole string) error {
	if newRole != models.RoleStudent && newRole != models.RoleTA {
		return fmt.Errorf("%w: role %q, want %s or %s", ErrInvalidInput, newRole, models.RoleStudent, models.RoleTA)
	}
	ed, err := e.loadEdge(ctx, courseID, memberID)
	if err != nil {
		return err
	}
	ed.remove(otherRole(newRole))
	ed.add(newRole)
	return e.commit(ctx, ed)
}

// Unenroll removes the member from the given role of the course only. Removing a
// membership that does not exist is a no-op.
func (e *Engine) Unenroll(ctx context.Context, courseID string, memberID primitive.ObjectID, isTA bool) error {
	ed, err := e.loadEdge(ctx, courseID, memberID)
	if err != nil {
		return err
	}
	ed.remove(roleFor(isTA))
	return e.commit(ctx, ed)
}
