package enrollment

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/linesmerrill/course-roster-api/models"
)

func (e *Engine) professorForAccount(ctx context.Context, accountID primitive.ObjectID) (*models.Professor, error) {
	user, err := e.Users.FindOne(ctx, bson.M{"_id": accountID})
	if err != nil {
		return nil, lookupErr("account", accountID.Hex(), err)
	}
	professor, err := e.Professors.FindOne(ctx, bson.M{"_id": user.ProfileID})
	if err != nil {
		return nil, lookupErr("professor", user.ProfileID.Hex(), err)
	}
	return professor, nil
}

// CreateCourse adds a course owned by the professor behind accountID. The course
// id is chosen by the caller and must be unused.
func (e *Engine) CreateCourse(ctx context.Context, accountID primitive.ObjectID, id, name, description string) (*models.Course, error) {
	id, name = strings.TrimSpace(id), strings.TrimSpace(name)
	if id == "" || name == "" {
		return nil, fmt.Errorf("%w: course id and name are required", ErrInvalidInput)
	}
	professor, err := e.professorForAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	course := models.Course{
		ID:          id,
		Name:        name,
		Description: description,
		Professor:   professor.ID,
		Students:    []primitive.ObjectID{},
		TAs:         []primitive.ObjectID{},
	}
	if err := e.Courses.InsertOne(ctx, course); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: course %s already exists", ErrInvariantViolation, id)
		}
		return nil, storageErr("insert course", err)
	}

	if _, err := e.Professors.UpdateOne(ctx, bson.M{"_id": professor.ID}, bson.M{"$addToSet": bson.M{"courses": id}}); err != nil {
		return nil, storageErr("update professor", err)
	}
	zap.S().Infow("course created", "courseId", id, "professorId", professor.ID.Hex())
	return &course, nil
}

// GetProfessor returns a professor profile with its display data and courses
func (e *Engine) GetProfessor(ctx context.Context, professorID primitive.ObjectID) (*models.ProfessorDetails, error) {
	professor, err := e.Professors.FindOne(ctx, bson.M{"_id": professorID})
	if err != nil {
		return nil, lookupErr("professor", professorID.Hex(), err)
	}
	account, err := e.findAccount(ctx, professor.ID)
	if err != nil {
		return nil, err
	}
	courses, err := e.Courses.Find(ctx, bson.M{"professor": professor.ID})
	if err != nil {
		return nil, storageErr("find professor courses", err)
	}

	details := &models.ProfessorDetails{
		ProfessorSummary: models.ProfessorSummary{ID: professor.ID},
		UserID:           professor.UserID,
		Courses:          courses,
	}
	if account != nil {
		details.Name = account.Name
		details.Email = account.Email
	}
	return details, nil
}

// DeleteProfessor removes a professor and everything hanging off their courses:
// member profiles lose the course ids (and possibly their TA label), the courses'
// invites and the courses themselves are deleted. The professor goes last so a
// failed run can be retried.
func (e *Engine) DeleteProfessor(ctx context.Context, professorID primitive.ObjectID) error {
	professor, err := e.Professors.FindOne(ctx, bson.M{"_id": professorID})
	if err != nil {
		return lookupErr("professor", professorID.Hex(), err)
	}
	courses, err := e.Courses.Find(ctx, bson.M{"professor": professor.ID})
	if err != nil {
		return storageErr("find professor courses", err)
	}
	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}

	if len(ids) > 0 {
		if err := e.detachCourses(ctx, ids); err != nil {
			return err
		}
		if _, err := e.Invites.DeleteMany(ctx, bson.M{"courseId": bson.M{"$in": ids}}); err != nil {
			return storageErr("delete course invites", err)
		}
		if _, err := e.Courses.DeleteMany(ctx, bson.M{"professor": professor.ID}); err != nil {
			return storageErr("delete courses", err)
		}
	}
	n, err := e.Professors.DeleteOne(ctx, bson.M{"_id": professor.ID})
	if err != nil {
		return storageErr("delete professor", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: professor %s", ErrNotFound, professorID.Hex())
	}
	zap.S().Infow("professor deleted", "professorId", professor.ID.Hex(), "courses", len(ids))
	return nil
}

// detachCourses strips the given course ids from every member profile holding them
func (e *Engine) detachCourses(ctx context.Context, courseIDs []string) error {
	members, err := e.membersOf(ctx, courseIDs)
	if err != nil {
		return err
	}
	for _, member := range members {
		if err := e.detach(ctx, member.ID, courseIDs); err != nil {
			return err
		}
	}
	return nil
}

// detach pulls courseIDs out of both course sets of a member and resyncs its label
func (e *Engine) detach(ctx context.Context, memberID primitive.ObjectID, courseIDs []string) error {
	in := bson.M{"$in": courseIDs}
	_, err := e.Students.UpdateOne(ctx, bson.M{"_id": memberID}, bson.M{"$pull": bson.M{"courses": in, "taCourses": in}})
	if err != nil {
		return storageErr("update student", err)
	}
	_, _, err = e.syncLabel(ctx, memberID)
	return err
}

// membersOf returns every member profile listing any of courseIDs in either set
func (e *Engine) membersOf(ctx context.Context, courseIDs []string) ([]models.Student, error) {
	var out []models.Student
	seen := map[primitive.ObjectID]bool{}
	for _, field := range []string{"courses", "taCourses"} {
		found, err := e.Students.Find(ctx, bson.M{field: bson.M{"$in": courseIDs}})
		if err != nil {
			return nil, storageErr("find course members", err)
		}
		for _, s := range found {
			if !seen[s.ID] {
				seen[s.ID] = true
				out = append(out, s)
			}
		}
	}
	return out, nil
}
