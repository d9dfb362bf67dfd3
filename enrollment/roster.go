package enrollment

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/linesmerrill/course-roster-api/models"
)

// GetRoster returns the course's students and TAs joined with account display
// data, in course order. References to missing member profiles are skipped; they
// are drift for Reconcile to clean up.
func (e *Engine) GetRoster(ctx context.Context, courseID string) (*models.Roster, error) {
	course, err := e.findCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(course.Students)+len(course.TAs))
	ids = append(ids, course.Students...)
	ids = append(ids, course.TAs...)

	var (
		members  map[primitive.ObjectID]models.Student
		accounts map[primitive.ObjectID]models.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		members, err = e.studentsByID(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		accounts, err = e.accountsByProfile(gctx, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	roster := &models.Roster{
		Students: rosterEntries(course.ID, course.Students, models.RoleStudent, members, accounts),
		TAs:      rosterEntries(course.ID, course.TAs, models.RoleTA, members, accounts),
	}
	return roster, nil
}

func rosterEntries(courseID string, ids []primitive.ObjectID, role string, members map[primitive.ObjectID]models.Student, accounts map[primitive.ObjectID]models.User) []models.RosterEntry {
	entries := make([]models.RosterEntry, 0, len(ids))
	for _, id := range ids {
		if _, ok := members[id]; !ok {
			zap.S().Warnw("course references a missing student, skipping",
				"courseId", courseID,
				"memberId", id.Hex())
			continue
		}
		account := accounts[id]
		entries = append(entries, models.RosterEntry{
			ID:     id,
			Role:   role,
			Name:   account.Name,
			Email:  account.Email,
			UserID: account.ID,
		})
	}
	return entries
}

// GetUnenrolled returns every member profile that is neither a student nor a TA
// of the course
func (e *Engine) GetUnenrolled(ctx context.Context, courseID string) ([]models.RosterEntry, error) {
	course, err := e.findCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	enrolled := make([]primitive.ObjectID, 0, len(course.Students)+len(course.TAs))
	enrolled = append(enrolled, course.Students...)
	enrolled = append(enrolled, course.TAs...)

	students, err := e.Students.Find(ctx, bson.M{"_id": bson.M{"$nin": enrolled}})
	if err != nil {
		return nil, storageErr("find unenrolled students", err)
	}
	ids := make([]primitive.ObjectID, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	accounts, err := e.accountsByProfile(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]models.RosterEntry, 0, len(students))
	for _, s := range students {
		account := accounts[s.ID]
		entries = append(entries, models.RosterEntry{
			ID:     s.ID,
			Role:   s.DerivedRole(),
			Name:   account.Name,
			Email:  account.Email,
			UserID: account.ID,
		})
	}
	return entries, nil
}

// GetCoursesForMember returns the courses the member attends as a student and as
// a TA, in the order the member profile lists them
func (e *Engine) GetCoursesForMember(ctx context.Context, memberID primitive.ObjectID) (*models.MemberCourses, error) {
	member, err := e.findStudent(ctx, memberID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(member.Courses)+len(member.TACourses))
	ids = append(ids, member.Courses...)
	ids = append(ids, member.TACourses...)
	courses := map[string]models.Course{}
	if len(ids) > 0 {
		found, err := e.Courses.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
		if err != nil {
			return nil, storageErr("find member courses", err)
		}
		for _, c := range found {
			courses[c.ID] = c
		}
	}

	professorIDs := make([]primitive.ObjectID, 0, len(courses))
	for _, c := range courses {
		professorIDs = append(professorIDs, c.Professor)
	}
	professors, err := e.accountsByProfile(ctx, professorIDs)
	if err != nil {
		return nil, err
	}

	return &models.MemberCourses{
		StudentCourses: courseSummaries(member, member.Courses, courses, professors),
		TACourses:      courseSummaries(member, member.TACourses, courses, professors),
	}, nil
}

func courseSummaries(member *models.Student, ids []string, courses map[string]models.Course, professors map[primitive.ObjectID]models.User) []models.CourseSummary {
	out := make([]models.CourseSummary, 0, len(ids))
	for _, id := range ids {
		c, ok := courses[id]
		if !ok {
			zap.S().Warnw("student references a missing course, skipping",
				"memberId", member.ID.Hex(),
				"courseId", id)
			continue
		}
		account := professors[c.Professor]
		out = append(out, models.CourseSummary{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			Professor: models.ProfessorSummary{
				ID:    c.Professor,
				Name:  account.Name,
				Email: account.Email,
			},
		})
	}
	return out
}

// GetCoursesForProfessor resolves an account to its professor profile and returns
// the courses that professor owns
func (e *Engine) GetCoursesForProfessor(ctx context.Context, accountID primitive.ObjectID) ([]models.Course, error) {
	professor, err := e.professorForAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	courses, err := e.Courses.Find(ctx, bson.M{"professor": professor.ID})
	if err != nil {
		return nil, storageErr("find professor courses", err)
	}
	return courses, nil
}

func (e *Engine) studentsByID(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Student, error) {
	out := map[primitive.ObjectID]models.Student{}
	if len(ids) == 0 {
		return out, nil
	}
	students, err := e.Students.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, storageErr("find students", err)
	}
	for _, s := range students {
		out[s.ID] = s
	}
	return out, nil
}

// accountsByProfile loads the accounts linked to the given profile ids, keyed by
// profile id
func (e *Engine) accountsByProfile(ctx context.Context, profileIDs []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	out := map[primitive.ObjectID]models.User{}
	if len(profileIDs) == 0 {
		return out, nil
	}
	users, err := e.Users.Find(ctx, bson.M{"profileId": bson.M{"$in": profileIDs}})
	if err != nil {
		return nil, storageErr("find accounts", err)
	}
	for _, u := range users {
		out[u.ProfileID] = u
	}
	return out, nil
}
