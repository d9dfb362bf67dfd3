package enrollment

import (
	"context"
	"slices"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/linesmerrill/course-roster-api/models"
)

// DefaultReconcileParallelism bounds how many courses ReconcileAll works on at once
const DefaultReconcileParallelism = 4

// Reconcile repairs drift between a course and its members. The course lists are
// canonical: references to missing profiles are dropped, a member listed in both
// lists keeps only the TA entry, and every member profile is updated to mirror
// the lists. Labels are recomputed and pushed to accounts that disagree. All
// writes are targeted $pull/$addToSet updates, so entries added by a concurrent
// Enroll are never overwritten.
func (e *Engine) Reconcile(ctx context.Context, courseID string) (*models.ReconcileReport, error) {
	// Claims are read before the course. Enroll writes the course side first, so
	// every claim seen here is already backed by the lists read below.
	claimants, err := e.membersOf(ctx, []string{courseID})
	if err != nil {
		return nil, err
	}
	course, err := e.findCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	report := &models.ReconcileReport{CourseID: course.ID}

	listed := make([]primitive.ObjectID, 0, len(course.Students)+len(course.TAs))
	listed = append(listed, course.Students...)
	listed = append(listed, course.TAs...)
	existing, err := e.studentsByID(ctx, listed)
	if err != nil {
		return nil, err
	}

	var pullStudents, pullTAs []primitive.ObjectID
	tas := make([]primitive.ObjectID, 0, len(course.TAs))
	for _, id := range course.TAs {
		if _, ok := existing[id]; ok {
			tas, _ = appendUnique(tas, id)
		} else {
			report.DroppedRefs = append(report.DroppedRefs, id)
			pullTAs, _ = appendUnique(pullTAs, id)
		}
	}
	students := make([]primitive.ObjectID, 0, len(course.Students))
	for _, id := range course.Students {
		_, ok := existing[id]
		switch {
		case !ok:
			report.DroppedRefs = append(report.DroppedRefs, id)
			pullStudents, _ = appendUnique(pullStudents, id)
		case slices.Contains(tas, id):
			zap.S().Warnw("student listed as both student and TA, keeping TA",
				"courseId", course.ID,
				"memberId", id.Hex())
			pullStudents, _ = appendUnique(pullStudents, id)
		default:
			students, _ = appendUnique(students, id)
		}
	}
	if len(pullStudents) > 0 || len(pullTAs) > 0 {
		pull := bson.M{}
		if len(pullStudents) > 0 {
			pull["students"] = bson.M{"$in": pullStudents}
		}
		if len(pullTAs) > 0 {
			pull["tas"] = bson.M{"$in": pullTAs}
		}
		if _, err := e.Courses.UpdateOne(ctx, bson.M{"_id": course.ID}, bson.M{"$pull": pull}); err != nil {
			return nil, storageErr("update course", err)
		}
	}
	course.Students, course.TAs = students, tas

	members := make([]models.Student, 0, len(existing)+len(claimants))
	seen := map[primitive.ObjectID]bool{}
	for _, id := range listed {
		if s, ok := existing[id]; ok && !seen[id] {
			seen[id] = true
			members = append(members, s)
		}
	}
	for _, s := range claimants {
		if !seen[s.ID] {
			seen[s.ID] = true
			members = append(members, s)
		}
	}

	ids := make([]primitive.ObjectID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	accounts, err := e.accountsByProfile(ctx, ids)
	if err != nil {
		return nil, err
	}

	for i := range members {
		member := &members[i]
		update := bson.M{}
		mirrorField(update, &member.Courses, "courses", course.ID, slices.Contains(course.Students, member.ID))
		mirrorField(update, &member.TACourses, "taCourses", course.ID, slices.Contains(course.TAs, member.ID))
		repaired := len(update) > 0

		derived := member.DerivedRole()
		account, hasAccount := accounts[member.ID]
		stale := member.Role != derived || (hasAccount && account.ProfileRole != derived)
		if !repaired && !stale {
			continue
		}
		if repaired {
			if _, err := e.Students.UpdateOne(ctx, bson.M{"_id": member.ID}, update); err != nil {
				return report, storageErr("update student", err)
			}
			report.RepairedMembers = append(report.RepairedMembers, member.ID)
		}
		_, pushed, err := e.syncLabel(ctx, member.ID)
		if err != nil {
			return report, err
		}
		if pushed != nil {
			report.RelabeledUsers = append(report.RelabeledUsers, pushed.ID)
		}
	}

	if !report.Clean() {
		zap.S().Warnw("repaired roster drift",
			"courseId", course.ID,
			"droppedRefs", len(report.DroppedRefs),
			"repairedMembers", len(report.RepairedMembers),
			"relabeledUsers", len(report.RelabeledUsers))
	}
	return report, nil
}

// mirror makes membership of id in set match want and reports whether it changed
func mirror(set *[]string, id string, want bool) bool {
	var changed bool
	if want {
		*set, changed = appendUnique(*set, id)
	} else {
		*set, changed = without(*set, id)
	}
	return changed
}

// mirrorField is mirror that also stages the matching $addToSet or $pull on field
func mirrorField(update bson.M, set *[]string, field, id string, want bool) {
	if !mirror(set, id, want) {
		return
	}
	if want {
		stage(update, "$addToSet", field, id)
	} else {
		stage(update, "$pull", field, id)
	}
}

// ReconcileAll reconciles every course, then strips member-side references to
// courses that no longer exist. Only reports with repairs are returned.
func (e *Engine) ReconcileAll(ctx context.Context, parallelism int) ([]models.ReconcileReport, error) {
	if parallelism <= 0 {
		parallelism = DefaultReconcileParallelism
	}
	courses, err := e.Courses.Find(ctx, bson.M{})
	if err != nil {
		return nil, storageErr("find courses", err)
	}

	var (
		mu      sync.Mutex
		reports []models.ReconcileReport
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, c := range courses {
		courseID := c.ID
		g.Go(func() error {
			report, err := e.Reconcile(gctx, courseID)
			if err != nil {
				return err
			}
			if !report.Clean() {
				mu.Lock()
				reports = append(reports, *report)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}

	known := make(map[string]bool, len(courses))
	for _, c := range courses {
		known[c.ID] = true
	}
	orphans, err := e.detachOrphans(ctx, known)
	if err != nil {
		return reports, err
	}
	reports = append(reports, orphans...)

	sort.Slice(reports, func(i, j int) bool { return reports[i].CourseID < reports[j].CourseID })
	return reports, nil
}

// detachOrphans removes course ids that no course document backs anymore
func (e *Engine) detachOrphans(ctx context.Context, known map[string]bool) ([]models.ReconcileReport, error) {
	students, err := e.Students.Find(ctx, bson.M{})
	if err != nil {
		return nil, storageErr("find students", err)
	}
	var missing []string
	for _, s := range students {
		for _, id := range append(slices.Clone(s.Courses), s.TACourses...) {
			if !known[id] {
				missing, _ = appendUnique(missing, id)
			}
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}

	// courses created since the listing are not orphans
	created, err := e.Courses.Find(ctx, bson.M{"_id": bson.M{"$in": missing}})
	if err != nil {
		return nil, storageErr("find courses", err)
	}
	for _, c := range created {
		missing, _ = without(missing, c.ID)
	}

	byCourse := map[string]*models.ReconcileReport{}
	for i := range students {
		member := &students[i]
		var dropped []string
		for _, id := range missing {
			a := mirror(&member.Courses, id, false)
			b := mirror(&member.TACourses, id, false)
			if a || b {
				dropped = append(dropped, id)
				r, ok := byCourse[id]
				if !ok {
					r = &models.ReconcileReport{CourseID: id}
					byCourse[id] = r
				}
				r.RepairedMembers = append(r.RepairedMembers, member.ID)
			}
		}
		if len(dropped) > 0 {
			if err := e.detach(ctx, member.ID, dropped); err != nil {
				return nil, err
			}
		}
	}

	out := make([]models.ReconcileReport, 0, len(byCourse))
	for _, r := range byCourse {
		zap.S().Warnw("detached members from deleted course",
			"courseId", r.CourseID,
			"members", len(r.RepairedMembers))
		out = append(out, *r)
	}
	return out, nil
}
