package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/linesmerrill/course-roster-api/models"
)

const (
	reconcileTimeout = 30 * time.Minute
	sweepTimeout     = 5 * time.Minute
)

// Jobs is the engine work the scheduler runs periodically
type Jobs interface {
	ReconcileAll(ctx context.Context, parallelism int) ([]models.ReconcileReport, error)
	SweepExpiredInvites(ctx context.Context) (int64, error)
}

// Scheduler handles periodic background jobs: the reconciliation pass over every
// course and the expired invite sweep
type Scheduler struct {
	cron        *cron.Cron
	Jobs        Jobs
	Parallelism int

	ReconcileSchedule   string
	InviteSweepSchedule string
}

// NewScheduler creates a new scheduler instance. An empty schedule disables that job.
func NewScheduler(jobs Jobs, reconcileSchedule, inviteSweepSchedule string, parallelism int) *Scheduler {
	return &Scheduler{
		// a job that overruns its interval is skipped rather than stacked
		cron:                cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		Jobs:                jobs,
		Parallelism:         parallelism,
		ReconcileSchedule:   reconcileSchedule,
		InviteSweepSchedule: inviteSweepSchedule,
	}
}

// Start registers the jobs and begins the scheduler
func (s *Scheduler) Start() error {
	if s.ReconcileSchedule != "" {
		if _, err := s.cron.AddFunc(s.ReconcileSchedule, s.reconcileCourses); err != nil {
			return fmt.Errorf("failed to register reconcile job: %w", err)
		}
	}
	if s.InviteSweepSchedule != "" {
		if _, err := s.cron.AddFunc(s.InviteSweepSchedule, s.sweepInvites); err != nil {
			return fmt.Errorf("failed to register invite sweep job: %w", err)
		}
	}

	s.cron.Start()
	zap.S().Infow("scheduler started",
		"reconcile", s.ReconcileSchedule,
		"inviteSweep", s.InviteSweepSchedule)
	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("scheduler stopped")
}

// reconcileCourses repairs membership drift across every course
func (s *Scheduler) reconcileCourses() {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	start := time.Now()
	reports, err := s.Jobs.ReconcileAll(ctx, s.Parallelism)
	if err != nil {
		zap.S().Errorw("reconcile job failed", "error", err, "repaired", len(reports))
		return
	}
	for _, report := range reports {
		zap.S().Infow("course repaired",
			"courseId", report.CourseID,
			"droppedRefs", len(report.DroppedRefs),
			"repairedMembers", len(report.RepairedMembers),
			"relabeledUsers", len(report.RelabeledUsers))
	}
	zap.S().Infow("reconcile job complete",
		"repairedCourses", len(reports),
		"duration", time.Since(start))
}

// sweepInvites deletes invites past their expiry that the TTL monitor has not removed yet
func (s *Scheduler) sweepInvites() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	deleted, err := s.Jobs.SweepExpiredInvites(ctx)
	if err != nil {
		zap.S().Errorw("invite sweep failed", "error", err)
		return
	}
	zap.S().Infow("invite sweep complete", "deleted", deleted)
}
