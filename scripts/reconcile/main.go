// Command reconcile runs the enrollment reconciliation pass once, outside the
// API's schedule, and prints the repair reports as JSON.
//
// Usage:
//
//	go run ./scripts/reconcile --course CS101
//	go run ./scripts/reconcile --all --parallelism 8
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/linesmerrill/course-roster-api/config"
	"github.com/linesmerrill/course-roster-api/databases"
	"github.com/linesmerrill/course-roster-api/databases/memdb"
	"github.com/linesmerrill/course-roster-api/enrollment"
	"github.com/linesmerrill/course-roster-api/models"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	conf := config.New()
	if err := run(ctx, conf, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, conf *config.Config, args []string, out io.Writer) error {
	var courseID string
	var all bool
	parallelism := conf.ReconcileParallelism

	flagSet := pflag.NewFlagSet("reconcile", pflag.ContinueOnError)
	flagSet.SetOutput(out)
	flagSet.StringVar(&courseID, "course", "", "reconcile a single course by id")
	flagSet.BoolVar(&all, "all", false, "reconcile every course and strip references to deleted courses")
	flagSet.IntVarP(&parallelism, "parallelism", "p", parallelism, "courses reconciled concurrently with --all")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if (courseID == "") == !all {
		return errors.New("exactly one of --course or --all is required")
	}
	if err := conf.Validate(); err != nil {
		return err
	}

	client, err := connect(ctx, conf)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			zap.S().Warnw("failed to disconnect", "error", err)
		}
	}()
	engine := enrollment.New(databases.NewDatabase(conf, client))

	var reports []models.ReconcileReport
	if all {
		reports, err = engine.ReconcileAll(ctx, parallelism)
	} else {
		var report *models.ReconcileReport
		report, err = engine.Reconcile(ctx, courseID)
		if report != nil {
			reports = append(reports, *report)
		}
	}
	if err != nil {
		return err
	}
	if reports == nil {
		reports = []models.ReconcileReport{}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

func connect(ctx context.Context, conf *config.Config) (databases.ClientHelper, error) {
	if strings.HasPrefix(conf.URL, memdb.Scheme) {
		return memdb.NewClient(), nil
	}
	return databases.NewClient(ctx, conf)
}
