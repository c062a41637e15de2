// Command certifytrack-maintenance runs the batch jobs that keep event
// statuses, AICTE transactions and certificates consistent. It is meant to be
// invoked from cron; concurrent runs are serialised through Redis when enabled.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/noah-isme/certifytrack-api/internal/bootstrap"
	"github.com/noah-isme/certifytrack-api/internal/models"
	"github.com/noah-isme/certifytrack-api/pkg/config"
	"github.com/noah-isme/certifytrack-api/pkg/logger"
)

const usage = `usage: certifytrack-maintenance <command> [flags]

commands:
  sweep-events [-dry-run]   advance event statuses
  reconcile-aicte           merge duplicate AICTE transactions
  auto-approve-aicte        approve stale pending AICTE transactions
  cleanup-certificates      remove duplicate certificates
  check-duplicates          report duplicate attendance, registration and transaction rows
`

// systemActor attributes CLI runs in the audit trail.
var systemActor = models.Actor{Role: models.RoleAdmin}

type maintenanceRunner interface {
	SweepEvents(ctx context.Context, actor models.Actor, dryRun bool) (*models.SweepReport, error)
	ReconcileTransactions(ctx context.Context, actor models.Actor) (*models.ReconcileReport, error)
	AutoApproveTransactions(ctx context.Context, actor models.Actor) (*models.AutoApproveReport, error)
	CleanupCertificates(ctx context.Context, actor models.Actor) (*models.CertificateCleanupReport, error)
	CheckUniqueness(ctx context.Context) (*models.UniquenessReport, error)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	container, err := bootstrap.New(cfg, logr)
	if err != nil {
		logr.Fatal("bootstrap failed", zap.Error(err))
	}

	// The notification queue is not started so workflow notifications are
	// delivered inline before the process exits.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, container.Maintenance, os.Args[1], os.Args[2:], os.Stdout)

	stop()
	container.Close()
	_ = logr.Sync()
	os.Exit(code)
}

// run executes one command, prints its JSON report and returns the exit code.
// A report with per-item errors exits 1 so cron surfaces partial failures.
func run(ctx context.Context, svc maintenanceRunner, command string, args []string, out io.Writer) int {
	var (
		report   interface{}
		failures int
		err      error
	)

	switch command {
	case "sweep-events":
		fs := flag.NewFlagSet(command, flag.ContinueOnError)
		dryRun := fs.Bool("dry-run", false, "report transitions without applying them")
		if err := fs.Parse(args); err != nil {
			return 2
		}
		var r *models.SweepReport
		r, err = svc.SweepEvents(ctx, systemActor, *dryRun)
		if r != nil {
			report, failures = r, len(r.Errors)
		}
	case "reconcile-aicte":
		var r *models.ReconcileReport
		r, err = svc.ReconcileTransactions(ctx, systemActor)
		if r != nil {
			report, failures = r, len(r.Errors)
		}
	case "auto-approve-aicte":
		var r *models.AutoApproveReport
		r, err = svc.AutoApproveTransactions(ctx, systemActor)
		if r != nil {
			report, failures = r, len(r.Errors)
		}
	case "cleanup-certificates":
		var r *models.CertificateCleanupReport
		r, err = svc.CleanupCertificates(ctx, systemActor)
		if r != nil {
			report, failures = r, len(r.Errors)
		}
	case "check-duplicates":
		var r *models.UniquenessReport
		r, err = svc.CheckUniqueness(ctx)
		if r != nil {
			report = r
			if !r.Clean() {
				failures = 1
			}
		}
	default:
		fmt.Fprintf(out, "unknown command %q\n\n%s", command, usage)
		return 2
	}

	if err != nil {
		fmt.Fprintf(out, "%s failed: %v\n", command, err)
		return 1
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintf(out, "encode report: %v\n", err)
		return 1
	}
	if failures > 0 {
		return 1
	}
	return 0
}
