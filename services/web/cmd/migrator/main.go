package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/example/containerlab/internal/platform/config"
	"github.com/example/containerlab/internal/platform/db"
	"github.com/example/containerlab/internal/platform/logging"
	"github.com/example/containerlab/internal/platform/run"
	"github.com/example/containerlab/services/web/internal/schema"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2

	commandTimeout = 2 * time.Minute
)

const usage = `usage: migrator [command]

commands:
  up               apply every pending revision (default)
  apply <revision> apply one revision by name or file stem
  status           show applied and pending revisions
  list             list known revisions
`

// schemaManager is the part of *schema.Manager the commands need.
type schemaManager interface {
	Up(ctx context.Context) error
	ApplyRevision(ctx context.Context, id string) error
	Status(ctx context.Context) ([]*goose.MigrationStatus, error)
	Revisions() []schema.Revision
}

func main() {
	cfg := config.LoadBase()
	base, err := logging.New(cfg.LogLevel)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "migrator: logger: %v\n", err)
		run.Exit(exitFailure)
	}
	log := logging.ForService(base, "migrator", cfg.Build.Version)

	code := func() int {
		dbCfg, err := db.LoadConfig()
		if err != nil {
			log.Error("database config", zap.Error(err))
			return exitFailure
		}
		provider, err := db.Open(dbCfg)
		if err != nil {
			log.Error("database open", zap.String("dsn", dbCfg.Redacted()), zap.Error(err))
			return exitFailure
		}
		defer func() { _ = provider.Close() }()

		mgr, err := schema.NewManager(provider, log)
		if err != nil {
			log.Error("schema revisions", zap.Error(err))
			return exitFailure
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return runCommand(ctx, os.Args[1:], mgr, os.Stdout, os.Stderr, log)
	}()

	log.Info("exit", zap.Int("code", code))
	_ = log.Sync()
	run.Exit(code)
}

func runCommand(ctx context.Context, args []string, mgr schemaManager, stdout, stderr io.Writer, log *zap.Logger) int {
	cmd := "up"
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	var err error
	switch cmd {
	case "up":
		if len(args) != 0 {
			return usageError(stderr, "up takes no arguments")
		}
		err = mgr.Up(ctx)
	case "apply":
		if len(args) != 1 {
			return usageError(stderr, "apply needs exactly one revision")
		}
		err = mgr.ApplyRevision(ctx, args[0])
	case "status":
		if len(args) != 0 {
			return usageError(stderr, "status takes no arguments")
		}
		err = printStatus(ctx, mgr, stdout)
	case "list":
		if len(args) != 0 {
			return usageError(stderr, "list takes no arguments")
		}
		printRevisions(mgr.Revisions(), stdout)
	case "help", "-h", "--help":
		_, _ = io.WriteString(stdout, usage)
	default:
		return usageError(stderr, fmt.Sprintf("unknown command %q", cmd))
	}

	if err != nil {
		var step *schema.StepError
		switch {
		case errors.As(err, &step):
			log.Error("migration failed", zap.String("command", cmd), zap.String("revision", step.Revision), zap.Error(step.Err))
		case errors.Is(err, db.ErrUnavailable):
			log.Error("database unreachable", zap.String("command", cmd), zap.Error(err))
		default:
			log.Error("migration failed", zap.String("command", cmd), zap.Error(err))
		}
		return exitFailure
	}
	log.Info("migration command finished", zap.String("command", cmd))
	return exitOK
}

func usageError(stderr io.Writer, msg string) int {
	_, _ = fmt.Fprintf(stderr, "migrator: %s\n\n%s", msg, usage)
	return exitUsage
}

func printRevisions(revs []schema.Revision, out io.Writer) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "VERSION\tNAME\tFILE")
	for _, r := range revs {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", r.Version, r.Name, r.File)
	}
	_ = tw.Flush()
}

func printStatus(ctx context.Context, mgr schemaManager, out io.Writer) error {
	statuses, err := mgr.Status(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, s := range statuses {
		if s == nil || s.Source == nil {
			continue
		}
		applied := "-"
		if !s.AppliedAt.IsZero() {
			applied = s.AppliedAt.UTC().Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Source.Version, s.State, applied, s.Source.Path)
	}
	return tw.Flush()
}
