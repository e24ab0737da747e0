package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/schoolcrm/enrichment/config"
	"github.com/schoolcrm/enrichment/internal/bootstrap"
	"github.com/schoolcrm/enrichment/internal/domain/model"
)

type command struct {
	name    string
	summary string
	run     func(cc *commandContext, args []string) error
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultCommandTimeout   = 30 * time.Second
	defaultRunTimeout       = 5 * time.Minute
)

const (
	exitSuccess = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(realMain(os.Args[1:])) //nolint:forbidigo // exit status is the CLI contract
}

func realMain(args []string) int {
	logger := bootstrap.InitLogger()

	if len(args) == 0 {
		_ = printUsage(os.Stdout)
		return exitUsage
	}
	cmd, ok := lookupCommand(args[0])
	if !ok {
		_ = writef(os.Stderr, "unknown command %q\n\n", args[0])
		_ = printUsage(os.Stderr)
		return exitUsage
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		return exitFailure
	}
	bootstrap.SetLogLevel(cfg.Observability.LogLevel)

	cc := &commandContext{Ctx: context.Background(), Logger: logger, Config: cfg}
	if err = cmd.run(cc, args[1:]); err != nil {
		logger.Error("command failed", "command", cmd.name, "error", err)
		return exitFailure
	}
	return exitSuccess
}

// commands are listed in usage order.
func commands() []command {
	return []command{
		{"migrate", "Run database migrations", runMigrations},
		{"enqueue", "Enqueue a single enrichment job", runEnqueue},
		{"run-once", "Claim and process one batch for a worker group", runOnce},
		{"stats", "Show job counts by type and status", runStats},
		{"reclaim", "Run one reaper pass: reclaim expired leases and delete old jobs", runReclaim},
	}
}

func lookupCommand(name string) (command, bool) {
	i := slices.IndexFunc(commands(), func(c command) bool { return c.name == name })
	if i < 0 {
		return command{}, false
	}
	return commands()[i], true
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: enrichment-admin <command> [flags]\n\nAvailable commands:\n"); err != nil {
		return err
	}
	for _, c := range commands() {
		if err := writef(w, "  %-12s %s\n", c.name, c.summary); err != nil {
			return err
		}
	}
	return nil
}

// newFlagSet returns a flag set that reports parse errors instead of exiting.
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func positiveTimeout(d time.Duration) error {
	if d <= 0 {
		return errors.New("--timeout must be greater than zero")
	}
	return nil
}

type migrateOptions struct {
	Timeout time.Duration
	DryRun  bool
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	var opts migrateOptions
	fs := newFlagSet("migrate")
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout, "Maximum time for migrations")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "List pending migrations without applying them")
	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	return opts, positiveTimeout(opts.Timeout)
}

type enqueueOptions struct {
	Request model.EnqueueRequest
	Timeout time.Duration
}

func parseEnqueueFlags(args []string) (enqueueOptions, error) {
	fs := newFlagSet("enqueue")

	var (
		opts    enqueueOptions
		jobType string
		payload string
	)
	fs.StringVar(&jobType, "type", string(model.JobTypeNormalizeMessage), "Job type")
	fs.StringVar(&opts.Request.OrganizationID, "org", "", "Organization UUID (required)")
	fs.StringVar(&opts.Request.EntityType, "entity-type", model.EntityTypeMessage, "Entity type")
	fs.StringVar(&opts.Request.EntityID, "entity-id", "", "Entity id (required)")
	fs.IntVar(&opts.Request.Priority, "priority", 0, "Priority between 0 and 100")
	fs.StringVar(&payload, "payload", "", "JSON payload, e.g. '{\"message_ids\":[...]}'")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Command timeout")

	if err := fs.Parse(args); err != nil {
		return enqueueOptions{}, err
	}

	if err := opts.Request.Type.UnmarshalText([]byte(jobType)); err != nil {
		return enqueueOptions{}, fmt.Errorf("--type: %w (valid: %s)", err, jobTypeList())
	}
	if p := strings.TrimSpace(payload); p != "" {
		opts.Request.Payload = []byte(p)
	}
	if err := opts.Request.Validate(); err != nil {
		return enqueueOptions{}, err
	}
	return opts, nil
}

func jobTypeList() string {
	all := model.AllJobTypes()
	names := make([]string, len(all))
	for i, t := range all {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

type runOnceOptions struct {
	Group     string
	BatchSize int
	WorkerID  string
	Timeout   time.Duration
}

func parseRunOnceFlags(args []string) (runOnceOptions, error) {
	var opts runOnceOptions
	fs := newFlagSet("run-once")
	fs.StringVar(&opts.Group, "group", "", "Worker group (default normalize)")
	fs.IntVar(&opts.BatchSize, "batch-size", 0, "Jobs to claim (default from WORKER_BATCH_SIZE)")
	fs.StringVar(&opts.WorkerID, "worker-id", "", "Worker id recorded on claimed jobs (default generated)")
	fs.DurationVar(&opts.Timeout, "timeout", defaultRunTimeout, "Command timeout")

	if err := fs.Parse(args); err != nil {
		return runOnceOptions{}, err
	}
	if opts.BatchSize < 0 {
		return runOnceOptions{}, errors.New("--batch-size must not be negative")
	}
	if err := positiveTimeout(opts.Timeout); err != nil {
		return runOnceOptions{}, err
	}
	return opts, nil
}

type statsOptions struct {
	JSON    bool
	Timeout time.Duration
}

func parseStatsFlags(args []string) (statsOptions, error) {
	var opts statsOptions
	fs := newFlagSet("stats")
	fs.BoolVar(&opts.JSON, "json", false, "Print JSON instead of a table")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Command timeout")

	if err := fs.Parse(args); err != nil {
		return statsOptions{}, err
	}
	return opts, nil
}

func parseTimeoutFlags(name string, args []string, def time.Duration) (time.Duration, error) {
	fs := newFlagSet(name)
	timeout := fs.Duration("timeout", def, "Command timeout")
	if err := fs.Parse(args); err != nil {
		return 0, err
	}
	return *timeout, positiveTimeout(*timeout)
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	_, err := fmt.Fprintln(w, args...)
	return err
}
