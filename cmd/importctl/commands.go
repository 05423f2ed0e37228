package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	apidomain "github.com/cuongbtq/trade-ledger/internal/api/domain"
	"github.com/cuongbtq/trade-ledger/internal/api/model"
	"github.com/cuongbtq/trade-ledger/internal/worker/domain"
	"github.com/google/subcommands"
	"github.com/google/uuid"
)

var importExtensions = map[string]bool{".csv": true, ".xlsx": true}

type submitCmd struct {
	configFlag
	file   string
	userID int64
}

func (*submitCmd) Name() string     { return "submit" }
func (*submitCmd) Synopsis() string { return "store an order file, create its import job and process it" }
func (*submitCmd) Usage() string {
	return `importctl submit -file <path> [-user <id>] [-config <path>]

  Copies the file into the upload directory, creates a NEW import job and
  processes it in this process. Prints the resulting job.
`
}

func (c *submitCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.StringVar(&c.file, "file", "", "Path of the .csv or .xlsx order file")
	f.Int64Var(&c.userID, "user", 0, "Id of the uploading user (optional)")
}

func (c *submitCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.file == "" {
		fmt.Fprintln(os.Stderr, "-file is required")
		return subcommands.ExitUsageError
	}

	ext := strings.ToLower(filepath.Ext(c.file))
	if !importExtensions[ext] {
		fmt.Fprintf(os.Stderr, "%v: expected .csv or .xlsx\n", apidomain.ErrUnsupportedFile)
		return subcommands.ExitUsageError
	}

	e, err := openEnv(c.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobID := uuid.NewString()
	fileName := jobID + ext
	if err := storeFile(e, fileName, c.file); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	now := time.Now().UTC()
	job := model.ImportJob{
		JobID:       jobID,
		FilePath:    fileName,
		Status:      apidomain.JobStatusNew,
		MaxAttempts: e.cfg.Import.MaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if c.userID > 0 {
		job.UploadedByUserID = &c.userID
	}

	if err := e.jobs.CreateImportJob(ctx, &job); err != nil {
		e.files.Remove(fileName)
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	return runImport(ctx, e, jobID)
}

func storeFile(e *env, name, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer f.Close()

	if _, err := e.files.Save(name, f); err != nil {
		return fmt.Errorf("failed to store %s: %w", src, err)
	}
	return nil
}

type processCmd struct {
	configFlag
}

func (*processCmd) Name() string     { return "process" }
func (*processCmd) Synopsis() string { return "process an existing NEW or PROCESSING import job" }
func (*processCmd) Usage() string {
	return `importctl process [-config <path>] <job-id>

  Claims the job and imports its file in this process, the same way a
  worker would. A job left in PROCESSING can be re-run once its previous
  run was released or stopped sending heartbeats (import.stale_after).
`
}

func (c *processCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
}

func (c *processCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	jobID, ok := jobIDArg(f)
	if !ok {
		return subcommands.ExitUsageError
	}

	e, err := openEnv(c.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runImport(ctx, e, jobID)
}

type statusCmd struct {
	configFlag
}

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "show the state of an import job" }
func (*statusCmd) Usage() string {
	return `importctl status [-config <path>] <job-id>
`
}

func (c *statusCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
}

func (c *statusCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	jobID, ok := jobIDArg(f)
	if !ok {
		return subcommands.ExitUsageError
	}

	e, err := openEnv(c.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	job, err := e.jobs.GetImportJob(ctx, jobID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	printJob(os.Stdout, jobView{
		JobID:       job.JobID,
		FilePath:    job.FilePath,
		Status:      job.Status,
		Attempts:    job.Attempts,
		CompletedAt: job.CompletedAt,
		Errors:      job.Errors,
	})
	return subcommands.ExitSuccess
}

func jobIDArg(f *flag.FlagSet) (string, bool) {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "exactly one job id is required")
		return "", false
	}

	id, err := uuid.Parse(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid job id %q\n", f.Arg(0))
		return "", false
	}
	return id.String(), true
}

func runImport(ctx context.Context, e *env, jobID string) subcommands.ExitStatus {
	// keep the claim fresh so workers do not take the job over mid-import
	hbCtx, stopHeartbeat := context.WithCancel(context.WithoutCancel(ctx))
	go heartbeat(hbCtx, e, jobID)

	job, err := e.processor.Submit(ctx, jobID)
	stopHeartbeat()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	printJob(os.Stdout, jobView{
		JobID:       job.JobID,
		FilePath:    job.FilePath,
		Status:      job.Status,
		Attempts:    job.Attempts,
		CompletedAt: job.CompletedAt,
		Errors:      job.Errors,
	})

	if job.Status == domain.JobStatusFailed {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func heartbeat(ctx context.Context, e *env, jobID string) {
	ticker := time.NewTicker(e.cfg.Worker.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.store.UpdateJobHeartbeat(ctx, jobID, e.workerID); err != nil {
				e.logger.Warn("Failed to update job heartbeat", slog.String("error", err.Error()))
			}
		}
	}
}

type jobView struct {
	JobID       string
	FilePath    string
	Status      string
	Attempts    int
	CompletedAt *time.Time
	Errors      *string
}

func printJob(w io.Writer, j jobView) {
	fmt.Fprintf(w, "job:       %s\n", j.JobID)
	fmt.Fprintf(w, "file:      %s\n", j.FilePath)
	fmt.Fprintf(w, "status:    %s\n", j.Status)
	fmt.Fprintf(w, "attempts:  %d\n", j.Attempts)
	if j.CompletedAt != nil {
		fmt.Fprintf(w, "completed: %s\n", j.CompletedAt.Format(time.RFC3339))
	}
	if j.Errors != nil {
		fmt.Fprintf(w, "errors:    %s\n", *j.Errors)
	}
}
