package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/applyflow/ds160-runner/api/schemas"
	"github.com/applyflow/ds160-runner/internal/browser"
	"github.com/applyflow/ds160-runner/internal/catalog"
	"github.com/applyflow/ds160-runner/internal/engine"
	"github.com/applyflow/ds160-runner/internal/observability"
	"github.com/applyflow/ds160-runner/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var runCmd = &cobra.Command{
	Use:   "run <form-data.json>",
	Short: "Runs a single submission from a local form-data file, without queue or database",
	Long: `Runs one DS-160 submission end-to-end against the live site, reading
answers from a JSON file of "section.field" keys. Progress is kept in
memory and captcha challenges are solved interactively on stdin. Meant
for catalog debugging, not production.`,
	Args: cobra.ExactArgs(1),
	RunE: runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	logger := observability.GetLogger()
	defer observability.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading form data: %w", err)
	}
	var formData schemas.FormData
	if err := json.Unmarshal(raw, &formData); err != nil {
		return fmt.Errorf("parsing form data: %w", err)
	}

	memory := store.NewMemoryStore(cfg.Captcha.ChallengeTTL, logger)
	artifacts, err := store.NewFileArtifactStore(cfg.Artifacts.BaseDir, cfg.Artifacts.PublicBaseURL, logger)
	if err != nil {
		return fmt.Errorf("preparing artifact store: %w", err)
	}

	job := &schemas.Job{
		ID:        uuid.New(),
		UserID:    "local",
		Status:    schemas.JobStatusPending,
		FormData:  formData,
		CreatedAt: time.Now().UTC(),
	}
	if err := memory.CreateJob(ctx, job); err != nil {
		return err
	}

	go promptForCaptcha(ctx, memory, job.ID)

	newDriver := func(ctx context.Context) (schemas.BrowserDriver, error) {
		return browser.New(ctx, cfg.Browser, logger)
	}
	runner := engine.NewJobRunner(newDriver, memory, artifacts, memory,
		catalog.Steps(), catalog.Captcha, cfg, logger)

	result, err := runner.RunJob(ctx, job, formData)
	if err != nil {
		return err
	}

	logger.Info("Run finished",
		zap.String("status", string(result.Status)),
		zap.String("application_id", result.ApplicationID))
	fmt.Printf("status=%s application_id=%s\n", result.Status, result.ApplicationID)
	return nil
}

// promptForCaptcha watches for unsolved challenges and reads solutions from
// stdin, standing in for the human-facing UI a production deployment has.
func promptForCaptcha(ctx context.Context, memory *store.MemoryStore, jobID uuid.UUID) {
	scanner := bufio.NewScanner(os.Stdin)
	var lastPrompted uuid.UUID

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		challenge, err := memory.UnsolvedChallenge(ctx, jobID)
		if err != nil || challenge == nil || challenge.ID == lastPrompted {
			continue
		}
		lastPrompted = challenge.ID

		fmt.Printf("\nCaptcha required. Image: %s\nEnter the code (or press enter to refresh): ", challenge.ImageURL)
		if !scanner.Scan() {
			return
		}
		answer := scanner.Text()
		if answer == "" {
			memory.RequestRefresh(jobID)
			lastPrompted = uuid.Nil
			continue
		}
		memory.SolveChallenge(jobID, answer)
	}
}
