package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/crawler"
	"github.com/ternarybob/prospect/internal/interfaces"
	"github.com/ternarybob/prospect/internal/models"
	"github.com/ternarybob/prospect/internal/orchestrator"
	"github.com/ternarybob/prospect/internal/report"
	"github.com/ternarybob/prospect/internal/scheduler"
	"github.com/ternarybob/prospect/internal/storage/badger"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	auditDomain  = flag.String("audit", "", "Run a single synchronous audit for the domain and print the report")
	batchFile    = flag.String("batch", "", "Create and run a batch job from a file of domains (one per line)")
	serve        = flag.Bool("serve", false, "Run the cron scheduler until interrupted")
	maxRetries   = flag.Int("retries", -1, "Max retries per domain (overrides config)")
	concurrency  = flag.Int("concurrency", 0, "Concurrent domains per batch (overrides config)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Prospect version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
	// 2. Initialize logger
	// 3. Print banner
	// 4. Wire storage -> loader -> crawler -> orchestrator

	if len(configFiles) == 0 {
		if _, err := os.Stat("prospect.toml"); err == nil {
			configFiles = append(configFiles, "prospect.toml")
		} else if _, err := os.Stat("deployments/local/prospect.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/prospect.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Strs("config_files", configFiles).
		Str("environment", config.Environment).
		Str("badger_path", config.Storage.Badger.Path).
		Str("log_level", config.Logging.Level).
		Msg("Application configuration loaded")

	store, err := badger.NewManager(logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open storage")
		os.Exit(1)
	}
	defer store.Close()

	loader, err := crawler.NewChromeLoader(&config.Crawler, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to start browser pool")
		os.Exit(1)
	}
	defer loader.Close()

	builder := report.NewBuilder(&config.Report, logger)
	siteCrawler := crawler.NewCrawler(loader, builder, &config.Crawler, logger)
	orch := orchestrator.New(store.JobStorage(), store.ReportStorage(), siteCrawler, builder, &config.Jobs, logger)

	switch {
	case *auditDomain != "":
		err = runAudit(orch, store.ReportStorage(), *auditDomain)
	case *batchFile != "":
		err = runBatch(orch, logger, *batchFile, *maxRetries, *concurrency)
	case *serve:
		err = runScheduler(orch, config, logger)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("Run failed")
		os.Exit(1)
	}
}

// runAudit crawls one domain synchronously and prints the stored report.
func runAudit(orch *orchestrator.Orchestrator, reports interfaces.ReportStorage, domain string) error {
	ctx := context.Background()

	job, err := orch.CreateSingleJob(ctx, domain, fmt.Sprintf("audit %s", domain), "cli", -1)
	if err != nil {
		return err
	}
	if err := orch.Start(ctx, job.ID); err != nil {
		return err
	}

	final, err := orch.Wait(ctx, job.ID)
	if err != nil {
		return err
	}

	snapshot, err := orch.GetStatus(ctx, job.ID)
	if err != nil {
		return err
	}
	if final.Status != models.JobStatusCompleted || len(snapshot.Steps) == 0 {
		return fmt.Errorf("audit of %s finished as %s: %s", domain, final.Status, final.Error)
	}

	step := snapshot.Steps[0]
	if step.Status != models.JobStatusCompleted {
		return fmt.Errorf("audit of %s failed after %d attempts: %s", domain, step.AttemptCount, step.Error)
	}

	stored, err := reports.GetReport(ctx, step.ResultData)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// runBatch submits a batch job from a domains file and polls progress
// until the job reaches a terminal state.
func runBatch(orch *orchestrator.Orchestrator, logger arbor.ILogger, path string, maxRetries, concurrency int) error {
	domains, err := readDomainsFile(path)
	if err != nil {
		return err
	}

	ctx := context.Background()
	job, err := orch.CreateBatchJob(ctx, domains, fmt.Sprintf("batch %s", path), "cli", maxRetries, concurrency)
	if err != nil {
		return err
	}
	if err := orch.Start(ctx, job.ID); err != nil {
		return err
	}

	logger.Info().
		Str("job_id", job.ID).
		Int("domains", job.TotalSteps).
		Msg("Batch job started")

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	done := make(chan error, 1)
	go func() {
		_, err := orch.Wait(ctx, job.ID)
		done <- err
	}()

	for {
		select {
		case err := <-done:
			if err != nil {
				return err
			}
			return printBatchResult(ctx, orch, job.ID)
		case <-ticker.C:
			snapshot, err := orch.GetStatus(ctx, job.ID)
			if err != nil {
				continue
			}
			fmt.Printf("progress %3d%%  completed %d  failed %d  running %d  pending %d\n",
				snapshot.ProgressPercentage, snapshot.CompletedSteps, snapshot.FailedSteps,
				snapshot.RunningSteps, snapshot.PendingSteps)
		}
	}
}

func printBatchResult(ctx context.Context, orch *orchestrator.Orchestrator, jobID string) error {
	snapshot, err := orch.GetStatus(ctx, jobID)
	if err != nil {
		return err
	}

	fmt.Printf("\njob %s finished as %s (%d/%d completed, %d failed)\n",
		snapshot.ID, snapshot.Status, snapshot.CompletedSteps, snapshot.TotalSteps, snapshot.FailedSteps)
	for _, step := range snapshot.Steps {
		line := fmt.Sprintf("  %-40s %s", step.Name, step.Status)
		if step.Error != "" {
			line += "  " + step.Error
		}
		fmt.Println(line)
	}

	if snapshot.Status == models.JobStatusFailed {
		return fmt.Errorf("batch failed: %s", snapshot.Error)
	}
	return nil
}

// runScheduler starts the cron scheduler and blocks until a signal.
func runScheduler(orch *orchestrator.Orchestrator, config *common.Config, logger arbor.ILogger) error {
	if !config.Scheduler.Enabled {
		return fmt.Errorf("scheduler is disabled in configuration")
	}
	if len(config.Scheduler.Schedules) == 0 {
		return fmt.Errorf("no schedules configured")
	}

	sched := scheduler.New(orch, logger)
	if err := sched.Start(config.Scheduler.Schedules); err != nil {
		return err
	}

	logger.Info().Msg("Scheduler ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Interrupt signal received")
	sched.Stop()
	return nil
}

func readDomainsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open domains file: %w", err)
	}
	defer f.Close()

	var domains []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		domains = append(domains, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read domains file: %w", err)
	}
	return domains, nil
}
