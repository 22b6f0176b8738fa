// =============================================================================
// Fiscal Report Transcriber - Process Command
// =============================================================================
//
// This file defines the 'process' command, which is the main command for
// transcribing reports. It orchestrates the batch around the per-file
// converter.
//
// COMMAND USAGE:
//   transcriber process [flags]
//
// FLAGS:
//   --dry-run     : Run every step except writing output files
//   --file        : Process only this file instead of the input directory
//   --profile     : Use this profile for every file instead of pattern matching
//   --output-dir  : Override the output directory of the main configuration
//
// PROCESSING PIPELINE:
//   1. Load the main configuration and the profiles
//   2. Validate the profiles
//   3. Discover the reports in the input directory
//   4. Match each file to a profile
//   5. Process files concurrently (each file sequentially)
//   6. Print and write the summary report
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ginjaninja78/fiscal-transcriber/internal/config"
	"github.com/ginjaninja78/fiscal-transcriber/internal/converter"
	"github.com/ginjaninja78/fiscal-transcriber/internal/validation"
	"github.com/ginjaninja78/fiscal-transcriber/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	dryRun      bool
	filePath    string
	profileCode string
	outputDir   string
)

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Transcribe the reports in the input directory",
	Long: `The process command scans the input directory for reports (CSV, XLS, XLSX
and PDF), matches each one to a profile by its file name and writes the
transcribed spreadsheet to the output directory.

Files are processed concurrently, up to max_concurrency at a time. Rows of a
single file are always processed in order.

On successful processing:
  - The transcribed file is placed in the output directory
  - The original report is moved to the input archive (archive_inputs)

On error:
  - No output file is written for the failing report
  - The original report remains in the input directory
  - Processing continues for other files unless stop_on_error is set

A summary report is written to the output directory after every run.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return runProcess(ctx)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run every step except writing output files")
	processCmd.Flags().StringVar(&filePath, "file", "", "Process only this file")
	processCmd.Flags().StringVar(&profileCode, "profile", "", "Profile code to use for every file")
	processCmd.Flags().StringVar(&outputDir, "output-dir", "", "Override the output directory")
}

// job pairs an input file with its profile. A nil profile is reported as a
// failure without running the converter.
type job struct {
	path    string
	profile *config.ProfileConfig
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(ctx context.Context) error {
	startTime := time.Now()

	// =========================================================================
	// STEP 1: LOAD CONFIGURATION
	// =========================================================================

	mainConfig, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load main config: %w", err)
	}
	if err := applyConfigLogLevel(mainConfig); err != nil {
		return err
	}
	if outputDir != "" {
		mainConfig.OutputDir = outputDir
	}

	profiles, err := config.LoadProfiles(mainConfig.ConfigsDir)
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}
	logger.Info("Loaded profiles", zap.Int("count", len(profiles)), zap.String("dir", mainConfig.ConfigsDir))

	// =========================================================================
	// STEP 2: VALIDATE PROFILES
	// =========================================================================

	if err := checkProfiles(profiles); err != nil {
		return err
	}

	// =========================================================================
	// STEP 3: DISCOVER INPUT FILES
	// =========================================================================

	files := utils.NewFileManager(mainConfig.InputDir, mainConfig.OutputDir, mainConfig.InputArchiveDir)
	files.UseTimestampSubdirs = mainConfig.ArchiveByDate

	if err := files.EnsureDirectories(mainConfig.ArchiveInputs && !dryRun); err != nil {
		return err
	}

	var inputFiles []string
	if filePath != "" {
		inputFiles = []string{filePath}
	} else {
		inputFiles, err = files.DiscoverInputFiles()
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
	}

	if len(inputFiles) == 0 {
		fmt.Println("No reports found in the input directory.")
		return nil
	}
	logger.Info("Discovered input files", zap.Int("count", len(inputFiles)))

	// =========================================================================
	// STEP 4: MATCH PROFILES
	// =========================================================================

	jobs, err := matchJobs(inputFiles, profiles, profileCode)
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 5: PROCESS FILES CONCURRENTLY
	// =========================================================================

	results := processJobs(ctx, jobs, mainConfig, files)

	// =========================================================================
	// STEP 6: SUMMARY
	// =========================================================================

	summary := buildSummary(results, startTime)
	printSummary(summary)

	if summaryPath, err := utils.WriteSummaryLog(summary, mainConfig.OutputDir); err != nil {
		logger.Warn("Failed to write summary log", zap.Error(err))
	} else {
		logger.Info("Wrote summary log", zap.String("path", summaryPath))
	}

	if summary.FailedFiles > 0 {
		return fmt.Errorf("%d of %d file(s) failed", summary.FailedFiles, summary.TotalFiles)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// checkProfiles logs warnings and fails on any profile error.
func checkProfiles(profiles []*config.ProfileConfig) error {
	var errs []*validation.ValidationError
	for _, profile := range profiles {
		errs = append(errs, validation.ValidateProfile(profile)...)
	}

	for _, e := range errs {
		if e.Severity == validation.SeverityWarning {
			logger.Warn("Profile warning", zap.String("detail", e.Error()))
		}
	}

	if validation.HasErrors(errs) {
		return fmt.Errorf("invalid profiles:\n%s", validation.FormatErrors(errs))
	}
	return nil
}

// matchJobs selects the profile of every file. With a forced profile code
// every file uses that profile.
func matchJobs(inputFiles []string, profiles []*config.ProfileConfig, forced string) ([]job, error) {
	var forcedProfile *config.ProfileConfig
	if forced != "" {
		forcedProfile = config.FindProfile(profiles, forced)
		if forcedProfile == nil {
			return nil, fmt.Errorf("unknown profile %q", forced)
		}
	}

	jobs := make([]job, 0, len(inputFiles))
	for _, path := range inputFiles {
		profile := forcedProfile
		if profile == nil {
			profile = config.MatchProfile(profiles, path)
		}
		jobs = append(jobs, job{path: path, profile: profile})
	}
	return jobs, nil
}

// processJobs runs the converter for every job, at most MaxConcurrency at a
// time. With StopOnError the first failure cancels the remaining files.
func processJobs(ctx context.Context, jobs []job, mainConfig *config.MainConfig, files *utils.FileManager) []converter.Result {
	var (
		mu      sync.Mutex
		results = make([]converter.Result, 0, len(jobs))
	)
	collect := func(r converter.Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(mainConfig.MaxConcurrency)

	for _, j := range jobs {
		if j.profile == nil {
			collect(converter.Result{
				FilePath: j.path,
				Error:    errors.New("no matching profile found"),
			})
			logger.Warn("No matching profile", zap.String("file", filepath.Base(j.path)))
			continue
		}

		g.Go(func() error {
			result := converter.New(j.path, j.profile, mainConfig, logger,
				converter.WithDryRun(dryRun),
				converter.WithFileManager(files),
			).Run(gctx)
			collect(result)

			if !result.Success && mainConfig.StopOnError {
				return result.Error
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Warn("Stopped after first failure", zap.Error(err))
	}

	sort.Slice(results, func(a, b int) bool { return results[a].FilePath < results[b].FilePath })
	return results
}

func buildSummary(results []converter.Result, startTime time.Time) utils.ProcessingSummary {
	summary := utils.ProcessingSummary{
		StartTime:  startTime,
		EndTime:    time.Now(),
		DryRun:     dryRun,
		TotalFiles: len(results),
	}

	for _, r := range results {
		if !r.Success {
			summary.FailedFiles++
			summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
				InputFile:    filepath.Base(r.FilePath),
				Profile:      r.Profile,
				ErrorMessage: r.Error.Error(),
			})
			continue
		}

		stats := r.Stats.Rows
		summary.SuccessfulFiles++
		summary.TotalRows += stats.Rows
		summary.DataRows += stats.DataRows
		summary.MarkerRows += stats.MarkerRows
		summary.SubtotalRows += stats.TotalRows
		summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
			InputFile:   filepath.Base(r.FilePath),
			OutputFile:  r.OutputFile,
			Profile:     r.Profile,
			Rows:        stats.Rows,
			DataRows:    stats.DataRows,
			ProcessTime: r.Stats.ProcessingTime,
		})
	}

	return summary
}

func printSummary(summary utils.ProcessingSummary) {
	for _, f := range summary.ProcessedFiles {
		target := f.OutputFile
		if target == "" {
			target = "(dry run)"
		}
		fmt.Printf("  ✓ %s -> %s (%d rows)\n", f.InputFile, target, f.Rows)
	}
	for _, f := range summary.FailedFilesList {
		fmt.Printf("  ✗ %s: %s\n", f.InputFile, f.ErrorMessage)
	}

	fmt.Println("\n=== Processing Complete ===")
	fmt.Printf("Total files:     %d\n", summary.TotalFiles)
	fmt.Printf("Successful:      %d\n", summary.SuccessfulFiles)
	fmt.Printf("Errors:          %d\n", summary.FailedFiles)
	fmt.Printf("Rows:            %d (%d data, %d marker, %d total)\n",
		summary.TotalRows, summary.DataRows, summary.MarkerRows, summary.SubtotalRows)
	fmt.Printf("Time elapsed:    %s\n", summary.EndTime.Sub(summary.StartTime).Round(time.Millisecond))
}
