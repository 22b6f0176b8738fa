// =============================================================================
// Fiscal Report Transcriber - Converter Module
// =============================================================================
//
// This module orchestrates the transcription pipeline for a single file, from
// reading the report to writing the output file.
//
// CONVERSION PIPELINE:
//   1. Read the input report into rows (adapter chosen by extension)
//   2. Transcribe the rows with the profile rule set
//   3. Check that the result may be emitted
//   4. Render the output into memory
//   5. Write the output file atomically
//   6. Archive the input file (optional)
//
// Steps 1 to 4 are also available without any file system access through
// Convert, which returns the rendered bytes.
//
// CONCURRENCY:
//   A Converter processes one file and holds no shared state, so several
//   converters may run at once.
//
// =============================================================================

package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ginjaninja78/fiscal-transcriber/internal/config"
	"github.com/ginjaninja78/fiscal-transcriber/internal/csvparser"
	"github.com/ginjaninja78/fiscal-transcriber/internal/pdfparser"
	"github.com/ginjaninja78/fiscal-transcriber/internal/transcriber"
	"github.com/ginjaninja78/fiscal-transcriber/internal/types"
	"github.com/ginjaninja78/fiscal-transcriber/internal/validation"
	"github.com/ginjaninja78/fiscal-transcriber/internal/writer"
	"github.com/ginjaninja78/fiscal-transcriber/internal/xlsxparser"
	"github.com/ginjaninja78/fiscal-transcriber/pkg/utils"
)

// =============================================================================
// RESULT STRUCTURES
// =============================================================================

// Result represents the outcome of processing a single file.
type Result struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	// Profile is the code of the profile used.
	Profile string

	// OutputFile is the path to the generated file.
	// This is empty if processing failed or in a dry run.
	OutputFile string

	// ContentType is the MIME type of the output.
	ContentType string

	// Success indicates whether the processing was successful.
	Success bool

	// Error contains the error if processing failed.
	Error error

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// Rows is the row classification of the transcription pass.
	Rows transcriber.Stats

	// Format is the format the input was read as. For an XLS file read by
	// the XLSX fallback this is xlsx.
	Format types.Format

	// Encoding is the text encoding that decoded the input, for CSV.
	Encoding string

	// OutputBytes is the size of the rendered output.
	OutputBytes int

	// ProcessingTime is the time taken to process the file.
	ProcessingTime time.Duration
}

// Output is a rendered, in-memory transcription.
type Output struct {
	// Data is the complete output file.
	Data []byte

	// ContentType is the MIME type of Data.
	ContentType string

	// Extension is the file extension of Data, with the dot.
	Extension string

	// Rows are the transcribed rows that were rendered.
	Rows []types.Row

	// Stats are the classification counts of the pass.
	Stats transcriber.Stats

	// Format and Encoding describe how the input was read.
	Format   types.Format
	Encoding string
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter handles the transcription of a single file.
type Converter struct {
	path       string
	profile    *config.ProfileConfig
	mainConfig *config.MainConfig
	files      *utils.FileManager
	logger     *zap.Logger
	dryRun     bool
}

// Option configures a Converter.
type Option func(*Converter)

// WithDryRun runs every step except writing and archiving.
func WithDryRun(dryRun bool) Option {
	return func(c *Converter) { c.dryRun = dryRun }
}

// WithFileManager replaces the file manager built from the main configuration.
func WithFileManager(fm *utils.FileManager) Option {
	return func(c *Converter) { c.files = fm }
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// New creates a new Converter instance.
//
// PARAMETERS:
//   - path: The path to the input report.
//   - profile: The profile whose rule set is applied.
//   - mainConfig: The main application configuration.
//   - logger: The logger; nil disables logging.
func New(path string, profile *config.ProfileConfig, mainConfig *config.MainConfig, logger *zap.Logger, opts ...Option) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Converter{
		path:       path,
		profile:    profile,
		mainConfig: mainConfig,
		logger:     logger.With(zap.String("file", filepath.Base(path)), zap.String("profile", profile.ProfileCode)),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.files == nil {
		c.files = utils.NewFileManager(mainConfig.InputDir, mainConfig.OutputDir, mainConfig.InputArchiveDir)
		c.files.UseTimestampSubdirs = mainConfig.ArchiveByDate
	}

	return c
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the pipeline for the file.
//
// A failed run never leaves an output file behind: the output is rendered
// completely in memory before anything is written.
func (c *Converter) Run(ctx context.Context) Result {
	startTime := time.Now()
	result := Result{
		FilePath: c.path,
		Profile:  c.profile.ProfileCode,
	}
	defer func() {
		result.Stats.ProcessingTime = time.Since(startTime)
	}()

	fail := func(err error) Result {
		result.Error = err
		c.logger.Error("Transcription failed", zap.Error(err))
		return result
	}

	c.logger.Info("Processing file")

	// =========================================================================
	// STEP 1-4: READ, TRANSCRIBE, CHECK, RENDER
	// =========================================================================

	data, err := os.ReadFile(c.path)
	if err != nil {
		return fail(fmt.Errorf("failed to read input: %w", err))
	}

	output, err := convert(ctx, filepath.Base(c.path), data, c.profile, c.logger)
	if err != nil {
		return fail(err)
	}

	result.ContentType = output.ContentType
	result.Stats.Rows = output.Stats
	result.Stats.Format = output.Format
	result.Stats.Encoding = output.Encoding
	result.Stats.OutputBytes = len(output.Data)

	if c.dryRun {
		c.logger.Info("Dry run, output not written", zap.Int("bytes", len(output.Data)))
		result.Success = true
		return result
	}

	// =========================================================================
	// STEP 5: WRITE OUTPUT FILE
	// =========================================================================

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	name := strings.TrimSuffix(filepath.Base(c.path), filepath.Ext(c.path))
	fileName := utils.GenerateOutputFileName(c.mainConfig.OutputNameFormat, output.Extension, map[string]string{
		"profile": c.profile.ProfileCode,
		"name":    name,
	})

	outputPath, err := c.files.WriteOutput(fileName, output.Data)
	if err != nil {
		return fail(fmt.Errorf("failed to write output: %w", err))
	}

	result.OutputFile = outputPath
	c.logger.Info("Wrote output", zap.String("output", outputPath), zap.Int("bytes", len(output.Data)))

	// =========================================================================
	// STEP 6: ARCHIVE INPUT
	// =========================================================================

	if c.mainConfig.ArchiveInputs {
		archived, err := c.files.ArchiveInputFile(c.path)
		if err != nil {
			// Log the error but don't fail the processing.
			c.logger.Warn("Failed to archive input", zap.Error(err))
		} else {
			c.logger.Debug("Archived input", zap.String("archive", archived))
		}
	}

	result.Success = true
	return result
}

// Convert transcribes a report held in memory and renders the output.
//
// source is the original file name; its extension selects the input adapter.
// Nothing is written to disk.
func Convert(ctx context.Context, source string, data []byte, profile *config.ProfileConfig, logger *zap.Logger) (*Output, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return convert(ctx, source, data, profile, logger)
}

func convert(ctx context.Context, source string, data []byte, profile *config.ProfileConfig, logger *zap.Logger) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tr, err := transcriber.New(profile, transcriber.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}

	w, err := writer.New(profile.Output)
	if err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}

	table, err := readTable(source, data, profile.Input, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("Read input",
		zap.String("format", string(table.Format)),
		zap.String("encoding", table.Encoding),
		zap.Int("rows", len(table.Rows)),
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	transcribed := tr.Transcribe(table.Rows)
	logger.Debug("Transcribed rows",
		zap.Int("rows", transcribed.Stats.Rows),
		zap.Int("marker_rows", transcribed.Stats.MarkerRows),
		zap.Int("data_rows", transcribed.Stats.DataRows),
		zap.Int("total_rows", transcribed.Stats.TotalRows),
		zap.Int("unmatched", transcribed.Stats.Unmatched),
	)

	if err := validation.CheckResult(transcribed.Stats, profile); err != nil {
		return nil, err
	}
	if !transcribed.Stats.Recognized() {
		logger.Warn("No rule matched any row, emitting input unchanged")
	}

	rendered, err := writer.Render(w, transcribed.Rows)
	if err != nil {
		return nil, fmt.Errorf("failed to render output: %w", err)
	}

	return &Output{
		Data:        rendered,
		ContentType: w.ContentType(),
		Extension:   w.Extension(),
		Rows:        transcribed.Rows,
		Stats:       transcribed.Stats,
		Format:      table.Format,
		Encoding:    table.Encoding,
	}, nil
}

// =============================================================================
// INPUT DISPATCH
// =============================================================================

// readTable selects the input adapter by the extension of source.
//
// Some accounting systems save XLSX workbooks with an .xls extension, so an
// XLS file the BIFF reader rejects is retried with the XLSX reader.
func readTable(source string, data []byte, settings config.InputSettings, logger *zap.Logger) (*types.Table, error) {
	format, ok := types.FormatFromPath(source)
	if !ok {
		return nil, types.NewAdapterError(types.Format(strings.TrimPrefix(filepath.Ext(source), ".")), source, "open",
			types.ErrUnsupportedFormat)
	}

	switch format {
	case types.FormatCSV:
		return csvparser.ParseBytes(source, data, settings)

	case types.FormatXLSX:
		return xlsxparser.ParseXLSXReader(source, bytes.NewReader(data), settings)

	case types.FormatXLS:
		table, err := xlsxparser.ParseXLSBytes(source, data, settings)
		if err == nil {
			return table, nil
		}
		logger.Debug("XLS reader failed, trying XLSX reader", zap.Error(err))

		table, fallbackErr := xlsxparser.ParseXLSXReader(source, bytes.NewReader(data), settings)
		if fallbackErr != nil {
			return nil, errors.Join(err, fallbackErr)
		}
		return table, nil

	case types.FormatPDF:
		return pdfparser.ParseBytes(source, data, settings)

	default:
		return nil, types.NewAdapterError(format, source, "open", types.ErrUnsupportedFormat)
	}
}
