// =============================================================================
// Fiscal Report Transcriber - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for the transcriber:
//   - Input discovery (every supported report format in the input directory)
//   - Atomic output writes (temp file + rename in the output directory)
//   - Input archival (moving processed reports out of the input directory)
//   - Output file naming
//   - Summary log generation
//
// ARCHIVAL STRATEGY:
//   - Input files are moved to input_archive after successful processing,
//     when archive_inputs is enabled
//   - Failed files remain in their original location
//   - Outputs are never archived; they are the deliverable
//
// =============================================================================

package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/fiscal-transcriber/internal/types"
)

// tempPrefix marks partial outputs. Discovery ignores files with it.
const tempPrefix = ".transcriber-"

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the transcriber.
type FileManager struct {
	// InputDir is the directory where input reports are placed.
	InputDir string

	// OutputDir is the directory where transcribed files are placed.
	OutputDir string

	// InputArchiveDir is the directory for archived input reports.
	InputArchiveDir string

	// UseTimestampSubdirs creates date-based subdirectories in the archive.
	// Example: input_archive/2026/01/15/apuracao.csv
	UseTimestampSubdirs bool
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir, inputArchiveDir string) *FileManager {
	return &FileManager{
		InputDir:        inputDir,
		OutputDir:       outputDir,
		InputArchiveDir: inputArchiveDir,
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates the input and output directories, and the
// archive directory when withArchive is set.
func (fm *FileManager) EnsureDirectories(withArchive bool) error {
	dirs := []string{fm.InputDir, fm.OutputDir}
	if withArchive {
		dirs = append(dirs, fm.InputArchiveDir)
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles lists the reports in the input directory.
//
// RETURNS:
//   - The paths of regular files with a supported extension, sorted by name.
//     Hidden files, spreadsheet lock files ("~$...") and partial outputs are
//     skipped.
//   - An error if the directory cannot be read.
func (fm *FileManager) DiscoverInputFiles() ([]string, error) {
	entries, err := os.ReadDir(fm.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		if _, ok := types.FormatFromPath(name); !ok {
			continue
		}
		files = append(files, filepath.Join(fm.InputDir, name))
	}

	sort.Strings(files)
	return files, nil
}

// =============================================================================
// OUTPUT WRITING
// =============================================================================

// WriteOutput writes data to fileName in the output directory and returns
// the path written.
//
// The data is written to a temporary file first and linked into place, so a
// reader of the output directory never sees a partial file. An existing file
// is never replaced: when fileName is taken, "_2", "_3", ... is added before
// the extension. On error the temporary file is removed.
func (fm *FileManager) WriteOutput(fileName string, data []byte) (path string, err error) {
	tmp, err := os.CreateTemp(fm.OutputDir, tempPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return "", fmt.Errorf("failed to write output: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return "", fmt.Errorf("failed to sync output: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close output: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("failed to set output permissions: %w", err)
	}

	target, err := fm.claim(tmp.Name(), fileName)
	if err != nil {
		return "", err
	}
	os.Remove(tmp.Name())

	return target, nil
}

// maxNameAttempts bounds the suffixes tried by claim.
const maxNameAttempts = 1000

// claim hard-links the finished temporary file under fileName, or under the
// first free suffixed name. os.Link fails when the name exists, so two
// workers producing the same name cannot overwrite each other.
func (fm *FileManager) claim(tmpPath, fileName string) (string, error) {
	ext := filepath.Ext(fileName)
	base := strings.TrimSuffix(fileName, ext)

	for n := 1; n <= maxNameAttempts; n++ {
		name := fileName
		if n > 1 {
			name = fmt.Sprintf("%s_%d%s", base, n, ext)
		}
		target := filepath.Join(fm.OutputDir, name)

		err := os.Link(tmpPath, target)
		if err == nil {
			return target, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("failed to move output into place: %w", err)
		}
	}

	return "", fmt.Errorf("failed to move output into place: %d names taken for %s", maxNameAttempts, fileName)
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves an input file to the archive directory.
//
// RETURNS:
//   - The path to the archived file.
//   - An error if archival fails.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	archivePath := fm.getArchivePath(filePath)

	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// If rename fails (e.g., cross-device), try copy and delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

// getArchivePath constructs the archive path for a file.
func (fm *FileManager) getArchivePath(filePath string) string {
	fileName := filepath.Base(filePath)

	if fm.UseTimestampSubdirs {
		now := time.Now()
		return filepath.Join(
			fm.InputArchiveDir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
			fileName,
		)
	}

	return filepath.Join(fm.InputArchiveDir, fileName)
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName generates the output file name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//     Placeholders:
//     {uuid}      - A random UUID
//     {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//     {date}      - Current date (YYYYMMDD)
//     {profile}   - Profile code (from params)
//     {name}      - Input file name without extension (from params)
//   - extension: The extension of the output format, with the dot.
//   - params: A map of placeholder values.
//
// EXAMPLE:
//
//	format: "{profile}_{name}_{uuid}"
//	params: {"profile": "icms_st", "name": "apuracao_jan"}
//	output: "icms_st_apuracao_jan_a1b2c3d4-e5f6-7890-abcd-ef1234567890.xlsx"
func GenerateOutputFileName(format, extension string, params map[string]string) string {
	now := time.Now()

	replacements := map[string]string{
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	if strings.Contains(result, "{uuid}") {
		result = strings.ReplaceAll(result, "{uuid}", uuid.New().String())
	}
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	// A placeholder value must not move the file out of the output directory.
	result = strings.NewReplacer("/", "_", "\\", "_").Replace(result)
	if result == "" {
		result = uuid.New().String()
	}

	if !strings.EqualFold(filepath.Ext(result), extension) {
		result += extension
	}

	return result
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a processing run.
type ProcessingSummary struct {
	StartTime       time.Time
	EndTime         time.Time
	DryRun          bool
	TotalFiles      int
	SuccessfulFiles int
	FailedFiles     int
	TotalRows       int
	DataRows        int
	MarkerRows      int
	SubtotalRows    int
	ProcessedFiles  []ProcessedFileInfo
	FailedFilesList []FailedFileInfo
}

// ProcessedFileInfo contains information about a successfully processed file.
type ProcessedFileInfo struct {
	InputFile   string
	OutputFile  string
	Profile     string
	Rows        int
	DataRows    int
	ProcessTime time.Duration
}

// FailedFileInfo contains information about a failed file.
type FailedFileInfo struct {
	InputFile    string
	Profile      string
	ErrorMessage string
}

// WriteSummaryLog writes a processing summary to a log file.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	timestamp := summary.EndTime.Format("20060102_150405")
	summaryPath := filepath.Join(outputDir, fmt.Sprintf("processing_summary_%s.txt", timestamp))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	if err := writeSummary(file, summary); err != nil {
		return "", err
	}

	return summaryPath, nil
}

func writeSummary(w io.Writer, summary ProcessingSummary) error {
	writer := bufio.NewWriter(w)

	mode := "write"
	if summary.DryRun {
		mode = "dry run"
	}

	fmt.Fprintf(writer, "Fiscal Report Transcriber - Processing Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n"+
		"  Mode:           %s\n\n"+
		"Statistics:\n"+
		"  Total Files:    %d\n"+
		"  Successful:     %d\n"+
		"  Failed:         %d\n"+
		"  Rows:           %d\n"+
		"  Data Rows:      %d\n"+
		"  Marker Rows:    %d\n"+
		"  Subtotal Rows:  %d\n\n",
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String(),
		mode,
		summary.TotalFiles,
		summary.SuccessfulFiles,
		summary.FailedFiles,
		summary.TotalRows,
		summary.DataRows,
		summary.MarkerRows,
		summary.SubtotalRows)

	if len(summary.ProcessedFiles) > 0 {
		writer.WriteString("Successful Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, pf := range summary.ProcessedFiles {
			fmt.Fprintf(writer, "  Input:        %s\n", pf.InputFile)
			fmt.Fprintf(writer, "  Profile:      %s\n", pf.Profile)
			if pf.OutputFile != "" {
				fmt.Fprintf(writer, "  Output:       %s\n", pf.OutputFile)
			}
			fmt.Fprintf(writer, "  Rows:         %d (%d data)\n", pf.Rows, pf.DataRows)
			fmt.Fprintf(writer, "  Process Time: %s\n\n", pf.ProcessTime.String())
		}
	}

	if len(summary.FailedFilesList) > 0 {
		writer.WriteString("Failed Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, ff := range summary.FailedFilesList {
			fmt.Fprintf(writer, "  File:    %s\n", ff.InputFile)
			if ff.Profile != "" {
				fmt.Fprintf(writer, "  Profile: %s\n", ff.Profile)
			}
			fmt.Fprintf(writer, "  Error:   %s\n\n", ff.ErrorMessage)
		}
	}

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush summary file: %w", err)
	}
	return nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}
