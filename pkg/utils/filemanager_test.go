package utils

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *FileManager {
	t.Helper()
	root := t.TempDir()
	fm := NewFileManager(filepath.Join(root, "input"), filepath.Join(root, "output"), filepath.Join(root, "archive"))
	require.NoError(t, fm.EnsureDirectories(true))
	return fm
}

func TestDiscoverInputFiles(t *testing.T) {
	fm := newTestManager(t)

	for _, name := range []string{"b.pdf", "a.csv", "c.xlsx", "d.xls", "notes.docx", ".hidden.csv", "~$c.xlsx", ".transcriber-123"} {
		require.NoError(t, os.WriteFile(filepath.Join(fm.InputDir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(fm.InputDir, "sub.csv"), 0o755))

	files, err := fm.DiscoverInputFiles()
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	assert.Equal(t, []string{"a.csv", "b.pdf", "c.xlsx", "d.xls"}, names)
}

func TestWriteOutput(t *testing.T) {
	fm := newTestManager(t)

	path, err := fm.WriteOutput("report_transcrito.csv", []byte("a;b\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.OutputDir, "report_transcrito.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a;b\n", string(data))

	entries, err := os.ReadDir(fm.OutputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary file is left behind")
}

func TestWriteOutputNeverReplaces(t *testing.T) {
	fm := newTestManager(t)

	first, err := fm.WriteOutput("a_transcrito.xlsx", []byte("from a.csv"))
	require.NoError(t, err)
	second, err := fm.WriteOutput("a_transcrito.xlsx", []byte("from a.xls"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(fm.OutputDir, "a_transcrito.xlsx"), first)
	assert.Equal(t, filepath.Join(fm.OutputDir, "a_transcrito_2.xlsx"), second)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "from a.csv", string(data))
	data, err = os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, "from a.xls", string(data))

	entries, err := os.ReadDir(fm.OutputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temporary file is left behind")
}

func TestWriteOutputConcurrentSameName(t *testing.T) {
	fm := newTestManager(t)

	const writers = 8
	paths := make(chan string, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			path, err := fm.WriteOutput("report.csv", []byte("x"))
			assert.NoError(t, err)
			paths <- path
		}()
	}
	wg.Wait()
	close(paths)

	seen := map[string]bool{}
	for path := range paths {
		assert.False(t, seen[path], "duplicate output path %s", path)
		seen[path] = true
	}
	assert.Len(t, seen, writers)
}

func TestWriteOutputFailureLeavesNothing(t *testing.T) {
	fm := newTestManager(t)
	require.NoError(t, os.Remove(fm.OutputDir))

	_, err := fm.WriteOutput("report.xlsx", []byte("data"))
	require.Error(t, err)
	assert.NoDirExists(t, fm.OutputDir)
}

func TestArchiveInputFile(t *testing.T) {
	fm := newTestManager(t)
	input := filepath.Join(fm.InputDir, "apuracao.csv")
	require.NoError(t, os.WriteFile(input, []byte("x"), 0o644))

	archived, err := fm.ArchiveInputFile(input)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.InputArchiveDir, "apuracao.csv"), archived)
	assert.NoFileExists(t, input)
	assert.FileExists(t, archived)

	fm.UseTimestampSubdirs = true
	require.NoError(t, os.WriteFile(input, []byte("x"), 0o644))
	archived, err = fm.ArchiveInputFile(input)
	require.NoError(t, err)
	assert.Contains(t, archived, time.Now().Format("2006"))
}

func TestGenerateOutputFileName(t *testing.T) {
	name := GenerateOutputFileName("{profile}_{name}", ".xlsx", map[string]string{"profile": "icms_st", "name": "apuracao_jan"})
	assert.Equal(t, "icms_st_apuracao_jan.xlsx", name)

	name = GenerateOutputFileName("{name}_{uuid}.csv", ".csv", map[string]string{"name": "x"})
	assert.True(t, strings.HasPrefix(name, "x_"))
	assert.Equal(t, ".csv", filepath.Ext(name))
	assert.Len(t, name, len("x_")+36+len(".csv"))

	name = GenerateOutputFileName("{name}", ".csv", map[string]string{"name": "../etc/passwd"})
	assert.NotContains(t, name, "/")
}

func TestWriteSummaryLog(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	path, err := WriteSummaryLog(ProcessingSummary{
		StartTime:       start,
		EndTime:         start.Add(2 * time.Second),
		TotalFiles:      2,
		SuccessfulFiles: 1,
		FailedFiles:     1,
		ProcessedFiles:  []ProcessedFileInfo{{InputFile: "a.csv", OutputFile: "a_transcrito.xlsx", Profile: "icms_st", Rows: 10, DataRows: 7}},
		FailedFilesList: []FailedFileInfo{{InputFile: "b.pdf", ErrorMessage: "no recognizable rows"}},
	}, dir)
	require.NoError(t, err)
	assert.Equal(t, "processing_summary_20260115_100002.txt", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Duration:       2s")
	assert.Contains(t, text, "Rows:         10 (7 data)")
	assert.Contains(t, text, "Error:   no recognizable rows")
}
