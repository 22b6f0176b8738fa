package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/ginjaninja78/fiscal-transcriber/internal/config"
	"github.com/ginjaninja78/fiscal-transcriber/internal/validation"
	"github.com/ginjaninja78/fiscal-transcriber/pkg/utils"
)

func TestShippedProfilesAreValid(t *testing.T) {
	profiles, err := config.LoadProfiles(filepath.Join("..", "configs"))
	require.NoError(t, err)
	require.NotEmpty(t, profiles)

	for _, profile := range profiles {
		errs := validation.ValidateProfile(profile)
		assert.False(t, validation.HasErrors(errs), "%s: %s", profile.ProfileCode, validation.FormatErrors(errs))
	}
}

func TestShippedMainConfigLoads(t *testing.T) {
	mainConfig, err := config.LoadMainConfig(filepath.Join("..", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "{name}_transcrito", mainConfig.OutputNameFormat)
	assert.Equal(t, 4, mainConfig.MaxConcurrency)
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger("", false)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = newLogger("warn", true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel), "verbose wins over the configured level")

	_, err = newLogger("loud", false)
	assert.Error(t, err)
}

func TestMatchJobs(t *testing.T) {
	saidas := &config.ProfileConfig{ProfileCode: "saidas", FileMatchingPatterns: []string{"*saidas*.csv"}}
	pdf := &config.ProfileConfig{ProfileCode: "pdf", FileMatchingPatterns: []string{"*.pdf"}}
	profiles := []*config.ProfileConfig{saidas, pdf}

	jobs, err := matchJobs([]string{"in/jan_saidas.csv", "in/b.pdf", "in/x.xlsx"}, profiles, "")
	require.NoError(t, err)
	assert.Same(t, saidas, jobs[0].profile)
	assert.Same(t, pdf, jobs[1].profile)
	assert.Nil(t, jobs[2].profile)

	jobs, err = matchJobs([]string{"in/x.xlsx"}, profiles, "PDF")
	require.NoError(t, err)
	assert.Same(t, pdf, jobs[0].profile)

	_, err = matchJobs([]string{"in/x.xlsx"}, profiles, "missing")
	assert.Error(t, err)
}

func TestProcessJobs(t *testing.T) {
	root := t.TempDir()
	mainConfig := config.DefaultMainConfig()
	mainConfig.InputDir = filepath.Join(root, "input")
	mainConfig.OutputDir = filepath.Join(root, "output")
	files := utils.NewFileManager(mainConfig.InputDir, mainConfig.OutputDir, filepath.Join(root, "archive"))
	require.NoError(t, files.EnsureDirectories(false))

	profile, err := config.ParseProfile([]byte(`
profile_code: saidas
layout: {min_columns: 4, fields: {percentage: 3}}
rules:
  - trigger: {type: phrase, phrases: ["Percentual de recolhimento efetivo"]}
    actions: [{type: capture_percentage}]
  - trigger: {type: data_row}
    actions: [{type: write_percentage, target: percentage}]
output: {format: csv}
`))
	require.NoError(t, err)

	good := filepath.Join(mainConfig.InputDir, "b_saidas.csv")
	bad := filepath.Join(mainConfig.InputDir, "a_saidas.csv")
	require.NoError(t, os.WriteFile(good, []byte("Percentual de recolhimento efetivo 1,30\n01/02/2026;X\n"), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("nothing;to;see\n"), 0o644))

	results := processJobs(context.Background(), []job{
		{path: good, profile: profile},
		{path: bad, profile: profile},
		{path: filepath.Join(mainConfig.InputDir, "c.docx")},
	}, mainConfig, files)
	require.Len(t, results, 3)

	assert.Equal(t, bad, results[0].FilePath, "results are sorted by path")
	assert.False(t, results[0].Success)
	assert.True(t, results[1].Success, "%v", results[1].Error)
	assert.False(t, results[2].Success)

	summary := buildSummary(results, time.Now())
	assert.Equal(t, 3, summary.TotalFiles)
	assert.Equal(t, 1, summary.SuccessfulFiles)
	assert.Equal(t, 2, summary.FailedFiles)
	assert.Equal(t, 2, summary.TotalRows)
	assert.Equal(t, 1, summary.DataRows)
	assert.Equal(t, 1, summary.MarkerRows)
	assert.Equal(t, "no matching profile found", summary.FailedFilesList[1].ErrorMessage)
}
