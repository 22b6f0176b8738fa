package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProfile = `
profile_name: Apuração ICMS-ST
profile_code: icms_st
file_matching_patterns: ["apuracao_*.csv"]
layout:
  min_columns: 23
  fields:
    date: 0
    document: 1
    product_description: 10
rules:
  - name: percentual
    trigger:
      type: phrase
      phrases: ["Percentual de recolhimento efetivo"]
    actions:
      - type: capture_percentage
  - trigger:
      type: data_row
      predicate: serial
    actions:
      - type: write_percentage
        target: "9"
      - type: concat
        target: identifier
        sources: [document, product_description]
`

func TestParseProfileDefaults(t *testing.T) {
	profile, err := ParseProfile([]byte(sampleProfile))
	require.NoError(t, err)

	assert.Equal(t, "icms_st", profile.ProfileCode)
	assert.Equal(t, ";", profile.Input.Delimiter)
	assert.Equal(t, []string{"utf-8", "latin1"}, profile.Input.Encodings)
	assert.Equal(t, 2, profile.Input.PDFColumnGap)
	assert.Equal(t, 23, profile.Layout.MinColumns)
	assert.Equal(t, "keep", profile.Percentage.DecimalSeparator)
	assert.Equal(t, "xlsx", profile.Output.Format)
	assert.Equal(t, "Sheet1", profile.Output.Sheet)

	require.Len(t, profile.Rules, 2)
	assert.Equal(t, "percentual", profile.Rules[0].Name)
	assert.Equal(t, `(\d+)[,.](\d+)`, profile.Rules[0].Actions[0].Pattern)

	assert.Equal(t, "rule_2", profile.Rules[1].Name)
	assert.Equal(t, float64(40000), profile.Rules[1].Trigger.Threshold)
	assert.Equal(t, "-", profile.Rules[1].Actions[1].Separator)
	assert.Equal(t, ModeOverwrite, profile.Rules[1].Actions[1].Mode)
}

func TestParseProfileInvalidYAML(t *testing.T) {
	_, err := ParseProfile([]byte("rules: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse profile")
}

func TestLoadProfiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_second.yaml"), []byte("profile_code: second\nfile_matching_patterns: [\"*.csv\"]\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_first.yml"), []byte("file_matching_patterns: [\"*.pdf\"]\n"), 0o644))

	profiles, err := LoadProfiles(dir)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	// Sorted by file name; code falls back to the file name.
	assert.Equal(t, "a_first", profiles[0].ProfileCode)
	assert.Equal(t, "second", profiles[1].ProfileCode)

	assert.Same(t, profiles[1], MatchProfile(profiles, "/tmp/in/report.csv"))
	assert.Same(t, profiles[0], MatchProfile(profiles, "report.pdf"))
	assert.Nil(t, MatchProfile(profiles, "report.xls"))
	assert.Same(t, profiles[1], FindProfile(profiles, "SECOND"))
}

func TestLoadProfilesDuplicateCode(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.yaml"), []byte("profile_code: same\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two.yaml"), []byte("profile_code: same\n"), 0o644))

	_, err := LoadProfiles(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `profile code "same"`)
}

func TestLoadMainConfig(t *testing.T) {
	t.Run("missing file uses defaults", func(t *testing.T) {
		config, err := LoadMainConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "./input", config.InputDir)
		assert.Equal(t, 4, config.MaxConcurrency)
		assert.Equal(t, "{name}_transcrito", config.OutputNameFormat)
	})

	t.Run("env overrides file values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("output_dir: ./from_file\nlog_level: warn\n"), 0o644))
		t.Setenv("TRANSCRIBER_OUTPUT_DIR", "/srv/out")

		config, err := LoadMainConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "/srv/out", config.OutputDir)
		assert.Equal(t, "warn", config.LogLevel)
	})

	t.Run("invalid log level", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("log_level: chatty\n"), 0o644))

		_, err := LoadMainConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown log_level")
	})
}
