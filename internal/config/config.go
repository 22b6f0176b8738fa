// =============================================================================
// Fiscal Report Transcriber - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing all configuration files.
// It handles both the main application configuration and the transcription
// profiles.
//
// CONFIGURATION FILES:
//   1. Main Config (config.yaml): Global application settings
//   2. Profiles (configs/*.yaml): One file per report layout. A profile holds
//      the input settings, the named-field layout, the declarative rule set
//      and the output settings for one export format of the accounting system.
//
// A profile replaces what used to be a hand-edited copy of the transcription
// routine: which column receives the percentage, which columns are joined into
// the identifier, and with which separator.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
// This is loaded from the main config.yaml file.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is the directory scanned for reports to process.
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir is the directory where transcribed files are written.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// InputArchiveDir receives processed input files when ArchiveInputs is set.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir"`

	// ConfigsDir is the directory containing the profile YAML files.
	// Default: "./configs"
	ConfigsDir string `yaml:"configs_dir"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputNameFormat defines the format for output file names.
	// Placeholders:
	//   {uuid}      - A random UUID
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {profile}   - Profile code
	//   {name}      - Input file name without extension
	//
	// The extension is added from the profile output format.
	// Default: "{name}_transcrito"
	OutputNameFormat string `yaml:"output_name_format"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency is the maximum number of files processed at once.
	// Each file is still transcribed sequentially.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency"`

	// StopOnError aborts the remaining files of a batch after the first failure.
	// Default: false
	StopOnError bool `yaml:"stop_on_error"`

	// ArchiveInputs moves successfully processed inputs to InputArchiveDir.
	// Default: false
	ArchiveInputs bool `yaml:"archive_inputs"`

	// ArchiveByDate files archived inputs under YYYY/MM/DD subdirectories.
	// Default: false
	ArchiveByDate bool `yaml:"archive_by_date"`
}

// =============================================================================
// PROFILE CONFIGURATION STRUCTURE
// =============================================================================

// ProfileConfig holds the configuration for one report layout.
type ProfileConfig struct {
	// ProfileName is the human-readable name of the profile.
	ProfileName string `yaml:"profile_name"`

	// ProfileCode is a short code used in logs, flags and output file names.
	ProfileCode string `yaml:"profile_code"`

	// FileMatchingPatterns is a list of glob patterns matched against the
	// input file name. The first profile with a matching pattern is used.
	// Examples:
	//   - "apuracao_*.csv"
	//   - "*saidas*.xls"
	FileMatchingPatterns []string `yaml:"file_matching_patterns"`

	// Input contains the settings used by the input adapters.
	Input InputSettings `yaml:"input"`

	// Layout maps field names to column indices and sets the padding width.
	Layout Layout `yaml:"layout"`

	// Percentage controls how the captured percentage token is normalized.
	Percentage PercentageSettings `yaml:"percentage"`

	// Rules is the ordered, declarative rule set applied to every row.
	Rules []Rule `yaml:"rules"`

	// Output contains the settings for the emitted file.
	Output OutputSettings `yaml:"output"`

	// AllowUnrecognized emits the output even when no rule matched any row.
	// When false such a file is reported as a failure.
	AllowUnrecognized bool `yaml:"allow_unrecognized"`

	// SourceFile is the path the profile was loaded from.
	SourceFile string `yaml:"-"`
}

// InputSettings contains settings for the input adapters.
type InputSettings struct {
	// Delimiter is the preferred CSV delimiter. "auto" always sniffs.
	// Default: ";"
	Delimiter string `yaml:"delimiter"`

	// Encodings are tried in order when decoding text input.
	// Supported: "utf-8", "latin1" (ISO-8859-1), "windows-1252".
	// Default: ["utf-8", "latin1"]
	Encodings []string `yaml:"encodings"`

	// Sheet selects the spreadsheet sheet by name. Empty selects the first sheet.
	Sheet string `yaml:"sheet"`

	// RawCellValues reads XLSX cells without applying number formats, so dates
	// come through as serial day counts.
	RawCellValues bool `yaml:"raw_cell_values"`

	// XLSCharset is the charset handed to the legacy XLS reader.
	// Default: "utf-8"
	XLSCharset string `yaml:"xls_charset"`

	// PDFColumnGap is the number of consecutive spaces that separates two
	// cells in a PDF text row.
	// Default: 2
	PDFColumnGap int `yaml:"pdf_column_gap"`
}

// Layout is the per-format mapping table from field names to column indices.
type Layout struct {
	// MinColumns is the width every row is padded to before rules apply.
	// Default: 16
	MinColumns int `yaml:"min_columns"`

	// Fields maps names such as "date", "document" or "product_description"
	// to 0-based column indices. Rules may reference these names.
	Fields map[string]int `yaml:"fields"`
}

// PercentageSettings controls the normalization of the captured percentage.
type PercentageSettings struct {
	// DecimalSeparator is "keep", "comma" or "dot".
	// Default: "keep"
	DecimalSeparator string `yaml:"decimal_separator"`
}

// =============================================================================
// RULE STRUCTURES
// =============================================================================

// Rule pairs a trigger with the actions applied to rows matching it.
type Rule struct {
	// Name is used in logs and validation messages.
	Name string `yaml:"name"`

	// Trigger decides whether the rule applies to a row.
	Trigger Trigger `yaml:"trigger"`

	// Actions are applied in order to a matching row.
	Actions []Action `yaml:"actions"`
}

// Trigger types.
const (
	TriggerPhrase  = "phrase"
	TriggerDataRow = "data_row"
)

// Data row predicates.
const (
	PredicateDate         = "date"
	PredicateSerial       = "serial"
	PredicateDateOrSerial = "date_or_serial"
)

// Trigger describes a row predicate.
type Trigger struct {
	// Type is "phrase" or "data_row".
	Type string `yaml:"type"`

	// Phrases are substrings searched in the row text (phrase triggers).
	Phrases []string `yaml:"phrases"`

	// IgnoreCase folds case when matching phrases.
	IgnoreCase bool `yaml:"ignore_case"`

	// Predicate is "date", "serial" or "date_or_serial" (data_row triggers).
	Predicate string `yaml:"predicate"`

	// Threshold is the exclusive lower bound for the serial predicate.
	// Default: 40000
	Threshold float64 `yaml:"threshold"`
}

// Action types.
const (
	ActionCapturePercentage = "capture_percentage"
	ActionWritePercentage   = "write_percentage"
	ActionConcat            = "concat"
	ActionWriteLiteral      = "write_literal"
)

// Concat modes.
const (
	ModeOverwrite = "overwrite"
	ModeAppend    = "append"
)

// Action describes a single row mutation or state update.
type Action struct {
	// Type is one of the Action* constants.
	Type string `yaml:"type"`

	// Target is the destination cell: a layout field name, a 0-based index
	// or a column letter.
	Target string `yaml:"target"`

	// Sources are the two cells joined by a concat action.
	Sources []string `yaml:"sources"`

	// Separator joins the concat sources.
	// Default: "-"
	Separator string `yaml:"separator"`

	// Mode is "overwrite" or "append" for concat actions.
	// Default: "overwrite"
	Mode string `yaml:"mode"`

	// Value is the literal written by write_literal.
	Value string `yaml:"value"`

	// Pattern is the regular expression locating the percentage token.
	// Default: `(\d+)[,.](\d+)`
	Pattern string `yaml:"pattern"`

	// RecordColumn remembers the cell index where the token was found.
	RecordColumn bool `yaml:"record_column"`

	// UseMarkerColumn writes the percentage at the recorded marker column.
	UseMarkerColumn bool `yaml:"use_marker_column"`
}

// =============================================================================
// OUTPUT SETTINGS STRUCTURE
// =============================================================================

// OutputSettings contains settings for the emitted file.
type OutputSettings struct {
	// Format is "xlsx" or "csv".
	// Default: "xlsx"
	Format string `yaml:"format"`

	// Delimiter is the CSV delimiter.
	// Default: ";"
	Delimiter string `yaml:"delimiter"`

	// Encoding is the CSV encoding.
	// Default: "utf-8"
	Encoding string `yaml:"encoding"`

	// Sheet is the name of the XLSX sheet.
	// Default: "Sheet1"
	Sheet string `yaml:"sheet"`

	// ColumnWidths maps a column ("J") or range ("A:C") to a width.
	ColumnWidths map[string]float64 `yaml:"column_widths"`

	// Align maps a column or range to "left", "center" or "right".
	Align map[string]string `yaml:"align"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// DefaultMainConfig returns a MainConfig with every default applied.
func DefaultMainConfig() *MainConfig {
	config := &MainConfig{}
	applyMainConfigDefaults(config)
	return config
}

// LoadMainConfig loads the main configuration from a YAML file.
//
// A missing file is not an error: the defaults are used instead, so the
// tool runs out of the box against ./input and ./configs. Environment
// overrides are applied after the file and before validation.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	var config MainConfig

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Fall through with an empty config.
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvOverrides()
	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.InputArchiveDir == "" {
		config.InputArchiveDir = "./input_archive"
	}
	if config.ConfigsDir == "" {
		config.ConfigsDir = "./configs"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.OutputNameFormat == "" {
		config.OutputNameFormat = "{name}_transcrito"
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 4
	}
}

// applyEnvOverrides lets the environment replace directory and log settings.
func (c *MainConfig) applyEnvOverrides() {
	if v := os.Getenv("TRANSCRIBER_INPUT_DIR"); v != "" {
		c.InputDir = v
	}
	if v := os.Getenv("TRANSCRIBER_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("TRANSCRIBER_CONFIGS_DIR"); v != "" {
		c.ConfigsDir = v
	}
	if v := os.Getenv("TRANSCRIBER_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// validateMainConfig validates the main configuration.
func validateMainConfig(config *MainConfig) error {
	switch strings.ToLower(config.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", config.LogLevel)
	}

	if config.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be at least 1, got %d", config.MaxConcurrency)
	}

	return nil
}

// LoadProfiles loads all profiles from a directory.
//
// RETURNS:
//   - The profiles sorted by file name, so file matching is deterministic.
//   - An error if any file cannot be read or parsed, or two profiles share a code.
func LoadProfiles(configsDir string) ([]*ProfileConfig, error) {
	files, err := filepath.Glob(filepath.Join(configsDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profile files: %w", err)
	}

	// Also check for .yml extension.
	ymlFiles, err := filepath.Glob(filepath.Join(configsDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profile files: %w", err)
	}
	files = append(files, ymlFiles...)
	sort.Strings(files)

	profiles := make([]*ProfileConfig, 0, len(files))
	seen := make(map[string]string)

	for _, file := range files {
		profile, err := LoadProfile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}

		if prev, dup := seen[profile.ProfileCode]; dup {
			return nil, fmt.Errorf("profile code %q defined in both %s and %s", profile.ProfileCode, prev, file)
		}
		seen[profile.ProfileCode] = file

		profiles = append(profiles, profile)
	}

	return profiles, nil
}

// LoadProfile loads a single profile file.
func LoadProfile(filePath string) (*ProfileConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	profile, err := ParseProfile(data)
	if err != nil {
		return nil, err
	}

	profile.SourceFile = filePath
	if profile.ProfileCode == "" {
		profile.ProfileCode = strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	}

	return profile, nil
}

// ParseProfile parses a profile from YAML and applies defaults.
func ParseProfile(data []byte) (*ProfileConfig, error) {
	var profile ProfileConfig
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}

	applyProfileDefaults(&profile)

	return &profile, nil
}

// applyProfileDefaults sets default values for a profile.
func applyProfileDefaults(profile *ProfileConfig) {
	// Input defaults.
	if profile.Input.Delimiter == "" {
		profile.Input.Delimiter = ";"
	}
	if len(profile.Input.Encodings) == 0 {
		profile.Input.Encodings = []string{"utf-8", "latin1"}
	}
	if profile.Input.XLSCharset == "" {
		profile.Input.XLSCharset = "utf-8"
	}
	if profile.Input.PDFColumnGap == 0 {
		profile.Input.PDFColumnGap = 2
	}

	// Layout defaults.
	if profile.Layout.MinColumns == 0 {
		profile.Layout.MinColumns = 16
	}

	// Percentage defaults.
	if profile.Percentage.DecimalSeparator == "" {
		profile.Percentage.DecimalSeparator = "keep"
	}

	// Rule defaults.
	for i := range profile.Rules {
		rule := &profile.Rules[i]
		if rule.Name == "" {
			rule.Name = fmt.Sprintf("rule_%d", i+1)
		}
		if rule.Trigger.Type == TriggerDataRow {
			if rule.Trigger.Predicate == "" {
				rule.Trigger.Predicate = PredicateDate
			}
			if rule.Trigger.Threshold == 0 {
				rule.Trigger.Threshold = 40000
			}
		}
		for j := range rule.Actions {
			action := &rule.Actions[j]
			if action.Type == ActionConcat {
				if action.Separator == "" {
					action.Separator = "-"
				}
				if action.Mode == "" {
					action.Mode = ModeOverwrite
				}
			}
			if action.Type == ActionCapturePercentage && action.Pattern == "" {
				action.Pattern = `(\d+)[,.](\d+)`
			}
		}
	}

	// Output defaults.
	if profile.Output.Format == "" {
		profile.Output.Format = "xlsx"
	}
	if profile.Output.Delimiter == "" {
		profile.Output.Delimiter = ";"
	}
	if profile.Output.Encoding == "" {
		profile.Output.Encoding = "utf-8"
	}
	if profile.Output.Sheet == "" {
		profile.Output.Sheet = "Sheet1"
	}
}

// =============================================================================
// PROFILE SELECTION
// =============================================================================

// FindProfile returns the profile with the given code, or nil.
func FindProfile(profiles []*ProfileConfig, code string) *ProfileConfig {
	for _, profile := range profiles {
		if strings.EqualFold(profile.ProfileCode, code) {
			return profile
		}
	}
	return nil
}

// MatchProfile returns the first profile whose patterns match the file name.
func MatchProfile(profiles []*ProfileConfig, filePath string) *ProfileConfig {
	fileName := filepath.Base(filePath)

	for _, profile := range profiles {
		for _, pattern := range profile.FileMatchingPatterns {
			matched, err := filepath.Match(pattern, fileName)
			if err != nil {
				// Invalid pattern, skip it.
				continue
			}
			if matched {
				return profile
			}
		}
	}

	return nil
}
