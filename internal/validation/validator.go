// =============================================================================
// Fiscal Report Transcriber - Validation Engine
// =============================================================================
//
// This module provides two kinds of validation:
//
//   1. Profile validation (ValidateProfile): checks a profile before any file
//      is processed. Compilation errors of the rule set are fatal; settings
//      that are legal but probably wrong (a write_percentage rule with no
//      capturing rule, a target outside the padded layout) are warnings.
//
//   2. Result validation (CheckResult): decides whether the outcome of one
//      transcription pass may be emitted. A file in which no rule matched a
//      single row is treated as an extraction failure.
//
// ERROR HANDLING:
//   - Profile errors are collected, not returned one at a time
//   - Each error names the profile, the rule and the offending value
//   - Warnings are reported but do not stop processing
//
// =============================================================================

package validation

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/fiscal-transcriber/internal/config"
	"github.com/ginjaninja78/fiscal-transcriber/internal/textenc"
	"github.com/ginjaninja78/fiscal-transcriber/internal/transcriber"
	"github.com/ginjaninja78/fiscal-transcriber/internal/types"
	"github.com/ginjaninja78/fiscal-transcriber/internal/writer"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single profile problem.
type ValidationError struct {
	// Severity is SeverityError (the profile cannot be used) or
	// SeverityWarning (the profile works but is suspicious).
	Severity string

	// Profile is the code of the profile.
	Profile string

	// Rule is the name of the rule, or "" for profile-level settings.
	Rule string

	// Field is the setting that failed validation.
	Field string

	// Value is the offending value.
	Value string

	// Message is a human-readable error message.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	location := fmt.Sprintf("Profile '%s'", e.Profile)
	if e.Rule != "" {
		location += fmt.Sprintf(", Rule '%s'", e.Rule)
	}
	msg := fmt.Sprintf("[%s] %s, Field '%s': %s", strings.ToUpper(e.Severity), location, e.Field, e.Message)
	if e.Value != "" {
		msg += fmt.Sprintf(" (value: '%s')", e.Value)
	}
	return msg
}

// HasErrors reports whether any entry has error severity.
func HasErrors(errs []*ValidationError) bool {
	for _, err := range errs {
		if err.Severity == SeverityError {
			return true
		}
	}
	return false
}

// =============================================================================
// PROFILE VALIDATION
// =============================================================================

// ValidateProfile checks a profile and returns every problem found.
func ValidateProfile(profile *config.ProfileConfig) []*ValidationError {
	v := &profileValidator{profile: profile}

	v.checkIdentity()
	v.checkInput()
	v.checkLayout()
	v.checkRules()
	v.checkOutput()

	// The transcriber compiles the rule set exactly as the converter will.
	if _, err := transcriber.New(profile); err != nil {
		v.add(SeverityError, "", "rules", "", err.Error())
	}

	return v.errs
}

type profileValidator struct {
	profile *config.ProfileConfig
	errs    []*ValidationError
}

func (v *profileValidator) add(severity, rule, field, value, message string) {
	v.errs = append(v.errs, &ValidationError{
		Severity: severity,
		Profile:  v.profile.ProfileCode,
		Rule:     rule,
		Field:    field,
		Value:    value,
		Message:  message,
	})
}

func (v *profileValidator) checkIdentity() {
	if v.profile.ProfileCode == "" {
		v.add(SeverityError, "", "profile_code", "", "profile code is required")
	}
	if len(v.profile.FileMatchingPatterns) == 0 {
		v.add(SeverityWarning, "", "file_matching_patterns", "", "no patterns; the profile is only used with --profile")
	}
}

func (v *profileValidator) checkInput() {
	for _, name := range v.profile.Input.Encodings {
		if _, err := textenc.Canonical(name); err != nil {
			v.add(SeverityError, "", "input.encodings", name, err.Error())
		}
	}
	if d := v.profile.Input.Delimiter; d != "" && !strings.EqualFold(d, "auto") && len([]rune(d)) > 1 && !knownDelimiterAlias(d) {
		v.add(SeverityError, "", "input.delimiter", d, "delimiter must be a single character, an alias or \"auto\"")
	}
	if v.profile.Input.PDFColumnGap < 1 {
		v.add(SeverityError, "", "input.pdf_column_gap", fmt.Sprint(v.profile.Input.PDFColumnGap), "gap must be at least 1")
	}
}

func knownDelimiterAlias(d string) bool {
	switch d {
	case "\\t", "tab", "TAB", "pipe", "PIPE", "semicolon", "comma":
		return true
	}
	return false
}

func (v *profileValidator) checkLayout() {
	layout := v.profile.Layout
	if layout.MinColumns < 1 || layout.MinColumns > excelize.MaxColumns {
		v.add(SeverityError, "", "layout.min_columns", fmt.Sprint(layout.MinColumns),
			fmt.Sprintf("must be between 1 and %d", excelize.MaxColumns))
	}
	for name, idx := range layout.Fields {
		if idx < 0 || idx >= excelize.MaxColumns {
			v.add(SeverityError, "", "layout.fields."+name, fmt.Sprint(idx), "column index out of range")
		}
	}
}

func (v *profileValidator) checkRules() {
	if len(v.profile.Rules) == 0 {
		v.add(SeverityWarning, "", "rules", "", "no rules; every row passes through unchanged")
		return
	}

	captures := false
	for _, rule := range v.profile.Rules {
		for _, action := range rule.Actions {
			if action.Type == config.ActionCapturePercentage {
				captures = true
			}
		}
	}

	for _, rule := range v.profile.Rules {
		for _, action := range rule.Actions {
			if action.Type == config.ActionWritePercentage && !captures {
				v.add(SeverityWarning, rule.Name, "actions", action.Type, "no rule captures a percentage; nothing will be written")
			}
			idx, ok := v.numericTarget(action.Target)
			switch {
			case !ok:
			case idx < 0 || idx >= excelize.MaxColumns:
				v.add(SeverityError, rule.Name, "target", action.Target,
					fmt.Sprintf("column index out of range (max %d)", excelize.MaxColumns-1))
			case idx >= v.profile.Layout.MinColumns:
				v.add(SeverityWarning, rule.Name, "target", action.Target,
					fmt.Sprintf("target lies beyond min_columns (%d); rows will grow past the layout", v.profile.Layout.MinColumns))
			}
		}
	}
}

// numericTarget resolves a target through the layout fields or as an integer.
func (v *profileValidator) numericTarget(target string) (int, bool) {
	if target == "" {
		return 0, false
	}
	if idx, ok := v.profile.Layout.Fields[target]; ok {
		return idx, true
	}
	if idx, err := strconv.Atoi(target); err == nil {
		return idx, true
	}
	return 0, false
}

func (v *profileValidator) checkOutput() {
	output := v.profile.Output

	if _, err := writer.New(output); err != nil {
		v.add(SeverityError, "", "output.format", output.Format, err.Error())
	}
	if _, err := textenc.Canonical(output.Encoding); err != nil {
		v.add(SeverityError, "", "output.encoding", output.Encoding, err.Error())
	}

	for columns := range output.ColumnWidths {
		if !validColumnRange(columns) {
			v.add(SeverityError, "", "output.column_widths", columns, "invalid column or range")
		}
	}
	for columns, align := range output.Align {
		if !validColumnRange(columns) {
			v.add(SeverityError, "", "output.align", columns, "invalid column or range")
		}
		switch strings.ToLower(align) {
		case "left", "center", "right", "general", "justify":
		default:
			v.add(SeverityError, "", "output.align", align, "unknown alignment")
		}
	}
}

func validColumnRange(columns string) bool {
	start, end, _ := strings.Cut(columns, ":")
	if end == "" {
		end = start
	}
	for _, col := range []string{start, end} {
		if _, err := excelize.ColumnNameToNumber(col); err != nil {
			return false
		}
	}
	return true
}

// =============================================================================
// RESULT VALIDATION
// =============================================================================

// CheckResult decides whether a transcription result may be emitted.
//
// RETURNS:
//   - types.ErrEmptyInput (wrapped) when the table had no rows.
//   - types.ErrNoRecognizedRows (wrapped) when no rule matched any row and
//     the profile does not allow it.
func CheckResult(stats transcriber.Stats, profile *config.ProfileConfig) error {
	if stats.Rows == 0 {
		return fmt.Errorf("nothing to transcribe: %w", types.ErrEmptyInput)
	}
	if !stats.Recognized() && !profile.AllowUnrecognized {
		return fmt.Errorf("profile %s matched none of %d rows: %w", profile.ProfileCode, stats.Rows, types.ErrNoRecognizedRows)
	}
	return nil
}

// =============================================================================
// ERROR OUTPUT
// =============================================================================

// FormatErrors formats validation errors for display or logging.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Validation completed with %d issue(s):\n\n", len(errors)))

	for i, err := range errors {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}

	return builder.String()
}

// WriteErrorLog writes validation errors to a log file.
func WriteErrorLog(errors []*ValidationError, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	fmt.Fprintf(w, "Profile validation - %s\n\n", time.Now().Format(time.RFC3339))
	w.WriteString(FormatErrors(errors))

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write error log: %w", err)
	}
	return file.Close()
}
