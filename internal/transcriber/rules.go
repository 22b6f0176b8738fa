// =============================================================================
// Fiscal Report Transcriber - Rule Compilation
// =============================================================================
//
// Profiles describe their rules declaratively (see config.Rule). This file
// compiles them once per Transcriber into trigger and action values, so the
// row loop never parses a regular expression or a column reference.
//
// TRIGGERS:
//   - phrase   : the row text contains one of the phrases
//   - data_row : the first cell looks like a date ("02/01/2026") or like a
//                spreadsheet date serial (a number above the threshold)
//
// ACTIONS:
//   - capture_percentage : store the numeric token of the row in the state
//   - write_percentage   : write the stored token into a cell
//   - concat             : join two cells into an identifier cell
//   - write_literal      : write a fixed value into a cell
//
// =============================================================================

package transcriber

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/fiscal-transcriber/internal/config"
	"github.com/ginjaninja78/fiscal-transcriber/internal/types"
)

// =============================================================================
// TRIGGERS
// =============================================================================

type trigger interface {
	match(row types.Row, blob string) bool
}

// phraseTrigger matches rows whose text contains any phrase.
type phraseTrigger struct {
	phrases    []string
	ignoreCase bool
}

func (t phraseTrigger) match(_ types.Row, blob string) bool {
	if t.ignoreCase {
		blob = strings.ToLower(blob)
	}
	for _, phrase := range t.phrases {
		if strings.Contains(blob, phrase) {
			return true
		}
	}
	return false
}

// datePrefix is two leading digits followed by a slash.
var datePrefix = regexp.MustCompile(`^\d{2}/`)

// dataRowTrigger classifies transactional line items by their first cell.
type dataRowTrigger struct {
	date      bool
	serial    bool
	threshold decimal.Decimal
}

func (t dataRowTrigger) match(row types.Row, _ string) bool {
	first := strings.TrimSpace(row.Cell(0))
	if first == "" {
		return false
	}
	if t.date && isDateCell(first) {
		return true
	}
	if t.serial && isSerialAbove(first, t.threshold) {
		return true
	}
	return false
}

func isDateCell(cell string) bool {
	return datePrefix.MatchString(cell)
}

// isSerialAbove reports whether cell is a number strictly greater than
// threshold. A single comma is read as the decimal separator.
func isSerialAbove(cell string, threshold decimal.Decimal) bool {
	if strings.Count(cell, ",") == 1 && !strings.Contains(cell, ".") {
		cell = strings.Replace(cell, ",", ".", 1)
	}
	d, err := decimal.NewFromString(cell)
	if err != nil {
		return false
	}
	return d.GreaterThan(threshold)
}

func compileTrigger(t config.Trigger) (trigger, error) {
	switch t.Type {
	case config.TriggerPhrase:
		if len(t.Phrases) == 0 {
			return nil, fmt.Errorf("phrase trigger needs at least one phrase")
		}
		phrases := make([]string, 0, len(t.Phrases))
		for _, phrase := range t.Phrases {
			if phrase == "" {
				return nil, fmt.Errorf("phrase trigger has an empty phrase")
			}
			if t.IgnoreCase {
				phrase = strings.ToLower(phrase)
			}
			phrases = append(phrases, phrase)
		}
		return phraseTrigger{phrases: phrases, ignoreCase: t.IgnoreCase}, nil

	case config.TriggerDataRow:
		trig := dataRowTrigger{threshold: decimal.NewFromFloat(t.Threshold)}
		switch t.Predicate {
		case config.PredicateDate:
			trig.date = true
		case config.PredicateSerial:
			trig.serial = true
		case config.PredicateDateOrSerial:
			trig.date, trig.serial = true, true
		default:
			return nil, fmt.Errorf("unknown data_row predicate %q", t.Predicate)
		}
		return trig, nil

	default:
		return nil, fmt.Errorf("unknown trigger type %q", t.Type)
	}
}

// =============================================================================
// ACTIONS
// =============================================================================

type action interface {
	apply(row types.Row, blob string, state *State) types.Row
}

// captureAction stores the numeric token of a marker row.
type captureAction struct {
	pattern      *regexp.Regexp
	recordColumn bool
	normalize    normalizer
}

func (a captureAction) apply(row types.Row, blob string, state *State) types.Row {
	token := a.pattern.FindString(blob)
	if token == "" {
		// Marker phrase without a token keeps the previous value.
		return row
	}

	state.Percentage = a.normalize(token)
	state.Set = true
	state.Column = -1

	if a.recordColumn {
		for i, cell := range row {
			if strings.Contains(cell, token) {
				state.Column = i
				break
			}
		}
	}

	return row
}

// writePercentageAction copies the carried percentage into a cell.
type writePercentageAction struct {
	target          int
	useMarkerColumn bool
}

func (a writePercentageAction) apply(row types.Row, _ string, state *State) types.Row {
	if !state.Set {
		return row
	}
	idx := a.target
	if a.useMarkerColumn && state.Column >= 0 {
		idx = state.Column
	}
	return setCell(row, idx, state.Percentage)
}

// concatAction joins two cells into the identifier cell.
type concatAction struct {
	left, right int
	target      int
	separator   string
	appendCell  bool
}

func (a concatAction) apply(row types.Row, _ string, _ *State) types.Row {
	value := joinParts(a.separator, row.Cell(a.left), row.Cell(a.right))
	if value == "" {
		return row
	}
	if a.appendCell {
		return append(row, value)
	}
	return setCell(row, a.target, value)
}

// joinParts joins the non-empty trimmed parts with sep, so an empty side
// never leaves a dangling separator.
func joinParts(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, sep)
}

// literalAction writes a fixed value.
type literalAction struct {
	target int
	value  string
}

func (a literalAction) apply(row types.Row, _ string, _ *State) types.Row {
	return setCell(row, a.target, a.value)
}

func compileAction(a config.Action, cols columns, normalize normalizer) (action, error) {
	switch a.Type {
	case config.ActionCapturePercentage:
		pattern := a.Pattern
		if pattern == "" {
			pattern = `(\d+)[,.](\d+)`
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
		return captureAction{pattern: re, recordColumn: a.RecordColumn, normalize: normalize}, nil

	case config.ActionWritePercentage:
		target, err := cols.resolve(a.Target)
		if err != nil {
			return nil, fmt.Errorf("target: %w", err)
		}
		return writePercentageAction{target: target, useMarkerColumn: a.UseMarkerColumn}, nil

	case config.ActionConcat:
		if len(a.Sources) != 2 {
			return nil, fmt.Errorf("concat needs exactly two sources, got %d", len(a.Sources))
		}
		left, err := cols.resolve(a.Sources[0])
		if err != nil {
			return nil, fmt.Errorf("source: %w", err)
		}
		right, err := cols.resolve(a.Sources[1])
		if err != nil {
			return nil, fmt.Errorf("source: %w", err)
		}

		act := concatAction{left: left, right: right, separator: a.Separator}
		if act.separator == "" {
			act.separator = "-"
		}

		switch a.Mode {
		case "", config.ModeOverwrite:
			target, err := cols.resolve(a.Target)
			if err != nil {
				return nil, fmt.Errorf("target: %w", err)
			}
			act.target = target
		case config.ModeAppend:
			act.appendCell = true
		default:
			return nil, fmt.Errorf("unknown concat mode %q", a.Mode)
		}
		return act, nil

	case config.ActionWriteLiteral:
		target, err := cols.resolve(a.Target)
		if err != nil {
			return nil, fmt.Errorf("target: %w", err)
		}
		return literalAction{target: target, value: a.Value}, nil

	default:
		return nil, fmt.Errorf("unknown action type %q", a.Type)
	}
}
