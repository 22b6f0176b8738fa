// =============================================================================
// Fiscal Report Transcriber - Row Transcriber
// =============================================================================
//
// The transcriber is the core of the tool. It takes the rows produced by an
// input adapter and rewrites designated cells, row by row, in a single
// forward pass:
//
//   1. Copy the row and pad it to the layout minimum column count.
//   2. Flatten the non-empty cells into a text blob.
//   3. Evaluate every rule in declaration order. Each matching rule applies
//      its actions to the row and to the carried State.
//   4. Rows matching nothing pass through, padded.
//
// The carried State (the "current percentage") is an accumulator value
// threaded through the fold. It starts unset on every Transcribe call, so a
// Transcriber can be reused and shared between goroutines.
//
// =============================================================================

package transcriber

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ginjaninja78/fiscal-transcriber/internal/config"
	"github.com/ginjaninja78/fiscal-transcriber/internal/types"
)

// ruleKind classifies a compiled rule for statistics.
type ruleKind int

const (
	kindMarker ruleKind = iota
	kindData
	kindTotal
)

type compiledRule struct {
	name    string
	kind    ruleKind
	trigger trigger
	actions []action
}

// Transcriber applies a compiled rule set to row sequences.
type Transcriber struct {
	profile    string
	minColumns int
	rules      []compiledRule
	logger     *zap.Logger
}

// Option configures a Transcriber.
type Option func(*Transcriber)

// WithLogger sets the logger used for per-row debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Transcriber) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Stats counts how the rows of one pass were classified.
// A row matched by several rules counts once per rule kind.
type Stats struct {
	Rows       int `json:"rows"`
	MarkerRows int `json:"marker_rows"`
	DataRows   int `json:"data_rows"`
	TotalRows  int `json:"total_rows"`
	Unmatched  int `json:"unmatched"`
}

// Recognized reports whether any rule matched any row.
func (s Stats) Recognized() bool {
	return s.Rows > s.Unmatched
}

// Result is the outcome of one pass.
type Result struct {
	Rows  []types.Row
	Stats Stats
	Final State
}

// New compiles the rule set of a profile.
//
// Every column reference is resolved and every pattern compiled here, so a
// profile error is reported once, before any file is read.
func New(profile *config.ProfileConfig, opts ...Option) (*Transcriber, error) {
	if profile == nil {
		return nil, fmt.Errorf("nil profile")
	}

	normalize, err := newNormalizer(profile.Percentage.DecimalSeparator)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", profile.ProfileCode, err)
	}

	cols := columns{fields: profile.Layout.Fields}

	t := &Transcriber{
		profile:    profile.ProfileCode,
		minColumns: profile.Layout.MinColumns,
		rules:      make([]compiledRule, 0, len(profile.Rules)),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}

	for _, rule := range profile.Rules {
		compiled, err := compileRule(rule, cols, normalize)
		if err != nil {
			return nil, fmt.Errorf("profile %s: rule %s: %w", profile.ProfileCode, rule.Name, err)
		}
		t.rules = append(t.rules, compiled)
	}

	return t, nil
}

func compileRule(rule config.Rule, cols columns, normalize normalizer) (compiledRule, error) {
	trig, err := compileTrigger(rule.Trigger)
	if err != nil {
		return compiledRule{}, err
	}
	if len(rule.Actions) == 0 {
		return compiledRule{}, fmt.Errorf("no actions")
	}

	compiled := compiledRule{name: rule.Name, trigger: trig, kind: kindTotal}
	if rule.Trigger.Type == config.TriggerDataRow {
		compiled.kind = kindData
	}

	for i, a := range rule.Actions {
		act, err := compileAction(a, cols, normalize)
		if err != nil {
			return compiledRule{}, fmt.Errorf("action %d: %w", i+1, err)
		}
		if a.Type == config.ActionCapturePercentage {
			compiled.kind = kindMarker
		}
		compiled.actions = append(compiled.actions, act)
	}

	return compiled, nil
}

// Transcribe runs one pass over rows. The input rows are not modified and
// the result always has exactly len(rows) rows.
func (t *Transcriber) Transcribe(rows []types.Row) Result {
	result := Result{
		Rows:  make([]types.Row, len(rows)),
		Final: State{Column: -1},
	}

	state := &result.Final

	for i, raw := range rows {
		row := raw.Pad(t.minColumns)
		blob := row.Blob()

		var marker, data, total bool
		for _, rule := range t.rules {
			if !rule.trigger.match(row, blob) {
				continue
			}
			for _, act := range rule.actions {
				row = act.apply(row, blob, state)
			}

			switch rule.kind {
			case kindMarker:
				marker = true
			case kindData:
				data = true
			case kindTotal:
				total = true
			}

			if ce := t.logger.Check(zap.DebugLevel, "rule matched"); ce != nil {
				ce.Write(
					zap.String("profile", t.profile),
					zap.String("rule", rule.name),
					zap.Int("row", i+1),
				)
			}
		}

		result.Stats.Rows++
		if marker {
			result.Stats.MarkerRows++
		}
		if data {
			result.Stats.DataRows++
		}
		if total {
			result.Stats.TotalRows++
		}
		if !marker && !data && !total {
			result.Stats.Unmatched++
		}

		result.Rows[i] = row
	}

	return result
}
