package fallback

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/enviroscan/logsheet/constants"
	"github.com/enviroscan/logsheet/internal/common"
	"github.com/enviroscan/logsheet/internal/entity"
	"github.com/enviroscan/logsheet/internal/fields"
	"github.com/enviroscan/logsheet/internal/parser"
)

// Handler escalates through recovery strategies when the primary table parse
// under-performs. Escalation is bounded: at most four steps, never a loop.
type Handler struct {
	parser  *parser.Parser
	matcher *fields.Matcher
	dict    *fields.Dictionary
	cfg     common.FallbackConfig
	logger  *slog.Logger
}

func NewHandler(p *parser.Parser, m *fields.Matcher, dict *fields.Dictionary, cfg common.FallbackConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequiredMinimumFields <= 0 {
		cfg.RequiredMinimumFields = 4
	}
	if cfg.AcceptableConfidence <= 0 {
		cfg.AcceptableConfidence = 0.6
	}
	if cfg.AdjacentHourPenalty <= 0 {
		cfg.AdjacentHourPenalty = 0.7
	}
	if cfg.RegexOnlyConfidence <= 0 {
		cfg.RegexOnlyConfidence = 0.35
	}
	return &Handler{parser: p, matcher: m, dict: dict, cfg: cfg, logger: logger}
}

// attempt pairs a candidate reading with the strategy that produced it.
type attempt struct {
	reading entity.HourlyReading
	info    entity.FallbackInfo
}

// Handle runs the strategy ladder for targetHour and returns the
// highest-confidence attempt among the steps the level permitted. It always
// returns a reading; an empty one (zero fields) is the worst case.
func (h *Handler) Handle(rawText string, targetHour int, level constants.FallbackLevel) (entity.HourlyReading, entity.FallbackInfo) {
	maxSteps := level.MaxSteps()
	var attempts []attempt

	// Step 1: primary table parse at the requested hour.
	slice, parseErr := h.parser.ParseTable(rawText, targetHour)
	if parseErr == nil {
		matched := h.matcher.MatchRows(slice.Rows, targetHour, h.matcher.Threshold(false))
		primary := entity.NewHourlyReading(targetHour, matched, slice.Warnings)
		if h.acceptable(primary) {
			h.logger.Debug("fallback.primary.accepted",
				"hour", constants.FormatHour(targetHour),
				"valid_fields", primary.ValidFieldCount,
				"confidence", primary.OverallConfidence,
			)
			return primary, entity.FallbackInfo{
				Strategy:   constants.StrategyNone,
				Confidence: primary.OverallConfidence,
			}
		}
		attempts = append(attempts, attempt{
			reading: primary,
			info: entity.FallbackInfo{
				Strategy:   constants.StrategyNone,
				Reason:     h.shortfallReason(primary),
				Confidence: primary.OverallConfidence,
			},
		})

		// Step 2: substitute adjacent-hour columns for the fields the
		// primary pass missed.
		if maxSteps >= 2 {
			if a, ok := h.adjacentHour(rawText, targetHour, primary, slice.Warnings); ok {
				attempts = append(attempts, a)
			}
		}

		// Step 3: re-match the unmatched rows with the loose threshold.
		if maxSteps >= 3 {
			if a, ok := h.looseLabel(slice, targetHour, best(attempts).reading); ok {
				attempts = append(attempts, a)
			}
		}
	} else {
		h.logger.Warn("fallback.primary.parse_failed",
			"hour", constants.FormatHour(targetHour), "err", parseErr)
	}

	// Step 4: abandon table structure entirely and scan for numbers next to
	// known unit strings.
	if maxSteps >= 4 {
		if a, ok := h.regexOnly(rawText, targetHour, parseErr); ok {
			attempts = append(attempts, a)
		}
	}

	if len(attempts) == 0 {
		// nothing recoverable at this level; surface the parse failure
		reason := "no fields recovered"
		if parseErr != nil {
			reason = parseErr.Error()
		}
		return entity.NewHourlyReading(targetHour, nil, nil), entity.FallbackInfo{
			Strategy:   constants.StrategyNone,
			Reason:     reason,
			Confidence: 0,
		}
	}

	chosen := best(attempts)
	h.logger.Debug("fallback.chosen",
		"strategy", string(chosen.info.Strategy),
		"valid_fields", chosen.reading.ValidFieldCount,
		"confidence", chosen.reading.OverallConfidence,
	)
	return chosen.reading, chosen.info
}

// best picks the attempt that recovered the most valid fields, breaking ties
// by confidence and then by earliest step so repeated runs stay bit-identical.
// Field count leads so a louder strategy can never shrink the result below
// what a stricter level would have returned.
func best(attempts []attempt) attempt {
	chosen := attempts[0]
	for _, a := range attempts[1:] {
		if a.reading.ValidFieldCount > chosen.reading.ValidFieldCount ||
			(a.reading.ValidFieldCount == chosen.reading.ValidFieldCount &&
				a.reading.OverallConfidence > chosen.reading.OverallConfidence) {
			chosen = a
		}
	}
	return chosen
}

func (h *Handler) acceptable(r entity.HourlyReading) bool {
	return r.ValidFieldCount >= h.cfg.RequiredMinimumFields &&
		r.OverallConfidence >= h.cfg.AcceptableConfidence
}

func (h *Handler) shortfallReason(r entity.HourlyReading) string {
	var parts []string
	if r.ValidFieldCount < h.cfg.RequiredMinimumFields {
		parts = append(parts, fmt.Sprintf("%d of %d required fields", r.ValidFieldCount, h.cfg.RequiredMinimumFields))
	}
	if r.OverallConfidence < h.cfg.AcceptableConfidence {
		parts = append(parts, fmt.Sprintf("confidence %.2f below %.2f", r.OverallConfidence, h.cfg.AcceptableConfidence))
	}
	return strings.Join(parts, "; ")
}

// adjacentHour re-runs the column lookup at hour-1 and hour+1 for the fields
// the primary reading is missing, carrying over whichever neighbor scored
// higher. Substituted fields keep their true source hour in provenance and
// pay the configured confidence penalty.
func (h *Handler) adjacentHour(rawText string, targetHour int, primary entity.HourlyReading, warnings []string) (attempt, bool) {
	missing := h.missingKeys(primary)
	if len(missing) == 0 {
		return attempt{}, false
	}

	carried := make(map[string]entity.ExtractedField)
	var hoursUsed []string
	for _, hour := range []int{targetHour - 1, targetHour + 1} {
		if hour < constants.MinHour || hour > constants.MaxHour {
			continue
		}
		slice, err := h.parser.ParseTable(rawText, hour)
		if err != nil {
			continue
		}
		matched := h.matcher.MatchRows(slice.Rows, hour, h.matcher.Threshold(false))
		used := false
		for _, f := range matched {
			if _, want := missing[f.FieldKey]; !want || !f.Coerced {
				continue
			}
			f.Confidence *= h.cfg.AdjacentHourPenalty
			if prev, ok := carried[f.FieldKey]; !ok || f.Confidence > prev.Confidence {
				carried[f.FieldKey] = f
				used = true
			}
		}
		if used {
			hoursUsed = append(hoursUsed, constants.FormatHour(hour))
		}
	}
	if len(carried) == 0 {
		return attempt{}, false
	}

	merged := make([]entity.ExtractedField, 0, len(primary.Fields)+len(carried))
	for _, f := range primary.Fields {
		if _, replaced := carried[f.FieldKey]; replaced {
			continue
		}
		merged = append(merged, f)
	}
	for _, spec := range h.dict.Specs() {
		if f, ok := carried[spec.Key]; ok {
			merged = append(merged, f)
		}
	}
	reading := entity.NewHourlyReading(targetHour, merged, warnings)
	return attempt{
		reading: reading,
		info: entity.FallbackInfo{
			Strategy:   constants.StrategyAdjacentHour,
			Reason:     fmt.Sprintf("substituted %d field(s) from hour(s) %s", len(carried), strings.Join(hoursUsed, ",")),
			Confidence: reading.OverallConfidence,
		},
	}, true
}

// looseLabel lowers the similarity threshold over the rows that stayed
// unmatched at the strict threshold and merges any new hits.
func (h *Handler) looseLabel(slice entity.TableSlice, targetHour int, base entity.HourlyReading) (attempt, bool) {
	matchedLabels := make(map[string]struct{}, len(base.Fields))
	for _, f := range base.Fields {
		matchedLabels[f.RawLabel] = struct{}{}
	}
	var unmatched []entity.TableRow
	for _, row := range slice.Rows {
		if _, ok := matchedLabels[row.LabelText]; !ok {
			unmatched = append(unmatched, row)
		}
	}
	if len(unmatched) == 0 {
		return attempt{}, false
	}

	loose := h.matcher.MatchRows(unmatched, targetHour, h.matcher.Threshold(true))
	have := make(map[string]struct{}, len(base.Fields))
	for _, f := range base.Fields {
		have[f.FieldKey] = struct{}{}
	}
	merged := append([]entity.ExtractedField(nil), base.Fields...)
	added := 0
	for _, f := range loose {
		if _, dup := have[f.FieldKey]; dup {
			continue
		}
		merged = append(merged, f)
		added++
	}
	if added == 0 {
		return attempt{}, false
	}

	reading := entity.NewHourlyReading(targetHour, merged, base.ParseWarnings)
	return attempt{
		reading: reading,
		info: entity.FallbackInfo{
			Strategy:   constants.StrategyLooseLabel,
			Reason:     fmt.Sprintf("loose match recovered %d additional field(s)", added),
			Confidence: reading.OverallConfidence,
		},
	}, true
}

func (h *Handler) missingKeys(r entity.HourlyReading) map[string]struct{} {
	missing := make(map[string]struct{})
	for _, spec := range h.dict.Specs() {
		f, ok := r.Field(spec.Key)
		if !ok || !f.Coerced {
			missing[spec.Key] = struct{}{}
		}
	}
	return missing
}
