package fallback

import (
	"strings"

	"github.com/enviroscan/logsheet/constants"
	"github.com/enviroscan/logsheet/internal/entity"
	"github.com/enviroscan/logsheet/internal/fields"
)

// contextWindow is how many tokens before a unit mention are inspected to
// tell apart fields sharing that unit (INLET PPM vs OUTLET PPM).
const contextWindow = 4

// regexOnly is the last-resort strategy: forget the table, scan the whole
// raw text for numeric tokens adjacent to known unit strings. Recovered
// fields are capped at the configured low confidence since their row/column
// provenance is unknown.
func (h *Handler) regexOnly(rawText string, targetHour int, parseErr error) (attempt, bool) {
	toks := strings.Fields(rawText)
	recovered := make(map[string]entity.ExtractedField)
	var order []string

	for i, tok := range toks {
		specs := h.unitCandidates(tok)
		if len(specs) == 0 {
			continue
		}
		spec := disambiguate(specs, toks, i)
		if _, done := recovered[spec.Key]; done {
			continue
		}
		value, factor := adjacentNumber(toks, i, spec)
		if factor == fields.CoercionFailed {
			continue
		}
		recovered[spec.Key] = entity.ExtractedField{
			FieldKey:   spec.Key,
			RawLabel:   contextLabel(toks, i),
			Value:      value,
			Unit:       spec.Unit,
			Confidence: h.cfg.RegexOnlyConfidence * factor,
			Coerced:    true,
			SourceHour: targetHour,
		}
		order = append(order, spec.Key)
	}
	if len(recovered) == 0 {
		return attempt{}, false
	}

	extracted := make([]entity.ExtractedField, 0, len(recovered))
	for _, key := range order {
		extracted = append(extracted, recovered[key])
	}
	reading := entity.NewHourlyReading(targetHour, extracted, nil)

	reason := "unit-adjacent scan of unstructured text"
	if parseErr != nil {
		reason = "table structure not recognized; " + reason
	}
	return attempt{
		reading: reading,
		info: entity.FallbackInfo{
			Strategy:   constants.StrategyRegexOnly,
			Reason:     reason,
			Confidence: reading.OverallConfidence,
		},
	}, true
}

// unitCandidates returns the specs whose unit matches the token, in catalog
// order.
func (h *Handler) unitCandidates(tok string) []fields.FieldSpec {
	norm := normalizeUnitToken(tok)
	if norm == "" {
		return nil
	}
	var out []fields.FieldSpec
	for _, spec := range h.dict.Specs() {
		if spec.Unit == "" {
			continue
		}
		for _, alias := range unitAliases(spec.Unit) {
			if norm == alias {
				out = append(out, spec)
				break
			}
		}
	}
	return out
}

// unitAliases expands a catalog unit into the token forms OCR text shows it
// as ("°F" appears as both "°F" and a bare "F").
func unitAliases(unit string) []string {
	parts := strings.Fields(normalizeUnitToken(unit))
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts
	default:
		// multi-word units match on their distinctive last word ("IN H2O"
		// -> "H2O", "% LEL" -> "LEL")
		return []string{parts[len(parts)-1]}
	}
}

func normalizeUnitToken(tok string) string {
	tok = strings.ToUpper(strings.TrimSpace(tok))
	tok = strings.Trim(tok, "()[]{}.,;:")
	tok = strings.ReplaceAll(tok, "°", "")
	tok = strings.TrimPrefix(tok, "%")
	return strings.TrimSpace(tok)
}

// disambiguate picks among specs sharing a unit by scoring each spec's
// synonym words against the tokens just before the unit mention.
func disambiguate(specs []fields.FieldSpec, toks []string, unitIdx int) fields.FieldSpec {
	if len(specs) == 1 {
		return specs[0]
	}
	lo := unitIdx - contextWindow
	if lo < 0 {
		lo = 0
	}
	window := make(map[string]struct{})
	for _, t := range toks[lo:unitIdx] {
		window[fields.NormalizeLabel(t)] = struct{}{}
	}

	chosen, bestHits := specs[0], 0
	for _, spec := range specs {
		hits := 0
		for _, syn := range spec.LabelSynonyms {
			for _, word := range strings.Fields(fields.NormalizeLabel(syn)) {
				if _, ok := window[word]; ok {
					hits++
				}
			}
		}
		if hits > bestHits {
			chosen, bestHits = spec, hits
		}
	}
	return chosen
}

// adjacentNumber coerces the token right after the unit mention, falling
// back to the one right before it.
func adjacentNumber(toks []string, unitIdx int, spec fields.FieldSpec) (entity.FieldValue, float32) {
	for _, j := range []int{unitIdx + 1, unitIdx - 1} {
		if j < 0 || j >= len(toks) {
			continue
		}
		if value, factor := fields.Coerce(toks[j], spec.DataType); factor > fields.CoercionFailed {
			return value, factor
		}
	}
	return entity.FieldValue{Type: spec.DataType}, fields.CoercionFailed
}

// contextLabel reconstructs an approximate label from the tokens preceding
// the unit, for provenance display only.
func contextLabel(toks []string, unitIdx int) string {
	lo := unitIdx - 2
	if lo < 0 {
		lo = 0
	}
	return strings.Join(toks[lo:unitIdx+1], " ")
}
