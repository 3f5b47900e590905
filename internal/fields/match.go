package fields

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/enviroscan/logsheet/internal/common"
	"github.com/enviroscan/logsheet/internal/entity"
)

// Matcher resolves noisy row labels against the field dictionary and coerces
// the paired cell text into typed values.
type Matcher struct {
	dict   *Dictionary
	cfg    common.MatcherConfig
	logger *slog.Logger
}

func NewMatcher(dict *Dictionary, cfg common.MatcherConfig, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = 0.5
	}
	if cfg.LooseSimilarity <= 0 {
		cfg.LooseSimilarity = 0.3
	}
	return &Matcher{dict: dict, cfg: cfg, logger: logger}
}

// Threshold returns the configured similarity floor for the given mode.
func (m *Matcher) Threshold(loose bool) float32 {
	if loose {
		return m.cfg.LooseSimilarity
	}
	return m.cfg.MinSimilarity
}

// MatchRows matches each {label, value} row against the dictionary and
// coerces values. Rows scoring below threshold are skipped rather than
// forced into the wrong field. Output order follows the input rows; a field
// key is emitted at most once (first, highest-confidence occurrence wins).
func (m *Matcher) MatchRows(rows []entity.TableRow, sourceHour int, threshold float32) []entity.ExtractedField {
	var out []entity.ExtractedField
	seen := make(map[string]int) // field key -> index in out

	for _, row := range rows {
		spec, score := m.BestMatch(row.LabelText)
		if score < threshold {
			m.logger.Debug("match.row.skipped", "label", row.LabelText, "best_score", score)
			continue
		}
		value, factor := Coerce(row.ValueText, spec.DataType)
		f := entity.ExtractedField{
			FieldKey:   spec.Key,
			RawLabel:   row.LabelText,
			Value:      value,
			Unit:       spec.Unit,
			Confidence: score * factor,
			Coerced:    factor > 0,
			SourceHour: sourceHour,
		}
		if i, dup := seen[spec.Key]; dup {
			if f.Confidence > out[i].Confidence {
				out[i] = f
			}
			continue
		}
		seen[spec.Key] = len(out)
		out = append(out, f)
	}
	return out
}

// BestMatch scores label against every synonym of every spec and returns the
// winner. Scoring combines substring containment, token overlap, and
// Levenshtein similarity; it is deliberately shallow, not NLP.
func (m *Matcher) BestMatch(label string) (FieldSpec, float32) {
	norm := NormalizeLabel(label)
	var best FieldSpec
	var bestScore float32
	for _, spec := range m.dict.Specs() {
		for _, syn := range spec.LabelSynonyms {
			if s := similarity(norm, NormalizeLabel(syn)); s > bestScore {
				best, bestScore = spec, s
			}
		}
	}
	return best, bestScore
}

var reNonAlnum = regexp.MustCompile(`[^A-Z0-9 ]+`)
var reSpaces = regexp.MustCompile(` +`)

// NormalizeLabel uppercases, strips punctuation, and collapses whitespace so
// OCR'd labels compare cleanly against catalog synonyms.
func NormalizeLabel(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = reNonAlnum.ReplaceAllString(s, " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func similarity(a, b string) float32 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	s := containmentScore(a, b)
	if t := tokenOverlap(a, b); t > s {
		s = t
	}
	if l := float32(levenshtein.Similarity(a, b, nil)); l > s {
		s = l
	}
	return s
}

// containmentScore rewards one label containing the other, scaled by how
// much of the longer string is covered.
func containmentScore(a, b string) float32 {
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if strings.Contains(longer, shorter) {
		return float32(len(shorter)) / float32(len(longer))
	}
	return 0
}

// tokenOverlap is the share of tokens in common, normalized by the larger
// token set.
func tokenOverlap(a, b string) float32 {
	ta := strings.Fields(a)
	tb := strings.Fields(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(ta))
	for _, t := range ta {
		set[t] = struct{}{}
	}
	var common int
	for _, t := range tb {
		if _, ok := set[t]; ok {
			common++
		}
	}
	max := len(ta)
	if len(tb) > max {
		max = len(tb)
	}
	return float32(common) / float32(max)
}
