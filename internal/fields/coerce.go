package fields

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/enviroscan/logsheet/constants"
	"github.com/enviroscan/logsheet/internal/entity"
)

// Coercion cleanliness factors. A clean parse keeps full confidence, a parse
// that needed digit repair halves it, a failed parse zeroes it.
const (
	CoercionClean    float32 = 1.0
	CoercionRepaired float32 = 0.5
	CoercionFailed   float32 = 0.0
)

// MissingCell is the placeholder the parser inserts for short rows.
const MissingCell = "--"

var (
	reNumber   = regexp.MustCompile(`^-?(\d+(\.\d+)?|\.\d+)$`)
	reTimeHHMM = regexp.MustCompile(`^([01]?\d|2[0-3]):?([0-5]\d)$`)
)

// digitRepairs maps characters OCR engines habitually misread for digits.
// Applied only when the raw cell fails a clean numeric parse.
var digitRepairs = strings.NewReplacer(
	"O", "0", "o", "0",
	"l", "1", "I", "1", "|", "1",
	"S", "5",
	"B", "8",
	"Z", "2",
)

// Coerce converts raw cell text into a typed value for the spec's data type.
// The returned factor is one of the Coercion* constants; callers multiply it
// into the field confidence.
func Coerce(raw string, t constants.DataType) (entity.FieldValue, float32) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == MissingCell || strings.EqualFold(raw, "missing") {
		return entity.FieldValue{Type: t}, CoercionFailed
	}

	switch t {
	case constants.Time:
		return coerceTime(raw)
	case constants.Text:
		return entity.FieldValue{Type: t, Text: raw}, CoercionClean
	default:
		return coerceNumeric(raw, t)
	}
}

func coerceNumeric(raw string, t constants.DataType) (entity.FieldValue, float32) {
	if f, ok := parseNumber(raw, false); ok {
		return entity.FieldValue{Type: t, Number: f}, CoercionClean
	}
	// second chance: repair common digit misreads, then retry; leftover
	// letter edges (unit suffixes) are shed only in this pass so a cell
	// like "14BO" cannot sneak through the clean parse as 14
	repaired := digitRepairs.Replace(raw)
	if f, ok := parseNumber(repaired, true); ok {
		return entity.FieldValue{Type: t, Number: f}, CoercionRepaired
	}
	return entity.FieldValue{Type: t}, CoercionFailed
}

// parseNumber strips leading/trailing noise and thousands separators, then
// requires the remainder to be a plain decimal. The strict pass keeps
// letter edges in place so they fail the parse and reach digit repair.
func parseNumber(s string, shedLetters bool) (float64, bool) {
	s = strings.TrimFunc(s, func(r rune) bool {
		if r >= '0' && r <= '9' || r == '.' || r == '-' {
			return false
		}
		if isLetter(r) {
			return shedLetters
		}
		return true
	})
	s = strings.ReplaceAll(s, ",", "")
	if !reNumber.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func isLetter(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
}

func coerceTime(raw string) (entity.FieldValue, float32) {
	m := reTimeHHMM.FindStringSubmatch(raw)
	if m == nil {
		return entity.FieldValue{Type: constants.Time}, CoercionFailed
	}
	hh := m[1]
	if len(hh) == 1 {
		hh = "0" + hh
	}
	return entity.FieldValue{Type: constants.Time, Text: hh + ":" + m[2]}, CoercionClean
}

// SignificantDigits counts the digits carried by the raw cell text, used by
// the fabrication heuristic to spot implausibly precise values.
func SignificantDigits(raw string) int {
	n := 0
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
