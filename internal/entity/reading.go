package entity

import (
	"strconv"

	"github.com/enviroscan/logsheet/constants"
)

// FieldValue is the typed value of one extracted cell. Exactly one of
// Number/Text is meaningful, selected by Type.
type FieldValue struct {
	Type   constants.DataType
	Number float64
	Text   string
}

// String renders the value for display and flat serialization. Numbers keep
// their shortest round-trip form so "451.0" and "2300" both survive intact.
func (v FieldValue) String() string {
	if v.Type.IsNumeric() {
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	}
	return v.Text
}

// ExtractedField is one matched cell from a parsed logsheet column.
type ExtractedField struct {
	FieldKey string
	RawLabel string
	Value    FieldValue
	Unit     string
	// Confidence = label similarity x coercion cleanliness, in [0,1].
	Confidence float32
	// Coerced is false when the cell text could not be parsed as the
	// field's type; such fields carry confidence 0 and do not count toward
	// ValidFieldCount.
	Coerced bool
	// SourceHour is the hour column the value was actually read from; it
	// differs from the reading's hour after adjacent-hour substitution.
	SourceHour int
}

// HourlyReading is one immutable parse result for a single hour column.
// Build it with NewHourlyReading; a new reading is constructed per fallback
// attempt rather than mutating in place.
type HourlyReading struct {
	Hour              int
	Fields            []ExtractedField
	OverallConfidence float32
	ValidFieldCount   int
	// ParseWarnings carries non-fatal parser observations (duplicate header
	// hours, padded rows) forward to validation.
	ParseWarnings []string
}

// NewHourlyReading computes the aggregate stats once at construction.
func NewHourlyReading(hour int, fields []ExtractedField, parseWarnings []string) HourlyReading {
	r := HourlyReading{
		Hour:          hour,
		Fields:        fields,
		ParseWarnings: parseWarnings,
	}
	var sum float32
	for _, f := range fields {
		sum += f.Confidence
		if f.Coerced {
			r.ValidFieldCount++
		}
	}
	if len(fields) > 0 {
		r.OverallConfidence = sum / float32(len(fields))
	}
	return r
}

// Field returns the extracted field for key, if present.
func (r HourlyReading) Field(key string) (ExtractedField, bool) {
	for _, f := range r.Fields {
		if f.FieldKey == key {
			return f, true
		}
	}
	return ExtractedField{}, false
}

// FallbackInfo describes how a reading was produced, not its content.
type FallbackInfo struct {
	Strategy   constants.FallbackStrategy
	Reason     string
	Confidence float32
}
