package entity

import (
	"github.com/google/uuid"

	"github.com/enviroscan/logsheet/constants"
)

// CheckResult is one named validation check outcome.
type CheckResult struct {
	Name    string
	IsValid bool
}

// HallucinationFlag marks a value the pipeline reported with unwarranted
// confidence or precision. Presence does not invalidate the reading; it
// routes it to manual review.
type HallucinationFlag struct {
	Type        string
	Description string
	Confidence  float32
}

const (
	FlagSuspiciousJump             = "suspicious_jump"
	FlagLowConfidenceHighPrecision = "low_confidence_high_precision"
)

// ValidationResult is derived deterministically from one HourlyReading.
type ValidationResult struct {
	IsValid              bool
	Checks               []CheckResult
	Errors               []string
	Warnings             []string
	Flags                []HallucinationFlag
	RequiresManualReview bool
}

// IntegrationResult is the only object crossing the pipeline boundary.
// A success carries exactly the reading, the fallback info that produced it,
// and the validation computed from that same reading; a failure carries only
// ErrorMessage.
type IntegrationResult struct {
	ID           uuid.UUID
	SourceRef    string
	Reading      *HourlyReading
	Fallback     FallbackInfo
	Validation   *ValidationResult
	ErrorMessage string
}

func (r IntegrationResult) IsSuccess() bool {
	return r.ErrorMessage == "" && r.Reading != nil && r.Validation != nil
}

// FlatField is the serialized form of one extracted field.
type FlatField struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Unit       string  `json:"unit,omitempty"`
	Confidence float32 `json:"confidence"`
}

// FlatRecord is the flat serialization consumed by UI and persistence layers.
type FlatRecord struct {
	IsSuccess            bool        `json:"isSuccess"`
	Hour                 string      `json:"hour,omitempty"`
	Fields               []FlatField `json:"fields,omitempty"`
	OverallConfidence    float32     `json:"overallConfidence"`
	ValidFieldCount      int         `json:"validFieldCount"`
	FallbackStrategy     string      `json:"fallbackStrategy,omitempty"`
	FallbackReason       string      `json:"fallbackReason,omitempty"`
	ValidationErrors     []string    `json:"validationErrors,omitempty"`
	ValidationWarnings   []string    `json:"validationWarnings,omitempty"`
	RequiresManualReview bool        `json:"requiresManualReview"`
	ErrorMessage         string      `json:"errorMessage,omitempty"`
}

// Flatten converts an IntegrationResult into its flat record form.
func Flatten(res IntegrationResult) FlatRecord {
	if !res.IsSuccess() {
		return FlatRecord{ErrorMessage: res.ErrorMessage}
	}
	rec := FlatRecord{
		IsSuccess:            true,
		Hour:                 constants.FormatHour(res.Reading.Hour),
		OverallConfidence:    res.Reading.OverallConfidence,
		ValidFieldCount:      res.Reading.ValidFieldCount,
		FallbackStrategy:     string(res.Fallback.Strategy),
		FallbackReason:       res.Fallback.Reason,
		ValidationErrors:     res.Validation.Errors,
		ValidationWarnings:   res.Validation.Warnings,
		RequiresManualReview: res.Validation.RequiresManualReview,
	}
	for _, f := range res.Reading.Fields {
		rec.Fields = append(rec.Fields, FlatField{
			Key:        f.FieldKey,
			Value:      f.Value.String(),
			Unit:       f.Unit,
			Confidence: f.Confidence,
		})
	}
	return rec
}
