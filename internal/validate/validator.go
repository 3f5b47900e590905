package validate

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/enviroscan/logsheet/internal/common"
	"github.com/enviroscan/logsheet/internal/entity"
	"github.com/enviroscan/logsheet/internal/fields"
)

// Check names, in the order they always appear in ValidationResult.Checks.
const (
	CheckPlausibility = "plausibility"
	CheckRateOfChange = "rate_of_change"
	CheckFabrication  = "fabrication"
)

// Validator screens accepted readings for physically implausible or
// fabricated-looking values before they enter the regulatory record. It is
// pure: same inputs, same result, no I/O.
type Validator struct {
	dict   *fields.Dictionary
	cfg    common.ValidatorConfig
	logger *slog.Logger
}

func NewValidator(dict *fields.Dictionary, cfg common.ValidatorConfig, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReviewThreshold <= 0 {
		cfg.ReviewThreshold = 0.7
	}
	if cfg.FabricationMinDigits <= 0 {
		cfg.FabricationMinDigits = 5
	}
	if cfg.FabricationMaxConfidence <= 0 {
		cfg.FabricationMaxConfidence = 0.5
	}
	return &Validator{dict: dict, cfg: cfg, logger: logger}
}

// Validate checks reading against physical plausibility and, when a previous
// hour is supplied, against rate-of-change bounds. Soft findings become
// warnings or hallucination flags; only absolute physical violations make
// the reading invalid.
func (v *Validator) Validate(reading entity.HourlyReading, previous *entity.HourlyReading) entity.ValidationResult {
	res := entity.ValidationResult{}
	res.Warnings = append(res.Warnings, reading.ParseWarnings...)

	plausOK := v.checkPlausibility(reading, &res)
	rateOK := v.checkRateOfChange(reading, previous, &res)
	fabOK := v.checkFabrication(reading, &res)

	res.Checks = []entity.CheckResult{
		{Name: CheckPlausibility, IsValid: plausOK},
		{Name: CheckRateOfChange, IsValid: rateOK},
		{Name: CheckFabrication, IsValid: fabOK},
	}
	res.IsValid = len(res.Errors) == 0
	res.RequiresManualReview = res.IsValid &&
		(len(res.Warnings) > 0 || len(res.Flags) > 0 ||
			reading.OverallConfidence < v.cfg.ReviewThreshold)

	v.logger.Debug("validate.done",
		"hour", reading.Hour,
		"is_valid", res.IsValid,
		"errors", len(res.Errors),
		"warnings", len(res.Warnings),
		"flags", len(res.Flags),
		"needs_review", res.RequiresManualReview,
	)
	return res
}

// checkPlausibility enforces two bands per field: the type's absolute
// physical bounds (hard error) and the field's typical operating band
// (warning only).
func (v *Validator) checkPlausibility(reading entity.HourlyReading, res *entity.ValidationResult) bool {
	ok := true
	for _, f := range reading.Fields {
		if !f.Coerced || !f.Value.Type.IsNumeric() {
			continue
		}
		val := f.Value.Number
		if min, max, bounded := f.Value.Type.AbsoluteBounds(); bounded && (val < min || val > max) {
			res.Errors = append(res.Errors,
				fmt.Sprintf("%s: %s %s is physically impossible (bounds %g..%g)",
					f.FieldKey, f.Value.String(), f.Unit, min, max))
			ok = false
			continue
		}
		spec, known := v.dict.Get(f.FieldKey)
		if !known || !spec.HasTypicalBand() {
			continue
		}
		if val < spec.TypicalMin || val > spec.TypicalMax {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("%s: %s %s outside typical band %g..%g",
					f.FieldKey, f.Value.String(), f.Unit, spec.TypicalMin, spec.TypicalMax))
		}
	}
	return ok
}

// checkRateOfChange flags hour-over-hour jumps beyond each field's
// configured plausible delta. A jump alone never invalidates the reading;
// the operator decides.
func (v *Validator) checkRateOfChange(reading entity.HourlyReading, previous *entity.HourlyReading, res *entity.ValidationResult) bool {
	if previous == nil {
		return true
	}
	ok := true
	for _, f := range reading.Fields {
		if !f.Coerced || !f.Value.Type.IsNumeric() {
			continue
		}
		spec, known := v.dict.Get(f.FieldKey)
		if !known || spec.MaxHourlyDelta <= 0 {
			continue
		}
		prev, found := previous.Field(f.FieldKey)
		if !found || !prev.Coerced {
			continue
		}
		if delta := math.Abs(f.Value.Number - prev.Value.Number); delta > spec.MaxHourlyDelta {
			res.Flags = append(res.Flags, entity.HallucinationFlag{
				Type: entity.FlagSuspiciousJump,
				Description: fmt.Sprintf("%s jumped %g %s in one hour (plausible max %g)",
					f.FieldKey, delta, f.Unit, spec.MaxHourlyDelta),
				Confidence: f.Confidence,
			})
			ok = false
		}
	}
	return ok
}

// checkFabrication flags values whose precision is implausible for how
// weakly they were matched: a clean-looking 5-digit number extracted at 0.3
// confidence is more likely invented by the recognizer than read.
func (v *Validator) checkFabrication(reading entity.HourlyReading, res *entity.ValidationResult) bool {
	ok := true
	for _, f := range reading.Fields {
		if !f.Coerced || !f.Value.Type.IsNumeric() {
			continue
		}
		if f.Confidence >= v.cfg.FabricationMaxConfidence {
			continue
		}
		if digits := fields.SignificantDigits(f.Value.String()); digits >= v.cfg.FabricationMinDigits {
			res.Flags = append(res.Flags, entity.HallucinationFlag{
				Type: entity.FlagLowConfidenceHighPrecision,
				Description: fmt.Sprintf("%s reports %d digits at confidence %.2f",
					f.FieldKey, digits, f.Confidence),
				Confidence: f.Confidence,
			})
			ok = false
		}
	}
	return ok
}
