package common

import (
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	Matcher   MatcherConfig
	Fallback  FallbackConfig
	Validator ValidatorConfig
	Batch     BatchConfig
}

// MatcherConfig holds field-pattern-matching thresholds.
type MatcherConfig struct {
	// MinSimilarity is the normalized label-similarity floor below which a
	// table row is skipped rather than forced into the wrong field.
	MinSimilarity float32
	// LooseSimilarity replaces MinSimilarity during the looseLabelMatch
	// fallback strategy.
	LooseSimilarity float32
}

// FallbackConfig holds escalation policy for the fallback handler.
type FallbackConfig struct {
	// RequiredMinimumFields is how many cleanly-coerced fields a primary
	// parse needs before it is accepted without escalation.
	RequiredMinimumFields int
	// AcceptableConfidence is the overall-confidence floor for accepting a
	// reading without escalation.
	AcceptableConfidence float32
	// AdjacentHourPenalty scales the confidence of a field substituted from
	// a neighboring hour column.
	AdjacentHourPenalty float32
	// RegexOnlyConfidence caps per-field confidence for the last-resort
	// unit-adjacent regex scan.
	RegexOnlyConfidence float32
}

// ValidatorConfig holds anti-hallucination thresholds.
type ValidatorConfig struct {
	// ReviewThreshold is the overall-confidence floor below which a reading
	// is routed to manual review even when individually valid.
	ReviewThreshold float32
	// FabricationMinDigits is the significant-digit count that, combined
	// with a low field confidence, flags a suspiciously precise value.
	FabricationMinDigits int
	// FabricationMaxConfidence is the confidence ceiling for that flag.
	FabricationMaxConfidence float32
}

// BatchConfig holds batch-processing behavior.
type BatchConfig struct {
	// Concurrency bounds parallel batch slots; 1 means sequential.
	Concurrency int
}

// LoadConfig loads configuration from environment variables, falling back to
// the tuned defaults. The defaults are starting points, not derived truths;
// override them per deployment once a labeled dataset exists.
func LoadConfig() *Config {
	return &Config{
		Matcher: MatcherConfig{
			MinSimilarity:   getEnvAsFloat32("LOGSHEET_MIN_SIMILARITY", 0.5),
			LooseSimilarity: getEnvAsFloat32("LOGSHEET_LOOSE_SIMILARITY", 0.3),
		},
		Fallback: FallbackConfig{
			RequiredMinimumFields: getEnvAsInt("LOGSHEET_REQUIRED_MIN_FIELDS", 4),
			AcceptableConfidence:  getEnvAsFloat32("LOGSHEET_ACCEPTABLE_CONFIDENCE", 0.6),
			AdjacentHourPenalty:   getEnvAsFloat32("LOGSHEET_ADJACENT_HOUR_PENALTY", 0.7),
			RegexOnlyConfidence:   getEnvAsFloat32("LOGSHEET_REGEX_ONLY_CONFIDENCE", 0.35),
		},
		Validator: ValidatorConfig{
			ReviewThreshold:          getEnvAsFloat32("LOGSHEET_REVIEW_THRESHOLD", 0.7),
			FabricationMinDigits:     getEnvAsInt("LOGSHEET_FABRICATION_MIN_DIGITS", 5),
			FabricationMaxConfidence: getEnvAsFloat32("LOGSHEET_FABRICATION_MAX_CONFIDENCE", 0.5),
		},
		Batch: BatchConfig{
			Concurrency: getEnvAsInt("LOGSHEET_BATCH_CONCURRENCY", 4),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Matcher.MinSimilarity <= 0 || c.Matcher.MinSimilarity > 1 {
		return NewAppError("CONFIG_ERROR", "MinSimilarity must be in (0,1]", ErrInvalidInput)
	}
	if c.Matcher.LooseSimilarity > c.Matcher.MinSimilarity {
		return NewAppError("CONFIG_ERROR", "LooseSimilarity must not exceed MinSimilarity", ErrInvalidInput)
	}
	if c.Fallback.RequiredMinimumFields < 1 {
		return NewAppError("CONFIG_ERROR", "RequiredMinimumFields must be >= 1", ErrInvalidInput)
	}
	if c.Fallback.AcceptableConfidence <= 0 || c.Fallback.AcceptableConfidence > 1 {
		return NewAppError("CONFIG_ERROR", "AcceptableConfidence must be in (0,1]", ErrInvalidInput)
	}
	if c.Batch.Concurrency < 1 {
		return NewAppError("CONFIG_ERROR", "Batch.Concurrency must be >= 1", ErrInvalidInput)
	}
	return nil
}
