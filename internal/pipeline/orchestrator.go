package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/enviroscan/logsheet/constants"
	"github.com/enviroscan/logsheet/internal/common"
	"github.com/enviroscan/logsheet/internal/entity"
	"github.com/enviroscan/logsheet/internal/fallback"
	"github.com/enviroscan/logsheet/internal/fields"
	"github.com/enviroscan/logsheet/internal/parser"
	"github.com/enviroscan/logsheet/internal/validate"
)

// Orchestrator sequences acquisition, fallback-driven parsing, and
// validation behind one call. All collaborators are injected once at
// construction and shared read-only across concurrent calls.
type Orchestrator struct {
	source    TextSource
	dict      *fields.Dictionary
	fallback  *fallback.Handler
	validator *validate.Validator
	batchCfg  common.BatchConfig
	logger    *slog.Logger
}

func NewOrchestrator(
	source TextSource,
	dict *fields.Dictionary,
	fb *fallback.Handler,
	v *validate.Validator,
	batchCfg common.BatchConfig,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if batchCfg.Concurrency <= 0 {
		batchCfg.Concurrency = 4
	}
	return &Orchestrator{
		source:    source,
		dict:      dict,
		fallback:  fb,
		validator: v,
		batchCfg:  batchCfg,
		logger:    logger,
	}
}

// Request is one unit of work: either pre-acquired raw text or a source
// reference for the TextSource to resolve.
type Request struct {
	// ID is caller-assigned provenance, echoed into the result.
	ID uuid.UUID
	// SourceRef is handed to the TextSource when RawText is empty.
	SourceRef string
	// RawText, when set, skips acquisition entirely.
	RawText string
	// TargetHour is the hour column to extract, 0..23.
	TargetHour int
	// FallbackLevel defaults to aggressive when empty.
	FallbackLevel constants.FallbackLevel
	// Previous enables the rate-of-change check against the prior hour.
	Previous *entity.HourlyReading
}

// Process runs the full pipeline for one request. Every failure path comes
// back as a value; Process never panics and never returns an error.
func (o *Orchestrator) Process(ctx context.Context, req Request) entity.IntegrationResult {
	if req.TargetHour < constants.MinHour || req.TargetHour > constants.MaxHour {
		return o.failure(req, fmt.Sprintf("target hour %d out of range", req.TargetHour))
	}
	level := req.FallbackLevel
	if level == "" {
		level = constants.LevelAggressive
	}

	rawText, err := o.acquire(ctx, req)
	if err != nil {
		o.logger.Error("pipeline.acquire.failed", "source_ref", req.SourceRef, "err", err)
		return o.failure(req, common.WrapError(err, "acquire text").Error())
	}
	text := parser.Normalize(rawText)
	if text == "" {
		return o.failure(req, "acquired text is empty")
	}

	reading, info := o.fallback.Handle(text, req.TargetHour, level)
	validation := o.validator.Validate(reading, req.Previous)

	o.logger.Info("pipeline.process.ok",
		"source_ref", req.SourceRef,
		"hour", constants.FormatHour(req.TargetHour),
		"strategy", string(info.Strategy),
		"valid_fields", reading.ValidFieldCount,
		"confidence", reading.OverallConfidence,
		"is_valid", validation.IsValid,
		"needs_review", validation.RequiresManualReview,
	)
	return entity.IntegrationResult{
		ID:         req.ID,
		SourceRef:  req.SourceRef,
		Reading:    &reading,
		Fallback:   info,
		Validation: &validation,
	}
}

func (o *Orchestrator) acquire(ctx context.Context, req Request) (string, error) {
	if req.RawText != "" {
		return req.RawText, nil
	}
	if o.source == nil || req.SourceRef == "" {
		return "", common.ErrAcquisition
	}
	text, err := o.source.Acquire(ctx, req.SourceRef)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrAcquisition, err)
	}
	if text == "" {
		return "", fmt.Errorf("%w: engine returned no text", common.ErrAcquisition)
	}
	return text, nil
}

func (o *Orchestrator) failure(req Request, message string) entity.IntegrationResult {
	return entity.IntegrationResult{
		ID:           req.ID,
		SourceRef:    req.SourceRef,
		ErrorMessage: message,
	}
}
