package pipeline

import (
	"fmt"

	"github.com/enviroscan/logsheet/constants"
	"github.com/enviroscan/logsheet/internal/entity"
)

// ReviewDecision is the recommended disposition for a processed result.
type ReviewDecision string

const (
	DecisionAutoAccept ReviewDecision = "autoAccept"
	DecisionReview     ReviewDecision = "review"
	DecisionReject     ReviewDecision = "reject"
)

// QualityAssessment is a post-hoc score over a finished result, for callers
// deciding between auto-accept and a human review queue.
type QualityAssessment struct {
	Score           float32
	Decision        ReviewDecision
	Recommendations []string
}

// Quality score weights: confidence dominates, field coverage and the
// strategy that produced the reading share the rest.
const (
	weightConfidence = 0.5
	weightCoverage   = 0.3
	weightStrategy   = 0.2

	warningPenalty = 0.05
	flagPenalty    = 0.10

	autoAcceptScore = 0.8
)

// AssessQuality scores res in [0,1] from its confidence, field coverage,
// fallback strategy, and validation findings, and emits human-readable
// recommendations. Purely derived from the result; no side effects.
func (o *Orchestrator) AssessQuality(res entity.IntegrationResult) QualityAssessment {
	if !res.IsSuccess() {
		return QualityAssessment{
			Score:           0,
			Decision:        DecisionReject,
			Recommendations: []string{"processing failed: " + res.ErrorMessage, "re-photograph the sheet and retry"},
		}
	}

	coverage := float32(res.Reading.ValidFieldCount) / float32(o.dict.Len())
	if coverage > 1 {
		coverage = 1
	}
	score := weightConfidence*res.Reading.OverallConfidence +
		weightCoverage*coverage +
		weightStrategy*strategyFactor(res.Fallback.Strategy)
	score -= warningPenalty * float32(len(res.Validation.Warnings))
	score -= flagPenalty * float32(len(res.Validation.Flags))
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	var recs []string
	if res.Fallback.Strategy != constants.StrategyNone {
		recs = append(recs, fmt.Sprintf("reading recovered via %s; confirm against the paper sheet", res.Fallback.Strategy))
	}
	if res.Reading.ValidFieldCount < o.dict.Len() {
		recs = append(recs, fmt.Sprintf("only %d of %d known fields extracted; check image framing and lighting",
			res.Reading.ValidFieldCount, o.dict.Len()))
	}
	for _, flag := range res.Validation.Flags {
		recs = append(recs, "verify manually: "+flag.Description)
	}
	for _, e := range res.Validation.Errors {
		recs = append(recs, "correct before filing: "+e)
	}

	switch {
	case !res.Validation.IsValid:
		return QualityAssessment{Score: score, Decision: DecisionReject, Recommendations: recs}
	case res.Validation.RequiresManualReview || score < autoAcceptScore:
		return QualityAssessment{Score: score, Decision: DecisionReview, Recommendations: recs}
	default:
		return QualityAssessment{Score: score, Decision: DecisionAutoAccept, Recommendations: recs}
	}
}

func strategyFactor(s constants.FallbackStrategy) float32 {
	switch s {
	case constants.StrategyNone:
		return 1.0
	case constants.StrategyAdjacentHour:
		return 0.7
	case constants.StrategyLooseLabel:
		return 0.5
	case constants.StrategyRegexOnly:
		return 0.25
	}
	return 0
}
