package fallback

import (
	"strings"
	"testing"

	"github.com/enviroscan/logsheet/constants"
	"github.com/enviroscan/logsheet/internal/common"
	"github.com/enviroscan/logsheet/internal/fields"
	"github.com/enviroscan/logsheet/internal/parser"
)

func testHandler(t *testing.T) *Handler {
	t.Helper()
	dict, err := fields.NewDictionary()
	if err != nil {
		t.Fatalf("NewDictionary: %v", err)
	}
	m := fields.NewMatcher(dict, common.MatcherConfig{MinSimilarity: 0.5, LooseSimilarity: 0.3}, nil)
	cfg := common.FallbackConfig{
		RequiredMinimumFields: 4,
		AcceptableConfidence:  0.6,
		AdjacentHourPenalty:   0.7,
		RegexOnlyConfidence:   0.35,
	}
	return NewHandler(parser.NewParser(nil), m, dict, cfg, nil)
}

// cleanTable reads cleanly for every hour; the primary parse should be
// accepted without any escalation.
const cleanTable = `TIME                       0100   0200   0300
EXHAUST TEMPERATURE °F     1450   1460   1480
CHAMBER TEMPERATURE °F     1600   1605   1614
INLET PPM                   400    420    451.0
OUTLET PPM                   10     11     12
VACUUM IN H2O               -10    -11    -12
`

func TestHandlePrimaryAccepted(t *testing.T) {
	h := testHandler(t)

	reading, info := h.Handle(cleanTable, 2, constants.LevelAggressive)
	if info.Strategy != constants.StrategyNone {
		t.Fatalf("strategy = %q, want %q", info.Strategy, constants.StrategyNone)
	}
	if reading.ValidFieldCount != 5 {
		t.Errorf("ValidFieldCount = %d, want 5", reading.ValidFieldCount)
	}
	if reading.OverallConfidence < 0.6 {
		t.Errorf("OverallConfidence = %.2f, want >= 0.6", reading.OverallConfidence)
	}
	f, ok := reading.Field("inlet_ppm")
	if !ok || f.Value.Number != 420 {
		t.Errorf("inlet_ppm = %+v, want 420", f)
	}
}

// gapTable has no readable values in the 0200 column except vacuum, so the
// primary parse falls short and the neighbors must stand in.
const gapTable = `TIME                       0100   0200   0300
EXHAUST TEMPERATURE °F     1450    --    1480
CHAMBER TEMPERATURE °F     1600    --    1610
INLET PPM                   400    --     430
VACUUM IN H2O               -10   -11    -12
`

func TestHandleAdjacentHourSubstitution(t *testing.T) {
	h := testHandler(t)

	reading, info := h.Handle(gapTable, 2, constants.LevelModerate)
	if info.Strategy != constants.StrategyAdjacentHour {
		t.Fatalf("strategy = %q, want %q (reason %q)", info.Strategy, constants.StrategyAdjacentHour, info.Reason)
	}
	if reading.ValidFieldCount != 4 {
		t.Errorf("ValidFieldCount = %d, want 4", reading.ValidFieldCount)
	}
	if !strings.Contains(info.Reason, "0100") {
		t.Errorf("reason %q does not name the substituted hour", info.Reason)
	}

	// substituted fields keep their true source hour and pay the penalty
	exh, ok := reading.Field("exhaust_temp_f")
	if !ok {
		t.Fatal("exhaust_temp_f missing after substitution")
	}
	if exh.SourceHour != 1 {
		t.Errorf("exhaust SourceHour = %d, want 1", exh.SourceHour)
	}
	if exh.Confidence >= 0.7 {
		t.Errorf("exhaust Confidence = %.2f, want < 0.7 after penalty", exh.Confidence)
	}
	vac, _ := reading.Field("vacuum_in_h2o")
	if vac.SourceHour != 2 {
		t.Errorf("vacuum SourceHour = %d, want 2 (not substituted)", vac.SourceHour)
	}
	if vac.Value.Number != -11 {
		t.Errorf("vacuum = %v, want -11", vac.Value.Number)
	}
}

func TestHandleStrictSkipsSubstitution(t *testing.T) {
	h := testHandler(t)

	reading, info := h.Handle(gapTable, 2, constants.LevelStrict)
	if info.Strategy != constants.StrategyNone {
		t.Fatalf("strategy = %q, want %q", info.Strategy, constants.StrategyNone)
	}
	if reading.ValidFieldCount != 1 {
		t.Errorf("ValidFieldCount = %d, want 1", reading.ValidFieldCount)
	}
	if info.Reason == "" {
		t.Error("expected a shortfall reason on the unaccepted primary reading")
	}
}

// mangledTable has one label too damaged for the strict threshold; only the
// loose re-match recovers the vacuum row.
const mangledTable = `TIME                       0100   0200   0300
EXHAUST TEMPERATURE °F     1450   1460   1480
VAC H20                     -10    -11    -12
INLET PPM                   400    420    430
`

func TestHandleLooseLabelMatch(t *testing.T) {
	h := testHandler(t)

	reading, info := h.Handle(mangledTable, 2, constants.LevelAggressive)
	if info.Strategy != constants.StrategyLooseLabel {
		t.Fatalf("strategy = %q, want %q (reason %q)", info.Strategy, constants.StrategyLooseLabel, info.Reason)
	}
	if reading.ValidFieldCount != 3 {
		t.Errorf("ValidFieldCount = %d, want 3", reading.ValidFieldCount)
	}
	vac, ok := reading.Field("vacuum_in_h2o")
	if !ok {
		t.Fatal("vacuum_in_h2o not recovered by loose match")
	}
	if vac.Value.Number != -11 {
		t.Errorf("vacuum = %v, want -11", vac.Value.Number)
	}
	if vac.Confidence >= 0.5 {
		t.Errorf("loose-matched confidence = %.2f, want < 0.5", vac.Confidence)
	}
}

// headlessText lost its header row entirely; only the unit-adjacent scan can
// recover anything, at capped confidence.
const headlessText = `THERMAL OXIDIZER DAILY LOG
EXHAUST TEMPERATURE °F 1480
INLET PPM 451.0
VACUUM IN H2O -12
`

func TestHandleRegexOnly(t *testing.T) {
	h := testHandler(t)

	reading, info := h.Handle(headlessText, 3, constants.LevelAggressive)
	if info.Strategy != constants.StrategyRegexOnly {
		t.Fatalf("strategy = %q, want %q (reason %q)", info.Strategy, constants.StrategyRegexOnly, info.Reason)
	}
	if !strings.Contains(info.Reason, "table structure not recognized") {
		t.Errorf("reason %q does not mention the failed parse", info.Reason)
	}
	if reading.ValidFieldCount != 3 {
		t.Errorf("ValidFieldCount = %d, want 3", reading.ValidFieldCount)
	}
	if reading.OverallConfidence >= 0.5 {
		t.Errorf("OverallConfidence = %.2f, want < 0.5 for regex-only recovery", reading.OverallConfidence)
	}
	exh, ok := reading.Field("exhaust_temp_f")
	if !ok || exh.Value.Number != 1480 {
		t.Errorf("exhaust_temp_f = %+v, want 1480", exh)
	}
	inlet, ok := reading.Field("inlet_ppm")
	if !ok || inlet.Value.Number != 451 {
		t.Errorf("inlet_ppm = %+v, want 451", inlet)
	}
	for _, f := range reading.Fields {
		if f.SourceHour != 3 {
			t.Errorf("field %s SourceHour = %d, want the requested hour", f.FieldKey, f.SourceHour)
		}
	}
}

func TestHandleRegexOnlyGatedByLevel(t *testing.T) {
	h := testHandler(t)

	reading, info := h.Handle(headlessText, 3, constants.LevelStrict)
	if info.Strategy != constants.StrategyNone {
		t.Fatalf("strategy = %q, want %q", info.Strategy, constants.StrategyNone)
	}
	if reading.ValidFieldCount != 0 {
		t.Errorf("ValidFieldCount = %d, want 0", reading.ValidFieldCount)
	}
	if info.Confidence != 0 {
		t.Errorf("Confidence = %.2f, want 0", info.Confidence)
	}
	if info.Reason == "" {
		t.Error("expected the parse failure surfaced as the reason")
	}
}

// Escalating the level must never shrink the result: each wider level keeps
// at least the valid fields of the stricter one.
func TestHandleLevelMonotonicity(t *testing.T) {
	h := testHandler(t)

	for _, text := range []string{cleanTable, gapTable, mangledTable, headlessText} {
		var prev int
		for _, level := range []constants.FallbackLevel{
			constants.LevelStrict,
			constants.LevelModerate,
			constants.LevelAggressive,
		} {
			reading, _ := h.Handle(text, 2, level)
			if reading.ValidFieldCount < prev {
				t.Errorf("level %s recovered %d fields, stricter level had %d",
					level, reading.ValidFieldCount, prev)
			}
			prev = reading.ValidFieldCount
		}
	}
}

func TestHandleEmptyInput(t *testing.T) {
	h := testHandler(t)

	reading, info := h.Handle("", 5, constants.LevelAggressive)
	if info.Strategy != constants.StrategyNone {
		t.Errorf("strategy = %q, want %q", info.Strategy, constants.StrategyNone)
	}
	if len(reading.Fields) != 0 {
		t.Errorf("got %d fields from empty input", len(reading.Fields))
	}
}
