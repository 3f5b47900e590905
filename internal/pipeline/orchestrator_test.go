package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/enviroscan/logsheet/constants"
	"github.com/enviroscan/logsheet/internal/common"
	"github.com/enviroscan/logsheet/internal/entity"
	"github.com/enviroscan/logsheet/internal/fallback"
	"github.com/enviroscan/logsheet/internal/fields"
	"github.com/enviroscan/logsheet/internal/parser"
	"github.com/enviroscan/logsheet/internal/validate"
)

func testOrchestrator(t *testing.T, source TextSource) *Orchestrator {
	t.Helper()
	dict, err := fields.NewDictionary()
	if err != nil {
		t.Fatalf("NewDictionary: %v", err)
	}
	m := fields.NewMatcher(dict, common.MatcherConfig{MinSimilarity: 0.5, LooseSimilarity: 0.3}, nil)
	fb := fallback.NewHandler(parser.NewParser(nil), m, dict, common.FallbackConfig{
		RequiredMinimumFields: 4,
		AcceptableConfidence:  0.6,
		AdjacentHourPenalty:   0.7,
		RegexOnlyConfidence:   0.35,
	}, nil)
	v := validate.NewValidator(dict, common.ValidatorConfig{
		ReviewThreshold:          0.7,
		FabricationMinDigits:     5,
		FabricationMaxConfidence: 0.5,
	}, nil)
	return NewOrchestrator(source, dict, fb, v, common.BatchConfig{Concurrency: 2}, nil)
}

// cleanSheet is a well-scanned logsheet covering hours 0000 through 0300.
const cleanSheet = `TIME                         0000     0100     0200     0300
VAPOR INLET FLOW RATE FPM    2100     2150     2200     2300
EXHAUST TEMPERATURE °F       1450     1460     1470     1480
CHAMBER TEMPERATURE °F       1600     1605     1610     1614
INLET PPM                     400      420      440    451.0
OUTLET PPM                     10       11       11       12
INLET % LEL                    15       16       17       18
VACUUM IN H2O                 -10      -11      -11      -12
TOTALIZER SCF              125000   125600   126200   126800
`

// noisySheet is cleanSheet with OCR digit damage in the 0300 column.
const noisySheet = `TIME                         0000     0100     0200     0300
VAPOR INLET FLOW RATE FPM    2100     2150     2200     2300
EXHAUST TEMPERATURE °F       1450     1460     1470     14BO
CHAMBER TEMPERATURE °F       1600     1605     1610     1614
INLET PPM                     400      420      440    4Sl.O
OUTLET PPM                     10       11       11       12
INLET % LEL                    15       16       17       18
VACUUM IN H2O                 -10      -11      -11      -12
TOTALIZER SCF              125000   125600   126200   126800
`

// headlessSheet lost its hour header to a bad crop.
const headlessSheet = `THERMAL OXIDIZER DAILY LOG
EXHAUST TEMPERATURE °F 1480
INLET PPM 451.0
VACUUM IN H2O -12
`

func TestProcessCleanSheet(t *testing.T) {
	o := testOrchestrator(t, nil)

	res := o.Process(context.Background(), Request{RawText: cleanSheet, TargetHour: 3})
	if !res.IsSuccess() {
		t.Fatalf("Process failed: %s", res.ErrorMessage)
	}
	if res.Fallback.Strategy != constants.StrategyNone {
		t.Errorf("strategy = %q, want %q", res.Fallback.Strategy, constants.StrategyNone)
	}
	if res.Reading.ValidFieldCount != 8 {
		t.Errorf("ValidFieldCount = %d, want 8", res.Reading.ValidFieldCount)
	}
	if res.Reading.OverallConfidence < 0.8 {
		t.Errorf("OverallConfidence = %.3f, want >= 0.8", res.Reading.OverallConfidence)
	}
	for _, want := range []struct {
		key   string
		value float64
	}{
		{"vapor_inlet_fpm", 2300},
		{"exhaust_temp_f", 1480},
		{"chamber_temp_f", 1614},
		{"inlet_ppm", 451},
		{"outlet_ppm", 12},
		{"inlet_lel", 18},
		{"vacuum_in_h2o", -12},
		{"totalizer_scf", 126800},
	} {
		f, ok := res.Reading.Field(want.key)
		if !ok {
			t.Errorf("field %s missing", want.key)
			continue
		}
		if f.Value.Number != want.value {
			t.Errorf("%s = %v, want %v", want.key, f.Value.Number, want.value)
		}
		if f.SourceHour != 3 {
			t.Errorf("%s SourceHour = %d, want 3", want.key, f.SourceHour)
		}
	}
	if !res.Validation.IsValid || res.Validation.RequiresManualReview {
		t.Errorf("validation = %+v, want valid and no review", res.Validation)
	}
}

func TestProcessDeterministic(t *testing.T) {
	o := testOrchestrator(t, nil)
	req := Request{
		ID:         uuid.MustParse("f9c2e1de-8a33-4f5e-9b3e-0a4cf4a81c11"),
		SourceRef:  "sheet-041.txt",
		RawText:    noisySheet,
		TargetHour: 3,
	}

	first := o.Process(context.Background(), req)
	second := o.Process(context.Background(), req)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical requests produced different results:\n%+v\n%+v", first, second)
	}
	if first.ID != req.ID {
		t.Errorf("result ID = %s, want caller's %s", first.ID, req.ID)
	}
}

func TestProcessNoiseDegradesConfidence(t *testing.T) {
	o := testOrchestrator(t, nil)
	ctx := context.Background()

	clean := o.Process(ctx, Request{RawText: cleanSheet, TargetHour: 3})
	noisy := o.Process(ctx, Request{RawText: noisySheet, TargetHour: 3})
	if !clean.IsSuccess() || !noisy.IsSuccess() {
		t.Fatalf("clean=%q noisy=%q", clean.ErrorMessage, noisy.ErrorMessage)
	}

	// digit repair still recovers the values
	if f, _ := noisy.Reading.Field("exhaust_temp_f"); f.Value.Number != 1480 {
		t.Errorf("repaired exhaust = %v, want 1480", f.Value.Number)
	}
	if f, _ := noisy.Reading.Field("inlet_ppm"); f.Value.Number != 451 {
		t.Errorf("repaired inlet ppm = %v, want 451", f.Value.Number)
	}
	// but never at full confidence
	if noisy.Reading.OverallConfidence >= clean.Reading.OverallConfidence {
		t.Errorf("noisy confidence %.3f not below clean %.3f",
			noisy.Reading.OverallConfidence, clean.Reading.OverallConfidence)
	}
	cf, _ := clean.Reading.Field("exhaust_temp_f")
	nf, _ := noisy.Reading.Field("exhaust_temp_f")
	if nf.Confidence >= cf.Confidence {
		t.Errorf("repaired field confidence %.3f not below clean %.3f", nf.Confidence, cf.Confidence)
	}
}

func TestProcessHeaderlessSheet(t *testing.T) {
	o := testOrchestrator(t, nil)

	res := o.Process(context.Background(), Request{RawText: headlessSheet, TargetHour: 3})
	if !res.IsSuccess() {
		t.Fatalf("Process failed: %s", res.ErrorMessage)
	}
	if res.Fallback.Strategy != constants.StrategyRegexOnly {
		t.Fatalf("strategy = %q, want %q", res.Fallback.Strategy, constants.StrategyRegexOnly)
	}
	if res.Reading.OverallConfidence >= 0.5 {
		t.Errorf("OverallConfidence = %.3f, want < 0.5 for regex-only recovery", res.Reading.OverallConfidence)
	}
	if !res.Validation.RequiresManualReview {
		t.Error("low-confidence recovery not routed to review")
	}
}

func TestProcessHeaderlessStrictFails(t *testing.T) {
	o := testOrchestrator(t, nil)

	res := o.Process(context.Background(), Request{
		RawText:       headlessSheet,
		TargetHour:    3,
		FallbackLevel: constants.LevelStrict,
	})
	if !res.IsSuccess() {
		t.Fatalf("Process failed outright: %s", res.ErrorMessage)
	}
	if res.Reading.ValidFieldCount != 0 {
		t.Errorf("strict level recovered %d fields from headerless text", res.Reading.ValidFieldCount)
	}
	if res.Validation.IsValid && !res.Validation.RequiresManualReview {
		t.Error("empty reading not routed to review")
	}
}

func TestProcessRejectsBadHour(t *testing.T) {
	o := testOrchestrator(t, nil)

	res := o.Process(context.Background(), Request{RawText: cleanSheet, TargetHour: 24})
	if res.IsSuccess() {
		t.Fatal("hour 24 accepted")
	}
	if !strings.Contains(res.ErrorMessage, "out of range") {
		t.Errorf("ErrorMessage = %q, want hour range complaint", res.ErrorMessage)
	}
}

func TestProcessAcquisitionFailure(t *testing.T) {
	o := testOrchestrator(t, FileTextSource{})

	res := o.Process(context.Background(), Request{SourceRef: "/nonexistent/sheet.txt", TargetHour: 3})
	if res.IsSuccess() {
		t.Fatal("missing source file produced a success")
	}
	if !strings.Contains(res.ErrorMessage, "acquire text") {
		t.Errorf("ErrorMessage = %q, want acquisition failure", res.ErrorMessage)
	}

	// no source wired and no raw text: same failure path
	bare := testOrchestrator(t, nil)
	res = bare.Process(context.Background(), Request{SourceRef: "sheet.txt", TargetHour: 3})
	if res.IsSuccess() {
		t.Fatal("nil source produced a success")
	}
}

func TestProcessFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sheet.txt")
	if err := os.WriteFile(path, []byte(cleanSheet), 0o644); err != nil {
		t.Fatal(err)
	}

	o := testOrchestrator(t, FileTextSource{})
	res := o.Process(context.Background(), Request{SourceRef: path, TargetHour: 3})
	if !res.IsSuccess() {
		t.Fatalf("Process failed: %s", res.ErrorMessage)
	}
	if res.SourceRef != path {
		t.Errorf("SourceRef = %q, want %q", res.SourceRef, path)
	}
}

func TestProcessCancelledContext(t *testing.T) {
	o := testOrchestrator(t, FileTextSource{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := o.Process(ctx, Request{SourceRef: "sheet.txt", TargetHour: 3})
	if res.IsSuccess() {
		t.Fatal("cancelled context produced a success")
	}
}

func TestProcessEmptyAfterNormalize(t *testing.T) {
	o := testOrchestrator(t, nil)

	res := o.Process(context.Background(), Request{RawText: "-------\n\n\n", TargetHour: 3})
	if res.IsSuccess() {
		t.Fatal("grid-noise-only text produced a success")
	}
	if !strings.Contains(res.ErrorMessage, "empty") {
		t.Errorf("ErrorMessage = %q, want empty-text complaint", res.ErrorMessage)
	}
}

func TestProcessBatchCorrespondence(t *testing.T) {
	o := testOrchestrator(t, nil)

	reqs := []Request{
		{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), RawText: cleanSheet, TargetHour: 3},
		{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), RawText: cleanSheet, TargetHour: 24},
		{ID: uuid.MustParse("00000000-0000-0000-0000-000000000003"), RawText: headlessSheet, TargetHour: 5},
	}
	results := o.ProcessBatch(context.Background(), reqs)
	if len(results) != len(reqs) {
		t.Fatalf("got %d results for %d requests", len(results), len(reqs))
	}
	for i, res := range results {
		if res.ID != reqs[i].ID {
			t.Errorf("slot %d carries ID %s, want %s", i, res.ID, reqs[i].ID)
		}
	}
	if !results[0].IsSuccess() {
		t.Errorf("slot 0: %s", results[0].ErrorMessage)
	}
	if results[1].IsSuccess() {
		t.Error("slot 1: bad hour did not fail")
	}
	if !results[2].IsSuccess() || results[2].Fallback.Strategy != constants.StrategyRegexOnly {
		t.Errorf("slot 2 = %+v, want regex-only success", results[2].Fallback)
	}
}

func TestProcessBatchEmpty(t *testing.T) {
	o := testOrchestrator(t, nil)
	if results := o.ProcessBatch(context.Background(), nil); len(results) != 0 {
		t.Errorf("got %d results for empty batch", len(results))
	}
}

func TestAssessQuality(t *testing.T) {
	o := testOrchestrator(t, nil)
	ctx := context.Background()

	clean := o.AssessQuality(o.Process(ctx, Request{RawText: cleanSheet, TargetHour: 3}))
	if clean.Decision != DecisionAutoAccept {
		t.Errorf("clean sheet decision = %q (score %.2f), want %q", clean.Decision, clean.Score, DecisionAutoAccept)
	}

	regex := o.AssessQuality(o.Process(ctx, Request{RawText: headlessSheet, TargetHour: 3}))
	if regex.Decision != DecisionReview {
		t.Errorf("regex recovery decision = %q (score %.2f), want %q", regex.Decision, regex.Score, DecisionReview)
	}
	if regex.Score >= clean.Score {
		t.Errorf("regex score %.2f not below clean score %.2f", regex.Score, clean.Score)
	}
	if len(regex.Recommendations) == 0 {
		t.Error("regex recovery produced no recommendations")
	}

	failed := o.AssessQuality(o.Process(ctx, Request{RawText: cleanSheet, TargetHour: 24}))
	if failed.Decision != DecisionReject || failed.Score != 0 {
		t.Errorf("failure decision = %q score %.2f, want reject at 0", failed.Decision, failed.Score)
	}
}

func TestFlatten(t *testing.T) {
	o := testOrchestrator(t, nil)

	rec := entity.Flatten(o.Process(context.Background(), Request{RawText: cleanSheet, TargetHour: 3}))
	if !rec.IsSuccess || rec.Hour != "0300" {
		t.Fatalf("record = %+v, want success at hour 0300", rec)
	}
	if len(rec.Fields) != 8 {
		t.Errorf("got %d flat fields, want 8", len(rec.Fields))
	}
	if rec.Fields[0].Key != "vapor_inlet_fpm" || rec.Fields[0].Value != "2300" {
		t.Errorf("first field = %+v, want vapor_inlet_fpm 2300", rec.Fields[0])
	}

	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"overallConfidence"`, `"fallbackStrategy":"none"`, `"hour":"0300"`} {
		if !strings.Contains(string(b), key) {
			t.Errorf("serialized record missing %s: %s", key, b)
		}
	}

	failRec := entity.Flatten(o.Process(context.Background(), Request{RawText: cleanSheet, TargetHour: 24}))
	if failRec.IsSuccess || failRec.ErrorMessage == "" {
		t.Errorf("failure record = %+v, want error message only", failRec)
	}
}
