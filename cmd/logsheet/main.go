package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/enviroscan/logsheet/constants"
	"github.com/enviroscan/logsheet/internal/common"
	"github.com/enviroscan/logsheet/internal/entity"
	"github.com/enviroscan/logsheet/internal/fallback"
	"github.com/enviroscan/logsheet/internal/fields"
	"github.com/enviroscan/logsheet/internal/parser"
	"github.com/enviroscan/logsheet/internal/pipeline"
	"github.com/enviroscan/logsheet/internal/validate"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	// Parse CLI flags
	var (
		file    = flag.String("file", "", "single OCR text dump to process")
		dir     = flag.String("dir", "", "directory of .txt OCR dumps to process as a batch")
		hourStr = flag.String("hour", "", "target hour, \"0300\" or \"3\" (required)")
		level   = flag.String("level", "aggressive", "fallback level: strict | moderate | aggressive")
	)
	flag.Parse()

	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	if *hourStr == "" {
		printError("Error: --hour is required\n")
		os.Exit(1)
	}
	if (*file == "") == (*dir == "") {
		printError("Error: exactly one of --file or --dir is required\n")
		os.Exit(1)
	}
	hour, err := constants.ParseHour(*hourStr)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	fbLevel, ok := constants.ParseFallbackLevel(*level)
	if !ok {
		printError("Error: invalid --level %q\n", *level)
		os.Exit(1)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	orch, err := buildOrchestrator(cfg, logger)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	var results []entity.IntegrationResult
	switch {
	case *file != "":
		results = []entity.IntegrationResult{orch.Process(ctx, pipeline.Request{
			ID:            uuid.New(),
			SourceRef:     *file,
			TargetHour:    hour,
			FallbackLevel: fbLevel,
		})}
	default:
		reqs, err := dirRequests(*dir, hour, fbLevel)
		if err != nil {
			printError("Error: %v\n", err)
			os.Exit(1)
		}
		results = orch.ProcessBatch(ctx, reqs)
	}

	enc := json.NewEncoder(os.Stdout)
	failures := 0
	for _, res := range results {
		q := orch.AssessQuality(res)
		logger.Info("quality", "source_ref", res.SourceRef, "score", q.Score, "decision", string(q.Decision))
		if err := enc.Encode(entity.Flatten(res)); err != nil {
			printError("Error: encode result: %v\n", err)
			os.Exit(1)
		}
		if !res.IsSuccess() {
			failures++
		}
	}
	if failures > 0 {
		printError("%d of %d inputs failed\n", failures, len(results))
		os.Exit(1)
	}
}

func buildOrchestrator(cfg *common.Config, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	dict, err := fields.NewDictionary()
	if err != nil {
		return nil, err
	}
	p := parser.NewParser(logger)
	matcher := fields.NewMatcher(dict, cfg.Matcher, logger)
	handler := fallback.NewHandler(p, matcher, dict, cfg.Fallback, logger)
	validator := validate.NewValidator(dict, cfg.Validator, logger)
	return pipeline.NewOrchestrator(pipeline.FileTextSource{}, dict, handler, validator, cfg.Batch, logger), nil
}

func dirRequests(dir string, hour int, level constants.FallbackLevel) ([]pipeline.Request, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no .txt files in %s", dir)
	}
	sort.Strings(paths)
	reqs := make([]pipeline.Request, 0, len(paths))
	for _, path := range paths {
		reqs = append(reqs, pipeline.Request{
			ID:            uuid.New(),
			SourceRef:     path,
			TargetHour:    hour,
			FallbackLevel: level,
		})
	}
	return reqs, nil
}
