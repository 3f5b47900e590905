package constants

import "strings"

// FallbackLevel gates how far the fallback handler may escalate.
type FallbackLevel string

const (
	LevelStrict     FallbackLevel = "strict"     // primary parse only
	LevelModerate   FallbackLevel = "moderate"   // + adjacent-hour substitution
	LevelAggressive FallbackLevel = "aggressive" // all strategies
)

// MaxSteps returns how many escalation steps the level permits.
func (l FallbackLevel) MaxSteps() int {
	switch l {
	case LevelStrict:
		return 1
	case LevelModerate:
		return 2
	default:
		return 4
	}
}

func ParseFallbackLevel(s string) (FallbackLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return LevelStrict, true
	case "moderate":
		return LevelModerate, true
	case "aggressive", "":
		return LevelAggressive, true
	}
	return LevelAggressive, false
}

// FallbackStrategy records which recovery technique produced a reading.
type FallbackStrategy string

const (
	StrategyNone         FallbackStrategy = "none"
	StrategyAdjacentHour FallbackStrategy = "adjacentHourSubstitution"
	StrategyLooseLabel   FallbackStrategy = "looseLabelMatch"
	StrategyRegexOnly    FallbackStrategy = "regexOnly"
)
