// Package policy turns search-simulation results into a threat level and
// picks the channel scenario whose key protects the payload.
package policy

import (
	"slices"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/constants"
	qerrors "github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/errors"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/grover"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/qkd"
)

// Level is an assessed quantum-search threat level.
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
)

// String returns LOW, MEDIUM or HIGH.
func (l Level) String() string {
	switch l {
	case LevelLow:
		return "LOW"
	case LevelMedium:
		return "MEDIUM"
	case LevelHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name, ignoring case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return LevelLow, nil
	case "MEDIUM":
		return LevelMedium, nil
	case "HIGH":
		return LevelHigh, nil
	default:
		return 0, qerrors.NewInputError("policy.ParseLevel", qerrors.ErrInvalidParameter)
	}
}

// Classify maps a mean search success probability to a level. Both
// thresholds are inclusive lower bounds.
func Classify(meanSuccess float64) Level {
	switch {
	case meanSuccess >= constants.HighThreatThreshold:
		return LevelHigh
	case meanSuccess >= constants.MediumThreatThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Assessment is the outcome of Assess.
type Assessment struct {
	MeanSuccess float64
	Trials      int
	Level       Level
}

// Assess classifies the mean ideal success of trials.
func Assess(trials []grover.SearchTrial) (Assessment, error) {
	if len(trials) == 0 {
		return Assessment{}, qerrors.NewInputError("policy.Assess", qerrors.ErrEmptyInput)
	}

	xs := make([]float64, len(trials))
	for i, t := range trials {
		xs[i] = t.Success
	}
	mean := stat.Mean(xs, nil)

	return Assessment{
		MeanSuccess: mean,
		Trials:      len(trials),
		Level:       Classify(mean),
	}, nil
}

// Select picks one scenario for level:
//
//	HIGH   - lowest QBER (first such row on ties)
//	MEDIUM - row floor(len/2) of the stable ascending-QBER order
//	LOW    - highest QBER (first such row on ties)
//
// The table is not modified.
func Select(scenarios []qkd.Scenario, level Level) (qkd.Scenario, error) {
	if len(scenarios) == 0 {
		return qkd.Scenario{}, qerrors.NewConfigurationError("policy.Select", qerrors.ErrEmptyScenarioTable)
	}

	order := make([]int, len(scenarios))
	for i := range order {
		order[i] = i
	}

	switch level {
	case LevelHigh, LevelMedium:
		slices.SortStableFunc(order, func(a, b int) int {
			return compareQBER(scenarios[a], scenarios[b])
		})
		if level == LevelHigh {
			return scenarios[order[0]], nil
		}
		return scenarios[order[len(order)/2]], nil
	case LevelLow:
		slices.SortStableFunc(order, func(a, b int) int {
			return compareQBER(scenarios[b], scenarios[a])
		})
		return scenarios[order[0]], nil
	default:
		return qkd.Scenario{}, qerrors.NewConfigurationError("policy.Select", qerrors.ErrInvalidParameter)
	}
}

func compareQBER(a, b qkd.Scenario) int {
	switch {
	case a.QBER < b.QBER:
		return -1
	case a.QBER > b.QBER:
		return 1
	default:
		return 0
	}
}
