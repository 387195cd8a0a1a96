package payload

import (
	"fmt"
	"strings"
)

// Strategy controls how Persist issues its writes.
type Strategy uint8

const (
	// StrategySequential writes payloads one at a time in input order and
	// stops at the first failure.
	StrategySequential Strategy = iota
	// StrategyConcurrent writes up to Config.Concurrency payloads at once.
	StrategyConcurrent
)

func (s Strategy) String() string {
	switch s {
	case StrategySequential:
		return "sequential"
	case StrategyConcurrent:
		return "concurrent"
	default:
		return fmt.Sprintf("Strategy(%d)", s)
	}
}

func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sequential":
		return StrategySequential, nil
	case "concurrent":
		return StrategyConcurrent, nil
	default:
		return 0, fmt.Errorf("unknown persist strategy %q", s)
	}
}
