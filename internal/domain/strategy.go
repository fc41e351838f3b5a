package domain

import "strings"

type Strategy string

const (
	StrategyManual     Strategy = "manual"
	StrategyRandom     Strategy = "random"
	StrategyBalanced   Strategy = "balanced"
	StrategyRoundRobin Strategy = "round_robin"
)

func ParseStrategy(s string) (Strategy, bool) {
	switch v := Strategy(strings.ToLower(strings.TrimSpace(s))); v {
	case StrategyManual, StrategyRandom, StrategyBalanced, StrategyRoundRobin:
		return v, true
	case "round-robin", "roundrobin":
		return StrategyRoundRobin, true
	default:
		return "", false
	}
}
