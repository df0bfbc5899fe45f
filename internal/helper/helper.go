package helper

import (
	"math"
	"strconv"
	"strings"
	"time"
)

func NormTF(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	s = strings.TrimPrefix(s, "candle")
	switch s {
	case "60m", "1h":
		return "1h"
	default:
		return s
	}
}

// ParseTimeframe — "1m"/"5m"/"1h"/"1d" -> длительность одного бара.
func ParseTimeframe(tf string) (time.Duration, bool) {
	s := NormTF(tf)
	if len(s) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, false
	}
	switch s[len(s)-1] {
	case 'm':
		return time.Duration(n) * time.Minute, true
	case 'h':
		return time.Duration(n) * time.Hour, true
	case 'd':
		return time.Duration(n) * 24 * time.Hour, true
	}
	return 0, false
}

// CycleInterval — пауза между циклами: половина бара, но не меньше floor.
func CycleInterval(tf string, floor time.Duration) time.Duration {
	bar, ok := ParseTimeframe(tf)
	if !ok {
		return time.Minute
	}
	half := bar / 2
	if half < floor {
		return floor
	}
	return half
}

func RoundDownToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	steps := math.Floor(px/tick + 1e-12)
	return steps * tick
}

func RoundUpToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	steps := math.Ceil(px/tick - 1e-12)
	return steps * tick
}
