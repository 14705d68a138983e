package analysis

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// idNamespace scopes the name-based UUIDs generated for detected entities
var idNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("smc-engine"))

// EntityID returns a stable identifier for an entity detected at a candle.
// Re-running detection over the same candles yields the same ids.
func EntityID(symbol, kind string, candle Candle, discriminator int) string {
	name := fmt.Sprintf("%s|%s|%d|%d", symbol, kind, candle.Timestamp, discriminator)
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}

// DerivedID returns a stable identifier built from other ids or names
func DerivedID(parts ...string) string {
	return uuid.NewSHA1(idNamespace, []byte(strings.Join(parts, "|"))).String()
}

// tail returns at most the last n candles
func tail(candles []Candle, n int) []Candle {
	if n <= 0 || len(candles) <= n {
		return candles
	}
	return candles[len(candles)-n:]
}

// keepLast trims a detection list to its most recent max entries
func keepLast[T any](items []T, max int) []T {
	if max <= 0 || len(items) <= max {
		return items
	}
	return items[len(items)-max:]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// withinTolerance reports whether a and b differ by at most tol relative to b
func withinTolerance(a, b, tol float64) bool {
	if b == 0 {
		return a == 0
	}
	return abs(a-b)/abs(b) <= tol
}
