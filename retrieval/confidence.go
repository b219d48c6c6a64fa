package retrieval

import (
	"fmt"
	"math"
	"time"
)

// confidence aggregates qualifying match scores into a single value in
// [0,1) with a recency-weighted noisy-OR:
//
//	1 - product(1 - w_i * s_i)
//
// where w_i halves every halfLife of age. Adding a match never lowers the
// value, and the empty set scores zero.
func confidence(now time.Time, results []Result, halfLife time.Duration) float64 {
	if halfLife <= 0 {
		halfLife = 30 * 24 * time.Hour
	}

	miss := 1.0
	for _, r := range results {
		age := now.Sub(r.Record.CreatedAt)
		if age < 0 {
			age = 0
		}
		weight := math.Pow(0.5, age.Hours()/halfLife.Hours())
		miss *= 1 - weight*float64(r.Score)
	}
	return 1 - miss
}

// explain summarizes how the confidence came to be, for display next to
// the ranked results.
func explain(results []Result, conf float64) string {
	if len(results) == 0 {
		return "no matches above the relevance threshold"
	}
	top := results[0].Score
	for _, r := range results[1:] {
		if r.Score > top {
			top = r.Score
		}
	}
	return fmt.Sprintf("%d matches above the relevance threshold, top score %.2f, confidence %.2f",
		len(results), top, conf)
}
