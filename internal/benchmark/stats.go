package benchmark

import (
	"math"
	"sort"
)

// Summary is the display form of a Bucket. Durations are milliseconds.
type Summary struct {
	Total    float64 `json:"total"`
	Max      float64 `json:"max"`
	Min      float64 `json:"min"`
	Avg      float64 `json:"avg"`
	StdDev   float64 `json:"std_dev"`
	OpCount  int     `json:"op_count"`
	Failures int     `json:"failures"`
}

// Summarize drops buckets without calls and reduces the rest.
func Summarize(buckets map[string]Bucket) map[string]Summary {
	summaries := make(map[string]Summary, len(buckets))
	for name, b := range buckets {
		if len(b.Calls) == 0 || b.Avg <= 0 {
			continue
		}
		summaries[name] = Summary{
			Total:    b.Total,
			Max:      b.Max,
			Min:      b.Min,
			Avg:      b.Avg,
			StdDev:   calculateStdDev(b.Calls, b.Avg),
			OpCount:  len(b.Calls),
			Failures: b.Failures,
		}
	}
	return summaries
}

// SortedNames returns the keys of summaries in a stable display order.
func SortedNames(summaries map[string]Summary) []string {
	names := make([]string, 0, len(summaries))
	for name := range summaries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func calculateStdDev(values []float64, avg float64) float64 {
	if len(values) <= 1 {
		return 0
	}

	var sum float64
	for _, v := range values {
		diff := v - avg
		sum += diff * diff
	}

	variance := sum / float64(len(values)-1)
	return math.Sqrt(variance)
}
