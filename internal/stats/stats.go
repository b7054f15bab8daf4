// Package stats derives duration and risk figures from a chain.
package stats

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/rendis/attackchain/internal/graph"
	"github.com/rendis/attackchain/pkg/schema"
)

var (
	numberRe = regexp.MustCompile(`\d+`)

	// A unit counts only when it directly follows a number.
	hourRe = regexp.MustCompile(`(?i)\d\s*(?:(?:h|hr|hrs|hour|hours)\b|час)`)
	dayRe  = regexp.MustCompile(`(?i)\d\s*(?:(?:d|day|days)\b|дн|день|дня)`)
)

// ParseTimeRange reads estimates such as "10-30 мин", "2-4 часа", "45m"
// or "1h". The last number is the upper bound; a single number is both
// bounds. Hour and day units are converted to minutes. No digits yields
// {0,0}.
func ParseTimeRange(s string) schema.TimeRange {
	nums := numberRe.FindAllString(s, -1)
	if len(nums) == 0 {
		return schema.TimeRange{}
	}
	mult := 1
	switch {
	case dayRe.MatchString(s):
		mult = 24 * 60
	case hourRe.MatchString(s):
		mult = 60
	}
	lo, _ := strconv.Atoi(nums[0])
	hi, _ := strconv.Atoi(nums[len(nums)-1])
	if lo > hi {
		lo, hi = hi, lo
	}
	return schema.TimeRange{Min: lo * mult, Max: hi * mult}
}

// TotalMinutes sums every node's upper bound regardless of topology.
func TotalMinutes(nodes []schema.Node) int {
	total := 0
	for _, n := range nodes {
		total += n.Template.EstimatedTime.Max
	}
	return total
}

// FormatDuration renders minutes as "Xh Ym" from one hour up, "Nm" below.
func FormatDuration(total int) string {
	if total >= 60 {
		return fmt.Sprintf("%dh %dm", total/60, total%60)
	}
	return fmt.Sprintf("%dm", total)
}

// Duration is the formatted serial sum of upper bounds.
func Duration(nodes []schema.Node) string {
	return FormatDuration(TotalMinutes(nodes))
}

// RiskLevel is critical if any node is critical, high if more than one
// node is high, medium if exactly one is, low otherwise.
func RiskLevel(nodes []schema.Node) schema.Severity {
	high := 0
	for _, n := range nodes {
		switch n.Template.Severity {
		case schema.SeverityCritical:
			return schema.SeverityCritical
		case schema.SeverityHigh:
			high++
		}
	}
	switch {
	case high > 1:
		return schema.SeverityHigh
	case high == 1:
		return schema.SeverityMedium
	default:
		return schema.SeverityLow
	}
}

// CriticalPathMinutes is the heaviest upper-bound path through the edges.
// It returns the serial total when the chain has a cycle.
func CriticalPathMinutes(nodes []schema.Node, edges []schema.Edge) int {
	dag, err := graph.Analyze(nodes, edges)
	if err != nil {
		return TotalMinutes(nodes)
	}
	upper := make(map[string]int, len(nodes))
	for _, n := range nodes {
		upper[n.ID] = n.Template.EstimatedTime.Max
	}
	return dag.LongestPath(func(id string) int { return upper[id] })
}

// Compute builds the full Stats snapshot.
func Compute(nodes []schema.Node, edges []schema.Edge) schema.Stats {
	counts := make(map[schema.Severity]int)
	for _, n := range nodes {
		counts[n.Template.Severity]++
	}
	total := TotalMinutes(nodes)
	return schema.Stats{
		NodeCount:           len(nodes),
		EdgeCount:           len(edges),
		TotalMinutes:        total,
		Duration:            FormatDuration(total),
		RiskLevel:           RiskLevel(nodes),
		CriticalPathMinutes: CriticalPathMinutes(nodes, edges),
		SeverityCounts:      counts,
	}
}
