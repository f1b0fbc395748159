// Package conflict detects compatibility problems between packages:
// contested recipes, prototypes unreachable on some worlds, missing
// dependencies, and broken research chains.
package conflict

// Severity grades how badly an issue impacts a combined mod set.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

var severityRank = map[Severity]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
	SeverityInfo:     0,
}

// Rank returns a numeric weight for ordering, highest severity first.
// Unknown severities rank below info.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether the severity is one of the defined grades.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}
