package harmonizer

import (
	"encoding/json"

	"github.com/eysenfalk/factorio-harmonizer/internal/conflict"
	"github.com/eysenfalk/factorio-harmonizer/internal/depgraph"
	"github.com/eysenfalk/factorio-harmonizer/internal/patch"
)

// Report is the compatibility report handed to reporting and
// archiving collaborators. Its JSON shape is the external contract:
// prototype keys serialize as "kind.name" and severities as lowercase
// strings.
type Report struct {
	AnalyzedPackages  []string           `json:"analyzed_packages"`
	AnalysisTimestamp string             `json:"analysis_timestamp"`
	Summary           conflict.Summary   `json:"summary"`
	Issues            []conflict.Issue   `json:"issues"`
	DependencyGraph   depgraph.Graph     `json:"dependency_graph"`
	Patches           []patch.Suggestion `json:"patches"`

	// Result carries the per-prototype analyses for text rendering.
	// It is not part of the serialized contract.
	Result *conflict.Result `json:"-"`
}

// JSON serializes the report for archiving and machine consumers.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// ParseReport deserializes an archived report. The Result field is
// not restored; text rendering of archived runs works from the
// serialized issues and patches alone.
func ParseReport(raw []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
