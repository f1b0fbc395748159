// Package report renders compatibility reports for people: a
// severity-grouped text report and on-disk patch packages. It is a
// presentation adapter; the analysis core never imports it.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/eysenfalk/factorio-harmonizer/internal/conflict"
	"github.com/eysenfalk/factorio-harmonizer/internal/harmonizer"
)

// Render produces the text conflict report: header, summary, then
// issues grouped into recipe, research, and other sections, each
// sorted by severity with the worst first.
func Render(r *harmonizer.Report) string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("FACTORIO HARMONIZER - CONFLICT ANALYSIS REPORT"))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", 60))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Analysis Date: %s\n", r.AnalysisTimestamp)
	fmt.Fprintf(&b, "Analyzed Packages: %s\n\n", strings.Join(r.AnalyzedPackages, ", "))

	b.WriteString(SectionStyle.Render("SUMMARY"))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("-", 30))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Prototypes Analyzed: %d\n", r.Summary.Total)
	fmt.Fprintf(&b, "Conflicted Prototypes: %d\n", r.Summary.Conflicted)
	fmt.Fprintf(&b, "Critical Issues: %d\n", r.Summary.Critical)
	fmt.Fprintf(&b, "High Priority Issues: %d\n", r.Summary.High)
	fmt.Fprintf(&b, "Medium Priority Issues: %d\n", r.Summary.Medium)
	fmt.Fprintf(&b, "Low Priority Issues: %d\n\n", r.Summary.Low)

	if len(r.Issues) == 0 {
		b.WriteString(GoodStyle.Render("No conflicts detected."))
		b.WriteString("\n")
		return b.String()
	}

	recipes, research, others := groupIssues(r.Issues)
	writeSection(&b, "RECIPE CONFLICTS", recipes, r.Result)
	writeSection(&b, "RESEARCH CONFLICTS", research, r.Result)
	writeSection(&b, "OTHER CONFLICTS", others, r.Result)

	if len(r.Patches) > 0 {
		b.WriteString(SectionStyle.Render("GENERATED PATCHES"))
		b.WriteString("\n")
		b.WriteString(strings.Repeat("-", 30))
		b.WriteString("\n")
		for _, p := range r.Patches {
			fmt.Fprintf(&b, "%s (%s)\n", p.PatchID, p.Kind)
			fmt.Fprintf(&b, "  %s\n", MutedStyle.Render(p.Description))
			fmt.Fprintf(&b, "  Fixes: %s\n", strings.Join(p.Fixes, ", "))
		}
	}
	return b.String()
}

// groupIssues splits issues by the kind of their first affected key
// and sorts each group by severity, worst first. Sorting is stable so
// detection order breaks ties.
func groupIssues(issues []conflict.Issue) (recipes, research, others []conflict.Issue) {
	for _, issue := range issues {
		kind := ""
		if len(issue.AffectedKeys) > 0 {
			kind = issue.AffectedKeys[0].Kind
		}
		switch kind {
		case "recipe":
			recipes = append(recipes, issue)
		case "technology":
			research = append(research, issue)
		default:
			others = append(others, issue)
		}
	}
	for _, group := range [][]conflict.Issue{recipes, research, others} {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Severity.Rank() > group[j].Severity.Rank()
		})
	}
	return recipes, research, others
}

func writeSection(b *strings.Builder, heading string, issues []conflict.Issue, result *conflict.Result) {
	if len(issues) == 0 {
		return
	}
	b.WriteString(SectionStyle.Render(heading))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", 45))
	b.WriteString("\n")
	for i, issue := range issues {
		grade := SeverityStyle(issue.Severity).Render(strings.ToUpper(string(issue.Severity)))
		fmt.Fprintf(b, "%d. [%s] %s\n", i+1, grade, issue.Title)
		keys := make([]string, 0, len(issue.AffectedKeys))
		for _, k := range issue.AffectedKeys {
			keys = append(keys, k.String())
		}
		fmt.Fprintf(b, "   Affected: %s\n", strings.Join(keys, ", "))
		if len(issue.Packages) > 0 {
			fmt.Fprintf(b, "   Packages: %s\n", strings.Join(issue.Packages, " -> "))
		}
		fmt.Fprintf(b, "   Problem: %s\n", issue.Description)
		fmt.Fprintf(b, "   Root Cause: %s\n", issue.RootCause)
		writeAvailability(b, issue, result)
		if len(issue.SuggestedFixes) > 0 {
			b.WriteString("   Suggested Solutions:\n")
			for _, fix := range issue.SuggestedFixes {
				fmt.Fprintf(b, "     * %s\n", fix)
			}
		}
		b.WriteString("\n")
	}
}

// writeAvailability adds per-prototype reachability detail when the
// in-memory analyses are present. Archived reports render without it.
func writeAvailability(b *strings.Builder, issue conflict.Issue, result *conflict.Result) {
	if result == nil {
		return
	}
	for _, key := range issue.AffectedKeys {
		analysis, ok := result.Analyses[key]
		if !ok || len(analysis.UnavailableContexts) == 0 {
			continue
		}
		fmt.Fprintf(b, "   %s unavailable on: %s\n",
			key.String(), strings.Join(analysis.UnavailableContexts, ", "))
		if len(analysis.AvailableContexts) > 0 {
			fmt.Fprintf(b, "   %s available on: %s\n",
				key.String(), MutedStyle.Render(strings.Join(analysis.AvailableContexts, ", ")))
		}
	}
}
