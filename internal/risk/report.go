package risk

import (
	"fmt"
	"strconv"
	"strings"
)

// String renders the report for display. The format is line-oriented so the
// issue ordering and classification can be recovered by ParseReport; only
// numeric precision is lossy.
func (r LikelihoodReport) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "failure likelihood: %.1f%%", r.Score)
	for i, issue := range r.Issues {
		fmt.Fprintf(&sb, "\n%d. %s %s=%g contribution=%g",
			i+1, issue.Status, issue.Parameter, issue.Value, issue.RiskContribution)
	}
	return sb.String()
}

// ParseReport recovers a report from its display-string form.
func ParseReport(s string) (LikelihoodReport, error) {
	lines := strings.Split(s, "\n")
	if len(lines) == 0 {
		return LikelihoodReport{}, fmt.Errorf("empty report")
	}

	var report LikelihoodReport
	header := strings.TrimSuffix(strings.TrimPrefix(lines[0], "failure likelihood: "), "%")
	score, err := strconv.ParseFloat(header, 64)
	if err != nil {
		return LikelihoodReport{}, fmt.Errorf("malformed report header %q", lines[0])
	}
	report.Score = score
	report.Issues = make([]Issue, 0, len(lines)-1)

	for _, line := range lines[1:] {
		issue, err := parseIssueLine(line)
		if err != nil {
			return LikelihoodReport{}, err
		}
		report.Issues = append(report.Issues, issue)
	}
	return report, nil
}

func parseIssueLine(line string) (Issue, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return Issue{}, fmt.Errorf("malformed issue line %q", line)
	}

	status := Status(fields[1])
	switch status {
	case StatusWarning, StatusCritical:
	default:
		return Issue{}, fmt.Errorf("unexpected issue status %q", fields[1])
	}

	param, rawValue, ok := strings.Cut(fields[2], "=")
	if !ok {
		return Issue{}, fmt.Errorf("malformed issue value in %q", line)
	}
	value, err := strconv.ParseFloat(rawValue, 64)
	if err != nil {
		return Issue{}, fmt.Errorf("malformed issue value in %q", line)
	}

	rawContrib, ok := strings.CutPrefix(fields[3], "contribution=")
	if !ok {
		return Issue{}, fmt.Errorf("malformed contribution in %q", line)
	}
	contribution, err := strconv.ParseFloat(rawContrib, 64)
	if err != nil {
		return Issue{}, fmt.Errorf("malformed contribution in %q", line)
	}

	return Issue{
		Parameter:        param,
		Value:            value,
		Status:           status,
		RiskContribution: contribution,
	}, nil
}
