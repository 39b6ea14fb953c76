package risk

import (
	"fmt"
	"strings"
)

const maintenanceIntervalHours = 5000

// RuntimeContext carries the machine-runtime figures needed for maintenance
// recommendations. LastMaintenanceRuntime comes from persisted maintenance
// history, it is not computed here.
type RuntimeContext struct {
	CurrentRuntime         float64
	LastMaintenanceRuntime float64
}

// GenerateRecommendations renders an issue list as operator-facing advice.
// Pure formatting: critical issues get an urgent line, warnings a scheduled
// inspection, and an overdue-maintenance line is prepended when the runtime
// since last maintenance exceeds the service interval.
func GenerateRecommendations(issues []Issue, rc RuntimeContext) string {
	if len(issues) == 0 {
		return "All parameters are within normal operating ranges. Continue regular monitoring."
	}

	var lines []string

	overdue := rc.CurrentRuntime - rc.LastMaintenanceRuntime
	if overdue > maintenanceIntervalHours {
		lines = append(lines, fmt.Sprintf(
			"OVERDUE: regular maintenance schedule exceeded by %.0f hours",
			overdue-maintenanceIntervalHours))
	}

	for _, issue := range issues {
		name := capitalize(issue.Parameter)
		if issue.Status == StatusCritical {
			lines = append(lines, fmt.Sprintf(
				"URGENT: %s is critically out of range (%v). Immediate inspection required.",
				name, issue.Value))
		} else {
			lines = append(lines, fmt.Sprintf(
				"WARNING: %s is above normal (%v). Schedule inspection within 48 hours.",
				name, issue.Value))
		}
	}

	return strings.Join(lines, "\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
