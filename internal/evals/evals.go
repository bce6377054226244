// Package evals aggregates evaluation traces and gates phased rollout
// of new capabilities on observed quality.
package evals

import "fmt"

// Trace is one evaluation case result.
type Trace struct {
	Phase           int    `json:"phase"`
	CaseID          string `json:"case_id"`
	ToolRequested   bool   `json:"tool_requested"`
	ToolSuccess     bool   `json:"tool_success"`
	CriticalFailure bool   `json:"critical_failure"`
}

// Metrics are aggregated over a set of traces.
type Metrics struct {
	TotalCases          int     `json:"total_cases"`
	ToolSuccessRate     float64 `json:"tool_success_rate"`
	CriticalFailureRate float64 `json:"critical_failure_rate"`
}

// Summarize computes tool success and critical failure rates. With no
// traces the critical failure rate is 1.0 so an empty run can never
// pass a gate.
func Summarize(traces []Trace) Metrics {
	if len(traces) == 0 {
		return Metrics{CriticalFailureRate: 1.0}
	}

	var requested, successful, critical int
	for _, trace := range traces {
		if trace.ToolRequested {
			requested++
			if trace.ToolSuccess {
				successful++
			}
		}
		if trace.CriticalFailure {
			critical++
		}
	}

	successRate := 1.0
	if requested > 0 {
		successRate = float64(successful) / float64(requested)
	}

	return Metrics{
		TotalCases:          len(traces),
		ToolSuccessRate:     successRate,
		CriticalFailureRate: float64(critical) / float64(len(traces)),
	}
}

// Gate thresholds for promoting a capability to the next phase.
const (
	MinToolSuccessRate     = 0.80
	MaxCriticalFailureRate = 0.05
	MinObservedDays        = 14
)

// PhaseGate decides whether metrics justify advancing a phase. Returns
// whether the gate is open and, when closed, the blocking reasons.
func PhaseGate(metrics Metrics, observedDays int) (bool, []string) {
	var reasons []string

	if metrics.ToolSuccessRate < MinToolSuccessRate {
		reasons = append(reasons, fmt.Sprintf(
			"tool_success_rate=%.2f%% < %.2f%%", metrics.ToolSuccessRate*100, MinToolSuccessRate*100))
	}
	if metrics.CriticalFailureRate > MaxCriticalFailureRate {
		reasons = append(reasons, fmt.Sprintf(
			"critical_failure_rate=%.2f%% > %.2f%%", metrics.CriticalFailureRate*100, MaxCriticalFailureRate*100))
	}
	if observedDays < MinObservedDays {
		reasons = append(reasons, fmt.Sprintf("observed_days=%d < %d", observedDays, MinObservedDays))
	}

	return len(reasons) == 0, reasons
}
