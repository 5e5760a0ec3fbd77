package numbering

import "time"

// Metrics receives generation outcomes.
type Metrics interface {
	NumberGenerated(ruleID int64)
	GenerationFailed(code string)
	ObserveGeneration(d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) NumberGenerated(int64)           {}
func (nopMetrics) GenerationFailed(string)         {}
func (nopMetrics) ObserveGeneration(time.Duration) {}
