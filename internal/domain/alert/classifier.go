package alert

// Thresholds holds the day-count cutoffs used to classify navigation delay
// severity. They are configuration, not constants, so operators can tune
// escalation without a code change.
type Thresholds struct {
	CriticalDays int
	HighDays     int
}

// DefaultThresholds matches the shipped configuration defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{CriticalDays: 14, HighDays: 7}
}

// ClassifyDelay maps how late a step is, and whether it is required, to a
// severity. The mapping is deterministic and monotonic: for a fixed
// isRequired, more days overdue never yields a lower severity. Optional
// steps classify one band below required ones.
func (t Thresholds) ClassifyDelay(daysOverdue int, isRequired bool) Severity {
	if isRequired {
		switch {
		case daysOverdue >= t.CriticalDays:
			return SeverityCritical
		case daysOverdue >= t.HighDays:
			return SeverityHigh
		default:
			return SeverityMedium
		}
	}
	switch {
	case daysOverdue >= t.CriticalDays:
		return SeverityHigh
	case daysOverdue >= t.HighDays:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// PriorityDelta is the contribution an alert of the given severity makes to
// the patient's priority score.
func PriorityDelta(s Severity) int {
	switch s {
	case SeverityCritical:
		return 20
	case SeverityHigh:
		return 10
	case SeverityMedium:
		return 5
	case SeverityLow:
		return 1
	}
	return 0
}
