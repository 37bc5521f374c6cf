package domain

// MinDetectionConfidence is the lowest detector confidence that produces a report.
const MinDetectionConfidence = 0.7

var baseSeverity = map[IssueType]Severity{
	IssuePothole:    SeverityHigh,
	IssueFlooding:   SeverityHigh,
	IssueSpeedHump:  SeverityMedium,
	IssueCrack:      SeverityMedium,
	IssueDebris:     SeverityLow,
	IssueNormalRoad: SeverityLow,
}

// ClassifySeverity grades an observation by defect class, then adjusts for
// detector confidence and the size of the bounding box.
func ClassifySeverity(o DefectObservation) Severity {
	sev, ok := baseSeverity[o.Type]
	if !ok {
		sev = SeverityLow
	}

	switch {
	case o.Confidence > 0.9 && sev == SeverityMedium:
		sev = SeverityHigh
	case o.Confidence < 0.5 && sev == SeverityHigh:
		sev = SeverityMedium
	}

	// large defect
	if o.BBox.Area() > 10000 && sev == SeverityMedium {
		sev = SeverityHigh
	}
	return sev
}

// PriorityFor maps severity to triage priority (1 is most urgent).
func PriorityFor(s Severity) int {
	if s == SeverityHigh {
		return 1
	}
	return 2
}
