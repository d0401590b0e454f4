package rules

// ConfidencePolicy decides when a probabilistic verdict needs human review.
type ConfidencePolicy struct {
	Threshold float64
}

// RequiresApproval reports whether score falls below the threshold.
func (p ConfidencePolicy) RequiresApproval(score float64) bool {
	return score < p.Threshold
}
