package domain

import (
	"fmt"
	"strings"
)

// Severity is the impact level of a defect. Lower ordinal means more severe.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityTrivial  Severity = "TRIVIAL"
)

var severityOrder = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityTrivial}

// Ordinal returns the rank of s (CRITICAL=0 ... TRIVIAL=4), or -1 when unknown.
func (s Severity) Ordinal() int {
	for i, candidate := range severityOrder {
		if candidate == s {
			return i
		}
	}
	return -1
}

// MoreSevereThan reports whether s strictly outranks other.
func (s Severity) MoreSevereThan(other Severity) bool {
	return s.Ordinal() >= 0 && s.Ordinal() < other.Ordinal()
}

// ParseSeverity converts free text into a known severity.
func ParseSeverity(raw string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(raw)))
	if sev.Ordinal() < 0 {
		return "", fmt.Errorf("unknown severity %q", raw)
	}
	return sev, nil
}

// ClassificationSource records which engine produced a classification.
type ClassificationSource string

const (
	SourceLLM     ClassificationSource = "LLM"
	SourceRules   ClassificationSource = "RULES"
	SourceHybrid  ClassificationSource = "HYBRID"
	SourceMockLLM ClassificationSource = "MOCK_LLM"
)

// Classification is the verdict attached to a ticket.
type Classification struct {
	Category              string               `json:"category"`
	Subcategory           string               `json:"subcategory"`
	Severity              Severity             `json:"severity"`
	Priority              int                  `json:"priority"`
	ConfidenceScore       float64              `json:"confidenceScore"`
	Reasoning             string               `json:"reasoning"`
	ClassificationSource  ClassificationSource `json:"classificationSource"`
	RequiresHumanApproval bool                 `json:"requiresHumanApproval"`
}
