// Package rules holds the deterministic classification rules and the engine
// that merges their verdicts with the probabilistic classifier.
package rules

import (
	"strings"

	"github.com/kyma-lab/aws-defectTicket/internal/domain"
)

// Rule is a keyword predicate with a fixed verdict. Lower priority wins.
// Rules are values; their keyword sets are copied at construction and never mutated.
type Rule struct {
	name     string
	priority int
	keywords []string
	verdict  domain.Classification
}

// NewKeywordRule builds a rule that fires when any keyword appears in the ticket text.
func NewKeywordRule(name string, priority int, keywords []string, verdict domain.Classification) Rule {
	normalized := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			normalized = append(normalized, kw)
		}
	}
	verdict.ClassificationSource = domain.SourceRules
	return Rule{name: name, priority: priority, keywords: normalized, verdict: verdict}
}

func (r Rule) Name() string  { return r.name }
func (r Rule) Priority() int { return r.priority }

// Applies reports whether the ticket title or description contains a keyword.
func (r Rule) Applies(ticket *domain.Ticket) bool {
	if ticket == nil {
		return false
	}
	text := ticket.Content()
	for _, kw := range r.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Evaluate returns a copy of the rule verdict.
func (r Rule) Evaluate(*domain.Ticket) domain.Classification {
	return r.verdict
}

var criticalKeywords = []string{
	"security breach",
	"data loss",
	"system down",
	"production outage",
	"critical error",
	"cannot login",
	"payment failed",
	"sql injection",
	"xss vulnerability",
	"authentication bypass",
	"ddos attack",
}

var securityKeywords = []string{
	"security",
	"vulnerability",
	"exploit",
	"injection",
	"authentication",
	"authorization",
	"encryption",
	"credential",
	"password",
	"token leak",
	"csrf",
	"sensitive data",
}

// CriticalEscalationRule forces CRITICAL severity for outages, breaches and data loss.
func CriticalEscalationRule() Rule {
	return NewKeywordRule("CriticalEscalationRule", 1, criticalKeywords, domain.Classification{
		Category:              "Critical Issue",
		Subcategory:           "High Priority Escalation",
		Severity:              domain.SeverityCritical,
		Priority:              1,
		ConfidenceScore:       1.0,
		Reasoning:             "Triggered by critical keyword detection - immediate attention required",
		RequiresHumanApproval: true,
	})
}

// SecurityRule routes security, auth and crypto issues to security review.
func SecurityRule() Rule {
	return NewKeywordRule("SecurityRule", 2, securityKeywords, domain.Classification{
		Category:              "Security",
		Subcategory:           "Security Vulnerability",
		Severity:              domain.SeverityHigh,
		Priority:              1,
		ConfidenceScore:       0.95,
		Reasoning:             "Security-related keywords detected - requires security team review",
		RequiresHumanApproval: true,
	})
}

// DefaultRules is the baseline rule set in registration order.
func DefaultRules() []Rule {
	return []Rule{CriticalEscalationRule(), SecurityRule()}
}
