package classifier

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/kyma-lab/aws-defectTicket/internal/domain"
	"github.com/kyma-lab/aws-defectTicket/internal/rules"
)

const mockSuffix = " (MOCK MODE - No real AI)"

var (
	mockCriticalKeywords = []string{"crash", "critical", "security", "breach", "down", "outage", "data loss"}
	mockHighKeywords     = []string{"error", "fail", "broken", "cannot", "unable", "bug"}
	mockUIKeywords       = []string{"ui", "alignment", "cosmetic", "style"}
	mockSecurityKeywords = []string{"security", "vulnerability", "injection", "xss", "authentication", "authorization"}
)

// KeywordClassifier imitates an LLM with keyword heuristics for local runs and tests.
type KeywordClassifier struct {
	policy rules.ConfidencePolicy
	logger *zap.Logger
}

// NewKeywordClassifier builds the MOCK_LLM classifier.
func NewKeywordClassifier(policy rules.ConfidencePolicy, logger *zap.Logger) *KeywordClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeywordClassifier{policy: policy, logger: logger}
}

// Classify never fails unless ctx is done.
func (k *KeywordClassifier) Classify(ctx context.Context, ticket *domain.Ticket) (domain.Classification, error) {
	if err := ctx.Err(); err != nil {
		return domain.Classification{}, wrapContextErr(err)
	}
	text := ticket.Content()
	security := containsAny(text, mockSecurityKeywords)

	var result domain.Classification
	switch {
	case containsAny(text, mockCriticalKeywords):
		result = domain.Classification{Severity: domain.SeverityCritical, Priority: 1, ConfidenceScore: 0.95,
			Reasoning: "Mock classifier detected critical keywords"}
		if security {
			result.Category, result.Subcategory = "Security", "Critical Security Vulnerability"
		} else {
			result.Category, result.Subcategory = "Bug", "Critical System Failure"
		}
	case containsAny(text, mockHighKeywords):
		result = domain.Classification{Severity: domain.SeverityHigh, Priority: 2, ConfidenceScore: 0.85,
			Reasoning: "Mock classifier detected error or failure keywords"}
		if security {
			result.Category, result.Subcategory = "Security", "Security Issue"
		} else {
			result.Category, result.Subcategory = "Bug", "Major Functionality Issue"
		}
	case containsAny(text, mockUIKeywords):
		result = domain.Classification{Category: "Enhancement", Subcategory: "UI/UX Improvement",
			Severity: domain.SeverityLow, Priority: 4, ConfidenceScore: 0.75,
			Reasoning: "Mock classifier detected UI/cosmetic keywords"}
	default:
		result = domain.Classification{Category: "Bug", Subcategory: "General Issue",
			Severity: domain.SeverityMedium, Priority: 3, ConfidenceScore: 0.70,
			Reasoning: "Mock classifier default classification"}
	}
	result.Reasoning += mockSuffix
	result.ClassificationSource = domain.SourceMockLLM
	result.RequiresHumanApproval = k.policy.RequiresApproval(result.ConfidenceScore)

	k.logger.Info("mock classification complete",
		zap.String("ticket_id", ticket.ID),
		zap.String("severity", string(result.Severity)),
		zap.Float64("confidence", result.ConfidenceScore))
	return result, nil
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
