package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kyma-lab/aws-defectTicket/internal/domain"
)

func aiVerdict(sev domain.Severity, confidence float64, requiresApproval bool) domain.Classification {
	return domain.Classification{
		Category:              "Bug",
		Subcategory:           "General Issue",
		Severity:              sev,
		Priority:              3,
		ConfidenceScore:       confidence,
		Reasoning:             "model output",
		ClassificationSource:  domain.SourceLLM,
		RequiresHumanApproval: requiresApproval,
	}
}

func TestKeywordRuleApplies(t *testing.T) {
	tests := []struct {
		name   string
		rule   Rule
		ticket domain.Ticket
		want   bool
	}{
		{"critical in title", CriticalEscalationRule(), domain.Ticket{Title: "System Down in EU"}, true},
		{"critical in description", CriticalEscalationRule(), domain.Ticket{Title: "help", Description: "we saw DATA LOSS overnight"}, true},
		{"critical absent", CriticalEscalationRule(), domain.Ticket{Title: "Button misaligned", Description: "cosmetic"}, false},
		{"security keyword", SecurityRule(), domain.Ticket{Title: "Password reset email not sent"}, true},
		{"security absent", SecurityRule(), domain.Ticket{Title: "Typo on landing page"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Applies(&tt.ticket))
		})
	}
}

func TestRuleVerdicts(t *testing.T) {
	critical := CriticalEscalationRule().Evaluate(nil)
	assert.Equal(t, domain.SeverityCritical, critical.Severity)
	assert.Equal(t, 1.0, critical.ConfidenceScore)
	assert.True(t, critical.RequiresHumanApproval)
	assert.Equal(t, domain.SourceRules, critical.ClassificationSource)

	security := SecurityRule().Evaluate(nil)
	assert.Equal(t, domain.SeverityHigh, security.Severity)
	assert.True(t, security.RequiresHumanApproval)
	assert.Equal(t, 2, SecurityRule().Priority())
}

func TestEvaluatePicksLowestPriority(t *testing.T) {
	engine := NewEngine(zaptest.NewLogger(t), SecurityRule(), CriticalEscalationRule())
	ticket := &domain.Ticket{ID: "t-1", Title: "security breach", Description: "credential dump"}

	verdict, name, ok := engine.Evaluate(ticket)
	require.True(t, ok)
	assert.Equal(t, "CriticalEscalationRule", name)
	assert.Equal(t, domain.SeverityCritical, verdict.Severity)
}

func TestEvaluateTieBreakUsesRegistrationOrder(t *testing.T) {
	first := NewKeywordRule("First", 5, []string{"timeout"}, domain.Classification{Category: "A", Severity: domain.SeverityLow})
	second := NewKeywordRule("Second", 5, []string{"timeout"}, domain.Classification{Category: "B", Severity: domain.SeverityHigh})
	ticket := &domain.Ticket{Title: "gateway timeout"}

	_, name, ok := NewEngine(zaptest.NewLogger(t), first, second).Evaluate(ticket)
	require.True(t, ok)
	assert.Equal(t, "First", name)

	_, name, ok = NewEngine(zaptest.NewLogger(t), second, first).Evaluate(ticket)
	require.True(t, ok)
	assert.Equal(t, "Second", name)
}

func TestEvaluateNoMatch(t *testing.T) {
	engine := NewEngine(zaptest.NewLogger(t), DefaultRules()...)
	_, _, ok := engine.Evaluate(&domain.Ticket{Title: "Dashboard colors", Description: "slightly off"})
	assert.False(t, ok)
}

func TestCombine(t *testing.T) {
	engine := NewEngine(zaptest.NewLogger(t), DefaultRules()...)

	t.Run("more severe rule replaces AI verdict", func(t *testing.T) {
		got := engine.Combine(aiVerdict(domain.SeverityMedium, 0.9, false), CriticalEscalationRule().Evaluate(nil))
		assert.Equal(t, domain.SeverityCritical, got.Severity)
		assert.Equal(t, domain.SourceRules, got.ClassificationSource)
		assert.Equal(t, "Critical Issue", got.Category)
	})

	t.Run("approval flag merged when rule is not more severe", func(t *testing.T) {
		ai := aiVerdict(domain.SeverityCritical, 0.92, false)
		got := engine.Combine(ai, SecurityRule().Evaluate(nil))
		assert.Equal(t, domain.SeverityCritical, got.Severity)
		assert.Equal(t, "Bug", got.Category)
		assert.True(t, got.RequiresHumanApproval)
		assert.Equal(t, domain.SourceHybrid, got.ClassificationSource)
	})

	t.Run("equal severity is not an override", func(t *testing.T) {
		got := engine.Combine(aiVerdict(domain.SeverityHigh, 0.9, false), SecurityRule().Evaluate(nil))
		assert.Equal(t, "Bug", got.Category)
		assert.Equal(t, domain.SourceHybrid, got.ClassificationSource)
	})

	t.Run("unchanged when AI already requires approval", func(t *testing.T) {
		ai := aiVerdict(domain.SeverityHigh, 0.5, true)
		got := engine.Combine(ai, SecurityRule().Evaluate(nil))
		assert.Equal(t, ai, got)
	})
}

func TestDecide(t *testing.T) {
	engine := NewEngine(zaptest.NewLogger(t), DefaultRules()...)

	t.Run("system down overrides a confident medium verdict", func(t *testing.T) {
		got := engine.Decide(&domain.Ticket{Title: "system down"}, aiVerdict(domain.SeverityMedium, 0.9, false))
		assert.Equal(t, domain.SeverityCritical, got.Severity)
		assert.Equal(t, domain.SourceRules, got.ClassificationSource)
	})

	t.Run("no rule keeps confident AI verdict", func(t *testing.T) {
		ai := aiVerdict(domain.SeverityLow, 0.95, false)
		got := engine.Decide(&domain.Ticket{Title: "Footer link color"}, ai)
		assert.False(t, got.RequiresHumanApproval)
		assert.Equal(t, domain.SourceLLM, got.ClassificationSource)
	})

	t.Run("deterministic across runs", func(t *testing.T) {
		ticket := &domain.Ticket{Title: "exploit found", Description: "production outage risk"}
		ai := aiVerdict(domain.SeverityLow, 0.7, true)
		first := engine.Decide(ticket, ai)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, engine.Decide(ticket, ai))
		}
	})
}

func TestActiveRules(t *testing.T) {
	engine := NewEngine(nil, SecurityRule(), CriticalEscalationRule())
	assert.Equal(t, []string{"CriticalEscalationRule", "SecurityRule"}, engine.ActiveRules())
}

func TestConfidencePolicy(t *testing.T) {
	policy := ConfidencePolicy{Threshold: 0.8}
	assert.True(t, policy.RequiresApproval(0.79))
	assert.False(t, policy.RequiresApproval(0.8))
	assert.False(t, policy.RequiresApproval(0.95))
}
