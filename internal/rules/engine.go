package rules

import (
	"sort"

	"go.uber.org/zap"

	"github.com/kyma-lab/aws-defectTicket/internal/domain"
)

// Engine selects the winning rule for a ticket and merges it with the AI verdict.
type Engine struct {
	rules  []Rule
	logger *zap.Logger
}

// NewEngine registers rules in the given order. Order breaks priority ties.
func NewEngine(logger *zap.Logger, rules ...Rule) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	registered := make([]Rule, len(rules))
	copy(registered, rules)
	return &Engine{rules: registered, logger: logger}
}

// Evaluate returns the verdict of the applicable rule with the lowest priority.
// When several applicable rules share that priority the first registered wins.
func (e *Engine) Evaluate(ticket *domain.Ticket) (domain.Classification, string, bool) {
	var (
		winner Rule
		found  bool
	)
	for _, rule := range e.rules {
		if !rule.Applies(ticket) {
			continue
		}
		e.logger.Debug("rule triggered", zap.String("rule", rule.Name()), zap.String("ticket_id", ticketID(ticket)))
		if !found || rule.Priority() < winner.Priority() {
			winner = rule
			found = true
		}
	}
	if !found {
		return domain.Classification{}, "", false
	}
	verdict := winner.Evaluate(ticket)
	e.logger.Info("applying rule classification",
		zap.String("rule", winner.Name()),
		zap.String("ticket_id", ticketID(ticket)),
		zap.String("category", verdict.Category),
		zap.String("severity", string(verdict.Severity)))
	return verdict, winner.Name(), true
}

// Combine merges a rule verdict into the AI verdict:
// a strictly more severe rule replaces the AI verdict; otherwise a rule that
// requires approval forces the flag on the AI verdict and marks it HYBRID.
func (e *Engine) Combine(ai, rule domain.Classification) domain.Classification {
	if rule.Severity.MoreSevereThan(ai.Severity) {
		e.logger.Info("rule overrides AI verdict",
			zap.String("rule_severity", string(rule.Severity)),
			zap.String("ai_severity", string(ai.Severity)))
		return rule
	}
	if rule.RequiresHumanApproval && !ai.RequiresHumanApproval {
		e.logger.Info("rule requires human approval; marking AI verdict hybrid")
		ai.RequiresHumanApproval = true
		ai.ClassificationSource = domain.SourceHybrid
	}
	return ai
}

// Decide runs the rule set against the ticket and merges the result with ai.
func (e *Engine) Decide(ticket *domain.Ticket, ai domain.Classification) domain.Classification {
	rule, _, ok := e.Evaluate(ticket)
	if !ok {
		return ai
	}
	return e.Combine(ai, rule)
}

// ActiveRules lists rule names by priority, ties in registration order.
func (e *Engine) ActiveRules() []string {
	ordered := make([]Rule, len(e.rules))
	copy(ordered, e.rules)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority() < ordered[j].Priority() })
	names := make([]string, 0, len(ordered))
	for _, rule := range ordered {
		names = append(names, rule.Name())
	}
	return names
}

func ticketID(ticket *domain.Ticket) string {
	if ticket == nil {
		return ""
	}
	return ticket.ID
}
