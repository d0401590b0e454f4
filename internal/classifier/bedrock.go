package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/kyma-lab/aws-defectTicket/internal/domain"
	"github.com/kyma-lab/aws-defectTicket/internal/rules"
)

const anthropicVersion = "bedrock-2023-05-31"

// InvokeModelAPI is the subset of the Bedrock runtime client used here.
type InvokeModelAPI interface {
	InvokeModelWithContext(ctx aws.Context, input *bedrockruntime.InvokeModelInput, opts ...request.Option) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockConfig tunes the Bedrock classifier.
type BedrockConfig struct {
	ModelID   string
	MaxTokens int
	Timeout   time.Duration
	Policy    rules.ConfidencePolicy
}

// BedrockClassifier asks an Anthropic model on Bedrock for a structured verdict.
type BedrockClassifier struct {
	client InvokeModelAPI
	cfg    BedrockConfig
	logger *zap.Logger
}

// NewBedrockClassifier wires a Bedrock runtime client.
func NewBedrockClassifier(client InvokeModelAPI, cfg BedrockConfig, logger *zap.Logger) *BedrockClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &BedrockClassifier{client: client, cfg: cfg, logger: logger}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type modelVerdict struct {
	Category        string   `json:"category"`
	Subcategory     string   `json:"subcategory"`
	Severity        string   `json:"severity"`
	Priority        int      `json:"priority"`
	ConfidenceScore *float64 `json:"confidenceScore"`
	Reasoning       string   `json:"reasoning"`
}

// Classify invokes the model once. Throttling maps to ErrThrottled, everything else to ErrServiceFailure.
func (b *BedrockClassifier) Classify(ctx context.Context, ticket *domain.Ticket) (domain.Classification, error) {
	if b.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        b.cfg.MaxTokens,
		Messages:         []anthropicMessage{{Role: "user", Content: buildPrompt(ticket)}},
	})
	if err != nil {
		return domain.Classification{}, fmt.Errorf("%w: encode request: %v", ErrServiceFailure, err)
	}

	b.logger.Info("classifying ticket with bedrock", zap.String("ticket_id", ticket.ID), zap.String("model_id", b.cfg.ModelID))
	out, err := b.client.InvokeModelWithContext(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.cfg.ModelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return domain.Classification{}, b.mapInvokeError(ctx, ticket, err)
	}

	verdict, err := parseVerdict(out.Body)
	if err != nil {
		b.logger.Error("unparseable model output", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return domain.Classification{}, fmt.Errorf("%w: %v", ErrServiceFailure, err)
	}
	verdict.ClassificationSource = domain.SourceLLM
	verdict.RequiresHumanApproval = b.cfg.Policy.RequiresApproval(verdict.ConfidenceScore)

	b.logger.Info("classification complete",
		zap.String("ticket_id", ticket.ID),
		zap.String("category", verdict.Category),
		zap.Float64("confidence", verdict.ConfidenceScore))
	return verdict, nil
}

func (b *BedrockClassifier) mapInvokeError(ctx context.Context, ticket *domain.Ticket, err error) error {
	var aerr awserr.Error
	if errors.As(err, &aerr) && aerr.Code() == bedrockruntime.ErrCodeThrottlingException {
		b.logger.Warn("bedrock throttling", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrThrottled, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return wrapContextErr(ctxErr)
	}
	b.logger.Error("bedrock invocation failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	return fmt.Errorf("%w: %v", ErrServiceFailure, err)
}

// wrapContextErr treats deadline expiry as retryable and cancellation as a failure.
func wrapContextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrThrottled, err)
	}
	return fmt.Errorf("%w: %v", ErrServiceFailure, err)
}

func parseVerdict(raw []byte) (domain.Classification, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.Classification{}, fmt.Errorf("decode response: %w", err)
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	payload := extractJSONObject(text.String())
	if payload == "" {
		return domain.Classification{}, errors.New("no JSON object in model output")
	}

	var mv modelVerdict
	if err := json.Unmarshal([]byte(payload), &mv); err != nil {
		return domain.Classification{}, fmt.Errorf("decode verdict: %w", err)
	}
	severity, err := domain.ParseSeverity(mv.Severity)
	if err != nil {
		return domain.Classification{}, err
	}
	if mv.ConfidenceScore == nil || *mv.ConfidenceScore < 0 || *mv.ConfidenceScore > 1 {
		return domain.Classification{}, errors.New("confidenceScore missing or outside [0,1]")
	}
	if mv.Category == "" {
		return domain.Classification{}, errors.New("category missing")
	}
	return domain.Classification{
		Category:        mv.Category,
		Subcategory:     mv.Subcategory,
		Severity:        severity,
		Priority:        mv.Priority,
		ConfidenceScore: *mv.ConfidenceScore,
		Reasoning:       mv.Reasoning,
	}, nil
}

// extractJSONObject strips any prose or code fences around the first JSON object.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return ""
	}
	return text[start : end+1]
}

func buildPrompt(ticket *domain.Ticket) string {
	return fmt.Sprintf(`You are an expert defect ticket classifier for a software development team.

Analyze the following ticket and provide a structured classification:

1. category: primary classification (Bug, Enhancement, Security, Performance, Documentation, etc.)
2. subcategory: more specific classification within the category
3. severity: impact level (CRITICAL, HIGH, MEDIUM, LOW, TRIVIAL)
   - CRITICAL: system down, data loss, security breach
   - HIGH: major functionality broken, significant performance degradation
   - MEDIUM: feature not working as expected, moderate impact
   - LOW: minor issues, cosmetic problems
   - TRIVIAL: typos, very minor improvements
4. priority: urgency (1=highest to 5=lowest)
5. confidenceScore: your confidence in this classification (0.0 to 1.0)
6. reasoning: brief explanation of your classification

Ticket:
- Title: %s
- Description: %s
- Source System: %s

Respond with a single JSON object with exactly the keys category, subcategory, severity, priority, confidenceScore and reasoning. Do not add any other text.`,
		ticket.Title, ticket.Description, ticket.SourceSystem)
}
