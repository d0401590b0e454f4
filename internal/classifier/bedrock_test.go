package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kyma-lab/aws-defectTicket/internal/domain"
	"github.com/kyma-lab/aws-defectTicket/internal/rules"
)

type fakeBedrock struct {
	text  string
	err   error
	input *bedrockruntime.InvokeModelInput
}

func (f *fakeBedrock) InvokeModelWithContext(_ aws.Context, input *bedrockruntime.InvokeModelInput, _ ...request.Option) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	body, _ := json.Marshal(map[string]any{
		"content": []map[string]string{{"type": "text", "text": f.text}},
	})
	return &bedrockruntime.InvokeModelOutput{Body: body}, nil
}

func newTestBedrock(t *testing.T, fake *fakeBedrock) *BedrockClassifier {
	return NewBedrockClassifier(fake, BedrockConfig{
		ModelID: "anthropic.claude-3-haiku",
		Policy:  rules.ConfidencePolicy{Threshold: 0.8},
	}, zaptest.NewLogger(t))
}

func TestBedrockClassify(t *testing.T) {
	fake := &fakeBedrock{text: "Here you go:\n```json\n" +
		`{"category":"Performance","subcategory":"Slow Query","severity":"high","priority":2,"confidenceScore":0.65,"reasoning":"latency"}` +
		"\n```"}
	ticket := &domain.Ticket{ID: "t-1", Title: "Search slow", Description: "takes 30s", SourceSystem: "jira"}

	got, err := newTestBedrock(t, fake).Classify(context.Background(), ticket)
	require.NoError(t, err)
	assert.Equal(t, "Performance", got.Category)
	assert.Equal(t, domain.SeverityHigh, got.Severity)
	assert.Equal(t, 2, got.Priority)
	assert.Equal(t, domain.SourceLLM, got.ClassificationSource)
	assert.True(t, got.RequiresHumanApproval)

	require.NotNil(t, fake.input)
	assert.Equal(t, "anthropic.claude-3-haiku", aws.StringValue(fake.input.ModelId))
	var req anthropicRequest
	require.NoError(t, json.Unmarshal(fake.input.Body, &req))
	assert.Equal(t, anthropicVersion, req.AnthropicVersion)
	assert.Equal(t, 1024, req.MaxTokens)
	require.Len(t, req.Messages, 1)
	assert.Contains(t, req.Messages[0].Content, "Search slow")
	assert.Contains(t, req.Messages[0].Content, "jira")
}

func TestBedrockClassifyErrors(t *testing.T) {
	ticket := &domain.Ticket{ID: "t-1", Title: "x"}
	tests := []struct {
		name string
		fake *fakeBedrock
		want error
	}{
		{"throttled", &fakeBedrock{err: awserr.New(bedrockruntime.ErrCodeThrottlingException, "rate exceeded", nil)}, ErrThrottled},
		{"validation", &fakeBedrock{err: awserr.New(bedrockruntime.ErrCodeValidationException, "bad model", nil)}, ErrServiceFailure},
		{"transport", &fakeBedrock{err: errors.New("connection reset")}, ErrServiceFailure},
		{"no json", &fakeBedrock{text: "I cannot classify this"}, ErrServiceFailure},
		{"unknown severity", &fakeBedrock{text: `{"category":"Bug","severity":"BLOCKER","confidenceScore":0.9}`}, ErrServiceFailure},
		{"confidence out of range", &fakeBedrock{text: `{"category":"Bug","severity":"LOW","confidenceScore":1.5}`}, ErrServiceFailure},
		{"confidence missing", &fakeBedrock{text: `{"category":"Bug","severity":"LOW"}`}, ErrServiceFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestBedrock(t, tt.fake).Classify(context.Background(), ticket)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
