package persistence

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"go.uber.org/zap"

	"github.com/kyma-lab/aws-defectTicket/internal/config"
)

// NewAWSSession builds the shared session for SQS, Step Functions and Bedrock.
// Credentials come from the default provider chain. A non-empty Endpoint
// targets a local emulator.
func NewAWSSession(cfg config.AWSConfig, logger *zap.Logger) (*session.Session, error) {
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
		logger.Info("using custom aws endpoint", zap.String("endpoint", cfg.Endpoint))
	}
	return session.NewSession(awsCfg)
}
