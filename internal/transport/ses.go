package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/impression/internal/domain"
	"github.com/ignite/impression/internal/pkg/logger"
)

// SESConfig configures the SES transport. Empty keys fall back to the
// default AWS credential chain.
type SESConfig struct {
	Region           string
	AccessKey        string
	SecretKey        string
	ConfigurationSet string
	Timeout          time.Duration
}

// sesAPI is the subset of the SES v2 client used here.
type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SES delivers envelopes through Amazon SES.
type SES struct {
	client  sesAPI
	confSet string
	timeout time.Duration
}

// NewSES loads AWS configuration and creates an SES transport.
func NewSES(ctx context.Context, cfg SESConfig) (*SES, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newSESWithClient(sesv2.NewFromConfig(awsCfg), cfg), nil
}

func newSESWithClient(client sesAPI, cfg SESConfig) *SES {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &SES{client: client, confSet: cfg.ConfigurationSet, timeout: timeout}
}

func (s *SES) Send(ctx context.Context, env *domain.Envelope) (*domain.SendResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body := &types.Body{
		Text: &types.Content{Data: aws.String(env.BodyPlaintext), Charset: aws.String("UTF-8")},
	}
	if env.BodyHTML != "" {
		body.Html = &types.Content{Data: aws.String(env.BodyHTML), Charset: aws.String("UTF-8")}
	}
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(env.From),
		Destination: &types.Destination{
			ToAddresses:  env.To,
			CcAddresses:  env.CC,
			BccAddresses: env.BCC,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(env.Subject), Charset: aws.String("UTF-8")},
				Body:    body,
			},
		},
	}
	if env.ServiceName != "" {
		input.EmailTags = []types.MessageTag{{Name: aws.String("service"), Value: aws.String(env.ServiceName)}}
	}
	if s.confSet != "" {
		input.ConfigurationSetName = aws.String(s.confSet)
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		logger.Warn("ses delivery failed", "to", env.Recipients(), "error", err)
		return failed(BackendSES, err), nil
	}
	return succeeded(BackendSES, aws.ToString(out.MessageId)), nil
}
