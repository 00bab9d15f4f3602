package delivery

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/federalgaz/campaignmail/internal/config"
)

const sesCharset = "UTF-8"

// sesAPI is the part of the SES client used for sending
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
	SendRawEmail(ctx context.Context, params *ses.SendRawEmailInput, optFns ...func(*ses.Options)) (*ses.SendRawEmailOutput, error)
}

// SESSender sends through Amazon SES
type SESSender struct {
	client           sesAPI
	configurationSet string
}

// NewSESSender creates an SES-backed sender with static credentials
func NewSESSender(cfg config.SESConfig) (*SESSender, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("%w: ses region is required", ErrInvalidConfig)
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("%w: ses credentials are required", ErrInvalidConfig)
	}

	awsCfg := aws.Config{
		Region: cfg.Region,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	}

	return &SESSender{
		client:           ses.NewFromConfig(awsCfg),
		configurationSet: cfg.ConfigurationSet,
	}, nil
}

// Name returns the provider name
func (s *SESSender) Name() string {
	return config.ProviderSES
}

// Send delivers msg and returns the SES MessageId. Messages carrying
// custom headers go out as raw MIME so the headers survive.
func (s *SESSender) Send(ctx context.Context, msg *Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	var configSet *string
	if s.configurationSet != "" {
		configSet = aws.String(s.configurationSet)
	}
	var tags []types.MessageTag
	if msg.Tag != "" {
		tags = []types.MessageTag{{Name: aws.String("template"), Value: aws.String(msg.Tag)}}
	}

	if len(msg.Headers) > 0 {
		data, err := BuildMIME(msg, "amazonses.com")
		if err != nil {
			return "", err
		}
		out, err := s.client.SendRawEmail(ctx, &ses.SendRawEmailInput{
			RawMessage:           &types.RawMessage{Data: data},
			ConfigurationSetName: configSet,
			Tags:                 tags,
		})
		if err != nil {
			return "", &SendError{Provider: s.Name(), Temporary: true, Err: fmt.Errorf("failed to send raw email via SES: %w", err)}
		}
		return aws.ToString(out.MessageId), nil
	}

	input := &ses.SendEmailInput{
		Source: aws.String(msg.From),
		Destination: &types.Destination{
			ToAddresses: msg.To,
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(msg.Subject),
				Charset: aws.String(sesCharset),
			},
			Body: &types.Body{},
		},
		ConfigurationSetName: configSet,
		Tags:                 tags,
	}
	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo}
	}
	if msg.HTML != "" {
		input.Message.Body.Html = &types.Content{Data: aws.String(msg.HTML), Charset: aws.String(sesCharset)}
	}
	if msg.Text != "" {
		input.Message.Body.Text = &types.Content{Data: aws.String(msg.Text), Charset: aws.String(sesCharset)}
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return "", &SendError{Provider: s.Name(), Temporary: true, Err: fmt.Errorf("failed to send email via SES: %w", err)}
	}
	return aws.ToString(out.MessageId), nil
}
