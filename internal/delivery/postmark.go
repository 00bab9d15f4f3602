package delivery

import (
	"context"
	"fmt"
	"sort"

	"github.com/mrz1836/postmark"

	"github.com/federalgaz/campaignmail/internal/config"
)

// postmarkAPI is the part of the Postmark client used for sending
type postmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// PostmarkSender sends through the Postmark transactional API
type PostmarkSender struct {
	client     postmarkAPI
	trackOpens bool
}

// NewPostmarkSender creates a Postmark-backed sender
func NewPostmarkSender(cfg config.PostmarkConfig) (*PostmarkSender, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: postmark server token is required", ErrInvalidConfig)
	}
	return &PostmarkSender{
		client:     postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		trackOpens: cfg.TrackOpens,
	}, nil
}

// Name returns the provider name
func (s *PostmarkSender) Name() string {
	return config.ProviderPostmark
}

// Send delivers msg and returns the Postmark MessageID
func (s *PostmarkSender) Send(ctx context.Context, msg *Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	email := postmark.Email{
		From:       msg.From,
		To:         formatAddressList(msg.To),
		ReplyTo:    msg.ReplyTo,
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		HTMLBody:   msg.HTML,
		TextBody:   msg.Text,
		TrackOpens: s.trackOpens,
	}
	if s.trackOpens {
		email.TrackLinks = "HtmlOnly"
	}

	names := make([]string, 0, len(msg.Headers))
	for name := range msg.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		email.Headers = append(email.Headers, postmark.Header{Name: name, Value: msg.Headers[name]})
	}

	resp, err := s.client.SendEmail(ctx, email)
	if err != nil {
		return "", &SendError{Provider: s.Name(), Temporary: true, Err: err}
	}
	if resp.ErrorCode > 0 {
		return "", &SendError{
			Provider: s.Name(),
			Err:      fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		}
	}

	return resp.MessageID, nil
}
