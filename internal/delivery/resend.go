package delivery

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/federalgaz/campaignmail/internal/config"
)

// resendAPI is the part of the Resend emails service used for sending
type resendAPI interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendSender sends through the Resend API
type ResendSender struct {
	emails resendAPI
}

// NewResendSender creates a Resend-backed sender
func NewResendSender(cfg config.ResendConfig) (*ResendSender, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: resend api key is required", ErrInvalidConfig)
	}
	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: &statusRecorder{next: http.DefaultTransport},
	}
	return &ResendSender{emails: resend.NewCustomClient(httpClient, cfg.APIKey).Emails}, nil
}

// statusKey carries a *int receiving the HTTP status of a Resend call
type statusKey struct{}

// statusRecorder stores response codes for callers that asked for them,
// since the Resend client reports failures as plain strings
type statusRecorder struct {
	next http.RoundTripper
}

func (t *statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err == nil {
		if status, ok := req.Context().Value(statusKey{}).(*int); ok {
			*status = resp.StatusCode
		}
	}
	return resp, err
}

// resendTemporary reports whether a failed call may succeed on retry.
// Transport failures (status 0), throttling and server errors are temporary.
func resendTemporary(status int) bool {
	return status == 0 || status == http.StatusTooManyRequests || status >= 500
}

// Name returns the provider name
func (s *ResendSender) Name() string {
	return config.ProviderResend
}

// Send delivers msg and returns the Resend email ID
func (s *ResendSender) Send(ctx context.Context, msg *Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	req := &resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		ReplyTo: msg.ReplyTo,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		Headers: msg.Headers,
	}
	if msg.Tag != "" {
		req.Tags = []resend.Tag{{Name: "template", Value: msg.Tag}}
	}

	var status int
	resp, err := s.emails.SendWithContext(context.WithValue(ctx, statusKey{}, &status), req)
	if err != nil {
		if status != 0 {
			err = fmt.Errorf("HTTP %d: %w", status, err)
		}
		return "", &SendError{Provider: s.Name(), Temporary: resendTemporary(status), Err: err}
	}
	return resp.Id, nil
}
