package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/federalgaz/campaignmail/internal/config"
	"github.com/federalgaz/campaignmail/internal/dkim"
)

var (
	// ErrInvalidConfig is returned when a provider cannot be built from config
	ErrInvalidConfig = errors.New("invalid mail configuration")
	// ErrInvalidMessage is returned for messages that cannot be sent as is
	ErrInvalidMessage = errors.New("invalid message")
	// ErrSendFailed wraps every provider failure
	ErrSendFailed = errors.New("failed to send message")
)

// Sender delivers rendered messages through one provider
type Sender interface {
	// Send delivers msg and returns the provider's message ID
	Send(ctx context.Context, msg *Message) (string, error)
	// Name returns the provider name used in logs and metrics
	Name() string
}

// SendError is a provider failure with retry information
type SendError struct {
	Provider  string
	Temporary bool
	Err       error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

// Unwrap exposes both ErrSendFailed and the provider error
func (e *SendError) Unwrap() []error {
	return []error{ErrSendFailed, e.Err}
}

// IsTemporary checks if the error is worth retrying later
func IsTemporary(err error) bool {
	var se *SendError
	if errors.As(err, &se) {
		return se.Temporary
	}
	return false
}

// New creates the sender configured in cfg
func New(cfg config.MailConfig, hostname string, logger *slog.Logger) (Sender, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	switch cfg.Provider {
	case config.ProviderSMTP:
		signer, err := dkim.NewSignerFromConfig(cfg.DKIM)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		return NewSMTPSender(cfg.SMTP, hostname, cfg.Timeout, signer, logger.With("provider", config.ProviderSMTP))
	case config.ProviderPostmark:
		return NewPostmarkSender(cfg.Postmark)
	case config.ProviderResend:
		return NewResendSender(cfg.Resend)
	case config.ProviderSES:
		return NewSESSender(cfg.SES)
	case config.ProviderNoop:
		return NewNoopSender(logger.With("provider", config.ProviderNoop)), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// NoopSender accepts every message without delivering it
type NoopSender struct {
	logger *slog.Logger
}

// NewNoopSender creates a sender that only logs
func NewNoopSender(logger *slog.Logger) *NoopSender {
	return &NoopSender{logger: logger}
}

// Send logs the message and reports success
func (s *NoopSender) Send(ctx context.Context, msg *Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}
	s.logger.Info("message discarded",
		"id", msg.ID,
		"to", msg.To,
		"subject", msg.Subject,
	)
	return msg.ID, nil
}

// Name returns the provider name
func (s *NoopSender) Name() string {
	return config.ProviderNoop
}
