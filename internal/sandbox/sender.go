package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/federalgaz/campaignmail/internal/config"
	"github.com/federalgaz/campaignmail/internal/delivery"
)

// ProviderName identifies captured sends in reports and metrics
const ProviderName = "sandbox"

// Sender wraps a real sender and intercepts messages based on the mail mode
type Sender struct {
	realSender       delivery.Sender
	mode             string
	redirectTo       []string
	storage          *Storage
	logger           *slog.Logger
	simulateErrors   bool
	errorProbability float64 // 0.0 to 1.0
}

// NewSender creates a sender for mode. In production mode messages pass
// straight through; sandbox captures them; redirect captures and delivers
// to redirectTo instead of the original recipients.
func NewSender(realSender delivery.Sender, mode string, redirectTo []string, storage *Storage, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if mode == "" {
		mode = config.ModeProduction
	}
	return &Sender{
		realSender:       realSender,
		mode:             mode,
		redirectTo:       redirectTo,
		storage:          storage,
		logger:           logger,
		errorProbability: 0.1,
	}
}

// SetErrorSimulation enables/disables random delivery failures in sandbox mode
func (s *Sender) SetErrorSimulation(enabled bool, probability float64) {
	s.simulateErrors = enabled
	if probability > 0 && probability <= 1 {
		s.errorProbability = probability
	}
}

// ErrorSimulation reports whether failures are simulated and how often
func (s *Sender) ErrorSimulation() (bool, float64) {
	return s.simulateErrors, s.errorProbability
}

// Mode returns the active mail mode
func (s *Sender) Mode() string {
	return s.mode
}

// Name returns the provider name messages are attributed to
func (s *Sender) Name() string {
	if s.mode == config.ModeSandbox || s.realSender == nil {
		return ProviderName
	}
	return s.realSender.Name()
}

// Send routes the message based on the mail mode
func (s *Sender) Send(ctx context.Context, msg *delivery.Message) (string, error) {
	switch s.mode {
	case config.ModeSandbox:
		return s.handleSandbox(ctx, msg)
	case config.ModeRedirect:
		return s.handleRedirect(ctx, msg)
	default:
		return s.realSender.Send(ctx, msg)
	}
}

// handleSandbox stores the message instead of sending
func (s *Sender) handleSandbox(ctx context.Context, msg *delivery.Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	captured := capture(msg, config.ModeSandbox)

	if s.simulateErrors && rand.Float64() < s.errorProbability {
		simErr := simulatedErrors[rand.Intn(len(simulatedErrors))]
		captured.SimulatedErr = simErr.Error()

		if err := s.storage.Save(ctx, captured); err != nil {
			s.logger.Error("sandbox: failed to save message", "error", err)
		}
		return "", &delivery.SendError{
			Provider:  ProviderName,
			Temporary: strings.HasPrefix(simErr.Error(), "4"),
			Err:       simErr,
		}
	}

	if err := s.storage.Save(ctx, captured); err != nil {
		return "", fmt.Errorf("sandbox: failed to save message: %w", err)
	}

	s.logger.Info("sandbox: message captured",
		"id", msg.ID,
		"to", msg.To,
		"subject", msg.Subject,
	)
	return captured.ID, nil
}

// handleRedirect delivers the message to the configured addresses only
func (s *Sender) handleRedirect(ctx context.Context, msg *delivery.Message) (string, error) {
	if len(s.redirectTo) == 0 {
		s.logger.Warn("redirect: no redirect addresses configured, using sandbox")
		return s.handleSandbox(ctx, msg)
	}

	redirected := *msg
	redirected.To = s.redirectTo
	redirected.Headers = make(map[string]string, len(msg.Headers)+1)
	for k, v := range msg.Headers {
		redirected.Headers[k] = v
	}
	redirected.Headers["X-Original-To"] = strings.Join(msg.To, ", ")

	s.logger.Info("redirect: redirecting message",
		"id", msg.ID,
		"original_to", msg.To,
		"redirect_to", s.redirectTo,
	)

	providerID, err := s.realSender.Send(ctx, &redirected)

	captured := capture(&redirected, config.ModeRedirect)
	captured.OriginalTo = msg.To
	captured.ProviderID = providerID
	if err != nil {
		captured.Error = err.Error()
	}
	if saveErr := s.storage.Save(ctx, captured); saveErr != nil {
		s.logger.Warn("redirect: failed to save to sandbox", "error", saveErr)
	}

	return providerID, err
}

func capture(msg *delivery.Message, mode string) *Message {
	return &Message{
		ID:         msg.ID,
		From:       msg.From,
		To:         msg.To,
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		HTML:       msg.HTML,
		Text:       msg.Text,
		Headers:    msg.Headers,
		Mode:       mode,
		CapturedAt: time.Now().UTC(),
	}
}

var simulatedErrors = []error{
	errors.New("550 User not found"),
	errors.New("451 Temporary failure"),
	errors.New("452 Insufficient storage"),
	errors.New("421 Service not available"),
}
