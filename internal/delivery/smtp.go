package delivery

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/federalgaz/campaignmail/internal/config"
	"github.com/federalgaz/campaignmail/internal/dkim"
)

// SMTPSender submits messages to a relay such as the company mail server
type SMTPSender struct {
	cfg       config.SMTPConfig
	addr      string
	hostname  string
	timeout   time.Duration
	signer    *dkim.Signer
	tlsConfig *tls.Config
	logger    *slog.Logger
}

// NewSMTPSender creates a new SMTP submission sender. signer may be nil.
func NewSMTPSender(cfg config.SMTPConfig, hostname string, timeout time.Duration, signer *dkim.Signer, logger *slog.Logger) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: smtp host is required", ErrInvalidConfig)
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &SMTPSender{
		cfg:      cfg,
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		hostname: hostname,
		timeout:  timeout,
		signer:   signer,
		tlsConfig: &tls.Config{
			ServerName: cfg.Host,
			MinVersion: tls.VersionTLS12,
		},
		logger: logger,
	}, nil
}

// Name returns the provider name
func (s *SMTPSender) Name() string {
	return config.ProviderSMTP
}

// Send submits msg and returns its Message-ID
func (s *SMTPSender) Send(ctx context.Context, msg *Message) (string, error) {
	data, err := BuildMIME(msg, s.hostname)
	if err != nil {
		return "", err
	}

	// Sign message with DKIM if the signer covers the sender domain
	if s.signer != nil && s.signer.Matches(msg.From) {
		signed, err := s.signer.Sign(data)
		if err != nil {
			s.logger.Warn("DKIM signing failed, sending unsigned",
				"domain", s.signer.Domain(),
				"error", err,
			)
		} else {
			data = signed
		}
	}

	if err := s.submit(ctx, msg.EnvelopeFrom(), msg.EnvelopeTo(), data); err != nil {
		return "", err
	}

	s.logger.Debug("message submitted",
		"id", msg.ID,
		"relay", s.addr,
		"to", msg.To,
	)
	return msg.MessageID(s.hostname), nil
}

func (s *SMTPSender) submit(ctx context.Context, from string, to []string, data []byte) error {
	dialer := &net.Dialer{Timeout: s.timeout}

	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return s.temporary(fmt.Errorf("connection failed to %s: %w", s.addr, err))
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(s.timeout))
	}

	if s.cfg.TLS == "tls" {
		tlsConn := tls.Client(conn, s.tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			return s.temporary(fmt.Errorf("TLS handshake with %s failed: %w", s.addr, err))
		}
		conn = tlsConn
	}

	client, err := s.newClient(conn)
	if err != nil {
		return err
	}
	defer client.Close()

	if s.cfg.Username != "" {
		auth := sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
		if err := client.Auth(auth); err != nil {
			return s.categorize(err, "AUTH")
		}
	}

	if err := client.Mail(from, nil); err != nil {
		return s.categorize(err, "MAIL FROM")
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt, nil); err != nil {
			return s.categorize(err, fmt.Sprintf("RCPT TO %s", rcpt))
		}
	}

	wc, err := client.Data()
	if err != nil {
		return s.categorize(err, "DATA")
	}
	if _, err := bytes.NewReader(data).WriteTo(wc); err != nil {
		wc.Close()
		return s.temporary(fmt.Errorf("failed to write message data: %w", err))
	}
	if err := wc.Close(); err != nil {
		return s.categorize(err, "DATA close")
	}

	client.Quit()
	return nil
}

// newClient greets the relay, upgrading plain connections with STARTTLS
// when configured
func (s *SMTPSender) newClient(conn net.Conn) (*smtp.Client, error) {
	if s.cfg.TLS != "starttls" {
		client := smtp.NewClient(conn)
		if err := client.Hello(s.hostname); err != nil {
			client.Close()
			return nil, s.categorize(err, "EHLO")
		}
		return client, nil
	}

	client, err := smtp.NewClientStartTLS(conn, s.tlsConfig)
	if err != nil {
		return nil, s.categorize(err, "STARTTLS")
	}
	// STARTTLS resets the session, so introduce ourselves again
	if err := client.Hello(s.hostname); err != nil {
		client.Close()
		return nil, s.categorize(err, "EHLO")
	}
	return client, nil
}

func (s *SMTPSender) temporary(err error) *SendError {
	return &SendError{Provider: s.Name(), Temporary: true, Err: err}
}

// categorize maps SMTP reply codes: 5xx permanent, anything else temporary
func (s *SMTPSender) categorize(err error, stage string) *SendError {
	wrapped := fmt.Errorf("%s failed: %w", stage, err)

	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) && smtpErr.Code >= 500 {
		return &SendError{Provider: s.Name(), Err: wrapped}
	}
	return s.temporary(wrapped)
}
