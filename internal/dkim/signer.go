package dkim

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/emersion/go-msgauth/dkim"

	"github.com/federalgaz/campaignmail/internal/config"
)

// signedHeaders are the campaign headers covered by the signature.
// Missing headers are skipped by the signer.
var signedHeaders = []string{
	"From", "Reply-To", "To", "Subject", "Date", "Message-ID",
	"MIME-Version", "Content-Type", "List-Unsubscribe", "List-Unsubscribe-Post",
}

// Signer signs outgoing campaign messages with DKIM
type Signer struct {
	privateKey *rsa.PrivateKey
	domain     string
	selector   string
}

// NewSigner creates a new DKIM signer
func NewSigner(privateKey *rsa.PrivateKey, domain, selector string) *Signer {
	return &Signer{
		privateKey: privateKey,
		domain:     strings.ToLower(domain),
		selector:   selector,
	}
}

// NewSignerFromFile creates a new DKIM signer from a PEM key file
func NewSignerFromFile(keyFile, domain, selector string) (*Signer, error) {
	privateKey, err := LoadPrivateKey(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load DKIM key: %w", err)
	}

	return NewSigner(privateKey, domain, selector), nil
}

// NewSignerFromConfig returns nil without error when signing is disabled
func NewSignerFromConfig(cfg config.DKIMConfig) (*Signer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return NewSignerFromFile(cfg.KeyFile, cfg.Domain, cfg.Selector)
}

// Sign signs the message and returns it with the DKIM-Signature prepended
func (s *Signer) Sign(message []byte) ([]byte, error) {
	options := &dkim.SignOptions{
		Domain:                 s.domain,
		Selector:               s.selector,
		Signer:                 s.privateKey,
		Hash:                   crypto.SHA256,
		HeaderCanonicalization: dkim.CanonicalizationRelaxed,
		BodyCanonicalization:   dkim.CanonicalizationRelaxed,
		HeaderKeys:             presentHeaders(message),
	}

	var signed bytes.Buffer
	if err := dkim.Sign(&signed, bytes.NewReader(message), options); err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}

	return signed.Bytes(), nil
}

// Matches reports whether the signer's domain covers the sender address
func (s *Signer) Matches(from string) bool {
	at := strings.LastIndex(from, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(strings.Trim(from[at+1:], "> "))
	return domain == s.domain || strings.HasSuffix(domain, "."+s.domain)
}

// Domain returns the DKIM domain
func (s *Signer) Domain() string {
	return s.domain
}

// Selector returns the DKIM selector
func (s *Signer) Selector() string {
	return s.selector
}

// Verify checks every DKIM signature of message against the public key
// published in record. It needs no DNS access.
func Verify(message []byte, record string) error {
	lookup := func(domain string) ([]string, error) {
		return []string{record}, nil
	}

	verifications, err := dkim.VerifyWithOptions(bytes.NewReader(message), &dkim.VerifyOptions{
		LookupTXT: lookup,
	})
	if err != nil {
		return fmt.Errorf("failed to verify message: %w", err)
	}
	if len(verifications) == 0 {
		return fmt.Errorf("message has no DKIM signature")
	}

	for _, v := range verifications {
		if v.Err != nil {
			return fmt.Errorf("signature for %s is invalid: %w", v.Domain, v.Err)
		}
	}
	return nil
}

// presentHeaders narrows signedHeaders to the ones the message carries
func presentHeaders(message []byte) []string {
	header := strings.ToLower(strings.ReplaceAll(string(message), "\r\n", "\n"))
	if end := strings.Index(header, "\n\n"); end >= 0 {
		header = header[:end]
	}
	header = "\n" + header

	keys := make([]string, 0, len(signedHeaders))
	for _, h := range signedHeaders {
		if strings.Contains(header, "\n"+strings.ToLower(h)+":") {
			keys = append(keys, h)
		}
	}
	return keys
}
