package dkim

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultKeyBits is the RSA key size used by GenerateKey
const DefaultKeyBits = 2048

// txtChunkSize is the longest character-string a DNS TXT record may hold
const txtChunkSize = 255

// KeyPair is a DKIM key together with the selector it is published under
type KeyPair struct {
	PrivateKey *rsa.PrivateKey
	Domain     string
	Selector   string
}

// GenerateKey generates a new RSA 2048-bit DKIM key pair
func GenerateKey(domain, selector string) (*KeyPair, error) {
	return GenerateKeySize(domain, selector, DefaultKeyBits)
}

// GenerateKeySize generates an RSA key of the given size (1024, 2048 or 4096)
func GenerateKeySize(domain, selector string, bits int) (*KeyPair, error) {
	switch bits {
	case 1024, 2048, 4096:
	default:
		return nil, fmt.Errorf("unsupported key size: %d", bits)
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	return &KeyPair{
		PrivateKey: privateKey,
		Domain:     domain,
		Selector:   selector,
	}, nil
}

// LoadKeyPair loads a saved key for domain and selector
func LoadKeyPair(path, domain, selector string) (*KeyPair, error) {
	key, err := LoadPrivateKey(path)
	if err != nil {
		return nil, err
	}
	return &KeyPair{PrivateKey: key, Domain: domain, Selector: selector}, nil
}

// SavePrivateKey writes the key as PKCS#1 PEM readable by the owner only
func (kp *KeyPair) SavePrivateKey(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	data := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(kp.PrivateKey),
	})
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// DNSRecord returns the TXT record value publishing the public key
func (kp *KeyPair) DNSRecord() string {
	pubKeyBytes, err := x509.MarshalPKIXPublicKey(&kp.PrivateKey.PublicKey)
	if err != nil {
		return ""
	}

	return "v=DKIM1; k=rsa; p=" + base64.StdEncoding.EncodeToString(pubKeyBytes)
}

// DNSRecordChunks splits the record into strings a DNS TXT entry accepts
func (kp *KeyPair) DNSRecordChunks() []string {
	record := kp.DNSRecord()

	var chunks []string
	for len(record) > txtChunkSize {
		chunks = append(chunks, record[:txtChunkSize])
		record = record[txtChunkSize:]
	}
	if record != "" {
		chunks = append(chunks, record)
	}
	return chunks
}

// DNSName returns the DNS record name for DKIM
func (kp *KeyPair) DNSName() string {
	return fmt.Sprintf("%s._domainkey.%s", kp.Selector, kp.Domain)
}

// LoadPrivateKey loads an RSA private key from a PKCS#1 or PKCS#8 PEM file
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key, err := ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return key, nil
}

// ParsePrivateKey decodes the first PEM block of data
func ParsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	if block.Type == "RSA PRIVATE KEY" {
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	}
	if block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("unsupported PEM type %q", block.Type)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("PKCS#8 key is not RSA")
	}
	return key, nil
}
