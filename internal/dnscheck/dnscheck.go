// Package dnscheck verifies that a sender domain publishes the DNS records
// campaign mail depends on.
package dnscheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"sort"
	"strings"
)

// Domain validation errors
var (
	ErrInvalidDomain   = errors.New("invalid domain name")
	ErrInvalidSelector = errors.New("invalid DKIM selector")
)

// Check statuses
const (
	StatusOK       = "ok"
	StatusWarning  = "warning"
	StatusError    = "error"
	StatusNotFound = "not_found"
)

var (
	domainRegex   = regexp.MustCompile(`^(?i)[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)*$`)
	selectorRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)
)

// ValidateDomain checks if domain name is valid
func ValidateDomain(domain string) error {
	if domain == "" || len(domain) > 253 || !domainRegex.MatchString(domain) {
		return ErrInvalidDomain
	}
	return nil
}

// ValidateSelector checks if DKIM selector is valid
func ValidateSelector(selector string) error {
	if selector == "" || len(selector) > 63 || !selectorRegex.MatchString(selector) {
		return ErrInvalidSelector
	}
	return nil
}

// Resolver is the subset of net.Resolver used by the checks
type Resolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// CheckResult is the outcome of one record check
type CheckResult struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message,omitempty"`
}

// Report contains all check results for a domain
type Report struct {
	Domain  string        `json:"domain"`
	Results []CheckResult `json:"results"`
	Summary Summary       `json:"summary"`
}

// Summary contains check statistics
type Summary struct {
	OK       int `json:"ok"`
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`
	NotFound int `json:"not_found"`
}

// Ready reports whether every check passed, warnings allowed
func (r *Report) Ready() bool {
	return r.Summary.Errors == 0 && r.Summary.NotFound == 0
}

// Options selects what to check
type Options struct {
	Domain   string
	Selector string // DKIM selector, empty skips the DKIM check
	// DKIMRecord is the record the local key expects. When set the
	// published key must match it.
	DKIMRecord string
	// SPFInclude is a mechanism the SPF record must carry, such as
	// "include:spf.mtasv.net" for Postmark.
	SPFInclude string
}

// Checker runs DNS checks against a resolver
type Checker struct {
	resolver Resolver
}

// New creates a checker. A nil resolver uses net.DefaultResolver.
func New(resolver Resolver) *Checker {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Checker{resolver: resolver}
}

// Check runs the SPF, DKIM, DMARC and MX checks for opts.Domain
func (c *Checker) Check(ctx context.Context, opts Options) (*Report, error) {
	domain := strings.ToLower(strings.TrimSuffix(opts.Domain, "."))
	if err := ValidateDomain(domain); err != nil {
		return nil, err
	}
	if opts.Selector != "" {
		if err := ValidateSelector(opts.Selector); err != nil {
			return nil, err
		}
	}

	report := &Report{Domain: domain}
	report.Results = append(report.Results, c.checkSPF(ctx, domain, opts.SPFInclude))
	if opts.Selector != "" {
		report.Results = append(report.Results, c.checkDKIM(ctx, domain, opts.Selector, opts.DKIMRecord))
	}
	report.Results = append(report.Results, c.checkDMARC(ctx, domain), c.checkMX(ctx, domain))

	for _, r := range report.Results {
		switch r.Status {
		case StatusOK:
			report.Summary.OK++
		case StatusWarning:
			report.Summary.Warnings++
		case StatusError:
			report.Summary.Errors++
		case StatusNotFound:
			report.Summary.NotFound++
		}
	}

	return report, nil
}

// lookupTXT returns the TXT strings of name, or a filled result when the
// lookup did not succeed
func (c *Checker) lookupTXT(ctx context.Context, result *CheckResult) ([]string, bool) {
	records, err := c.resolver.LookupTXT(ctx, result.Name)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			result.Status = StatusNotFound
			result.Message = "no TXT record"
			return nil, false
		}
		result.Status = StatusError
		result.Message = fmt.Sprintf("lookup failed: %v", err)
		return nil, false
	}
	return records, true
}

func (c *Checker) checkSPF(ctx context.Context, domain, include string) CheckResult {
	result := CheckResult{Type: "SPF", Name: domain}

	records, ok := c.lookupTXT(ctx, &result)
	if !ok {
		return result
	}

	var spf []string
	for _, txt := range records {
		if txt == "v=spf1" || strings.HasPrefix(txt, "v=spf1 ") {
			spf = append(spf, txt)
		}
	}

	switch {
	case len(spf) == 0:
		result.Status = StatusNotFound
		result.Message = "no SPF record"
	case len(spf) > 1:
		result.Status = StatusError
		result.Value = strings.Join(spf, " | ")
		result.Message = "multiple SPF records, receivers treat this as permerror"
	default:
		result.Value = spf[0]
		result.Status = StatusOK
		terms := strings.Fields(spf[0])
		switch {
		case include != "" && !containsFold(terms, include):
			result.Status = StatusError
			result.Message = fmt.Sprintf("SPF does not authorize %s", include)
		case containsFold(terms, "+all") || containsFold(terms, "all"):
			result.Status = StatusWarning
			result.Message = "SPF allows any sender (+all)"
		case containsFold(terms, "-all"):
			result.Message = "strict policy (-all)"
		case containsFold(terms, "~all"):
			result.Message = "soft fail policy (~all)"
		}
	}
	return result
}

func (c *Checker) checkDKIM(ctx context.Context, domain, selector, expected string) CheckResult {
	result := CheckResult{Type: "DKIM", Name: selector + "._domainkey." + domain}

	records, ok := c.lookupTXT(ctx, &result)
	if !ok {
		return result
	}

	// Long keys are published as several strings
	record := strings.Join(records, "")
	result.Value = truncate(record, 100)

	tags := parseTags(record)
	switch {
	case tags["v"] != "" && tags["v"] != "DKIM1":
		result.Status = StatusError
		result.Message = "not a DKIM1 record"
	case tags["p"] == "":
		result.Status = StatusError
		result.Message = "public key missing or revoked (empty p=)"
	case expected != "" && tags["p"] != parseTags(expected)["p"]:
		result.Status = StatusError
		result.Message = "published key does not match the configured private key"
	default:
		result.Status = StatusOK
		if k := tags["k"]; k != "" {
			result.Message = k + " key"
		}
		if expected != "" {
			result.Message = "published key matches the configured private key"
		}
	}
	return result
}

func (c *Checker) checkDMARC(ctx context.Context, domain string) CheckResult {
	result := CheckResult{Type: "DMARC", Name: "_dmarc." + domain}

	records, ok := c.lookupTXT(ctx, &result)
	if !ok {
		return result
	}

	record := strings.Join(records, "")
	result.Value = record
	if !strings.HasPrefix(record, "v=DMARC1") {
		result.Status = StatusWarning
		result.Message = "TXT record is not a DMARC record"
		return result
	}

	switch parseTags(record)["p"] {
	case "reject":
		result.Status = StatusOK
		result.Message = "reject policy"
	case "quarantine":
		result.Status = StatusOK
		result.Message = "quarantine policy"
	case "none":
		result.Status = StatusWarning
		result.Message = "none policy (monitoring only)"
	default:
		result.Status = StatusError
		result.Message = "missing or invalid p= tag"
	}
	return result
}

// checkMX verifies that replies to the sender domain can be delivered
func (c *Checker) checkMX(ctx context.Context, domain string) CheckResult {
	result := CheckResult{Type: "MX", Name: domain}

	records, err := c.resolver.LookupMX(ctx, domain)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			result.Status = StatusNotFound
			result.Message = "no MX records, replies will bounce"
			return result
		}
		result.Status = StatusError
		result.Message = fmt.Sprintf("lookup failed: %v", err)
		return result
	}
	if len(records) == 0 {
		result.Status = StatusNotFound
		result.Message = "no MX records, replies will bounce"
		return result
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Pref < records[j].Pref })
	values := make([]string, 0, len(records))
	for _, mx := range records {
		values = append(values, fmt.Sprintf("%s (%d)", strings.TrimSuffix(mx.Host, "."), mx.Pref))
	}
	result.Status = StatusOK
	result.Value = strings.Join(values, ", ")
	result.Message = fmt.Sprintf("%d MX record(s)", len(records))
	return result
}

// parseTags splits a tag=value; list as used by DKIM and DMARC
func parseTags(record string) map[string]string {
	tags := make(map[string]string)
	for _, part := range strings.Split(record, ";") {
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		// Whitespace inside base64 key data is not significant
		tags[strings.TrimSpace(name)] = strings.Join(strings.Fields(value), "")
	}
	return tags
}

func containsFold(terms []string, want string) bool {
	for _, t := range terms {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
