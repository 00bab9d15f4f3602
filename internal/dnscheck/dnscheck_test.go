package dnscheck

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
)

type fakeResolver struct {
	txt map[string][]string
	mx  map[string][]*net.MX
	err error
}

func (f *fakeResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	records, ok := f.txt[name]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
	}
	return records, nil
}

func (f *fakeResolver) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	if f.err != nil {
		return nil, f.err
	}
	records, ok := f.mx[name]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
	}
	return records, nil
}

const testKeyRecord = "v=DKIM1; k=rsa; p=MIIBIjANBgkqh"

func healthyResolver() *fakeResolver {
	return &fakeResolver{
		txt: map[string][]string{
			"federalgaz.com":                   {"google-site-verification=x", "v=spf1 include:spf.mtasv.net -all"},
			"fgmail._domainkey.federalgaz.com": {"v=DKIM1; k=rsa; ", "p=MIIBIjANBgkqh"},
			"_dmarc.federalgaz.com":            {"v=DMARC1; p=quarantine; rua=mailto:dmarc@federalgaz.com"},
		},
		mx: map[string][]*net.MX{
			"federalgaz.com": {{Host: "mx2.federalgaz.com.", Pref: 20}, {Host: "mx1.federalgaz.com.", Pref: 10}},
		},
	}
}

func TestValidateDomain(t *testing.T) {
	tests := []struct {
		name    string
		domain  string
		wantErr bool
	}{
		{"valid simple", "federalgaz.com", false},
		{"valid subdomain", "mail.federalgaz.com", false},
		{"valid with dash", "federal-gaz.com", false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", 254), true},
		{"invalid chars", "federal!.com", true},
		{"starts with dash", "-federalgaz.com", true},
		{"double dot", "federalgaz..com", true},
		{"path injection", "../etc/passwd", true},
		{"null byte", "federalgaz\x00.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDomain(tt.domain)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDomain(%q) error = %v, wantErr %v", tt.domain, err, tt.wantErr)
			}
		})
	}
}

func TestValidateSelector(t *testing.T) {
	tests := []struct {
		selector string
		wantErr  bool
	}{
		{"fgmail", false},
		{"key2026", false},
		{"dkim-key", false},
		{"", true},
		{strings.Repeat("s", 64), true},
		{"selector!", true},
		{"-selector", true},
	}

	for _, tt := range tests {
		if err := ValidateSelector(tt.selector); (err != nil) != tt.wantErr {
			t.Errorf("ValidateSelector(%q) error = %v, wantErr %v", tt.selector, err, tt.wantErr)
		}
	}
}

func TestCheck(t *testing.T) {
	c := New(healthyResolver())

	report, err := c.Check(context.Background(), Options{
		Domain:     "FederalGaz.com.",
		Selector:   "fgmail",
		DKIMRecord: testKeyRecord,
		SPFInclude: "include:spf.mtasv.net",
	})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	if report.Domain != "federalgaz.com" {
		t.Errorf("Domain = %q, want normalized", report.Domain)
	}
	if len(report.Results) != 4 {
		t.Fatalf("Results = %d, want 4", len(report.Results))
	}
	for _, r := range report.Results {
		if r.Status != StatusOK {
			t.Errorf("%s status = %s (%s)", r.Type, r.Status, r.Message)
		}
	}
	if !report.Ready() {
		t.Errorf("Ready() = false, summary %+v", report.Summary)
	}
	if mx := report.Results[3].Value; mx != "mx1.federalgaz.com (10), mx2.federalgaz.com (20)" {
		t.Errorf("MX value = %q", mx)
	}
}

func TestCheck_NoSelectorSkipsDKIM(t *testing.T) {
	report, err := New(healthyResolver()).Check(context.Background(), Options{Domain: "federalgaz.com"})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	for _, r := range report.Results {
		if r.Type == "DKIM" {
			t.Error("DKIM checked without selector")
		}
	}
}

func TestCheck_Problems(t *testing.T) {
	tests := []struct {
		name       string
		modify     func(*fakeResolver)
		opts       Options
		wantType   string
		wantStatus string
	}{
		{"spf missing", func(f *fakeResolver) { f.txt["federalgaz.com"] = []string{"other"} }, Options{}, "SPF", StatusNotFound},
		{"spf duplicate", func(f *fakeResolver) {
			f.txt["federalgaz.com"] = []string{"v=spf1 -all", "v=spf1 ~all"}
		}, Options{}, "SPF", StatusError},
		{"spf plus all", func(f *fakeResolver) { f.txt["federalgaz.com"] = []string{"v=spf1 +all"} }, Options{}, "SPF", StatusWarning},
		{"spf missing include", func(f *fakeResolver) {}, Options{SPFInclude: "include:amazonses.com"}, "SPF", StatusError},
		{"dkim missing", func(f *fakeResolver) { delete(f.txt, "fgmail._domainkey.federalgaz.com") }, Options{}, "DKIM", StatusNotFound},
		{"dkim revoked", func(f *fakeResolver) {
			f.txt["fgmail._domainkey.federalgaz.com"] = []string{"v=DKIM1; p="}
		}, Options{}, "DKIM", StatusError},
		{"dkim mismatch", func(f *fakeResolver) {}, Options{DKIMRecord: "v=DKIM1; k=rsa; p=OTHERKEY"}, "DKIM", StatusError},
		{"dmarc none", func(f *fakeResolver) { f.txt["_dmarc.federalgaz.com"] = []string{"v=DMARC1; p=none"} }, Options{}, "DMARC", StatusWarning},
		{"dmarc invalid", func(f *fakeResolver) { f.txt["_dmarc.federalgaz.com"] = []string{"v=DMARC1; rua=x"} }, Options{}, "DMARC", StatusError},
		{"mx missing", func(f *fakeResolver) { delete(f.mx, "federalgaz.com") }, Options{}, "MX", StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := healthyResolver()
			tt.modify(resolver)
			opts := tt.opts
			opts.Domain = "federalgaz.com"
			opts.Selector = "fgmail"

			report, err := New(resolver).Check(context.Background(), opts)
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}

			for _, r := range report.Results {
				if r.Type != tt.wantType {
					continue
				}
				if r.Status != tt.wantStatus {
					t.Errorf("%s status = %s (%s), want %s", r.Type, r.Status, r.Message, tt.wantStatus)
				}
			}
			if report.Ready() && tt.wantStatus != StatusWarning {
				t.Error("Ready() = true with a failing check")
			}
		})
	}
}

func TestCheck_LookupError(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("connection refused")}

	report, err := New(resolver).Check(context.Background(), Options{Domain: "federalgaz.com", Selector: "fgmail"})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if report.Summary.Errors != 4 {
		t.Errorf("Summary = %+v, want 4 errors", report.Summary)
	}
}

func TestCheck_InvalidInput(t *testing.T) {
	c := New(healthyResolver())

	if _, err := c.Check(context.Background(), Options{Domain: "bad domain"}); !errors.Is(err, ErrInvalidDomain) {
		t.Errorf("Check() error = %v, want ErrInvalidDomain", err)
	}
	if _, err := c.Check(context.Background(), Options{Domain: "federalgaz.com", Selector: "bad!"}); !errors.Is(err, ErrInvalidSelector) {
		t.Errorf("Check() error = %v, want ErrInvalidSelector", err)
	}
}
