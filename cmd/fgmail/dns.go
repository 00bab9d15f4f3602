package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/federalgaz/campaignmail/internal/config"
	"github.com/federalgaz/campaignmail/internal/dkim"
	"github.com/federalgaz/campaignmail/internal/dnscheck"
)

var (
	dnsDomain   string
	dnsSelector string
	dnsJSON     bool
)

// spfIncludes are the mechanisms the providers ask senders to publish
var spfIncludes = map[string]string{
	config.ProviderPostmark: "include:spf.mtasv.net",
	config.ProviderSES:      "include:amazonses.com",
}

var dnsCmd = &cobra.Command{
	Use:   "dns",
	Short: "DNS commands",
}

var dnsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check SPF, DKIM, DMARC and MX records of the sender domain",
	Long: `Check the DNS records of the sender domain.

Without flags the domain comes from mail.from_email and the DKIM selector
and key from mail.dkim of the configuration.`,
	RunE: runDNSCheck,
}

func init() {
	dnsCheckCmd.Flags().StringVar(&dnsDomain, "domain", "", "Domain to check (default: domain of mail.from_email)")
	dnsCheckCmd.Flags().StringVar(&dnsSelector, "selector", "", "DKIM selector (default: mail.dkim.selector)")
	dnsCheckCmd.Flags().BoolVar(&dnsJSON, "json", false, "Output as JSON")

	dnsCmd.AddCommand(dnsCheckCmd)
	rootCmd.AddCommand(dnsCmd)
}

// checkOptions derives the checks from the mail configuration. Flags win.
func checkOptions(cfg config.MailConfig, domain, selector string) (dnscheck.Options, error) {
	opts := dnscheck.Options{
		Domain:     domain,
		Selector:   selector,
		SPFInclude: spfIncludes[cfg.Provider],
	}

	if opts.Domain == "" {
		addr, err := mail.ParseAddress(cfg.FromEmail)
		if err != nil {
			return opts, fmt.Errorf("invalid mail.from_email: %w", err)
		}
		opts.Domain = addr.Address[strings.LastIndex(addr.Address, "@")+1:]
	}

	if cfg.DKIM.Enabled && strings.EqualFold(cfg.DKIM.Domain, opts.Domain) {
		if opts.Selector == "" {
			opts.Selector = cfg.DKIM.Selector
		}
		if opts.Selector == cfg.DKIM.Selector {
			kp, err := dkim.LoadKeyPair(cfg.DKIM.KeyFile, cfg.DKIM.Domain, cfg.DKIM.Selector)
			if err != nil {
				return opts, fmt.Errorf("failed to load DKIM key: %w", err)
			}
			opts.DKIMRecord = kp.DNSRecord()
		}
	}

	return opts, nil
}

func runDNSCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts, err := checkOptions(cfg.Mail, dnsDomain, dnsSelector)
	if err != nil {
		return err
	}

	report, err := dnscheck.New(nil).Check(cmd.Context(), opts)
	if err != nil {
		return err
	}

	if err := printDNSReport(cmd.OutOrStdout(), report, dnsJSON); err != nil {
		return err
	}
	if !report.Ready() {
		return fmt.Errorf("%s is not ready for sending", report.Domain)
	}
	return nil
}

func printDNSReport(w io.Writer, report *dnscheck.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(w, "DNS check for %s\n\n", report.Domain)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tNAME\tSTATUS\tMESSAGE")
	for _, r := range report.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Type, r.Name, r.Status, r.Message)
	}
	tw.Flush()

	s := report.Summary
	fmt.Fprintf(w, "\nok: %d  warnings: %d  errors: %d  not found: %d\n", s.OK, s.Warnings, s.Errors, s.NotFound)
	return nil
}
