package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/federalgaz/campaignmail/internal/config"
	"github.com/federalgaz/campaignmail/internal/dkim"
)

var (
	initDomain   string
	initHostname string
	initOutput   string
	initDataDir  string
	initProvider string
	initMode     string
	initAPIKey   string
	initHashKey  bool
	initDKIM     bool
	initForce    bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file",
	Long: `Create a fgmail configuration file.

Examples:
  # SMTP delivery with DKIM signing
  fgmail init --domain federalgaz.com --dkim

  # Local testing, every message captured in the sandbox
  fgmail init --domain federalgaz.com --provider noop --mode sandbox -o test.yaml`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initDomain, "domain", "", "Sender domain (required)")
	initCmd.Flags().StringVar(&initHostname, "hostname", "", "Server hostname FQDN (default: mail.<domain>)")
	initCmd.Flags().StringVarP(&initOutput, "output", "o", "config.yaml", "Output configuration file path")
	initCmd.Flags().StringVar(&initDataDir, "data-dir", "/var/lib/fgmail", "Data directory for the database and keys")
	initCmd.Flags().StringVar(&initProvider, "provider", config.ProviderSMTP, "Mail provider: smtp, postmark, resend, ses, noop")
	initCmd.Flags().StringVar(&initMode, "mode", config.ModeProduction, "Mail mode: production, sandbox, redirect")
	initCmd.Flags().StringVar(&initAPIKey, "api-key", "", "API key (auto-generated if not provided)")
	initCmd.Flags().BoolVar(&initHashKey, "hash-key", false, "Store a bcrypt hash of the API key instead of the key")
	initCmd.Flags().BoolVar(&initDKIM, "dkim", false, "Generate a DKIM key (smtp provider)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config file")
	initCmd.MarkFlagRequired("domain")

	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if !initForce {
		if _, err := os.Stat(initOutput); err == nil {
			return fmt.Errorf("config file %s already exists (use --force to overwrite)", initOutput)
		}
	}
	if initHostname == "" {
		initHostname = "mail." + initDomain
	}

	if initAPIKey == "" {
		initAPIKey = generateRandomString(32)
		fmt.Fprintf(out, "Generated API key: %s\n", initAPIKey)
	}
	keyLine := fmt.Sprintf("api_key: %q", initAPIKey)
	if initHashKey {
		hash, err := bcrypt.GenerateFromPassword([]byte(initAPIKey), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash API key: %w", err)
		}
		keyLine = fmt.Sprintf("api_key_hash: %q", hash)
	}

	var kp *dkim.KeyPair
	dkimKeyPath := filepath.Join(initDataDir, "dkim", initDomain+".key")
	if initDKIM {
		if err := os.MkdirAll(filepath.Dir(dkimKeyPath), 0700); err != nil {
			return fmt.Errorf("failed to create DKIM directory: %w", err)
		}

		var err error
		kp, err = dkim.GenerateKey(initDomain, "fgmail")
		if err != nil {
			return fmt.Errorf("failed to generate DKIM key: %w", err)
		}
		if err := kp.SavePrivateKey(dkimKeyPath); err != nil {
			return fmt.Errorf("failed to save DKIM key: %w", err)
		}
		fmt.Fprintf(out, "DKIM key saved to: %s\n", dkimKeyPath)
	}

	content := generateConfig(keyLine, dkimKeyPath)
	if err := os.WriteFile(initOutput, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	fmt.Fprintf(out, "Configuration saved to: %s\n", initOutput)

	if kp != nil {
		fmt.Fprintln(out)
		printDNSRecord(out, kp)
	}

	fmt.Fprintf(out, "\nNext steps:\n")
	fmt.Fprintf(out, "  fgmail config validate -c %s\n", initOutput)
	fmt.Fprintf(out, "  fgmail serve -c %s\n", initOutput)
	return nil
}

func generateRandomString(length int) string {
	b := make([]byte, length/2)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func generateConfig(keyLine, dkimKeyPath string) string {
	var b strings.Builder

	fmt.Fprintf(&b, `server:
  hostname: %q

api:
  listen_addr: ":8080"
  %s

storage:
  path: %q
  retention:
    report_max_age: 720h
    sandbox_max_age: 168h

logging:
  level: info
  format: json

metrics:
  enabled: false
  listen_addr: ":9090"

mail:
  provider: %s
  mode: %s
  from_email: "kampanya@%s"
  from_name: "Federal Gaz"
`, initHostname, keyLine, filepath.Join(initDataDir, "fgmail.db"), initProvider, initMode, initDomain)

	if initMode == config.ModeRedirect {
		fmt.Fprintf(&b, "  redirect_to:\n    - \"test@%s\"\n", initDomain)
	}

	switch initProvider {
	case config.ProviderSMTP:
		fmt.Fprintf(&b, `  smtp:
    host: "smtp.%s"
    port: 587
    username: ""
    password: "" # or FGMAIL_SMTP_PASSWORD
    tls: starttls
  dkim:
    enabled: %t
    domain: %q
    selector: "fgmail"
    key_file: %q
`, initDomain, initDKIM, initDomain, dkimKeyPath)
	case config.ProviderPostmark:
		b.WriteString("  postmark:\n    server_token: \"\" # or FGMAIL_POSTMARK_SERVER_TOKEN\n")
	case config.ProviderResend:
		b.WriteString("  resend:\n    api_key: \"\" # or FGMAIL_RESEND_API_KEY\n")
	case config.ProviderSES:
		b.WriteString(`  ses:
    region: eu-central-1
    access_key_id: "" # or FGMAIL_SES_ACCESS_KEY_ID
    secret_access_key: "" # or FGMAIL_SES_SECRET_ACCESS_KEY
`)
	}

	return b.String()
}
