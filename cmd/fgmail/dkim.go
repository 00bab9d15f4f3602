package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/federalgaz/campaignmail/internal/dkim"
)

var (
	dkimDomain   string
	dkimSelector string
	dkimKeyFile  string
	dkimOutDir   string
	dkimBits     int
)

var dkimCmd = &cobra.Command{
	Use:   "dkim",
	Short: "DKIM key management commands",
}

var dkimGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new DKIM key pair",
	Long:  `Generate a new RSA DKIM key pair and print the DNS record to publish.`,
	RunE:  runDKIMGenerate,
}

var dkimShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show DKIM DNS record from existing key",
	RunE:  runDKIMShow,
}

func init() {
	dkimGenerateCmd.Flags().StringVar(&dkimDomain, "domain", "", "Domain name (required)")
	dkimGenerateCmd.Flags().StringVar(&dkimSelector, "selector", "fgmail", "DKIM selector")
	dkimGenerateCmd.Flags().StringVar(&dkimOutDir, "out", ".", "Output directory for key file")
	dkimGenerateCmd.Flags().IntVar(&dkimBits, "bits", dkim.DefaultKeyBits, "RSA key size (1024, 2048, 4096)")
	dkimGenerateCmd.MarkFlagRequired("domain")

	dkimShowCmd.Flags().StringVar(&dkimKeyFile, "key", "", "Path to private key file (required)")
	dkimShowCmd.Flags().StringVar(&dkimDomain, "domain", "", "Domain name (required)")
	dkimShowCmd.Flags().StringVar(&dkimSelector, "selector", "fgmail", "DKIM selector")
	dkimShowCmd.MarkFlagRequired("key")
	dkimShowCmd.MarkFlagRequired("domain")

	dkimCmd.AddCommand(dkimGenerateCmd, dkimShowCmd)
	rootCmd.AddCommand(dkimCmd)
}

func runDKIMGenerate(cmd *cobra.Command, args []string) error {
	kp, err := dkim.GenerateKeySize(dkimDomain, dkimSelector, dkimBits)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	keyPath := filepath.Join(dkimOutDir, fmt.Sprintf("%s.%s.key", dkimSelector, dkimDomain))
	if err := kp.SavePrivateKey(keyPath); err != nil {
		return fmt.Errorf("failed to save private key: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "DKIM key generated successfully\n\n")
	fmt.Fprintf(out, "Private key saved to: %s\n\n", keyPath)
	printDNSRecord(out, kp)
	return nil
}

func runDKIMShow(cmd *cobra.Command, args []string) error {
	kp, err := dkim.LoadKeyPair(dkimKeyFile, dkimDomain, dkimSelector)
	if err != nil {
		return fmt.Errorf("failed to load private key: %w", err)
	}

	printDNSRecord(cmd.OutOrStdout(), kp)
	return nil
}

func printDNSRecord(w io.Writer, kp *dkim.KeyPair) {
	fmt.Fprintf(w, "DNS Record:\n")
	fmt.Fprintf(w, "  Name:  %s\n", kp.DNSName())
	fmt.Fprintf(w, "  Type:  TXT\n")
	fmt.Fprintf(w, "  Value: %s\n", kp.DNSRecord())

	if chunks := kp.DNSRecordChunks(); len(chunks) > 1 {
		fmt.Fprintf(w, "\nSplit for providers limiting TXT strings to 255 characters:\n")
		for _, c := range chunks {
			fmt.Fprintf(w, "  %q\n", c)
		}
	}
}
