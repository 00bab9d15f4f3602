package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/federalgaz/campaignmail/internal/template"
)

var (
	renderRequestFile   string
	renderSubject       string
	renderContent       string
	renderRecipientName string
	renderButtonText    string
	renderButtonURL     string
	renderDataJSON      string
	renderFormat        string
	renderOutput        string
)

var renderCmd = &cobra.Command{
	Use:   "render [slug]",
	Short: "Render a campaign email",
	Long: `Render a campaign email from a built-in template.

The request is read from --request (a JSON file, "-" for stdin) and the
flags override its fields. Unknown slugs render with the modern template.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

var slugsCmd = &cobra.Command{
	Use:   "slugs",
	Short: "List built-in template slugs",
	RunE:  runSlugs,
}

func init() {
	addRequestFlags(renderCmd)
	renderCmd.Flags().StringVar(&renderFormat, "format", "html", "Output format (html, text, json)")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Write output to file instead of stdout")

	rootCmd.AddCommand(renderCmd, slugsCmd)
}

func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&renderRequestFile, "request", "", "JSON request file (- for stdin)")
	cmd.Flags().StringVar(&renderSubject, "subject", "", "Subject line")
	cmd.Flags().StringVar(&renderContent, "content", "", "Message content")
	cmd.Flags().StringVar(&renderRecipientName, "recipient-name", "", "Recipient name")
	cmd.Flags().StringVar(&renderButtonText, "button-text", "", "Button label")
	cmd.Flags().StringVar(&renderButtonURL, "button-url", "", "Button link")
	cmd.Flags().StringVar(&renderDataJSON, "data", "", "templateData decoration as JSON object")
}

// requestFile is the JSON shape accepted by --request. templateData may be
// an object or a JSON-encoded string.
type requestFile struct {
	TemplateSlug string `json:"templateSlug,omitempty"`
	template.Request
	TemplateData json.RawMessage `json:"templateData,omitempty"`
}

func decodeRequest(r io.Reader) (string, *template.Request, error) {
	var rf requestFile
	if err := json.NewDecoder(r).Decode(&rf); err != nil {
		return "", nil, fmt.Errorf("invalid request JSON: %w", err)
	}

	data, err := decodeTemplateData(rf.TemplateData)
	if err != nil {
		return "", nil, err
	}
	req := rf.Request
	req.TemplateData = data
	return rf.TemplateSlug, &req, nil
}

func decodeTemplateData(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("invalid templateData: %w", err)
		}
		raw = []byte(s)
	}

	data, err := template.ParseTemplateData(string(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid templateData: %w", err)
	}
	return data, nil
}

// buildRequest combines --request with the individual flags. base is used
// when no request file is given.
func buildRequest(cmd *cobra.Command, stdin io.Reader, base template.Request) (string, *template.Request, error) {
	slug := ""
	req := &base

	switch renderRequestFile {
	case "":
	case "-":
		s, r, err := decodeRequest(stdin)
		if err != nil {
			return "", nil, err
		}
		slug, req = s, r
	default:
		f, err := os.Open(renderRequestFile)
		if err != nil {
			return "", nil, fmt.Errorf("failed to open request file: %w", err)
		}
		defer f.Close()

		s, r, err := decodeRequest(f)
		if err != nil {
			return "", nil, err
		}
		slug, req = s, r
	}

	flags := cmd.Flags()
	if flags.Changed("subject") {
		req.Subject = renderSubject
	}
	if flags.Changed("content") {
		req.Content = renderContent
	}
	if flags.Changed("recipient-name") {
		req.RecipientName = renderRecipientName
	}
	if flags.Changed("button-text") {
		req.ButtonText = renderButtonText
	}
	if flags.Changed("button-url") {
		req.ButtonURL = renderButtonURL
	}
	if flags.Changed("data") {
		data, err := decodeTemplateData(json.RawMessage(renderDataJSON))
		if err != nil {
			return "", nil, err
		}
		req.TemplateData = data
	}

	return slug, req, nil
}

func runRender(cmd *cobra.Command, args []string) error {
	slug, req, err := buildRequest(cmd, cmd.InOrStdin(), template.Request{})
	if err != nil {
		return err
	}
	if len(args) == 1 {
		slug = args[0]
	}

	result := template.NewEngine().Render(slug, req)
	if result.Fallback {
		fmt.Fprintf(cmd.ErrOrStderr(), "unknown slug %q, rendered with %s\n", slug, result.Slug)
	}

	out := cmd.OutOrStdout()
	if renderOutput != "" {
		f, err := os.Create(renderOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	return writeResult(out, result, renderFormat)
}

func writeResult(w io.Writer, result *template.Result, format string) error {
	switch format {
	case "html":
		_, err := io.WriteString(w, result.HTML)
		return err
	case "text":
		_, err := io.WriteString(w, result.Text)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	default:
		return fmt.Errorf("unknown format %q (want html, text or json)", format)
	}
}

func runSlugs(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SLUG\tNAME\tHEADER\tBUTTON")
	for _, slug := range template.Slugs() {
		d, _ := template.Lookup(slug)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", slug, d.Name, d.Styles.HeaderBg, d.Styles.Button)
	}
	return w.Flush()
}
