package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/federalgaz/campaignmail/internal/storage"
	"github.com/federalgaz/campaignmail/internal/template"
)

var (
	templateName        string
	templateDescription string
	templateSlug        string
	templateSearch      string
	templateLimit       int
	templatePreviewFmt  string
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Saved template management commands",
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved templates",
	RunE:  runTemplateList,
}

var templateCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Save a template",
	RunE:  runTemplateCreate,
}

var templateShowCmd = &cobra.Command{
	Use:   "show <id|name>",
	Short: "Show template details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateShow,
}

var templatePreviewCmd = &cobra.Command{
	Use:   "preview <id|name>",
	Short: "Render a saved template",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatePreview,
}

var templateDeleteCmd = &cobra.Command{
	Use:   "delete <id|name>",
	Short: "Delete a saved template",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateDelete,
}

func init() {
	templateListCmd.Flags().StringVar(&templateSearch, "search", "", "Filter by name, description or subject")
	templateListCmd.Flags().StringVar(&templateSlug, "slug", "", "Filter by slug")
	templateListCmd.Flags().IntVar(&templateLimit, "limit", 100, "Maximum number of templates")

	templateCreateCmd.Flags().StringVar(&templateName, "name", "", "Template name (required)")
	templateCreateCmd.Flags().StringVar(&templateDescription, "description", "", "Template description")
	templateCreateCmd.Flags().StringVar(&templateSlug, "slug", "", "Built-in template slug (default: from request or modern)")
	addRequestFlags(templateCreateCmd)
	templateCreateCmd.MarkFlagRequired("name")

	addRequestFlags(templatePreviewCmd)
	templatePreviewCmd.Flags().StringVar(&templatePreviewFmt, "format", "html", "Output format (html, text, json)")

	templateCmd.AddCommand(
		templateListCmd,
		templateCreateCmd,
		templateShowCmd,
		templatePreviewCmd,
		templateDeleteCmd,
	)
	rootCmd.AddCommand(templateCmd)
}

func getTemplateStorage() (*template.Storage, *storage.DB, error) {
	db, err := openStorage()
	if err != nil {
		return nil, nil, err
	}

	templates, err := template.NewStorage(db.DB())
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to create template storage: %w", err)
	}
	return templates, db, nil
}

func findTemplate(cmd *cobra.Command, templates *template.Storage, key string) (*template.Record, error) {
	rec, err := templates.Find(cmd.Context(), key)
	if errors.Is(err, template.ErrNotFound) {
		return nil, fmt.Errorf("template not found: %s", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return rec, nil
}

func runTemplateList(cmd *cobra.Command, args []string) error {
	templates, db, err := getTemplateStorage()
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := templates.List(cmd.Context(), template.ListFilter{
		Limit:  templateLimit,
		Search: templateSearch,
		Slug:   template.Slug(templateSlug),
	})
	if err != nil {
		return fmt.Errorf("failed to list templates: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No templates found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSLUG\tSUBJECT\tVERSION\tUPDATED")
	for _, rec := range records {
		subject := []rune(rec.Request.Subject)
		if len(subject) > 40 {
			subject = append(subject[:37], []rune("...")...)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			rec.ID[:8],
			rec.Name,
			rec.Slug,
			string(subject),
			rec.Version,
			rec.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\nTotal: %d templates\n", len(records))
	return nil
}

func runTemplateCreate(cmd *cobra.Command, args []string) error {
	slug, req, err := buildRequest(cmd, cmd.InOrStdin(), template.Request{})
	if err != nil {
		return err
	}
	if templateSlug != "" {
		slug = templateSlug
	}
	resolved, ok := template.Resolve(slug)
	if slug != "" && !ok {
		return fmt.Errorf("unknown template slug: %s", slug)
	}

	templates, db, err := getTemplateStorage()
	if err != nil {
		return err
	}
	defer db.Close()

	rec := &template.Record{
		Name:        templateName,
		Description: templateDescription,
		Slug:        resolved,
		Request:     *req,
	}
	if err := templates.Create(cmd.Context(), rec); err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Template created successfully\n")
	fmt.Fprintf(cmd.OutOrStdout(), "  ID:   %s\n", rec.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "  Name: %s\n", rec.Name)
	fmt.Fprintf(cmd.OutOrStdout(), "  Slug: %s\n", rec.Slug)
	return nil
}

func runTemplateShow(cmd *cobra.Command, args []string) error {
	templates, db, err := getTemplateStorage()
	if err != nil {
		return err
	}
	defer db.Close()

	rec, err := findTemplate(cmd, templates, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:          %s\n", rec.ID)
	fmt.Fprintf(out, "Name:        %s\n", rec.Name)
	fmt.Fprintf(out, "Description: %s\n", rec.Description)
	fmt.Fprintf(out, "Slug:        %s\n", rec.Slug)
	fmt.Fprintf(out, "Version:     %d\n", rec.Version)
	fmt.Fprintf(out, "Created:     %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Updated:     %s\n", rec.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "\nSubject:\n  %s\n", rec.Request.Subject)

	if rec.Request.Content != "" {
		fmt.Fprintf(out, "\nContent:\n")
		for _, line := range strings.Split(rec.Request.Content, "\n") {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}

	if len(rec.Request.TemplateData) > 0 {
		fmt.Fprintf(out, "\nTemplate data:\n")
		for key, v := range rec.Request.TemplateData {
			fmt.Fprintf(out, "  - %s: %v\n", key, v)
		}
	}

	return nil
}

func runTemplatePreview(cmd *cobra.Command, args []string) error {
	templates, db, err := getTemplateStorage()
	if err != nil {
		return err
	}
	defer db.Close()

	rec, err := findTemplate(cmd, templates, args[0])
	if err != nil {
		return err
	}

	slug, req, err := buildRequest(cmd, cmd.InOrStdin(), rec.Request)
	if err != nil {
		return err
	}
	if slug == "" {
		slug = string(rec.Slug)
	}

	result := template.NewEngine().Render(slug, req)
	return writeResult(cmd.OutOrStdout(), result, templatePreviewFmt)
}

func runTemplateDelete(cmd *cobra.Command, args []string) error {
	templates, db, err := getTemplateStorage()
	if err != nil {
		return err
	}
	defer db.Close()

	rec, err := findTemplate(cmd, templates, args[0])
	if err != nil {
		return err
	}
	if err := templates.Delete(cmd.Context(), rec.ID); err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Template deleted: %s\n", rec.Name)
	return nil
}
