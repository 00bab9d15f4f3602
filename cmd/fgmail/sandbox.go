package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/federalgaz/campaignmail/internal/sandbox"
	"github.com/federalgaz/campaignmail/internal/storage"
)

var (
	sandboxListMode   string
	sandboxListTag    string
	sandboxListTo     string
	sandboxListLimit  int
	sandboxShowFormat string
	sandboxClearAge   time.Duration
)

var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Inspect messages captured in sandbox and redirect mode",
}

var sandboxListCmd = &cobra.Command{
	Use:   "list",
	Short: "List captured messages",
	RunE:  runSandboxList,
}

var sandboxShowCmd = &cobra.Command{
	Use:   "show <message_id>",
	Short: "Show a captured message",
	Args:  cobra.ExactArgs(1),
	RunE:  runSandboxShow,
}

var sandboxClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete captured messages",
	RunE:  runSandboxClear,
}

var sandboxStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show sandbox statistics",
	RunE:  runSandboxStats,
}

func init() {
	sandboxListCmd.Flags().StringVar(&sandboxListMode, "mode", "", "Filter by mode (sandbox, redirect)")
	sandboxListCmd.Flags().StringVar(&sandboxListTag, "tag", "", "Filter by tag (template slug)")
	sandboxListCmd.Flags().StringVar(&sandboxListTo, "to", "", "Filter by recipient")
	sandboxListCmd.Flags().IntVar(&sandboxListLimit, "limit", 50, "Maximum number of messages")

	sandboxShowCmd.Flags().StringVar(&sandboxShowFormat, "format", "text", "Output format (text, html)")

	sandboxClearCmd.Flags().DurationVar(&sandboxClearAge, "older-than", 0, "Clear only messages older than this (e.g. 72h)")

	sandboxCmd.AddCommand(sandboxListCmd, sandboxShowCmd, sandboxClearCmd, sandboxStatsCmd)
	rootCmd.AddCommand(sandboxCmd)
}

func openSandboxStorage() (*sandbox.Storage, *storage.DB, error) {
	db, err := openStorage()
	if err != nil {
		return nil, nil, err
	}

	s, err := sandbox.NewStorage(db.DB())
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to create sandbox storage: %w", err)
	}
	return s, db, nil
}

func runSandboxList(cmd *cobra.Command, args []string) error {
	s, db, err := openSandboxStorage()
	if err != nil {
		return err
	}
	defer db.Close()

	messages, err := s.List(cmd.Context(), sandbox.ListFilter{
		Mode:  sandboxListMode,
		Tag:   sandboxListTag,
		To:    sandboxListTo,
		Limit: sandboxListLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to list messages: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(messages) == 0 {
		fmt.Fprintln(out, "No messages in sandbox")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODE\tTO\tSUBJECT\tCAPTURED")
	for _, m := range messages {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			m.ID,
			m.Mode,
			strings.Join(m.To, ","),
			m.Subject,
			m.CapturedAt.Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\nTotal: %d messages\n", len(messages))
	return nil
}

func runSandboxShow(cmd *cobra.Command, args []string) error {
	s, db, err := openSandboxStorage()
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := s.Get(cmd.Context(), args[0])
	if errors.Is(err, sandbox.ErrNotFound) {
		return fmt.Errorf("message not found: %s", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to get message: %w", err)
	}

	out := cmd.OutOrStdout()
	if sandboxShowFormat == "html" {
		_, err := io.WriteString(out, m.HTML)
		return err
	}

	fmt.Fprintf(out, "ID:       %s\n", m.ID)
	fmt.Fprintf(out, "Mode:     %s\n", m.Mode)
	fmt.Fprintf(out, "From:     %s\n", m.From)
	fmt.Fprintf(out, "To:       %s\n", strings.Join(m.To, ", "))
	if len(m.OriginalTo) > 0 {
		fmt.Fprintf(out, "Original: %s\n", strings.Join(m.OriginalTo, ", "))
	}
	fmt.Fprintf(out, "Subject:  %s\n", m.Subject)
	if m.Tag != "" {
		fmt.Fprintf(out, "Tag:      %s\n", m.Tag)
	}
	fmt.Fprintf(out, "Captured: %s\n", m.CapturedAt.Format(time.RFC3339))
	if m.SimulatedErr != "" {
		fmt.Fprintf(out, "Simulated error: %s\n", m.SimulatedErr)
	}
	if m.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", m.Error)
	}
	fmt.Fprintf(out, "\n%s\n", m.Text)
	return nil
}

func runSandboxClear(cmd *cobra.Command, args []string) error {
	s, db, err := openSandboxStorage()
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := s.Clear(cmd.Context(), sandboxClearAge)
	if err != nil {
		return fmt.Errorf("failed to clear sandbox: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d messages\n", n)
	return nil
}

func runSandboxStats(cmd *cobra.Command, args []string) error {
	s, db, err := openSandboxStorage()
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := s.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Total messages: %d\n", stats.Total)
	fmt.Fprintf(out, "Total size:     %d bytes\n", stats.TotalSize)
	for mode, n := range stats.ByMode {
		fmt.Fprintf(out, "  %s: %d\n", mode, n)
	}
	if stats.Total > 0 {
		fmt.Fprintf(out, "Oldest: %s\n", stats.OldestAt.Format(time.RFC3339))
		fmt.Fprintf(out, "Newest: %s\n", stats.NewestAt.Format(time.RFC3339))
	}
	return nil
}
