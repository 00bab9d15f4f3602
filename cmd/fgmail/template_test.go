package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/federalgaz/campaignmail/internal/config"
)

func setupCLIEnv(t *testing.T) {
	t.Helper()

	cfgFile = ""
	t.Setenv("FGMAIL_STORAGE_PATH", filepath.Join(t.TempDir(), "fgmail.db"))
	t.Setenv("FGMAIL_MAIL_PROVIDER", config.ProviderNoop)
	t.Setenv("FGMAIL_MAIL_FROM_EMAIL", "kampanya@federalgaz.com")
}

func TestTemplateCommands(t *testing.T) {
	setupCLIEnv(t)

	templateName = "kasim-indirimi"
	templateDescription = "Kasım kampanyası"
	templateSlug = "black-friday"
	cmd, out := newRequestCmd(t, "--subject", "Kasım İndirimi", "--data", `{"highlightText":"%60"}`)
	if err := runTemplateCreate(cmd, nil); err != nil {
		t.Fatalf("create error = %v", err)
	}
	if !strings.Contains(out.String(), "Slug: black-friday") {
		t.Errorf("create output = %q", out.String())
	}

	templateSlug = ""
	templateSearch = ""
	templateLimit = 100
	cmd, out = newRequestCmd(t)
	if err := runTemplateList(cmd, nil); err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(out.String(), "kasim-indirimi") || !strings.Contains(out.String(), "Total: 1 templates") {
		t.Errorf("list output = %q", out.String())
	}

	cmd, out = newRequestCmd(t)
	if err := runTemplateShow(cmd, []string{"kasim-indirimi"}); err != nil {
		t.Fatalf("show error = %v", err)
	}
	if !strings.Contains(out.String(), "highlightText: %60") {
		t.Errorf("show output = %q", out.String())
	}

	cmd, out = newRequestCmd(t, "--format", "text", "--recipient-name", "Ayşe")
	if err := runTemplatePreview(cmd, []string{"kasim-indirimi"}); err != nil {
		t.Fatalf("preview error = %v", err)
	}
	if !strings.Contains(out.String(), "Ayşe") || !strings.Contains(out.String(), "%60") {
		t.Errorf("preview output = %q", out.String())
	}

	cmd, _ = newRequestCmd(t)
	if err := runTemplateDelete(cmd, []string{"kasim-indirimi"}); err != nil {
		t.Fatalf("delete error = %v", err)
	}
	cmd, _ = newRequestCmd(t)
	if err := runTemplateShow(cmd, []string{"kasim-indirimi"}); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("show after delete error = %v", err)
	}
}

func TestTemplateCreate_UnknownSlug(t *testing.T) {
	setupCLIEnv(t)

	templateName = "x"
	templateSlug = "summer"
	t.Cleanup(func() { templateSlug = "" })

	cmd, _ := newRequestCmd(t)
	if err := runTemplateCreate(cmd, nil); err == nil || !strings.Contains(err.Error(), "unknown template slug") {
		t.Errorf("create error = %v, want unknown slug", err)
	}
}
