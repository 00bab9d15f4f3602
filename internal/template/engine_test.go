package template

import (
	"strings"
	"sync"
	"testing"
)

func TestRender_Totality(t *testing.T) {
	slugs := append([]string{"nonexistent-slug", ""}, slugNames()...)

	for _, slug := range slugs {
		t.Run("slug="+slug, func(t *testing.T) {
			for _, req := range []*Request{nil, {Subject: "X"}} {
				out := Render(slug, req)
				if out == "" {
					t.Fatal("Render() returned empty string")
				}
				for _, want := range []string{"<html", "</html>", "<body", "</body>"} {
					if !strings.Contains(out, want) {
						t.Errorf("Render() missing %q", want)
					}
				}

				header := strings.Index(out, `class="header"`)
				content := strings.Index(out, `class="content"`)
				footer := strings.Index(out, `class="footer"`)
				if header < 0 || content < 0 || footer < 0 {
					t.Fatalf("missing section: header=%d content=%d footer=%d", header, content, footer)
				}
				if !(header < content && content < footer) {
					t.Errorf("sections out of order: header=%d content=%d footer=%d", header, content, footer)
				}
			}
		})
	}
}

func TestRender_UnknownSlugFallback(t *testing.T) {
	req := &Request{
		Subject:       "Kampanya",
		Content:       "Merhaba",
		RecipientName: "Ayşe",
		TemplateData:  map[string]any{"highlightText": "Yeni"},
	}

	if got, want := Render("nonexistent-slug", req), Render("modern", req); got != want {
		t.Error("unknown slug output differs from modern output")
	}

	result := NewEngine().Render("nonexistent-slug", req)
	if result.Slug != SlugModern {
		t.Errorf("Slug = %q, want %q", result.Slug, SlugModern)
	}
	if !result.Fallback {
		t.Error("Fallback = false, want true")
	}

	result = NewEngine().Render("black-friday", req)
	if result.Fallback {
		t.Error("Fallback = true for a known slug")
	}
}

func TestRender_DataURIRejected(t *testing.T) {
	const dataURI = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAAB"

	tests := []struct {
		name     string
		slug     string
		req      Request
		want     string
		wantNone string
	}{
		{
			name: "header image falls back to template default",
			slug: "new-year",
			req:  Request{Subject: "X", HeaderImage: dataURI},
			want: defaultsBySlug[SlugNewYear].HeaderImage,
		},
		{
			name:     "header image without template default",
			slug:     "modern",
			req:      Request{Subject: "X", HeaderImage: dataURI},
			wantNone: "background-image",
		},
		{
			name:     "footer image",
			slug:     "modern",
			req:      Request{Subject: "X", FooterImage: dataURI},
			wantNone: `alt="" width="120"`,
		},
		{
			name: "product image",
			slug: "black-friday",
			req:  Request{Subject: "X", CustomProductImageURL: dataURI},
			want: defaultsBySlug[SlugBlackFriday].ProductImage,
		},
		{
			name: "logo",
			slug: "modern",
			req:  Request{Subject: "X", CustomLogoURL: dataURI},
			want: defaultLogoURL,
		},
		{
			name: "upper case scheme",
			slug: "modern",
			req:  Request{Subject: "X", CustomProductImageURL: "  DATA:image/gif;base64,R0lGOD"},
			want: defaultsBySlug[SlugModern].ProductImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Render(tt.slug, &tt.req)
			if strings.Contains(strings.ToLower(out), "data:image") {
				t.Error("output contains a data URI")
			}
			if tt.want != "" && !strings.Contains(out, tt.want) {
				t.Errorf("output missing %q", tt.want)
			}
			if tt.wantNone != "" && strings.Contains(out, tt.wantNone) {
				t.Errorf("output unexpectedly contains %q", tt.wantNone)
			}
		})
	}
}

func TestRender_HeaderImage(t *testing.T) {
	out := Render("modern", &Request{Subject: "X", HeaderImage: "https://cdn.example.com/header.jpg"})
	if !strings.Contains(out, "background-image: url('https://cdn.example.com/header.jpg')") {
		t.Error("custom header image not rendered as background")
	}

	out = Render("modern", &Request{Subject: "X"})
	if strings.Contains(out, "background-image") {
		t.Error("modern renders a header image by default")
	}

	out = Render("new-year", &Request{Subject: "X"})
	if !strings.Contains(out, "url('"+defaultsBySlug[SlugNewYear].HeaderImage+"')") {
		t.Error("new-year default header image missing")
	}
}

func TestRender_ContentSubstitution(t *testing.T) {
	t.Run("empty content uses canned default", func(t *testing.T) {
		for _, content := range []string{"", "   ", "\n\t"} {
			out := Render("modern", &Request{Subject: "X", Content: content})
			if !strings.Contains(out, defaultsBySlug[SlugModern].Content) {
				t.Errorf("content %q: canned modern content missing", content)
			}
		}
	})

	t.Run("each slug has its own canned content", func(t *testing.T) {
		for _, slug := range Slugs() {
			out := Render(string(slug), &Request{Subject: "X"})
			if !strings.Contains(out, defaultsBySlug[slug].Content) {
				t.Errorf("%s: canned content missing", slug)
			}
		}
	})

	t.Run("newlines become line breaks", func(t *testing.T) {
		out := Render("modern", &Request{Subject: "X", Content: "Hello\nWorld"})
		if !strings.Contains(out, "Hello<br>World") {
			t.Error("output missing Hello<br>World")
		}
		if strings.Contains(out, "\n") {
			t.Error("output contains a literal newline")
		}
	})

	t.Run("windows line endings", func(t *testing.T) {
		out := Render("modern", &Request{Subject: "X", Content: "Satır 1\r\nSatır 2"})
		if !strings.Contains(out, "Satır 1<br>Satır 2") {
			t.Error("CRLF not converted to a single <br>")
		}
	})

	t.Run("markup is escaped", func(t *testing.T) {
		out := Render("modern", &Request{
			Subject:       "<b>Konu</b>",
			Content:       "<script>alert(1)</script>",
			RecipientName: `<img src=x onerror="alert(1)">`,
		})
		for _, bad := range []string{"<script>alert", "<b>Konu</b>", "<img src=x"} {
			if strings.Contains(out, bad) {
				t.Errorf("output contains unescaped %q", bad)
			}
		}
		if !strings.Contains(out, "&lt;script&gt;alert(1)&lt;/script&gt;") {
			t.Error("escaped content missing")
		}
	})
}

func TestRender_CampaignBox(t *testing.T) {
	t.Run("box replaces default product image", func(t *testing.T) {
		out := Render("modern", &Request{
			Subject:      "X",
			TemplateData: map[string]any{"campaignBoxText": "SALE"},
		})
		if !strings.Contains(out, "SALE") {
			t.Error("campaign box text missing")
		}
		if !strings.Contains(out, `class="campaign-box"`) {
			t.Error("campaign box markup missing")
		}
		if strings.Contains(out, defaultsBySlug[SlugModern].ProductImage) {
			t.Error("default product image rendered alongside campaign box")
		}
	})

	t.Run("custom product image wins over box", func(t *testing.T) {
		const img = "https://cdn.example.com/product.png"
		out := Render("new-year", &Request{
			Subject:               "X",
			CustomProductImageURL: img,
			TemplateData: map[string]any{
				"campaignBoxText":    "SALE",
				"campaignBoxBgColor": "#ff0000",
			},
		})
		if !strings.Contains(out, img) {
			t.Error("custom product image missing")
		}
		if strings.Contains(out, "campaign-box") {
			t.Error("campaign box rendered alongside custom product image")
		}
	})

	t.Run("box colours", func(t *testing.T) {
		out := Render("new-year", &Request{
			Subject: "X",
			TemplateData: map[string]any{
				"campaignBoxText":      "Yılbaşı İndirimi",
				"campaignBoxTextColor": "#111111",
				"campaignBoxBgColor":   "#fafafa",
			},
		})
		if !strings.Contains(out, "background-color: #fafafa; color: #111111;") {
			t.Error("campaign box colours not applied")
		}
	})

	t.Run("blank box text keeps the image", func(t *testing.T) {
		out := Render("modern", &Request{
			Subject:      "X",
			TemplateData: map[string]any{"campaignBoxText": "   "},
		})
		if !strings.Contains(out, defaultsBySlug[SlugModern].ProductImage) {
			t.Error("default product image missing")
		}
	})

	t.Run("unmapped slug image uses hero", func(t *testing.T) {
		out := Render("holiday-greeting", &Request{Subject: "X"})
		if !strings.Contains(out, heroImageURL) {
			t.Error("hero placeholder missing")
		}
	})
}

func TestRender_StyleOverride(t *testing.T) {
	out := Render("modern", &Request{Subject: "X", HeaderBgColor: "#123456"})
	if !strings.Contains(out, `class="header" align="center" style="background: #123456;`) {
		t.Error("header override not in header style attribute")
	}
	if strings.Contains(out, "#1a2744") {
		t.Error("modern default header colour still present")
	}

	out = Render("modern", &Request{
		Subject:       "X",
		ButtonColor:   "#00aa00",
		FooterBgColor: "rgb(10, 20, 30)",
	})
	if !strings.Contains(out, "background-color: #00aa00;") {
		t.Error("button colour override missing")
	}
	if !strings.Contains(out, "background-color: rgb(10, 20, 30);") {
		t.Error("footer colour override missing")
	}
}

func TestRender_UnsafeValues(t *testing.T) {
	out := Render("modern", &Request{
		Subject:       "X",
		HeaderBgColor: "red; position: fixed",
		ButtonColor:   `blue" onclick="alert(1)`,
		BodyBgColor:   "url(https://evil.example/x.png)",
		ButtonURL:     "javascript:alert(1)",
	})

	for _, bad := range []string{"position: fixed", "onclick", "evil.example", "javascript:"} {
		if strings.Contains(out, bad) {
			t.Errorf("output contains %q", bad)
		}
	}
	if !strings.Contains(out, "#1a2744") {
		t.Error("rejected header colour did not fall back to default")
	}
	if !strings.Contains(out, `href="#ZgotmplZ"`) {
		t.Error("javascript URL not neutralised")
	}
}

func TestRender_BlackFridayScenario(t *testing.T) {
	out := Render("black-friday", &Request{
		Subject:       "Kış İndirimi",
		Content:       "",
		RecipientName: "Ahmet",
		ButtonText:    "Şimdi Al",
		ButtonURL:     "https://example.com/x",
	})

	for _, want := range []string{
		"Ahmet",
		"Şimdi Al",
		`href="https://example.com/x"`,
		defaultsBySlug[SlugBlackFriday].Content,
		"Kış İndirimi",
		"text-transform: uppercase",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRender_ButtonDefaults(t *testing.T) {
	out := Render("winter-campaign", &Request{Subject: "X"})
	if !strings.Contains(out, `href="`+WebsiteURL+`"`) {
		t.Error("default website URL missing")
	}
	if !strings.Contains(out, defaultsBySlug[SlugWinterCampaign].ButtonText) {
		t.Error("default button text missing")
	}
	if strings.Contains(out, "text-transform: uppercase") {
		t.Error("winter button is uppercased")
	}
}

func TestRender_Decoration(t *testing.T) {
	t.Run("header decorations", func(t *testing.T) {
		out := Render("black-friday", &Request{
			Subject: "X",
			TemplateData: map[string]any{
				"headingText":     "Büyük Gün",
				"highlightText":   "%50 İndirim",
				"highlightColor":  "#ffcc00",
				"subtitleText":    "Sadece bugün",
				"subtitleColor":   "#111111",
				"subtitleBgColor": "#eeeeee",
			},
		})
		for _, want := range []string{
			">Büyük Gün</h1>",
			"%50 İndirim",
			"font-size: 36px",
			"color: #ffcc00;",
			"Sadece bugün",
			"color: #111111; background-color: #eeeeee;",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q", want)
			}
		}
	})

	t.Run("subject is the fallback heading", func(t *testing.T) {
		out := Render("modern", &Request{Subject: "Yeni Ürünler"})
		if !strings.Contains(out, ">Yeni Ürünler</h1>") {
			t.Error("subject heading missing")
		}
		if strings.Contains(out, `class="highlight"`) || strings.Contains(out, `class="subtitle"`) {
			t.Error("optional header blocks rendered without text")
		}
	})

	t.Run("greeting signature and recipient", func(t *testing.T) {
		out := Render("modern", &Request{
			Subject:       "X",
			RecipientName: "Mehmet Bey",
			TemplateData: map[string]any{
				"greetingText":       "Merhaba",
				"greetingBgColor":    "#f0f0f0",
				"signatureText":      "Satış Ekibi\nFederal Gaz",
				"recipientNameColor": "#cc0000",
				"recipientNameBold":  true,
			},
		})
		for _, want := range []string{
			"Merhaba <span",
			"background-color: #f0f0f0;",
			"Mehmet Bey</span>",
			"color: #cc0000; font-weight: bold;",
			"Satış Ekibi<br>Federal Gaz",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q", want)
			}
		}
	})

	t.Run("recipient placeholder", func(t *testing.T) {
		out := Render("modern", &Request{Subject: "X"})
		if !strings.Contains(out, recipientFallback) {
			t.Error("recipient placeholder missing")
		}
	})

	t.Run("gradient strip", func(t *testing.T) {
		if out := Render("modern", &Request{Subject: "X"}); strings.Contains(out, "gradient-strip") {
			t.Error("modern renders a gradient strip by default")
		}
		if out := Render("new-year", &Request{Subject: "X"}); !strings.Contains(out, "gradient-strip") {
			t.Error("new-year default gradient strip missing")
		}
		out := Render("new-year", &Request{Subject: "X", TemplateData: map[string]any{"gradientStrip": "none"}})
		if strings.Contains(out, "gradient-strip") {
			t.Error("gradient strip not switched off")
		}
		out = Render("modern", &Request{Subject: "X", TemplateData: map[string]any{
			"gradientStrip": "linear-gradient(90deg, #ff0000 0%, #0000ff 100%)",
		}})
		if !strings.Contains(out, "background: linear-gradient(90deg, #ff0000 0%, #0000ff 100%);") {
			t.Error("custom gradient strip missing")
		}
	})
}

func TestRender_WinterCallout(t *testing.T) {
	callout := defaultsBySlug[SlugWinterCampaign].Callout

	out := Render("winter-campaign", &Request{Subject: "X"})
	if !strings.Contains(out, callout.Title) || !strings.Contains(out, callout.Text) {
		t.Error("winter callout missing")
	}

	for _, slug := range Slugs() {
		if slug == SlugWinterCampaign {
			continue
		}
		if strings.Contains(Render(string(slug), &Request{Subject: "X"}), `class="callout"`) {
			t.Errorf("%s renders the winter callout", slug)
		}
	}
}

func TestRender_Deterministic(t *testing.T) {
	req := &Request{
		Subject:      "X",
		Content:      "Satır\nİkinci",
		TemplateData: map[string]any{"campaignBoxText": "50%"},
	}
	want := Render("new-year", req)

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := Render("new-year", req); got != want {
				errs <- got
			}
		}()
	}
	wg.Wait()
	close(errs)

	if len(errs) > 0 {
		t.Errorf("%d concurrent renders differ", len(errs))
	}
}

func TestPlainText(t *testing.T) {
	out := PlainText("winter-campaign", &Request{
		Subject:       "Kış",
		Content:       "Birinci satır\nİkinci satır",
		RecipientName: "Zeynep",
		ButtonURL:     "https://example.com/kis",
	})

	for _, want := range []string{
		"Kış\n",
		"Sayın Zeynep,",
		"Birinci satır\nİkinci satır",
		"https://example.com/kis",
		defaultsBySlug[SlugWinterCampaign].Callout.Title,
		"Federal Gaz Ekibi",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("plain text missing %q", want)
		}
	}
	if strings.Contains(out, "<br>") || strings.Contains(out, "<") {
		t.Error("plain text contains markup")
	}
}

func TestSanitizeImageURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"data:image/png;base64,AAA", ""},
		{"Data:text/html,hi", ""},
		{"  data:image/jpeg;base64,AAA", ""},
		{"https://cdn.example.com/a.png", "https://cdn.example.com/a.png"},
		{" https://cdn.example.com/a.png ", "https://cdn.example.com/a.png"},
		{"/uploads/data:x.png", "/uploads/data:x.png"},
	}

	for _, tt := range tests {
		if got := SanitizeImageURL(tt.in); got != tt.want {
			t.Errorf("SanitizeImageURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	for _, slug := range Slugs() {
		got, ok := Resolve(string(slug))
		if !ok || got != slug {
			t.Errorf("Resolve(%q) = %q, %v", slug, got, ok)
		}
		d, ok := Lookup(slug)
		if !ok || d.Name == "" || d.Content == "" {
			t.Errorf("Lookup(%q) incomplete defaults", slug)
		}
	}

	if got, ok := Resolve("cyber-monday"); ok || got != SlugModern {
		t.Errorf("Resolve(unknown) = %q, %v", got, ok)
	}
}

func slugNames() []string {
	var names []string
	for _, s := range Slugs() {
		names = append(names, string(s))
	}
	return names
}
