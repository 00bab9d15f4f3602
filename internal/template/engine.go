package template

import (
	"bytes"
	"html"
	htmlTemplate "html/template"
	"strings"
)

// Engine renders campaign emails from the built-in templates.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	layout *htmlTemplate.Template
}

// NewEngine creates a new template engine
func NewEngine() *Engine {
	return &Engine{layout: parseLayout()}
}

var defaultEngine = NewEngine()

// Render produces the HTML document for slug. Unknown slugs render as
// modern and a nil request renders every default.
func Render(slug string, req *Request) string {
	return defaultEngine.Render(slug, req).HTML
}

// PlainText produces the text/plain alternative for slug
func PlainText(slug string, req *Request) string {
	return defaultEngine.Render(slug, req).Text
}

// Render renders both the HTML document and its plain text alternative
func (e *Engine) Render(slug string, req *Request) *Result {
	resolved, ok := Resolve(slug)
	if req == nil {
		req = &Request{}
	}

	v := buildView(defaultsBySlug[resolved], req)

	return &Result{
		Slug:     resolved,
		Fallback: !ok,
		HTML:     e.renderHTML(v),
		Text:     renderText(v),
	}
}

func (e *Engine) renderHTML(v *view) string {
	var buf bytes.Buffer
	if err := e.layout.Execute(&buf, v); err != nil {
		// Execution only fails on a broken layout; keep the contract total.
		return minimalDocument(v)
	}
	return buf.String()
}

type styledText struct {
	Text     htmlTemplate.HTML
	Color    htmlTemplate.CSS
	Bg       htmlTemplate.CSS
	FontSize int
}

type recipientView struct {
	Name  string
	Color htmlTemplate.CSS
	Bold  bool
}

type buttonView struct {
	Text      string
	URL       string
	Uppercase bool
}

type calloutView struct {
	Title string
	Text  string
	Color htmlTemplate.CSS
	Bg    htmlTemplate.CSS
}

type styleView struct {
	HeaderBg   htmlTemplate.CSS
	HeaderText htmlTemplate.CSS
	BodyBg     htmlTemplate.CSS
	BodyText   htmlTemplate.CSS
	Button     htmlTemplate.CSS
	FooterBg   htmlTemplate.CSS
	FooterText htmlTemplate.CSS
}

// view is the fully resolved input of the layout
type view struct {
	Subject string
	Heading string
	LogoURL string
	Styles  styleView

	HeaderImage   string
	GradientStrip htmlTemplate.CSS
	Highlight     *styledText
	Subtitle      *styledText

	ProductImage string
	CampaignBox  *styledText

	Greeting  styledText
	Recipient recipientView
	Content   htmlTemplate.HTML
	Callout   *calloutView
	Button    buttonView
	Signature styledText

	FooterImage   string
	FooterContact htmlTemplate.HTML
	Copyright     string

	// plain forms kept for the text alternative
	plainContent   string
	plainSignature string
	plainContact   string
}

func buildView(d Defaults, req *Request) *view {
	deco := DecodeDecoration(req.TemplateData)
	styles := resolveStyles(d.Styles, req)

	content := text(req.Content, d.Content)
	if strings.TrimSpace(content) == "" {
		content = defaultsBySlug[SlugModern].Content
	}

	subject := singleLine(req.Subject)
	v := &view{
		Subject: subject,
		Heading: text(singleLine(deco.HeadingText), subject),
		LogoURL: text(SanitizeImageURL(req.CustomLogoURL), defaultLogoURL),
		Styles: styleView{
			HeaderBg:   htmlTemplate.CSS(styles.HeaderBg),
			HeaderText: htmlTemplate.CSS(styles.HeaderText),
			BodyBg:     htmlTemplate.CSS(styles.BodyBg),
			BodyText:   htmlTemplate.CSS(styles.BodyText),
			Button:     htmlTemplate.CSS(styles.Button),
			FooterBg:   htmlTemplate.CSS(styles.FooterBg),
			FooterText: htmlTemplate.CSS(styles.FooterText),
		},
		HeaderImage: text(SanitizeImageURL(req.HeaderImage), d.HeaderImage),
		FooterImage: SanitizeImageURL(req.FooterImage),
		Content:     htmlTemplate.HTML(multiline(content)),
		Copyright:   copyrightText,

		plainContent: normalize(content),
	}

	if strip := resolveGradient(deco.GradientStrip, d.GradientStrip); strip != "" {
		v.GradientStrip = htmlTemplate.CSS(strip)
	}

	if t := strings.TrimSpace(deco.HighlightText); t != "" {
		size := d.HighlightFontSize
		if size == 0 {
			size = 22
		}
		v.Highlight = &styledText{
			Text:     htmlTemplate.HTML(multiline(t)),
			Color:    htmlTemplate.CSS(styleValue(deco.HighlightColor, text(d.HighlightColor, styles.HeaderText))),
			FontSize: size,
		}
	}

	if t := strings.TrimSpace(deco.SubtitleText); t != "" {
		v.Subtitle = &styledText{
			Text:  htmlTemplate.HTML(multiline(t)),
			Color: htmlTemplate.CSS(styleValue(deco.SubtitleColor, text(d.SubtitleColor, styles.HeaderText))),
			Bg:    htmlTemplate.CSS(styleValue(deco.SubtitleBgColor, "transparent")),
		}
	}

	productImage := SanitizeImageURL(req.CustomProductImageURL)
	switch {
	case productImage != "":
		v.ProductImage = productImage
	case strings.TrimSpace(deco.CampaignBoxText) != "":
		v.CampaignBox = &styledText{
			Text:  htmlTemplate.HTML(multiline(strings.TrimSpace(deco.CampaignBoxText))),
			Color: htmlTemplate.CSS(styleValue(deco.CampaignBoxTextColor, d.CampaignBoxTextColor)),
			Bg:    htmlTemplate.CSS(styleValue(deco.CampaignBoxBgColor, d.CampaignBoxBgColor)),
		}
	default:
		v.ProductImage = text(d.ProductImage, heroImageURL)
	}

	greetingBg := ""
	if deco.GreetingBgColor != "" {
		greetingBg = styleValue(deco.GreetingBgColor, "")
	}
	v.Greeting = styledText{
		Text:  htmlTemplate.HTML(html.EscapeString(singleLine(text(deco.GreetingText, text(d.Greeting, defaultGreeting))))),
		Color: htmlTemplate.CSS(styleValue(deco.GreetingColor, text(d.GreetingColor, styles.BodyText))),
		Bg:    htmlTemplate.CSS(greetingBg),
	}

	v.Recipient = recipientView{
		Name:  text(singleLine(req.RecipientName), recipientFallback),
		Color: htmlTemplate.CSS(styleValue(deco.RecipientNameColor, styles.BodyText)),
		Bold:  deco.RecipientNameBold,
	}

	if c := d.Callout; c != nil {
		v.Callout = &calloutView{
			Title: c.Title,
			Text:  c.Text,
			Color: htmlTemplate.CSS(c.TextColor),
			Bg:    htmlTemplate.CSS(c.BgColor),
		}
	}

	buttonURL := strings.TrimSpace(req.ButtonURL)
	if buttonURL == "" {
		buttonURL = WebsiteURL
	}
	v.Button = buttonView{
		Text:      singleLine(text(req.ButtonText, d.ButtonText)),
		URL:       buttonURL,
		Uppercase: d.UppercaseButton,
	}

	signature := text(deco.SignatureText, text(d.Signature, defaultSignature))
	v.Signature = styledText{
		Text:  htmlTemplate.HTML(multiline(signature)),
		Color: htmlTemplate.CSS(styleValue(deco.SignatureColor, text(d.SignatureColor, styles.BodyText))),
	}
	v.plainSignature = normalize(signature)

	contact := text(req.FooterContact, text(d.FooterContact, defaultContact))
	v.FooterContact = htmlTemplate.HTML(multiline(contact))
	v.plainContact = normalize(contact)

	return v
}

func resolveStyles(d Styles, req *Request) Styles {
	return Styles{
		HeaderBg:   styleValue(req.HeaderBgColor, d.HeaderBg),
		HeaderText: styleValue(req.HeaderTextColor, d.HeaderText),
		BodyBg:     styleValue(req.BodyBgColor, d.BodyBg),
		BodyText:   styleValue(req.BodyTextColor, d.BodyText),
		Button:     styleValue(req.ButtonColor, d.Button),
		FooterBg:   styleValue(req.FooterBgColor, d.FooterBg),
		FooterText: styleValue(req.FooterTextColor, d.FooterText),
	}
}

// resolveGradient picks the decorative strip; "none" switches off a
// template default.
func resolveGradient(requested, fallback string) string {
	if strings.EqualFold(strings.TrimSpace(requested), "none") {
		return ""
	}
	return styleValue(requested, fallback)
}

func renderText(v *view) string {
	var b strings.Builder

	b.WriteString(v.Heading)
	b.WriteString("\n\n")
	if v.Highlight != nil {
		b.WriteString(html.UnescapeString(strings.ReplaceAll(string(v.Highlight.Text), "<br>", "\n")))
		b.WriteString("\n\n")
	}
	b.WriteString(html.UnescapeString(string(v.Greeting.Text)))
	b.WriteString(" ")
	b.WriteString(v.Recipient.Name)
	b.WriteString(",\n\n")
	b.WriteString(v.plainContent)
	b.WriteString("\n\n")
	if v.CampaignBox != nil {
		b.WriteString(html.UnescapeString(strings.ReplaceAll(string(v.CampaignBox.Text), "<br>", "\n")))
		b.WriteString("\n\n")
	}
	if v.Callout != nil {
		b.WriteString(v.Callout.Title)
		b.WriteString(": ")
		b.WriteString(v.Callout.Text)
		b.WriteString("\n\n")
	}
	b.WriteString(v.Button.Text)
	b.WriteString(": ")
	b.WriteString(v.Button.URL)
	b.WriteString("\n\n")
	b.WriteString(v.plainSignature)
	b.WriteString("\n\n--\n")
	b.WriteString(v.plainContact)
	b.WriteString("\n")
	b.WriteString(v.Copyright)
	b.WriteString("\n")

	return b.String()
}

func minimalDocument(v *view) string {
	return "<!DOCTYPE html><html><head><meta charset=\"UTF-8\"><title>" +
		html.EscapeString(v.Subject) + "</title></head><body><div class=\"header\"><h1>" +
		html.EscapeString(v.Heading) + "</h1></div><div class=\"content\">" +
		string(v.Content) + "</div><div class=\"footer\">" +
		html.EscapeString(v.Copyright) + "</div></body></html>"
}
