package template

import (
	htmlTemplate "html/template"
	"regexp"
)

// campaignLayout is the single document layout shared by every slug.
// Line breaks and indentation are stripped before parsing, so text that
// belongs together must stay on one line.
const campaignLayout = `<!DOCTYPE html>
<html lang="tr">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<meta http-equiv="X-UA-Compatible" content="IE=edge">
	<title>{{.Subject}}</title>
	<style>
		body { margin: 0; padding: 0; -webkit-text-size-adjust: 100%; }
		table { border-collapse: collapse; }
		img { border: 0; display: block; line-height: 100%; outline: none; text-decoration: none; }
		@media only screen and (max-width: 620px) { .container { width: 100% !important; } .content { padding: 24px 18px !important; } }
	</style>
</head>
<body style="margin: 0; padding: 0; background-color: {{.Styles.BodyBg}}; font-family: Arial, Helvetica, sans-serif;">
	<table role="presentation" width="100%" cellpadding="0" cellspacing="0" border="0" style="width: 100%; background-color: {{.Styles.BodyBg}};">
		<tr>
			<td align="center" style="padding: 24px 0;">
				<table role="presentation" class="container" width="600" cellpadding="0" cellspacing="0" border="0" style="width: 600px; max-width: 600px; background-color: {{.Styles.BodyBg}};">
					<tr>
						<td class="header" align="center" style="background: {{.Styles.HeaderBg}};{{if .HeaderImage}} background-image: url('{{.HeaderImage}}'); background-size: cover; background-position: center;{{end}} color: {{.Styles.HeaderText}}; padding: 32px 24px;">
							<img src="{{.LogoURL}}" alt="Federal Gaz" width="160" style="width: 160px; max-width: 160px; height: auto; margin: 0 auto 16px auto;">
							<h1 style="margin: 0; font-size: 26px; line-height: 1.3; color: {{.Styles.HeaderText}};">{{.Heading}}</h1>
							{{- if .Highlight}}
							<p class="highlight" style="margin: 12px 0 0 0; font-size: {{.Highlight.FontSize}}px; font-weight: bold; line-height: 1.2; color: {{.Highlight.Color}};">{{.Highlight.Text}}</p>
							{{- end}}
							{{- if .Subtitle}}
							<p class="subtitle" style="display: inline-block; margin: 12px 0 0 0; padding: 6px 14px; font-size: 15px; color: {{.Subtitle.Color}}; background-color: {{.Subtitle.Bg}};">{{.Subtitle.Text}}</p>
							{{- end}}
						</td>
					</tr>
					{{- if .GradientStrip}}
					<tr>
						<td class="gradient-strip" style="height: 6px; line-height: 6px; font-size: 0; background: {{.GradientStrip}};">&nbsp;</td>
					</tr>
					{{- end}}
					<tr>
						{{- if .CampaignBox}}
						<td class="campaign-box" align="center" style="padding: 36px 24px; background-color: {{.CampaignBox.Bg}}; color: {{.CampaignBox.Color}}; font-size: 28px; font-weight: bold; line-height: 1.3;">{{.CampaignBox.Text}}</td>
						{{- else}}
						<td class="product-image" align="center" style="padding: 0;">
							<img src="{{.ProductImage}}" alt="{{.Heading}}" width="600" style="width: 100%; max-width: 600px; height: auto;">
						</td>
						{{- end}}
					</tr>
					<tr>
						<td class="content" style="padding: 32px 32px; background-color: {{.Styles.BodyBg}}; color: {{.Styles.BodyText}}; font-size: 16px; line-height: 1.6;">
							<p class="greeting" style="margin: 0 0 18px 0; color: {{.Greeting.Color}};{{if .Greeting.Bg}} background-color: {{.Greeting.Bg}}; padding: 8px 12px;{{end}}">{{.Greeting.Text}} <span class="recipient-name" style="color: {{.Recipient.Color}};{{if .Recipient.Bold}} font-weight: bold;{{end}}">{{.Recipient.Name}}</span>,</p>
							<div class="message" style="margin: 0 0 24px 0;">{{.Content}}</div>
							{{- if .Callout}}
							<table role="presentation" class="callout" width="100%" cellpadding="0" cellspacing="0" border="0" style="width: 100%; margin: 0 0 24px 0;">
								<tr>
									<td style="padding: 18px 20px; background-color: {{.Callout.Bg}}; color: {{.Callout.Color}}; border-radius: 6px;">
										<strong style="display: block; font-size: 18px; margin-bottom: 6px;">{{.Callout.Title}}</strong>
										<span style="font-size: 15px;">{{.Callout.Text}}</span>
									</td>
								</tr>
							</table>
							{{- end}}
							<table role="presentation" cellpadding="0" cellspacing="0" border="0" align="center" style="margin: 0 auto 28px auto;">
								<tr>
									<td align="center" style="border-radius: 6px; background-color: {{.Styles.Button}};">
										<a class="cta" href="{{.Button.URL}}" target="_blank" style="display: inline-block; padding: 14px 32px; font-size: 16px; font-weight: bold; color: #ffffff; text-decoration: none; border-radius: 6px; background-color: {{.Styles.Button}};{{if .Button.Uppercase}} text-transform: uppercase; letter-spacing: 1px;{{end}}">{{.Button.Text}}</a>
									</td>
								</tr>
							</table>
							<p class="signature" style="margin: 0; color: {{.Signature.Color}};">{{.Signature.Text}}</p>
						</td>
					</tr>
					<tr>
						<td class="footer" align="center" style="padding: 24px; background-color: {{.Styles.FooterBg}}; color: {{.Styles.FooterText}}; font-size: 13px; line-height: 1.5;">
							{{- if .FooterImage}}
							<img src="{{.FooterImage}}" alt="" width="120" style="width: 120px; max-width: 120px; height: auto; margin: 0 auto 12px auto;">
							{{- end}}
							<p style="margin: 0 0 8px 0; color: {{.Styles.FooterText}};">{{.FooterContact}}</p>
							<p style="margin: 0; color: {{.Styles.FooterText}};">{{.Copyright}}</p>
						</td>
					</tr>
				</table>
			</td>
		</tr>
	</table>
</body>
</html>`

var layoutWhitespace = regexp.MustCompile(`\n\s*`)

func parseLayout() *htmlTemplate.Template {
	src := layoutWhitespace.ReplaceAllString(campaignLayout, "")
	return htmlTemplate.Must(htmlTemplate.New("campaign").Parse(src))
}
