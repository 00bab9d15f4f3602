package template

import (
	"time"
)

// Slug identifies one of the built-in campaign email templates
type Slug string

// Built-in templates
const (
	SlugModern          Slug = "modern"
	SlugBlackFriday     Slug = "black-friday"
	SlugNewYear         Slug = "new-year"
	SlugWinterCampaign  Slug = "winter-campaign"
	SlugWeekendSale     Slug = "weekend-sale"
	SlugPromotion       Slug = "promotion"
	SlugVIPCustomer     Slug = "vip-customer"
	SlugHolidayGreeting Slug = "holiday-greeting"
)

// Request carries the content and style parameters of a campaign email.
// Every field is optional except Subject, and even that degrades to an
// empty heading.
type Request struct {
	Subject       string `json:"subject"`
	Content       string `json:"content,omitempty"`
	RecipientName string `json:"recipientName,omitempty"`

	HeaderBgColor   string `json:"headerBgColor,omitempty"`
	HeaderTextColor string `json:"headerTextColor,omitempty"`
	BodyBgColor     string `json:"bodyBgColor,omitempty"`
	BodyTextColor   string `json:"bodyTextColor,omitempty"`
	ButtonColor     string `json:"buttonColor,omitempty"`
	FooterBgColor   string `json:"footerBgColor,omitempty"`
	FooterTextColor string `json:"footerTextColor,omitempty"`

	HeaderImage           string `json:"headerImage,omitempty"`
	FooterImage           string `json:"footerImage,omitempty"`
	CustomLogoURL         string `json:"customLogoUrl,omitempty"`
	CustomProductImageURL string `json:"customProductImageUrl,omitempty"`

	FooterContact string `json:"footerContact,omitempty"`
	ButtonText    string `json:"buttonText,omitempty"`
	ButtonURL     string `json:"buttonUrl,omitempty"`

	TemplateData map[string]any `json:"templateData,omitempty"`
}

// Styles is the resolved colour set of a rendered email
type Styles struct {
	HeaderBg   string `json:"headerBg"`
	HeaderText string `json:"headerText"`
	BodyBg     string `json:"bodyBg"`
	BodyText   string `json:"bodyText"`
	Button     string `json:"button"`
	FooterBg   string `json:"footerBg"`
	FooterText string `json:"footerText"`
}

// Callout is a fixed promotional block rendered below the content
type Callout struct {
	Title     string `json:"title"`
	Text      string `json:"text"`
	BgColor   string `json:"bgColor"`
	TextColor string `json:"textColor"`
}

// Defaults holds the literal values a template uses when the request
// leaves a field empty. Each slug owns one.
type Defaults struct {
	Name   string `json:"name"`
	Styles Styles `json:"styles"`

	Content       string `json:"content"`
	ButtonText    string `json:"buttonText"`
	FooterContact string `json:"footerContact"`

	ProductImage  string `json:"productImage"`
	HeaderImage   string `json:"headerImage,omitempty"`
	GradientStrip string `json:"gradientStrip,omitempty"`

	HighlightColor    string `json:"highlightColor"`
	HighlightFontSize int    `json:"highlightFontSize"`
	SubtitleColor     string `json:"subtitleColor"`

	Greeting       string `json:"greeting"`
	GreetingColor  string `json:"greetingColor,omitempty"`
	Signature      string `json:"signature"`
	SignatureColor string `json:"signatureColor,omitempty"`

	CampaignBoxTextColor string `json:"campaignBoxTextColor"`
	CampaignBoxBgColor   string `json:"campaignBoxBgColor"`

	UppercaseButton bool     `json:"uppercaseButton,omitempty"`
	Callout         *Callout `json:"callout,omitempty"`
}

// Result contains a rendered campaign email
type Result struct {
	Slug     Slug   `json:"slug"`
	Fallback bool   `json:"fallback"`
	HTML     string `json:"html"`
	Text     string `json:"text"`
}

// Record is a saved campaign template: a slug plus the request that
// parameterises it
type Record struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Slug        Slug      `json:"slug"`
	Request     Request   `json:"request"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListFilter contains filters for listing records
type ListFilter struct {
	Limit  int
	Offset int
	Search string
	Slug   Slug
}

// Stats contains template statistics
type Stats struct {
	Total  int64          `json:"total"`
	BySlug map[Slug]int64 `json:"by_slug"`
}
