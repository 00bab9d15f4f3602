package template

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Decoration is the typed view of Request.TemplateData
type Decoration struct {
	HeadingText string

	HighlightText  string
	HighlightColor string

	SubtitleText    string
	SubtitleColor   string
	SubtitleBgColor string

	GradientStrip string

	GreetingText    string
	GreetingColor   string
	GreetingBgColor string

	SignatureText  string
	SignatureColor string

	RecipientNameColor string
	RecipientNameBold  bool

	CampaignBoxText      string
	CampaignBoxTextColor string
	CampaignBoxBgColor   string
}

// templateData keys
const (
	keyHeadingText          = "headingText"
	keyHighlightText        = "highlightText"
	keyHighlightColor       = "highlightColor"
	keySubtitleText         = "subtitleText"
	keySubtitleColor        = "subtitleColor"
	keySubtitleBgColor      = "subtitleBgColor"
	keyGradientStrip        = "gradientStrip"
	keyGreetingText         = "greetingText"
	keyGreetingColor        = "greetingColor"
	keyGreetingBgColor      = "greetingBgColor"
	keySignatureText        = "signatureText"
	keySignatureColor       = "signatureColor"
	keyRecipientNameColor   = "recipientNameColor"
	keyRecipientNameBold    = "recipientNameBold"
	keyCampaignBoxText      = "campaignBoxText"
	keyCampaignBoxTextColor = "campaignBoxTextColor"
	keyCampaignBoxBgColor   = "campaignBoxBgColor"
)

// DecodeDecoration reads the decorative fields out of a templateData bag.
// Scalar values are coerced to strings; objects and arrays are ignored.
func DecodeDecoration(data map[string]any) Decoration {
	if len(data) == 0 {
		return Decoration{}
	}

	return Decoration{
		HeadingText:          stringField(data, keyHeadingText),
		HighlightText:        stringField(data, keyHighlightText),
		HighlightColor:       stringField(data, keyHighlightColor),
		SubtitleText:         stringField(data, keySubtitleText),
		SubtitleColor:        stringField(data, keySubtitleColor),
		SubtitleBgColor:      stringField(data, keySubtitleBgColor),
		GradientStrip:        stringField(data, keyGradientStrip),
		GreetingText:         stringField(data, keyGreetingText),
		GreetingColor:        stringField(data, keyGreetingColor),
		GreetingBgColor:      stringField(data, keyGreetingBgColor),
		SignatureText:        stringField(data, keySignatureText),
		SignatureColor:       stringField(data, keySignatureColor),
		RecipientNameColor:   stringField(data, keyRecipientNameColor),
		RecipientNameBold:    boolField(data, keyRecipientNameBold),
		CampaignBoxText:      stringField(data, keyCampaignBoxText),
		CampaignBoxTextColor: stringField(data, keyCampaignBoxTextColor),
		CampaignBoxBgColor:   stringField(data, keyCampaignBoxBgColor),
	}
}

// ParseTemplateData decodes a JSON-encoded templateData object as stored
// alongside campaign records. Empty input yields a nil map.
func ParseTemplateData(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("invalid template data: %w", err)
	}
	return data, nil
}

func stringField(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func boolField(data map[string]any, key string) bool {
	switch v := data[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && b
	case float64:
		return v != 0
	default:
		return false
	}
}
