package template

const (
	// WebsiteURL is the call-to-action target when a request sets none
	WebsiteURL = "https://www.federalgaz.com"

	assetBaseURL   = "https://www.federalgaz.com/images/email"
	defaultLogoURL = assetBaseURL + "/logo-white.png"
	heroImageURL   = assetBaseURL + "/hero.jpg"

	copyrightText     = "© Federal Gaz. Tüm hakları saklıdır."
	defaultGreeting   = "Sayın"
	recipientFallback = "Değerli Müşterimiz"
	defaultSignature  = "Saygılarımızla,\nFederal Gaz Ekibi"
	defaultContact    = "Federal Gaz Endüstriyel Gazlar | Ostim OSB, Ankara | +90 312 354 00 00 | info@federalgaz.com"
)

// registry order is the order Slugs reports
var registry = []Slug{
	SlugModern,
	SlugBlackFriday,
	SlugNewYear,
	SlugWinterCampaign,
	SlugWeekendSale,
	SlugPromotion,
	SlugVIPCustomer,
	SlugHolidayGreeting,
}

var defaultsBySlug = map[Slug]Defaults{
	SlugModern: {
		Name: "Modern Kurumsal",
		Styles: Styles{
			HeaderBg:   "#1a2744",
			HeaderText: "#ffffff",
			BodyBg:     "#ffffff",
			BodyText:   "#333333",
			Button:     "#e67e22",
			FooterBg:   "#0f172a",
			FooterText: "#cbd5e1",
		},
		Content:              "Federal Gaz olarak size en kaliteli endüstriyel gaz çözümlerini sunmaktan mutluluk duyuyoruz. Güncel ürün ve hizmetlerimizi incelemek için web sitemizi ziyaret edebilirsiniz.",
		ButtonText:           "Web Sitemizi Ziyaret Edin",
		FooterContact:        defaultContact,
		ProductImage:         assetBaseURL + "/modern-product.jpg",
		HighlightColor:       "#e67e22",
		HighlightFontSize:    22,
		SubtitleColor:        "#cbd5e1",
		Greeting:             defaultGreeting,
		Signature:            defaultSignature,
		CampaignBoxTextColor: "#ffffff",
		CampaignBoxBgColor:   "#e67e22",
	},
	SlugBlackFriday: {
		Name: "Black Friday",
		Styles: Styles{
			HeaderBg:   "linear-gradient(135deg, #000000 0%, #1c1c1c 100%)",
			HeaderText: "#ffffff",
			BodyBg:     "#111111",
			BodyText:   "#f5f5f5",
			Button:     "#e10600",
			FooterBg:   "#000000",
			FooterText: "#9ca3af",
		},
		Content:              "Black Friday fırsatları başladı! Endüstriyel gaz tüpleri, kaynak gazları ve ekipmanlarında yılın en büyük indirimlerini kaçırmayın. Kampanya stoklarla sınırlıdır.",
		ButtonText:           "Fırsatları Keşfet",
		FooterContact:        defaultContact,
		ProductImage:         assetBaseURL + "/black-friday-product.jpg",
		HighlightColor:       "#e10600",
		HighlightFontSize:    36,
		SubtitleColor:        "#fca5a5",
		Greeting:             defaultGreeting,
		GreetingColor:        "#ffffff",
		Signature:            defaultSignature,
		SignatureColor:       "#d1d5db",
		CampaignBoxTextColor: "#ffffff",
		CampaignBoxBgColor:   "#e10600",
		UppercaseButton:      true,
	},
	SlugNewYear: {
		Name: "Yeni Yıl",
		Styles: Styles{
			HeaderBg:   "#0b3d2e",
			HeaderText: "#ffffff",
			BodyBg:     "#fffdf7",
			BodyText:   "#2d2d2d",
			Button:     "#c9a227",
			FooterBg:   "#082c21",
			FooterText: "#e8dcb5",
		},
		Content:              "Yeni yılın size ve ailenize sağlık, mutluluk ve bereket getirmesini dileriz. Federal Gaz olarak yeni yılda da güvenilir gaz tedariki ile yanınızdayız.",
		ButtonText:           "Yeni Yıl Fırsatları",
		FooterContact:        defaultContact,
		ProductImage:         assetBaseURL + "/new-year-product.jpg",
		HeaderImage:          assetBaseURL + "/new-year-header.jpg",
		GradientStrip:        "linear-gradient(90deg, #c9a227 0%, #f4e4a6 50%, #c9a227 100%)",
		HighlightColor:       "#f4e4a6",
		HighlightFontSize:    26,
		SubtitleColor:        "#f4e4a6",
		Greeting:             defaultGreeting,
		Signature:            defaultSignature,
		CampaignBoxTextColor: "#0b3d2e",
		CampaignBoxBgColor:   "#f4e4a6",
	},
	SlugWinterCampaign: {
		Name: "Kış Kampanyası",
		Styles: Styles{
			HeaderBg:   "#0ea5e9",
			HeaderText: "#ffffff",
			BodyBg:     "#f0f9ff",
			BodyText:   "#0c4a6e",
			Button:     "#0284c7",
			FooterBg:   "#e0f2fe",
			FooterText: "#075985",
		},
		Content:              "Kış aylarında kesintisiz ısınma ve üretim için gaz ihtiyaçlarınızı şimdiden planlayın. Kış kampanyamız kapsamında toplu siparişlerde özel fiyatlar sizi bekliyor.",
		ButtonText:           "Kampanyayı İncele",
		FooterContact:        defaultContact,
		ProductImage:         assetBaseURL + "/winter-product.jpg",
		HighlightColor:       "#0369a1",
		HighlightFontSize:    24,
		SubtitleColor:        "#e0f2fe",
		Greeting:             defaultGreeting,
		Signature:            defaultSignature,
		CampaignBoxTextColor: "#0c4a6e",
		CampaignBoxBgColor:   "#bae6fd",
		Callout: &Callout{
			Title:     "Kış Kampanyası Avantajı",
			Text:      "Toplu tüp siparişlerinde ücretsiz teslimat ve ek indirim fırsatı.",
			BgColor:   "#bae6fd",
			TextColor: "#0c4a6e",
		},
	},
	SlugWeekendSale: {
		Name: "Hafta Sonu İndirimi",
		Styles: Styles{
			HeaderBg:   "#7c3aed",
			HeaderText: "#ffffff",
			BodyBg:     "#faf5ff",
			BodyText:   "#3b0764",
			Button:     "#a855f7",
			FooterBg:   "#2e1065",
			FooterText: "#e9d5ff",
		},
		Content:              "Hafta sonuna özel indirimler başladı! Cumartesi ve pazar günleri verilen tüm siparişlerde özel fiyatlardan yararlanabilirsiniz.",
		ButtonText:           "Hemen Sipariş Ver",
		FooterContact:        defaultContact,
		ProductImage:         assetBaseURL + "/weekend-product.jpg",
		GradientStrip:        "linear-gradient(90deg, #7c3aed 0%, #ec4899 100%)",
		HighlightColor:       "#ec4899",
		HighlightFontSize:    28,
		SubtitleColor:        "#e9d5ff",
		Greeting:             defaultGreeting,
		Signature:            defaultSignature,
		CampaignBoxTextColor: "#ffffff",
		CampaignBoxBgColor:   "#7c3aed",
	},
	SlugPromotion: {
		Name: "Promosyon",
		Styles: Styles{
			HeaderBg:   "#b91c1c",
			HeaderText: "#ffffff",
			BodyBg:     "#fff7ed",
			BodyText:   "#431407",
			Button:     "#ea580c",
			FooterBg:   "#450a0a",
			FooterText: "#fed7aa",
		},
		Content:              "Size özel promosyon fırsatını kaçırmayın. Seçili ürünlerimizde geçerli indirimlerden yararlanmak için hemen sipariş verin.",
		ButtonText:           "Promosyonu Gör",
		FooterContact:        defaultContact,
		ProductImage:         assetBaseURL + "/promotion-product.jpg",
		HighlightColor:       "#fbbf24",
		HighlightFontSize:    28,
		SubtitleColor:        "#fed7aa",
		Greeting:             defaultGreeting,
		Signature:            defaultSignature,
		CampaignBoxTextColor: "#431407",
		CampaignBoxBgColor:   "#fed7aa",
	},
	SlugVIPCustomer: {
		Name: "VIP Müşteri",
		Styles: Styles{
			HeaderBg:   "#1f1f1f",
			HeaderText: "#d4af37",
			BodyBg:     "#fafaf9",
			BodyText:   "#292524",
			Button:     "#d4af37",
			FooterBg:   "#1c1917",
			FooterText: "#a8a29e",
		},
		Content:              "Değerli VIP müşterimiz, size özel ayrıcalıklarımızı ve öncelikli hizmet fırsatlarımızı sunmaktan memnuniyet duyarız.",
		ButtonText:           "Ayrıcalıkları Keşfet",
		FooterContact:        defaultContact,
		ProductImage:         assetBaseURL + "/vip-product.jpg",
		GradientStrip:        "linear-gradient(90deg, #b8860b 0%, #d4af37 50%, #b8860b 100%)",
		HighlightColor:       "#d4af37",
		HighlightFontSize:    24,
		SubtitleColor:        "#e7e5e4",
		Greeting:             defaultGreeting,
		Signature:            defaultSignature,
		CampaignBoxTextColor: "#1f1f1f",
		CampaignBoxBgColor:   "#d4af37",
	},
	SlugHolidayGreeting: {
		Name: "Bayram Tebriği",
		Styles: Styles{
			HeaderBg:   "#065f46",
			HeaderText: "#ffffff",
			BodyBg:     "#f0fdf4",
			BodyText:   "#14532d",
			Button:     "#059669",
			FooterBg:   "#022c22",
			FooterText: "#bbf7d0",
		},
		Content:              "Bayramınızı en içten dileklerimizle kutlar, sevdiklerinizle birlikte sağlıklı ve huzurlu bir bayram geçirmenizi dileriz.",
		ButtonText:           "Bizi Ziyaret Edin",
		FooterContact:        defaultContact,
		HighlightColor:       "#fde68a",
		HighlightFontSize:    24,
		SubtitleColor:        "#bbf7d0",
		Greeting:             defaultGreeting,
		Signature:            defaultSignature,
		CampaignBoxTextColor: "#065f46",
		CampaignBoxBgColor:   "#bbf7d0",
	},
}

// Slugs returns the built-in template slugs in a stable order
func Slugs() []Slug {
	out := make([]Slug, len(registry))
	copy(out, registry)
	return out
}

// Lookup returns the defaults of a built-in template
func Lookup(slug Slug) (Defaults, bool) {
	d, ok := defaultsBySlug[slug]
	return d, ok
}

// Resolve maps a requested slug onto the template that renders it.
// Unknown slugs resolve to modern and report false.
func Resolve(slug string) (Slug, bool) {
	s := Slug(slug)
	if _, ok := defaultsBySlug[s]; ok {
		return s, true
	}
	return SlugModern, false
}
