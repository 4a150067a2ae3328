// Package platform classifies submitted text into a supported media
// platform. Classification is a pure function of the normalized text:
// no network access, no side effects.
package platform

import (
	"net/url"
	"strings"
)

// Platform identifies which fetch path applies to a link.
type Platform int

const (
	// Unsupported means the text is not a link to any supported platform.
	Unsupported Platform = iota
	// ShortVideoMirror links are served by the specialized mirror API
	// first, with the generic extractor as fallback.
	ShortVideoMirror
	// GenericExtractor links go straight to the external extractor tool.
	GenericExtractor
)

func (p Platform) String() string {
	switch p {
	case ShortVideoMirror:
		return "mirror"
	case GenericExtractor:
		return "extractor"
	default:
		return "unsupported"
	}
}

// Classification is the result of inspecting a candidate link.
type Classification struct {
	Platform        Platform
	PremiumRequired bool
}

// mirrorDomains are served by the short-video mirror API.
var mirrorDomains = []string{
	"tiktok.com",
	"vm.tiktok.com",
	"vt.tiktok.com",
}

// extractorDomains are handled by the generic extractor tool.
var extractorDomains = []string{
	"youtube.com",
	"youtu.be",
	"m.youtube.com",
	"youtube-nocookie.com",
	"instagram.com",
	"x.com",
	"twitter.com",
	"vimeo.com",
	"reddit.com",
	"twitch.tv",
}

// premiumDomains require the requester to hold a premium entitlement.
var premiumDomains = []string{
	"pornhub.com",
	"xvideos.com",
	"xnxx.com",
	"xhamster.com",
}

// zeroWidth runes are stripped before classification; copied links from
// mobile clients frequently embed them.
var zeroWidth = strings.NewReplacer(
	"\u200b", "", // zero-width space
	"\u200c", "", // zero-width non-joiner
	"\u200d", "", // zero-width joiner
	"\ufeff", "", // byte order mark
)

// Normalize prepares raw message text for classification: strip
// zero-width runes, keep only the first line, trim whitespace.
func Normalize(text string) string {
	text = zeroWidth.Replace(text)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// matchesDomain reports whether host is domain or a subdomain of it.
// Substring containment is deliberately not used: it would accept hosts
// like notyoutube.com.evil.tld.
func matchesDomain(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Classify inspects normalized text and returns the platform tag plus
// whether the host is premium-gated. Command-prefixed text is never a link.
func Classify(text string) Classification {
	text = Normalize(text)
	if text == "" || strings.HasPrefix(text, "/") {
		return Classification{Platform: Unsupported}
	}

	host := hostOf(text)
	if host == "" {
		return Classification{Platform: Unsupported}
	}

	for _, d := range premiumDomains {
		if matchesDomain(host, d) {
			return Classification{Platform: GenericExtractor, PremiumRequired: true}
		}
	}
	for _, d := range mirrorDomains {
		if matchesDomain(host, d) {
			return Classification{Platform: ShortVideoMirror}
		}
	}
	for _, d := range extractorDomains {
		if matchesDomain(host, d) {
			return Classification{Platform: GenericExtractor}
		}
	}
	return Classification{Platform: Unsupported}
}

// IsSupported reports whether the text is a link to any supported platform.
func IsSupported(text string) bool {
	return Classify(text).Platform != Unsupported
}
