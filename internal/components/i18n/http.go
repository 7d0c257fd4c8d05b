package i18n

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

// LangParam is the query parameter used to select a language.
const LangParam = "lang"

// ParseTag parses a BCP 47 tag, rejecting empty and undetermined values.
func ParseTag(value string) (language.Tag, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return language.Und, false
	}
	tag, err := language.Parse(value)
	if err != nil || tag == language.Und {
		return language.Und, false
	}
	return tag, true
}

// ResolveTag determines the label language for a request: the lang query
// parameter, then Accept-Language, then fallback.
func (b *Bundle) ResolveTag(r *http.Request, fallback language.Tag) language.Tag {
	if r == nil {
		return b.Match(fallback)
	}

	if tag, ok := ParseTag(r.URL.Query().Get(LangParam)); ok {
		return b.Match(tag)
	}

	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			return b.Match(tags...)
		}
	}

	return b.Match(fallback)
}
