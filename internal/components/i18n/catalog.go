// Package i18n loads the embedded label catalogs and resolves the language
// for a request. Catalog files live under locales/<locale>/<namespace>.yaml.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the source locale. Every key must exist in it.
const BaseLocale = "en-US"

// Label keys.
const (
	KeyGlobalInbox      = "navBar.notifications.global"
	KeyAppInbox         = "navBar.notifications.tictactoe"
	KeyFetchingError    = "navBar.notifications.fetchingError"
	KeyNoInboxTitle     = "noInboxUser.title"
	KeyNoInboxMessage   = "noInboxUser.message"
	KeyNoInboxLinkLabel = "noInboxUser.link.label"
	KeyNoInboxLinkHref  = "noInboxUser.link.href"
)

type catalogFile struct {
	Locale    string            `yaml:"locale"`
	Namespace string            `yaml:"namespace"`
	Messages  map[string]string `yaml:"messages"`
}

// Bundle holds every locale's messages and a x/text catalog built from them.
type Bundle struct {
	locales map[string]map[string]string
	tags    []language.Tag
	builder *catalog.Builder
	matcher language.Matcher
}

//go:embed locales/*/*.yaml
var embeddedFS embed.FS

// LoadEmbedded loads the catalogs compiled into the binary.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedFS)
}

// MustLoadEmbedded is LoadEmbedded for package-level initialization.
func MustLoadEmbedded() *Bundle {
	b, err := LoadEmbedded()
	if err != nil {
		panic(err)
	}
	return b
}

// LoadFromFS loads catalog files from fsys.
func LoadFromFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	b := &Bundle{locales: map[string]map[string]string{}}
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if err := b.addFile(p, file); err != nil {
			return nil, err
		}
	}

	base, ok := b.locales[BaseLocale]
	if !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	for locale, messages := range b.locales {
		for key := range messages {
			if _, ok := base[key]; !ok {
				return nil, fmt.Errorf("locale %s: key %q missing from base locale", locale, key)
			}
		}
	}

	if err := b.build(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bundle) addFile(p string, file catalogFile) error {
	localeFromPath := path.Base(path.Dir(p))
	namespaceFromPath := strings.TrimSuffix(path.Base(p), path.Ext(p))

	locale := strings.TrimSpace(file.Locale)
	if locale != localeFromPath {
		return fmt.Errorf("catalog %s: locale %q must match path locale %q", p, locale, localeFromPath)
	}
	if ns := strings.TrimSpace(file.Namespace); ns != namespaceFromPath {
		return fmt.Errorf("catalog %s: namespace %q must match filename namespace %q", p, ns, namespaceFromPath)
	}
	if file.Messages == nil {
		return fmt.Errorf("catalog %s: messages map is required", p)
	}

	messages, ok := b.locales[locale]
	if !ok {
		messages = map[string]string{}
		b.locales[locale] = messages
	}
	for key, value := range file.Messages {
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("catalog %s: message key cannot be blank", p)
		}
		if _, dup := messages[key]; dup {
			return fmt.Errorf("catalog %s: duplicate key %q in locale %q", p, key, locale)
		}
		messages[key] = value
	}
	return nil
}

// build registers messages in a private catalog. Missing keys in a locale
// fall back to the base locale. Values are literal text, so '%' is escaped
// before it reaches the printer's format parser.
func (b *Bundle) build() error {
	b.builder = catalog.NewBuilder(catalog.Fallback(language.MustParse(BaseLocale)))

	// Base locale first so the matcher prefers it on ties.
	locales := b.Locales()
	sort.SliceStable(locales, func(i, j int) bool { return locales[i] == BaseLocale && locales[j] != BaseLocale })

	for _, locale := range locales {
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("parse locale tag %q: %w", locale, err)
		}
		b.tags = append(b.tags, tag)
		for key, value := range b.locales[locale] {
			if err := b.builder.SetString(tag, key, strings.ReplaceAll(value, "%", "%%")); err != nil {
				return fmt.Errorf("register %s/%s: %w", locale, key, err)
			}
		}
	}
	b.matcher = language.NewMatcher(b.tags)
	return nil
}

// Locales returns the loaded locale identifiers, sorted.
func (b *Bundle) Locales() []string {
	out := make([]string, 0, len(b.locales))
	for locale := range b.locales {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// Supported returns the language tags with a catalog, base locale first.
func (b *Bundle) Supported() []language.Tag {
	return append([]language.Tag(nil), b.tags...)
}

// Match picks the best supported tag for the preferred tags.
func (b *Bundle) Match(preferred ...language.Tag) language.Tag {
	if len(preferred) == 0 {
		return b.tags[0]
	}
	_, idx, conf := b.matcher.Match(preferred...)
	if conf == language.No {
		return b.tags[0]
	}
	return b.tags[idx]
}

// Localizer returns the label source for tag.
func (b *Bundle) Localizer(tag language.Tag) *Localizer {
	tag = b.Match(tag)
	return &Localizer{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(b.builder)),
	}
}

// Localizer translates label keys for one language.
type Localizer struct {
	tag     language.Tag
	printer *message.Printer
}

// Label returns the translated text for key. Unknown keys are returned as is.
func (l *Localizer) Label(key string) string {
	return l.printer.Sprintf(key)
}

// Tag returns the language the localizer renders.
func (l *Localizer) Tag() language.Tag {
	return l.tag
}
