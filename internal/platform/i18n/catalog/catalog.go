// Package catalog loads localized message catalogs and compiles them for
// golang.org/x/text/message printers.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
	xcatalog "golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the source locale every other locale falls back to.
const BaseLocale = "en-US"

type catalogFile struct {
	Locale    string            `yaml:"locale"`
	Namespace string            `yaml:"namespace"`
	Messages  map[string]string `yaml:"messages"`
}

// Bundle holds every locale's messages keyed by message key.
type Bundle struct {
	locales    map[string]map[string]string
	namespaces map[string]map[string]bool
}

//go:embed locales/*/*.yaml
var embedded embed.FS

var (
	defaultOnce   sync.Once
	defaultBundle *Bundle
	defaultErr    error
)

// Default returns the bundle embedded in this package.
func Default() (*Bundle, error) {
	defaultOnce.Do(func() {
		defaultBundle, defaultErr = LoadFromFS(embedded)
	})
	return defaultBundle, defaultErr
}

// LoadFromFS loads locales/<locale>/<namespace>.yaml files from fsys.
func LoadFromFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	b := &Bundle{locales: map[string]map[string]string{}, namespaces: map[string]map[string]bool{}}
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if err := b.add(p, file); err != nil {
			return nil, err
		}
	}
	if !b.HasLocale(BaseLocale) {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	return b, nil
}

func (b *Bundle) add(p string, file catalogFile) error {
	dirLocale := path.Base(path.Dir(p))
	fileNamespace := strings.TrimSuffix(path.Base(p), path.Ext(p))

	locale := strings.TrimSpace(file.Locale)
	namespace := strings.TrimSpace(file.Namespace)
	switch {
	case locale == "":
		return fmt.Errorf("catalog %s: locale is required", p)
	case locale != dirLocale:
		return fmt.Errorf("catalog %s: locale %q must match directory %q", p, locale, dirLocale)
	case namespace == "":
		return fmt.Errorf("catalog %s: namespace is required", p)
	case namespace != fileNamespace:
		return fmt.Errorf("catalog %s: namespace %q must match file name %q", p, namespace, fileNamespace)
	case len(file.Messages) == 0:
		return fmt.Errorf("catalog %s: messages are required", p)
	}
	if _, err := language.Parse(locale); err != nil {
		return fmt.Errorf("catalog %s: locale %q: %w", p, locale, err)
	}

	if b.namespaces[locale] == nil {
		b.namespaces[locale] = map[string]bool{}
		b.locales[locale] = map[string]string{}
	}
	if b.namespaces[locale][namespace] {
		return fmt.Errorf("catalog %s: namespace %q already defined for %s", p, namespace, locale)
	}
	b.namespaces[locale][namespace] = true

	for key, value := range file.Messages {
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("catalog %s: message key cannot be blank", p)
		}
		if !strings.HasPrefix(key, namespace+".") {
			return fmt.Errorf("catalog %s: key %q must start with %q", p, key, namespace+".")
		}
		if _, dup := b.locales[locale][key]; dup {
			return fmt.Errorf("catalog %s: duplicate key %q in %s", p, key, locale)
		}
		b.locales[locale][key] = value
	}
	return nil
}

// HasLocale reports whether locale has any messages.
func (b *Bundle) HasLocale(locale string) bool {
	if b == nil {
		return false
	}
	_, ok := b.locales[strings.TrimSpace(locale)]
	return ok
}

// Locales returns the sorted locale identifiers.
func (b *Bundle) Locales() []string {
	if b == nil {
		return nil
	}
	out := make([]string, 0, len(b.locales))
	for locale := range b.locales {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// Message returns key in locale, falling back to BaseLocale.
func (b *Bundle) Message(locale, key string) (string, bool) {
	if b == nil {
		return "", false
	}
	if value, ok := b.locales[strings.TrimSpace(locale)][key]; ok {
		return value, true
	}
	value, ok := b.locales[BaseLocale][key]
	return value, ok
}

// Builder compiles the bundle into an x/text catalog with BaseLocale as
// the fallback language.
func (b *Bundle) Builder() (*xcatalog.Builder, error) {
	builder := xcatalog.NewBuilder(xcatalog.Fallback(language.MustParse(BaseLocale)))
	for _, locale := range b.Locales() {
		tag := language.MustParse(locale)
		for key, msg := range b.locales[locale] {
			if err := builder.SetString(tag, key, msg); err != nil {
				return nil, fmt.Errorf("register %s %s: %w", locale, key, err)
			}
		}
	}
	return builder, nil
}
