// Package localization provides functionality for internationalization (i18n).
// Message catalogs are TOML files embedded in the binary, one per language
// (e.g., "active.en.toml"), and are served through a go-i18n bundle.
package localization

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// Message IDs used by the chat hub.
const (
	KeyWaitingForMatch = "WaitingForMatch"
	KeyGreeting        = "SyntheticGreeting"
	KeyMediaCaption    = "MediaCaption"
	KeyNotInRoom       = "ErrorNotInRoom"
	KeyEmptyMessage    = "ErrorEmptyMessage"
	KeyInvalidMedia    = "ErrorInvalidMedia"
	KeyBadPayload      = "ErrorBadPayload"
	KeyUnknownEvent    = "ErrorUnknownEvent"
	KeyAlreadyJoined   = "ErrorAlreadyJoined"
)

//go:embed locales/*.toml
var catalogs embed.FS

// Localizer manages the translations for the application.
type Localizer struct {
	bundle      *i18n.Bundle
	defaultLang language.Tag
}

// NewLocalizer creates a Localizer with the embedded catalogs loaded.
func NewLocalizer() (*Localizer, error) {
	return NewLocalizerFS(catalogs, "locales")
}

// NewLocalizerFS loads every *.toml catalog found in dir of fsys.
func NewLocalizerFS(fsys fs.FS, dir string) (*Localizer, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read localization directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".toml" {
			continue
		}
		if _, err := bundle.LoadMessageFileFS(fsys, path.Join(dir, entry.Name())); err != nil {
			return nil, fmt.Errorf("failed to parse localization file %s: %w", entry.Name(), err)
		}
	}

	return &Localizer{bundle: bundle, defaultLang: language.English}, nil
}

// MustNewLocalizer is NewLocalizer for callers that cannot recover from a
// broken embedded catalog.
func MustNewLocalizer() *Localizer {
	l, err := NewLocalizer()
	if err != nil {
		panic(err)
	}
	return l
}

// GetString returns the localized string for a given key and language.
// If the language or the key is not found, it falls back to English and
// then to the key itself.
func (l *Localizer) GetString(lang, key string) string {
	return l.Format(lang, key, nil)
}

// Format is GetString with template data.
func (l *Localizer) Format(lang, key string, data map[string]any) string {
	if l == nil {
		return key
	}
	localizer := i18n.NewLocalizer(l.bundle, lang, l.defaultLang.String())
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: data,
	})
	if err != nil {
		return key
	}
	return msg
}

// Supported reports whether a catalog exists for lang.
func (l *Localizer) Supported(lang string) bool {
	if l == nil {
		return false
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return false
	}
	_, _, confidence := language.NewMatcher(l.bundle.LanguageTags()).Match(tag)
	return confidence != language.No
}
