// Package localization translates the comment board and the token field's
// rejection messages. Locales are embedded JSON message files; the ones
// served are listed in locales/manifest.json, English first.
package localization

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

var (
	ErrNoManifest    = errors.New("localization: can't read locale manifest")
	ErrNoLanguages   = errors.New("localization: manifest lists no languages")
	ErrBadLocaleFile = errors.New("localization: can't load locale")
)

// Manifest lists the languages a locale directory provides.
type Manifest struct {
	SupportedLanguages []string `json:"supported_languages"`
}

// Service holds every loaded translation and picks the best one for a
// request.
type Service struct {
	bundle    *i18n.Bundle
	languages []language.Tag
	matcher   language.Matcher
}

// Load reads manifest.json and one <lang>.json per listed language from
// dir in fsys. The first listed language is the fallback.
func Load(fsys fs.FS, dir string) (*Service, error) {
	data, err := fs.ReadFile(fsys, dir+"/manifest.json")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoManifest, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoManifest, err)
	}

	if len(m.SupportedLanguages) == 0 {
		return nil, ErrNoLanguages
	}

	fallback, err := language.Parse(m.SupportedLanguages[0])
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrBadLocaleFile, m.SupportedLanguages[0], err)
	}

	bundle := i18n.NewBundle(fallback)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	var errs []error
	var tags []language.Tag
	for _, lang := range m.SupportedLanguages {
		tag, err := language.Parse(lang)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w %q: %w", ErrBadLocaleFile, lang, err))
			continue
		}

		if _, err := bundle.LoadMessageFileFS(fsys, dir+"/"+lang+".json"); err != nil {
			errs = append(errs, fmt.Errorf("%w %q: %w", ErrBadLocaleFile, lang, err))
			continue
		}

		tags = append(tags, tag)
	}

	if len(errs) != 0 {
		return nil, errors.Join(errs...)
	}

	return &Service{
		bundle:    bundle,
		languages: tags,
		matcher:   language.NewMatcher(tags),
	}, nil
}

var (
	defaultService *Service
	once           sync.Once
)

// NewLocalizationService returns the service for the embedded locales.
func NewLocalizationService() *Service {
	once.Do(func() {
		var err error
		defaultService, err = Load(localeFS, "locales")
		if err != nil {
			// embedded locales are covered by tests, this only happens on a
			// broken build
			panic(err)
		}
	})

	return defaultService
}

// Languages returns the served languages, fallback first.
func (s *Service) Languages() []language.Tag {
	return s.languages
}

// GetLocalizer returns a localizer for lang, falling back to the default
// language for anything it does not provide.
func (s *Service) GetLocalizer(lang string) *SimpleLocalizer {
	tag, _, _ := s.matcher.Match(language.Make(lang))
	return s.localizer(tag)
}

// GetLocalizerFromRequest negotiates a language from the Accept-Language
// header.
func (s *Service) GetLocalizerFromRequest(r *http.Request) *SimpleLocalizer {
	prefs, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(prefs) == 0 {
		return s.localizer(s.languages[0])
	}

	_, idx, _ := s.matcher.Match(prefs...)
	return s.localizer(s.languages[idx])
}

func (s *Service) localizer(tag language.Tag) *SimpleLocalizer {
	base, _ := tag.Base()
	return &SimpleLocalizer{
		Localizer: i18n.NewLocalizer(s.bundle, base.String()),
		Lang:      base.String(),
	}
}

// SimpleLocalizer wraps i18n.Localizer with a more convenient API.
type SimpleLocalizer struct {
	Localizer *i18n.Localizer

	// Lang is the negotiated language, suitable for <html lang>.
	Lang string
}

// T localizes a message without template data.
func (sl *SimpleLocalizer) T(messageID string) string {
	return sl.TD(messageID, nil)
}

// TD localizes a message that takes template data. Unknown messages render
// as their ID so a missing translation never breaks a page.
func (sl *SimpleLocalizer) TD(messageID string, data map[string]any) string {
	result, err := sl.Localizer.Localize(&i18n.LocalizeConfig{MessageID: messageID, TemplateData: data})
	if err != nil {
		slog.Warn("can't localize message", "message_id", messageID, "lang", sl.Lang, "err", err)
		return messageID
	}
	return result
}

// GetLocalizer creates a localizer based on the request's Accept-Language
// header.
func GetLocalizer(r *http.Request) *SimpleLocalizer {
	return NewLocalizationService().GetLocalizerFromRequest(r)
}
